package storage

import (
	"context"
	"errors"

	"github.com/cloudspend/sentinel/pkg/model"
)

// ErrNotFound is returned when no registration matches the lookup key.
var ErrNotFound = errors.New("device registration not found")

// TokenStore persists device registrations keyed by device token.
type TokenStore interface {
	// Upsert creates or replaces the registration for its token.
	Upsert(ctx context.Context, reg *model.DeviceRegistration) error

	// Get retrieves a registration by device token.
	Get(ctx context.Context, token string) (*model.DeviceRegistration, error)

	// GetByEndpoint retrieves a registration by platform endpoint handle.
	GetByEndpoint(ctx context.Context, endpointARN string) (*model.DeviceRegistration, error)

	// List returns all registrations.
	List(ctx context.Context) ([]model.DeviceRegistration, error)

	// Delete removes the registration for a token. Deleting an absent
	// token is not an error.
	Delete(ctx context.Context, token string) error

	// Close releases resources.
	Close() error
}

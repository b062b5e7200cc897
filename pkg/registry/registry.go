// Package registry manages the lifecycle of mobile push endpoint
// registrations: register, token rotation, and feedback-driven removal.
// The registry exclusively owns writes to the token store.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/cloudspend/sentinel/pkg/model"
	"github.com/cloudspend/sentinel/pkg/retry"
	"github.com/cloudspend/sentinel/pkg/storage"
)

// tokenPattern is the APNS device-token format: exactly 64 hex characters.
var tokenPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// PushGateway is the external platform service managing device endpoints.
type PushGateway interface {
	// CreateEndpoint registers a device token, returning an opaque
	// endpoint handle.
	CreateEndpoint(ctx context.Context, token, userData string) (string, error)

	// DeleteEndpoint removes an endpoint by handle.
	DeleteEndpoint(ctx context.Context, handle string) error

	// EndpointAttributes returns the attributes of one endpoint.
	EndpointAttributes(ctx context.Context, handle string) (map[string]string, error)

	// ApplicationAttributes returns the platform application's attributes.
	// Used for credential health checks.
	ApplicationAttributes(ctx context.Context) (map[string]string, error)

	// ListEndpoints enumerates all endpoint handles for the application.
	ListEndpoints(ctx context.Context) ([]string, error)
}

// Registry coordinates the push gateway and the token store.
type Registry struct {
	store  storage.TokenStore
	gw     PushGateway
	logger *slog.Logger
}

// New creates a registry.
func New(store storage.TokenStore, gw PushGateway, logger *slog.Logger) *Registry {
	return &Registry{store: store, gw: gw, logger: logger}
}

// ValidateToken checks the device-token format without touching the
// gateway or the store.
func ValidateToken(token string) error {
	if !tokenPattern.MatchString(token) {
		return retry.NewValidationError(
			fmt.Sprintf("device token must be exactly 64 hex characters, got %d", len(token)))
	}
	return nil
}

// Register creates or refreshes the registration for a device token.
// Registering an already-active token updates the stored record instead
// of creating a duplicate endpoint.
func (r *Registry) Register(ctx context.Context, token, userID string) (*model.DeviceRegistration, error) {
	if err := ValidateToken(token); err != nil {
		return nil, err
	}

	existing, err := r.store.Get(ctx, token)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("look up token: %w", err)
	}
	if existing != nil && existing.Enabled && existing.EndpointARN != "" {
		existing.UserID = userID
		if err := r.store.Upsert(ctx, existing); err != nil {
			return nil, fmt.Errorf("refresh registration: %w", err)
		}
		r.logger.Info("registration refreshed", "endpoint", existing.EndpointARN, "user", userID)
		return existing, nil
	}

	handle, err := r.gw.CreateEndpoint(ctx, token, userID)
	if err != nil {
		return nil, fmt.Errorf("create platform endpoint: %w", err)
	}

	reg := &model.DeviceRegistration{
		Token:       token,
		EndpointARN: handle,
		UserID:      userID,
		Enabled:     true,
	}
	if existing != nil {
		reg.ID = existing.ID
		reg.CreatedAt = existing.CreatedAt
	}
	if err := r.store.Upsert(ctx, reg); err != nil {
		return nil, fmt.Errorf("persist registration: %w", err)
	}

	r.logger.Info("device registered", "endpoint", handle, "user", userID)
	return reg, nil
}

// RotateToken re-associates an existing registration with a fresh token.
// The endpoint handle is reissued; the user identifier is unchanged. The
// previous endpoint is deleted best-effort.
func (r *Registry) RotateToken(ctx context.Context, endpointHandle, newToken string) (*model.DeviceRegistration, error) {
	if err := ValidateToken(newToken); err != nil {
		return nil, err
	}

	existing, err := r.store.GetByEndpoint(ctx, endpointHandle)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, retry.NewValidationError(fmt.Sprintf("no registration for endpoint %s", endpointHandle))
		}
		return nil, fmt.Errorf("look up endpoint: %w", err)
	}

	newHandle, err := r.gw.CreateEndpoint(ctx, newToken, existing.UserID)
	if err != nil {
		return nil, fmt.Errorf("reissue platform endpoint: %w", err)
	}

	if err := r.gw.DeleteEndpoint(ctx, endpointHandle); err != nil {
		r.logger.Warn("delete old endpoint failed", "endpoint", endpointHandle, "error", err)
	}
	if existing.Token != newToken {
		if err := r.store.Delete(ctx, existing.Token); err != nil {
			r.logger.Warn("delete old registration failed", "token_suffix", suffix(existing.Token), "error", err)
		}
	}

	rotated := &model.DeviceRegistration{
		ID:          existing.ID,
		Token:       newToken,
		EndpointARN: newHandle,
		UserID:      existing.UserID,
		Enabled:     true,
		CreatedAt:   existing.CreatedAt,
	}
	if err := r.store.Upsert(ctx, rotated); err != nil {
		return nil, fmt.Errorf("persist rotated registration: %w", err)
	}

	r.logger.Info("token rotated", "old_endpoint", endpointHandle, "new_endpoint", newHandle)
	return rotated, nil
}

// RemoveInvalid deletes the given endpoint handles from the gateway and
// the store. A per-handle failure is logged and does not abort the rest
// of the batch. Returns the handles that were successfully removed.
func (r *Registry) RemoveInvalid(ctx context.Context, handles []string) []string {
	var removed []string
	for _, handle := range handles {
		if err := r.gw.DeleteEndpoint(ctx, handle); err != nil {
			r.logger.Warn("remove invalid endpoint failed", "endpoint", handle, "error", err)
			continue
		}
		removed = append(removed, handle)

		reg, err := r.store.GetByEndpoint(ctx, handle)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				r.logger.Warn("look up removed endpoint failed", "endpoint", handle, "error", err)
			}
			continue
		}
		if err := r.store.Delete(ctx, reg.Token); err != nil {
			// Gateway removal already succeeded; the stale row is logged,
			// not fatal.
			r.logger.Warn("delete registration row failed", "endpoint", handle, "error", err)
		}
	}
	if len(removed) > 0 {
		r.logger.Info("invalid endpoints removed", "count", len(removed))
	}
	return removed
}

// ValidateGatewayHealth reports whether the platform application
// credential is currently queryable. Transport errors become false plus
// a logged warning, never an error.
func (r *Registry) ValidateGatewayHealth(ctx context.Context) bool {
	if _, err := r.gw.ApplicationAttributes(ctx); err != nil {
		r.logger.Warn("platform application health check failed", "error", err)
		return false
	}
	return true
}

// suffix returns the last few characters of a token for log lines; whole
// tokens never reach the logs.
func suffix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[len(token)-8:]
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/cloudspend/sentinel/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLite implements TokenStore on an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Upsert(ctx context.Context, reg *model.DeviceRegistration) error {
	now := time.Now().UTC()
	if reg.ID == "" {
		reg.ID = uuid.New().String()
	}
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = now
	}
	reg.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_registrations (id, token, endpoint_arn, user_id, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(token) DO UPDATE SET
			endpoint_arn = excluded.endpoint_arn,
			user_id      = excluded.user_id,
			enabled      = excluded.enabled,
			updated_at   = excluded.updated_at`,
		reg.ID, reg.Token, reg.EndpointARN, reg.UserID, reg.Enabled, reg.CreatedAt, reg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert registration: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, token string) (*model.DeviceRegistration, error) {
	return s.getBy(ctx, "token", token)
}

func (s *SQLite) GetByEndpoint(ctx context.Context, endpointARN string) (*model.DeviceRegistration, error) {
	return s.getBy(ctx, "endpoint_arn", endpointARN)
}

func (s *SQLite) getBy(ctx context.Context, column, value string) (*model.DeviceRegistration, error) {
	query := fmt.Sprintf(
		`SELECT id, token, endpoint_arn, user_id, enabled, created_at, updated_at
		 FROM device_registrations WHERE %s = ?`, column)

	var reg model.DeviceRegistration
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&reg.ID, &reg.Token, &reg.EndpointARN, &reg.UserID, &reg.Enabled, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return &reg, nil
}

func (s *SQLite) List(ctx context.Context) ([]model.DeviceRegistration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, token, endpoint_arn, user_id, enabled, created_at, updated_at
		 FROM device_registrations ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.DeviceRegistration
	for rows.Next() {
		var reg model.DeviceRegistration
		if err := rows.Scan(&reg.ID, &reg.Token, &reg.EndpointARN, &reg.UserID,
			&reg.Enabled, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan registration row: %w", err)
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (s *SQLite) Delete(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM device_registrations WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

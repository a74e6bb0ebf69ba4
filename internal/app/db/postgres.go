package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"dash/internal/app/user"
)

// NewPool initializes a new PostgreSQL connection pool and executes database migrations.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	if err := runMigrations(ctx, sqlDB, "postgres"); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

const pgUserColumns = `id, uuid, username, email, password, is_admin`

// PostgresStore is the Directory on a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open, migrated pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Backend implements Store.
func (s *PostgresStore) Backend() string { return "postgres" }

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPgIdentity(row pgx.Row) (user.Identity, error) {
	var i user.Identity
	err := row.Scan(&i.ID, &i.PublicID, &i.Username, &i.Email, &i.PasswordHash, &i.Elevated)
	if errors.Is(err, pgx.ErrNoRows) {
		return user.Identity{}, user.ErrNotFound
	}
	return i, err
}

// FindByUsernameOrEmail implements user.Directory.
func (s *PostgresStore) FindByUsernameOrEmail(ctx context.Context, value string) (user.Identity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgUserColumns+` FROM users WHERE username = $1 OR email = $1 ORDER BY id LIMIT 1`, value)
	return scanPgIdentity(row)
}

// FindByID implements user.Directory.
func (s *PostgresStore) FindByID(ctx context.Context, publicID string) (user.Identity, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgUserColumns+` FROM users WHERE uuid = $1`, publicID)
	return scanPgIdentity(row)
}

// DeleteByID implements user.Directory.
func (s *PostgresStore) DeleteByID(ctx context.Context, publicID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE uuid = $1`, publicID)
	if err != nil {
		return fmt.Errorf("deleting user %s: %w", publicID, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// Insert implements user.Directory.
func (s *PostgresStore) Insert(ctx context.Context, reg user.Registration) (user.Identity, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (uuid, username, email, password, is_admin)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING `+pgUserColumns,
		reg.PublicID, reg.Username, reg.Email, reg.PasswordHash)

	identity, err := scanPgIdentity(row)
	if err != nil {
		if IsUniqueViolation(err) {
			return user.Identity{}, user.ErrConflict
		}
		return user.Identity{}, fmt.Errorf("inserting user: %w", err)
	}
	return identity, nil
}

// ListAll implements user.Directory.
func (s *PostgresStore) ListAll(ctx context.Context) ([]user.Identity, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgUserColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	identities := []user.Identity{}
	for rows.Next() {
		identity, err := scanPgIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	return identities, nil
}

// SetElevated implements user.Directory.
func (s *PostgresStore) SetElevated(ctx context.Context, value string, elevated bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET is_admin = $2 WHERE username = $1 OR email = $1`, value, elevated)
	if err != nil {
		return fmt.Errorf("updating user %s: %w", value, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"dash/internal/app/user"
)

const sqliteBusyTimeoutMS = 5000

// OpenSQLite opens the SQLite database at path (a file path or file: URI) and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	// See: https://github.com/mattn/go-sqlite3#connection-string
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	connStr := fmt.Sprintf("%s%s_busy_timeout=%d&_foreign_keys=on", path, sep, sqliteBusyTimeoutMS)

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer; SQLite serializes writes anyway and :memory: databases are per connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, sqlDB, "sqlite3"); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteUserColumns = `id, uuid, username, email, password, is_admin`

// SQLiteStore is the Directory on database/sql with go-sqlite3.
type SQLiteStore struct {
	db *sql.DB
}

// Backend implements Store.
func (s *SQLiteStore) Backend() string { return "sqlite" }

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqlRow interface {
	Scan(dest ...any) error
}

func scanSQLiteIdentity(row sqlRow) (user.Identity, error) {
	var i user.Identity
	err := row.Scan(&i.ID, &i.PublicID, &i.Username, &i.Email, &i.PasswordHash, &i.Elevated)
	if errors.Is(err, sql.ErrNoRows) {
		return user.Identity{}, user.ErrNotFound
	}
	return i, err
}

// FindByUsernameOrEmail implements user.Directory.
func (s *SQLiteStore) FindByUsernameOrEmail(ctx context.Context, value string) (user.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteUserColumns+` FROM users WHERE username = ?1 OR email = ?1 ORDER BY id LIMIT 1`, value)
	return scanSQLiteIdentity(row)
}

// FindByID implements user.Directory.
func (s *SQLiteStore) FindByID(ctx context.Context, publicID string) (user.Identity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE uuid = ?`, publicID)
	return scanSQLiteIdentity(row)
}

// DeleteByID implements user.Directory.
func (s *SQLiteStore) DeleteByID(ctx context.Context, publicID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE uuid = ?`, publicID)
	if err != nil {
		return fmt.Errorf("deleting user %s: %w", publicID, err)
	}
	return requireAffected(result)
}

// Insert implements user.Directory.
func (s *SQLiteStore) Insert(ctx context.Context, reg user.Registration) (user.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO users (uuid, username, email, password, is_admin)
		VALUES (?, ?, ?, ?, 0)
		RETURNING `+sqliteUserColumns,
		reg.PublicID, reg.Username, reg.Email, reg.PasswordHash)

	identity, err := scanSQLiteIdentity(row)
	if err != nil {
		if IsSQLiteUniqueViolation(err) {
			return user.Identity{}, user.ErrConflict
		}
		return user.Identity{}, fmt.Errorf("inserting user: %w", err)
	}
	return identity, nil
}

// ListAll implements user.Directory.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]user.Identity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteUserColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	identities := []user.Identity{}
	for rows.Next() {
		identity, err := scanSQLiteIdentity(rows)
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
func (s *SQLiteStore) SetElevated(ctx context.Context, value string, elevated bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_admin = ?2 WHERE username = ?1 OR email = ?1`, value, elevated)
	if err != nil {
		return fmt.Errorf("updating user %s: %w", value, err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

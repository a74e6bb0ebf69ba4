/*
Package db implements the identity directory on PostgreSQL and SQLite.

Open picks the backend from the DSN scheme and applies the embedded goose migrations
for that dialect before returning.
*/
package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"

	"dash/internal/app/user"
	"dash/internal/pkg/logx"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedMigrations embed.FS

// ErrUnsupportedDSN is returned by Open for a DSN with an unknown scheme.
var ErrUnsupportedDSN = errors.New("unsupported database DSN")

// Store is a Directory backed by a database connection.
type Store interface {
	user.Directory

	// Backend names the database, "postgres" or "sqlite".
	Backend() string

	// Close releases the connection pool.
	Close() error
}

// Open connects to the database named by dsn and migrates it.
// postgres:// and postgresql:// select PostgreSQL; sqlite:// and file: select SQLite.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		pool, err := NewPool(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(pool), nil

	case strings.HasPrefix(dsn, "sqlite://"), strings.HasPrefix(dsn, "file:"):
		return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))

	default:
		return nil, fmt.Errorf("%w: expected a postgres:// or sqlite:// URL", ErrUnsupportedDSN)
	}
}

// gooseMu serializes migrations; goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

// runMigrations applies all pending migrations of dialect from the embedded file system.
func runMigrations(ctx context.Context, db *sql.DB, dialect string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(gooseLogger{})

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	dir := "migrations/postgres"
	if dialect == "sqlite3" {
		dir = "migrations/sqlite"
	}

	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logx.Info("Database migrations applied successfully", "dialect", dialect)
	return nil
}

// gooseLogger routes goose output through logx at debug level.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	logx.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}

func (gooseLogger) Fatalf(format string, v ...any) {
	logx.Fatal(fmt.Errorf(format, v...), "Migration failed", "component", "goose")
}

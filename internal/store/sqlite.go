package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is the global database connection. Stores capture it when constructed,
// so create them after InitDB.
var DB *sql.DB

var errNotInitialized = errors.New("database not initialized")

// dsnParams enable WAL so status reads do not block a running sync, and wait
// on a locked database instead of failing immediately.
const dsnParams = "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL"

// InitDB opens the SQLite database at dbPath and applies pending migrations.
func InitDB(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+dsnParams)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	version, err := migrate(context.Background(), db)
	if err != nil {
		_ = db.Close()
		return err
	}
	DB = db
	slog.Default().Info("database ready",
		slog.String("component", "store"),
		slog.String("db_path", dbPath),
		slog.Int64("schema_version", version),
	)
	return nil
}

// CloseDB closes the database connection
func CloseDB() error {
	if DB == nil {
		return nil
	}
	err := DB.Close()
	DB = nil
	return err
}

// Ping reports whether the database is reachable.
func Ping(ctx context.Context) error {
	if DB == nil {
		return errNotInitialized
	}
	return DB.PingContext(ctx)
}

// SchemaVersion returns the newest applied migration.
func SchemaVersion(ctx context.Context) (int64, error) {
	if DB == nil {
		return 0, errNotInitialized
	}
	provider, err := newMigrationProvider(DB)
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}

func newMigrationProvider(db *sql.DB) (*goose.Provider, error) {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}

func migrate(ctx context.Context, db *sql.DB) (int64, error) {
	provider, err := newMigrationProvider(db)
	if err != nil {
		return 0, err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, r := range results {
		slog.Default().Info("applied migration",
			slog.String("component", "store"),
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}
	return provider.GetDBVersion(ctx)
}

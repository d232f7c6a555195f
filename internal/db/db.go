package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Registered database/sql driver names.
const (
	DriverSQLite  = "sqlite"  // modernc.org/sqlite, pure Go
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3, requires cgo
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const busyTimeoutMillis = 5000

var ErrUnknownDriver = errors.New("unknown database driver")

// Options configures Open.
type Options struct {
	Path   string
	Driver string
	// Seed inserts the demo user when the database file is created by Open.
	Seed   bool
	Logger *logrus.Logger
}

// DB wraps the connection pool of the grade store.
type DB struct {
	*sqlx.DB

	path  string
	fresh bool
	seed  bool
	log   *logrus.Logger

	schemaOnce sync.Once
	schemaErr  error
}

// Open opens the database at opts.Path. The schema is not touched until
// EnsureSchema is called.
func Open(opts Options) (*DB, error) {
	if opts.Path == "" {
		return nil, errors.New("database path is required")
	}
	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	fresh, err := prepareLocation(opts.Path)
	if err != nil {
		return nil, err
	}

	dsn, err := DSN(opts.Driver, opts.Path)
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if opts.Path == MemoryPath {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{
		DB:    conn,
		path:  opts.Path,
		fresh: fresh,
		seed:  opts.Seed,
		log:   opts.Logger,
	}, nil
}

// Path returns the location the database was opened from.
func (db *DB) Path() string {
	return db.path
}

// Fresh reports whether the database file did not exist before Open.
func (db *DB) Fresh() bool {
	return db.fresh
}

// DSN builds a data source name for driver that enables foreign keys and a
// busy timeout on every pooled connection.
func DSN(driver, path string) (string, error) {
	switch driver {
	case DriverSQLite:
		if path == MemoryPath {
			return fmt.Sprintf("file::memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", busyTimeoutMillis), nil
		}
		return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeoutMillis), nil
	case DriverSQLite3:
		if path == MemoryPath {
			return fmt.Sprintf("file::memory:?_foreign_keys=on&_busy_timeout=%d", busyTimeoutMillis), nil
		}
		return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=%d&_journal_mode=WAL", path, busyTimeoutMillis), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// prepareLocation creates the parent directory of path and reports whether
// the database file is absent.
func prepareLocation(path string) (bool, error) {
	if path == MemoryPath {
		return true, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat database: %w", err)
	}
	return info.Size() == 0, nil
}

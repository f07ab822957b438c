package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"

	sqliteBusyTimeoutMs = 5000
)

var (
	// ErrUnavailable marks every failure to obtain a connection.
	ErrUnavailable = errors.New("store unavailable")

	ErrNoLocation = errors.New("no database location configured")

	// ErrInMemory marks sqlite locations that vanish with the connection
	// that opened them. The provider never keeps a connection open, so such
	// a database would lose its tables after every operation.
	ErrInMemory = errors.New("in-memory sqlite database is not supported")
)

type Config struct {
	Driver string
	DSN    string
}

// NormalizeDriver maps accepted spellings onto the registered driver names.
func NormalizeDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "pgx", "postgres", "postgresql":
		return DriverPostgres, nil
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// DBTX is satisfied by both *sql.Conn and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Provider hands out one fresh connection per operation. Idle connections
// are never retained, so every Acquire dials the store and every release
// closes the physical connection.
type Provider struct {
	driver string
	db     *sql.DB
	err    error

	closeOnce sync.Once
}

// NewProvider never fails: a bad or missing location is remembered and
// reported by every Acquire.
func NewProvider(cfg Config) *Provider {
	driver, err := NormalizeDriver(cfg.Driver)
	if err != nil {
		return &Provider{driver: cfg.Driver, err: err}
	}

	p := &Provider{driver: driver}

	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		p.err = ErrNoLocation
		return p
	}

	if driver == DriverSQLite {
		if isMemoryDSN(dsn) {
			p.err = fmt.Errorf("%w: %q", ErrInMemory, dsn)
			return p
		}
		dsn = sqliteDSN(dsn)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		p.err = fmt.Errorf("failed to open database: %w", err)
		return p
	}

	sqlDB.SetMaxIdleConns(0)
	p.db = sqlDB

	return p
}

// isMemoryDSN reports whether dsn names a per-connection sqlite database:
// ":memory:", an empty file name, or any location opened with mode=memory.
func isMemoryDSN(dsn string) bool {
	path, query, _ := strings.Cut(strings.ToLower(dsn), "?")
	path = strings.TrimPrefix(path, "file:")
	if path == "" || path == ":memory:" {
		return true
	}
	for _, param := range strings.Split(query, "&") {
		if param == "mode=memory" {
			return true
		}
	}
	return false
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)", path, sep, sqliteBusyTimeoutMs)
}

// Driver returns the normalised driver name.
func (p *Provider) Driver() string {
	return p.driver
}

// IsSQLite reports whether SQL must be written for the sqlite dialect.
func (p *Provider) IsSQLite() bool {
	return p.driver == DriverSQLite
}

// Err returns the configuration problem that will fail every Acquire, if any.
func (p *Provider) Err() error {
	return p.err
}

// Acquire opens a dedicated connection. The caller must Close it. Every
// error returned wraps ErrUnavailable.
func (p *Provider) Acquire(ctx context.Context) (*sql.Conn, error) {
	if p.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, p.err)
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return conn, nil
}

// WithConn runs fn on a freshly acquired connection and always releases it.
func (p *Provider) WithConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(conn)
}

// WithTx runs fn inside a transaction on a fresh connection. The transaction
// is committed when fn succeeds and rolled back otherwise; the connection is
// released on every path.
func (p *Provider) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return p.WithConn(ctx, func(conn *sql.Conn) (err error) {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() {
			if err != nil {
				if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
					err = errors.Join(err, fmt.Errorf("failed to roll back: %w", rbErr))
				}
			}
		}()

		if err = fn(tx); err != nil {
			return err
		}

		if err = tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit: %w", err)
		}
		return nil
	})
}

func (p *Provider) Close() error {
	var err error
	p.closeOnce.Do(func() {
		if p.db != nil {
			err = p.db.Close()
		}
	})
	return err
}

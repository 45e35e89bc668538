package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/apperr"
)

// ErrUnavailable is returned when no connection could be acquired in time.
var ErrUnavailable = apperr.New(apperr.Transient, "Service temporarily unavailable")

// Querier is satisfied by *sqlx.DB, *sqlx.Conn and *sqlx.Tx, so repositories
// run unchanged inside or outside a transaction.
type Querier interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
	Rebind(query string) string
}

// Store owns the pool for the lifetime of the process and hands out scoped
// connections.
type Store struct {
	db             *sqlx.DB
	acquireTimeout time.Duration
}

func NewStore(db *sqlx.DB, acquireTimeout time.Duration) *Store {
	if acquireTimeout <= 0 {
		acquireTimeout = 2 * time.Second
	}
	return &Store{db: db, acquireTimeout: acquireTimeout}
}

// Open connects with cfg and wraps the pool in a Store.
func Open(cfg Config) (*Store, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	return NewStore(db, cfg.AcquireTimeout), nil
}

func (s *Store) DB() *sqlx.DB { return s.db }

// Driver is the database/sql driver name the pool was opened with.
func (s *Store) Driver() string { return s.db.DriverName() }

// RowLocks reports whether SELECT ... FOR UPDATE is available. SQLite
// serializes writers on its own and rejects the clause.
func (s *Store) RowLocks() bool { return s.Driver() == DriverPostgres }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.WithConn(ctx, func(q Querier) error {
		var one int
		return sqlx.GetContext(ctx, q, &one, "SELECT 1")
	})
}

func (s *Store) acquire(ctx context.Context) (*sqlx.Conn, error) {
	actx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()
	conn, err := s.db.Connx(actx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, ErrUnavailable.Message, err)
	}
	return conn, nil
}

// WithConn runs fn on a dedicated connection and releases it afterwards.
func (s *Store) WithConn(ctx context.Context, fn func(q Querier) error) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(conn)
}

// WithTx runs fn inside a transaction on a dedicated connection. The
// transaction commits only if fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(tx Querier) error) (err error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a unique constraint failure from
// any of the supported drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	// libsql reports remote errors as plain strings
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Exec runs a statement and returns the number of affected rows.
func Exec(ctx context.Context, q Querier, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

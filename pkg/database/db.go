package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverLibSQL   = "libsql"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
	sqlx.BindDriver(DriverLibSQL, sqlx.QUESTION)
}

type Config struct {
	DSN      string
	MaxConns int
	// Timeout bounds the startup ping.
	Timeout time.Duration
	// AcquireTimeout bounds waiting for a pooled connection per unit of work.
	AcquireTimeout time.Duration
	TimeZone       string
}

// DriverFor picks the database/sql driver from the shape of the DSN.
func DriverFor(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(dsn, "libsql://"), strings.HasPrefix(dsn, "wss://"), strings.HasPrefix(dsn, "https://"):
		return DriverLibSQL
	default:
		return DriverSQLite
	}
}

// sqliteDSN makes the driver write timestamps in a fixed, sortable layout so
// range comparisons in SQL order correctly.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_time_format=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_time_format=sqlite"
}

// Connect opens the pool and verifies connectivity with a ping.
func Connect(cfg Config) (*sqlx.DB, error) {
	driver := DriverFor(cfg.DSN)
	dsn := cfg.DSN
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
		dsn = postgresDSN(dsn, cfg.TimeZone)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 5
	}
	if driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY and keeps shared-cache memory databases alive
		maxConns = 1
		db.SetConnMaxLifetime(0)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	return db, nil
}

// postgresDSN adds tz as a startup parameter so every pooled connection
// opens in that zone. A timezone already in the DSN wins.
func postgresDSN(dsn, tz string) string {
	if tz == "" {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	q := u.Query()
	if q.Get("timezone") != "" {
		return dsn
	}
	q.Set("timezone", tz)
	u.RawQuery = q.Encode()
	return u.String()
}

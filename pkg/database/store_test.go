package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/apperr"
)

func openMemory(t *testing.T, acquire time.Duration) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	store, err := Open(Config{DSN: dsn, AcquireTimeout: acquire})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.WithConn(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx, `CREATE TABLE items (id TEXT PRIMARY KEY, n INTEGER NOT NULL)`)
		return err
	}))
	return store
}

func count(t *testing.T, s *Store) int {
	t.Helper()
	var n int
	require.NoError(t, s.WithConn(context.Background(), func(q Querier) error {
		return sqlx.GetContext(context.Background(), q, &n, "SELECT COUNT(*) FROM items")
	}))
	return n
}

func TestDriverFor(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@localhost:5432/db":     DriverPostgres,
		"postgresql://localhost/db":            DriverPostgres,
		"libsql://orangelink.turso.io":         DriverLibSQL,
		"wss://orangelink.turso.io":            DriverLibSQL,
		"file:orangelink.db":                   DriverSQLite,
		"file:memdb1?mode=memory&cache=shared": DriverSQLite,
		"orangelink.db":                        DriverSQLite,
	}
	for dsn, want := range tests {
		assert.Equal(t, want, DriverFor(dsn), dsn)
	}
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "file:a.db?_time_format=sqlite", sqliteDSN("file:a.db"))
	assert.Equal(t, "file:m?mode=memory&_time_format=sqlite", sqliteDSN("file:m?mode=memory"))
	assert.Equal(t, "file:a.db?_time_format=sqlite", sqliteDSN("file:a.db?_time_format=sqlite"))
}

func TestPostgresDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		tz   string
		want string
	}{
		{"no zone", "postgres://u:p@db:5432/app", "", "postgres://u:p@db:5432/app"},
		{"adds zone", "postgres://u:p@db:5432/app", "UTC", "postgres://u:p@db:5432/app?timezone=UTC"},
		{"keeps params", "postgres://u:p@db:5432/app?sslmode=disable", "UTC", "postgres://u:p@db:5432/app?sslmode=disable&timezone=UTC"},
		{"escapes zone", "postgres://db/app", "America/New_York", "postgres://db/app?timezone=America%2FNew_York"},
		{"dsn zone wins", "postgres://db/app?timezone=Asia%2FTokyo", "UTC", "postgres://db/app?timezone=Asia%2FTokyo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, postgresDSN(tt.dsn, tt.tz))
		})
	}
}

func TestStoreDriver(t *testing.T) {
	s := openMemory(t, time.Second)
	assert.Equal(t, DriverSQLite, s.Driver())
	assert.False(t, s.RowLocks())
}

func TestWithTxCommits(t *testing.T) {
	s := openMemory(t, time.Second)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx Querier) error {
		_, err := Exec(ctx, tx, `INSERT INTO items (id, n) VALUES (?, ?)`, "a", 1)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count(t, s))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := openMemory(t, time.Second)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx Querier) error {
		if _, err := Exec(ctx, tx, `INSERT INTO items (id, n) VALUES (?, ?)`, "a", 1); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, count(t, s))
}

func TestUniqueViolationDetected(t *testing.T) {
	s := openMemory(t, time.Second)
	ctx := context.Background()

	err := s.WithConn(ctx, func(q Querier) error {
		if _, err := Exec(ctx, q, `INSERT INTO items (id, n) VALUES (?, ?)`, "a", 1); err != nil {
			return err
		}
		_, err := Exec(ctx, q, `INSERT INTO items (id, n) VALUES (?, ?)`, "a", 2)
		return err
	})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(errors.New("other")))
}

func TestAcquireTimeoutIsTransient(t *testing.T) {
	s := openMemory(t, 50*time.Millisecond)
	ctx := context.Background()

	// the sqlite pool holds a single connection; keep it busy
	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithConn(ctx, func(Querier) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := s.WithConn(ctx, func(Querier) error { return nil })
	close(release)
	require.NoError(t, <-done)

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.Transient))
}

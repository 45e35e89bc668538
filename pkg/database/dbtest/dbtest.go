// Package dbtest opens throwaway in-memory SQLite stores for tests.
package dbtest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/database"
)

var seq atomic.Int64

// Open returns a Store backed by a fresh shared-cache memory database, after
// running each migrate function against it. The store is closed on cleanup.
func Open(t testing.TB, migrate ...func(ctx context.Context, q database.Querier) error) *database.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:orangelink_test_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), seq.Add(1))
	store, err := database.Open(database.Config{DSN: dsn, AcquireTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	for _, m := range migrate {
		require.NoError(t, store.WithConn(ctx, func(q database.Querier) error { return m(ctx, q) }))
	}
	return store
}

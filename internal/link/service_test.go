package link

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	eventrepo "github.com/ovaphlow/pitchfork/service-orangelink-go/internal/analytics/repo"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/link/entity"
	linkrepo "github.com/ovaphlow/pitchfork/service-orangelink-go/internal/link/repo"
	userentity "github.com/ovaphlow/pitchfork/service-orangelink-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-orangelink-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/database/dbtest"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/optional"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/request"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/utilities"
)

// clickLog appends to link_clicks, or fails when err is set.
type clickLog struct {
	err error
}

func (c *clickLog) AppendClick(ctx context.Context, q database.Querier, linkID, ownerID string, _ request.Meta) error {
	if c.err != nil {
		return c.err
	}
	_, err := database.Exec(ctx, q, `INSERT INTO link_clicks (id, link_id, user_id, clicked_at) VALUES (?, ?, ?, ?)`,
		utilities.NewKSUID(), linkID, ownerID, time.Now().UTC())
	return err
}

type fixture struct {
	store  *database.Store
	svc    *Service
	clicks *clickLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := dbtest.Open(t,
		userrepo.NewUserRepo().EnsureTable,
		linkrepo.NewLinkRepo().EnsureTable,
		eventrepo.NewEventRepo().EnsureTable,
	)
	clicks := &clickLog{}
	return &fixture{store: store, svc: NewService(store, clicks, zap.NewNop().Sugar()), clicks: clicks}
}

func (f *fixture) addUser(t *testing.T, id, username string, active bool) {
	t.Helper()
	now := time.Now().UTC()
	u := &userentity.User{ID: id, Email: username + "@x.com", Username: username, PasswordHash: "x", Theme: "classic", IsActive: active, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.store.WithConn(context.Background(), func(q database.Querier) error {
		return userrepo.NewUserRepo().Create(context.Background(), q, u)
	}))
}

func (f *fixture) create(t *testing.T, userID, title string) *entity.Link {
	t.Helper()
	l, err := f.svc.Create(context.Background(), userID, entity.NewLink{Title: title, URL: "https://example.com/" + title})
	require.NoError(t, err)
	return l
}

func (f *fixture) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, f.store.WithConn(context.Background(), func(q database.Querier) error {
		return sqlx.GetContext(context.Background(), q, &n, q.Rebind(query), args...)
	}))
	return n
}

func titles(links []entity.Link) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.Title)
	}
	return out
}

func TestCreateAppends(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "bob", true)

	first := f.create(t, "u1", "Site")
	assert.Equal(t, 0, first.SortOrder)
	assert.Equal(t, int64(0), first.ClickCount)
	assert.True(t, first.IsActive)

	second := f.create(t, "u1", "Blog")
	assert.Equal(t, 1, second.SortOrder)

	// gaps are allowed; new links still go after the highest position
	_, err := f.svc.Update(context.Background(), first.ID, "u1", entity.Patch{SortOrder: optional.Of(10)})
	require.NoError(t, err)
	third := f.create(t, "u1", "Shop")
	assert.Equal(t, 11, third.SortOrder)
}

func TestConcurrentCreatesGetDistinctSortOrders(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "bob", true)

	const n = 8
	orders := make([]int, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			l, err := f.svc.Create(context.Background(), "u1", entity.NewLink{Title: fmt.Sprintf("L%d", i), URL: "https://example.com"})
			if err != nil {
				return err
			}
			orders[i] = l.SortOrder
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, orders)
}

func TestCreateValidatesEveryField(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "bob", true)

	_, err := f.svc.Create(context.Background(), "u1", entity.NewLink{Title: "   ", URL: "example.com"})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Validation, e.Kind)
	assert.Len(t, e.Fields, 2)

	l, err := f.svc.Create(context.Background(), "u1", entity.NewLink{Title: "  Site  ", URL: " https://x.com "})
	require.NoError(t, err)
	assert.Equal(t, "Site", l.Title)
	assert.Equal(t, "https://x.com", l.URL)
}

func TestListOrdersBySortOrderThenNewest(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "bob", true)
	ctx := context.Background()

	a := f.create(t, "u1", "A")
	b := f.create(t, "u1", "B")
	time.Sleep(2 * time.Millisecond)
	c := f.create(t, "u1", "C")
	require.NoError(t, f.svc.Reorder(ctx, "u1", []entity.OrderItem{{ID: a.ID, SortOrder: 1}, {ID: b.ID, SortOrder: 0}, {ID: c.ID, SortOrder: 1}}))

	links, err := f.svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, titles(links))
}

func TestUpdateRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "bob", true)
	ctx := context.Background()
	f.create(t, "u1", "First")
	l := f.create(t, "u1", "Second")

	updated, err := f.svc.Update(ctx, l.ID, "u1", entity.Patch{Title: optional.Of("X")})
	require.NoError(t, err)
	assert.Equal(t, "X", updated.Title)

	links, err := f.svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, links, 2)
	got := links[1]
	assert.Equal(t, "X", got.Title)
	assert.Equal(t, l.URL, got.URL)
	assert.Equal(t, l.SortOrder, got.SortOrder)
	assert.True(t, got.IsActive)
}

func TestUpdateFailures(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "bob", true)
	f.addUser(t, "u2", "eve", true)
	ctx := context.Background()
	l := f.create(t, "u1", "Site")

	tests := []struct {
		name   string
		linkID string
		userID string
		patch  entity.Patch
		kind   apperr.Kind
	}{
		{"empty patch", l.ID, "u1", entity.Patch{}, apperr.BadRequest},
		{"not owned", l.ID, "u2", entity.Patch{Title: optional.Of("mine")}, apperr.NotFound},
		{"missing", "nope", "u1", entity.Patch{Title: optional.Of("x")}, apperr.NotFound},
		{"bad url", l.ID, "u1", entity.Patch{URL: optional.Of("ftp//x")}, apperr.Validation},
		{"negative order", l.ID, "u1", entity.Patch{SortOrder: optional.Of(-1)}, apperr.Validation},
		{"blank title", l.ID, "u1", entity.Patch{Title: optional.Of("  ")}, apperr.Validation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Update(ctx, tt.linkID, tt.userID, tt.patch)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}

	// a not-owned link and a missing link look the same
	_, notOwned := f.svc.Update(ctx, l.ID, "u2", entity.Patch{Title: optional.Of("x")})
	_, missing := f.svc.Update(ctx, "nope", "u2", entity.Patch{Title: optional.Of("x")})
	assert.Equal(t, missing.Error(), notOwned.Error())
}

func TestUpdateRejectsNullFlags(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "bob", true)
	ctx := context.Background()
	f.create(t, "u1", "First")
	l := f.create(t, "u1", "Second")

	for _, body := range []string{`{"is_active":null}`, `{"sort_order":null}`, `{"title":"New","is_active":null}`} {
		t.Run(body, func(t *testing.T) {
			var p entity.Patch
			require.NoError(t, json.Unmarshal([]byte(body), &p))
			_, err := f.svc.Update(ctx, l.ID, "u1", p)
			require.True(t, apperr.Is(err, apperr.Validation))

			got, err := f.svc.Get(ctx, l.ID, "u1")
			require.NoError(t, err)
			assert.True(t, got.IsActive)
			assert.Equal(t, 1, got.SortOrder)
			assert.Equal(t, "Second", got.Title)
		})
	}
}

func TestSoftDeactivationKeepsLinkEditable(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "bob", true)
	ctx := context.Background()
	l := f.create(t, "u1", "Site")

	off, err := f.svc.Update(ctx, l.ID, "u1", entity.Patch{IsActive: optional.Of(false)})
	require.NoError(t, err)
	assert.False(t, off.IsActive)

	on, err := f.svc.Update(ctx, l.ID, "u1", entity.Patch{IsActive: optional.Of(true), Title: optional.Of("Back")})
	require.NoError(t, err)
	assert.True(t, on.IsActive)
	assert.Equal(t, "Back", on.Title)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "bob", true)
	f.addUser(t, "u2", "eve", true)
	ctx := context.Background()
	l := f.create(t, "u1", "Site")

	assert.ErrorIs(t, f.svc.Delete(ctx, l.ID, "u2"), ErrLinkNotFound)
	require.NoError(t, f.svc.Delete(ctx, l.ID, "u1"))
	assert.ErrorIs(t, f.svc.Delete(ctx, l.ID, "u1"), ErrLinkNotFound)

	links, err := f.svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestReorderIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "bob", true)
	f.addUser(t, "u2", "eve", true)
	ctx := context.Background()
	a := f.create(t, "u1", "A")
	b := f.create(t, "u1", "B")
	foreign := f.create(t, "u2", "Foreign")

	err := f.svc.Reorder(ctx, "u1", []entity.OrderItem{
		{ID: b.ID, SortOrder: 0},
		{ID: a.ID, SortOrder: 1},
		{ID: foreign.ID, SortOrder: 2},
	})
	assert.ErrorIs(t, err, ErrNotOwned)
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	links, err := f.svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, titles(links), "nothing moved")

	require.NoError(t, f.svc.Reorder(ctx, "u1", []entity.OrderItem{{ID: b.ID, SortOrder: 0}, {ID: a.ID, SortOrder: 1}}))
	links, err = f.svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, titles(links))
}

func TestReorderValidation(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "bob", true)
	ctx := context.Background()

	assert.True(t, apperr.Is(f.svc.Reorder(ctx, "u1", nil), apperr.Validation))
	assert.True(t, apperr.Is(f.svc.Reorder(ctx, "u1", []entity.OrderItem{{ID: "", SortOrder: -1}}), apperr.Validation))
	assert.ErrorIs(t, f.svc.Reorder(ctx, "u1", []entity.OrderItem{{ID: "ghost", SortOrder: 0}}), ErrNotOwned)
}

func TestListPublicFiltersInactive(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "bob", true)
	f.addUser(t, "u2", "gone", false)
	ctx := context.Background()
	f.create(t, "u1", "A")
	b := f.create(t, "u1", "B")
	f.create(t, "u2", "Hidden")
	_, err := f.svc.Update(ctx, b.ID, "u1", entity.Patch{IsActive: optional.Of(false)})
	require.NoError(t, err)

	links, err := f.svc.ListPublic(ctx, "BOB")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, titles(links))

	links, err = f.svc.ListPublic(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, links)
	assert.Empty(t, links)

	links, err = f.svc.ListPublic(ctx, "gone")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestRecordClick(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "bob", true)
	ctx := context.Background()
	l := f.create(t, "u1", "Site")
	off := f.create(t, "u1", "Off")
	_, err := f.svc.Update(ctx, off.ID, "u1", entity.Patch{IsActive: optional.Of(false)})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.svc.RecordClick(ctx, l.ID, request.Meta{}))
	}
	assert.NoError(t, f.svc.RecordClick(ctx, "does-not-exist", request.Meta{}))
	assert.NoError(t, f.svc.RecordClick(ctx, off.ID, request.Meta{}))

	got, err := f.svc.Get(ctx, l.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ClickCount)
	assert.Equal(t, 3, f.count(t, `SELECT COUNT(*) FROM link_clicks WHERE link_id = ? AND user_id = ?`, l.ID, "u1"))
	assert.Equal(t, 3, f.count(t, `SELECT COUNT(*) FROM link_clicks`))

	got, err = f.svc.Get(ctx, off.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.ClickCount)
}

func TestRecordClickFailsWhole(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "bob", true)
	ctx := context.Background()
	l := f.create(t, "u1", "Site")

	f.clicks.err = errors.New("disk full")
	assert.Error(t, f.svc.RecordClick(ctx, l.ID, request.Meta{}))

	got, err := f.svc.Get(ctx, l.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.ClickCount, "counter rolled back with the event")
}

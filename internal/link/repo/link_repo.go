package repo

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/link/entity"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/database"
)

const linkColumns = `id, user_id, title, url, is_active, sort_order, click_count, created_at, updated_at`

// LinkRepo provides data access for the links table.
type LinkRepo struct{}

func NewLinkRepo() *LinkRepo { return &LinkRepo{} }

func (r *LinkRepo) EnsureTable(ctx context.Context, q database.Querier) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS links (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id),
  title TEXT NOT NULL,
  url TEXT NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  sort_order INTEGER NOT NULL DEFAULT 0,
  click_count BIGINT NOT NULL DEFAULT 0,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_links_user_order ON links(user_id, sort_order)`,
	}
	for _, s := range stmts {
		if _, err := q.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// ListByUser returns the user's links by sort_order, newest first on ties.
func (r *LinkRepo) ListByUser(ctx context.Context, q database.Querier, userID string) ([]entity.Link, error) {
	links := []entity.Link{}
	query := q.Rebind(`SELECT ` + linkColumns + ` FROM links WHERE user_id = ? ORDER BY sort_order ASC, created_at DESC`)
	err := sqlx.SelectContext(ctx, q, &links, query, userID)
	return links, err
}

// ListPublicByUsername returns active links of an active user.
func (r *LinkRepo) ListPublicByUsername(ctx context.Context, q database.Querier, username string) ([]entity.Link, error) {
	links := []entity.Link{}
	query := q.Rebind(`SELECT l.id, l.user_id, l.title, l.url, l.is_active, l.sort_order, l.click_count, l.created_at, l.updated_at
FROM links l JOIN users u ON u.id = l.user_id
WHERE u.username = ? AND u.is_active = TRUE AND l.is_active = TRUE
ORDER BY l.sort_order ASC, l.created_at DESC`)
	err := sqlx.SelectContext(ctx, q, &links, query, strings.ToLower(username))
	return links, err
}

// LockOwner holds the owner's user row until the transaction ends, so
// concurrent inserts for one user read MAX(sort_order) one after another.
func (r *LinkRepo) LockOwner(ctx context.Context, q database.Querier, userID string) error {
	var id string
	return sqlx.GetContext(ctx, q, &id, q.Rebind(`SELECT id FROM users WHERE id = ? FOR UPDATE`), userID)
}

// NextSortOrder is one past the user's highest sort_order, or 0.
func (r *LinkRepo) NextSortOrder(ctx context.Context, q database.Querier, userID string) (int, error) {
	var next int
	query := q.Rebind(`SELECT COALESCE(MAX(sort_order), -1) + 1 FROM links WHERE user_id = ?`)
	err := sqlx.GetContext(ctx, q, &next, query, userID)
	return next, err
}

func (r *LinkRepo) Insert(ctx context.Context, q database.Querier, l *entity.Link) error {
	_, err := database.Exec(ctx, q, `INSERT INTO links (`+linkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.Title, l.URL, l.IsActive, l.SortOrder, l.ClickCount, l.CreatedAt, l.UpdatedAt)
	return err
}

// GetOwned returns the link only if userID owns it, else sql.ErrNoRows.
func (r *LinkRepo) GetOwned(ctx context.Context, q database.Querier, id, userID string) (*entity.Link, error) {
	var l entity.Link
	query := q.Rebind(`SELECT ` + linkColumns + ` FROM links WHERE id = ? AND user_id = ?`)
	if err := sqlx.GetContext(ctx, q, &l, query, id, userID); err != nil {
		return nil, err
	}
	return &l, nil
}

// Update writes the supplied fields of an owned link. Returns rows changed.
func (r *LinkRepo) Update(ctx context.Context, q database.Querier, id, userID string, p entity.Patch, now time.Time) (int64, error) {
	var sets []string
	var args []any
	if v, ok := p.Title.Get(); ok {
		sets, args = append(sets, "title = ?"), append(args, v)
	}
	if v, ok := p.URL.Get(); ok {
		sets, args = append(sets, "url = ?"), append(args, v)
	}
	if v, ok := p.IsActive.Get(); ok {
		sets, args = append(sets, "is_active = ?"), append(args, v)
	}
	if v, ok := p.SortOrder.Get(); ok {
		sets, args = append(sets, "sort_order = ?"), append(args, v)
	}
	if len(sets) == 0 {
		return 0, nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now, id, userID)
	return database.Exec(ctx, q, `UPDATE links SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`, args...)
}

func (r *LinkRepo) Delete(ctx context.Context, q database.Querier, id, userID string) (int64, error) {
	return database.Exec(ctx, q, `DELETE FROM links WHERE id = ? AND user_id = ?`, id, userID)
}

// CountOwned counts how many of ids belong to userID. ids must be distinct.
func (r *LinkRepo) CountOwned(ctx context.Context, q database.Querier, userID string, ids []string) (int, error) {
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM links WHERE user_id = ? AND id IN (?)`, userID, ids)
	if err != nil {
		return 0, err
	}
	var n int
	err = sqlx.GetContext(ctx, q, &n, q.Rebind(query), args...)
	return n, err
}

func (r *LinkRepo) SetSortOrder(ctx context.Context, q database.Querier, id, userID string, order int, now time.Time) error {
	_, err := database.Exec(ctx, q, `UPDATE links SET sort_order = ?, updated_at = ? WHERE id = ? AND user_id = ?`, order, now, id, userID)
	return err
}

// GetClickTarget resolves the owner of an active link whose owner is active,
// or returns sql.ErrNoRows.
func (r *LinkRepo) GetClickTarget(ctx context.Context, q database.Querier, id string) (string, error) {
	var userID string
	query := q.Rebind(`SELECT l.user_id FROM links l JOIN users u ON u.id = l.user_id
WHERE l.id = ? AND l.is_active = TRUE AND u.is_active = TRUE`)
	err := sqlx.GetContext(ctx, q, &userID, query, id)
	return userID, err
}

func (r *LinkRepo) IncrementClicks(ctx context.Context, q database.Querier, id string) (int64, error) {
	return database.Exec(ctx, q, `UPDATE links SET click_count = click_count + 1 WHERE id = ?`, id)
}

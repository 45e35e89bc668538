package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/analytics/entity"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/database"
)

// EventRepo appends and aggregates click and view events. Events are never
// updated or deleted.
type EventRepo struct{}

func NewEventRepo() *EventRepo { return &EventRepo{} }

func (r *EventRepo) EnsureTable(ctx context.Context, q database.Querier) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS link_clicks (
  id TEXT PRIMARY KEY,
  link_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  clicked_at TIMESTAMP NOT NULL,
  ip_address TEXT,
  user_agent TEXT,
  referer TEXT
)`,
		`CREATE INDEX IF NOT EXISTS idx_link_clicks_user_time ON link_clicks(user_id, clicked_at)`,
		`CREATE TABLE IF NOT EXISTS profile_views (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  viewed_at TIMESTAMP NOT NULL,
  ip_address TEXT,
  user_agent TEXT,
  referer TEXT
)`,
		`CREATE INDEX IF NOT EXISTS idx_profile_views_user_time ON profile_views(user_id, viewed_at)`,
	}
	for _, s := range stmts {
		if _, err := q.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *EventRepo) InsertClick(ctx context.Context, q database.Querier, e *entity.ClickEvent) error {
	_, err := database.Exec(ctx, q,
		`INSERT INTO link_clicks (id, link_id, user_id, clicked_at, ip_address, user_agent, referer) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.LinkID, e.UserID, e.ClickedAt, e.IPAddress, e.UserAgent, e.Referer)
	return err
}

func (r *EventRepo) InsertView(ctx context.Context, q database.Querier, v *entity.ProfileView) error {
	_, err := database.Exec(ctx, q,
		`INSERT INTO profile_views (id, user_id, viewed_at, ip_address, user_agent, referer) VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.ViewedAt, v.IPAddress, v.UserAgent, v.Referer)
	return err
}

func (r *EventRepo) CountViews(ctx context.Context, q database.Querier, userID string) (int64, error) {
	var n int64
	err := sqlx.GetContext(ctx, q, &n, q.Rebind(`SELECT COUNT(*) FROM profile_views WHERE user_id = ?`), userID)
	return n, err
}

// CountViewsSince counts views at or after from.
func (r *EventRepo) CountViewsSince(ctx context.Context, q database.Querier, userID string, from time.Time) (int64, error) {
	var n int64
	query := q.Rebind(`SELECT COUNT(*) FROM profile_views WHERE user_id = ? AND viewed_at >= ?`)
	err := sqlx.GetContext(ctx, q, &n, query, userID, from)
	return n, err
}

// CountViewsBetween counts views in [from, to).
func (r *EventRepo) CountViewsBetween(ctx context.Context, q database.Querier, userID string, from, to time.Time) (int64, error) {
	var n int64
	query := q.Rebind(`SELECT COUNT(*) FROM profile_views WHERE user_id = ? AND viewed_at >= ? AND viewed_at < ?`)
	err := sqlx.GetContext(ctx, q, &n, query, userID, from, to)
	return n, err
}

// CountClicksSince counts click events at or after from.
func (r *EventRepo) CountClicksSince(ctx context.Context, q database.Querier, userID string, from time.Time) (int64, error) {
	var n int64
	query := q.Rebind(`SELECT COUNT(*) FROM link_clicks WHERE user_id = ? AND clicked_at >= ?`)
	err := sqlx.GetContext(ctx, q, &n, query, userID, from)
	return n, err
}

// CountClicksBetween counts click events in [from, to).
func (r *EventRepo) CountClicksBetween(ctx context.Context, q database.Querier, userID string, from, to time.Time) (int64, error) {
	var n int64
	query := q.Rebind(`SELECT COUNT(*) FROM link_clicks WHERE user_id = ? AND clicked_at >= ? AND clicked_at < ?`)
	err := sqlx.GetContext(ctx, q, &n, query, userID, from, to)
	return n, err
}

// SumLinkClicks totals the denormalized counters of the user's current links.
func (r *EventRepo) SumLinkClicks(ctx context.Context, q database.Querier, userID string) (int64, error) {
	var n int64
	err := sqlx.GetContext(ctx, q, &n, q.Rebind(`SELECT COALESCE(SUM(click_count), 0) FROM links WHERE user_id = ?`), userID)
	return n, err
}

// TopLinks returns the user's most clicked links; ties go to the older link.
func (r *EventRepo) TopLinks(ctx context.Context, q database.Querier, userID string, limit int) ([]entity.TopLink, error) {
	top := []entity.TopLink{}
	query := q.Rebind(`SELECT id, title, click_count AS clicks FROM links WHERE user_id = ? ORDER BY click_count DESC, created_at ASC, id ASC LIMIT ?`)
	err := sqlx.SelectContext(ctx, q, &top, query, userID, limit)
	return top, err
}

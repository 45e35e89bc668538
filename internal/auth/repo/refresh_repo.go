package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/auth/entity"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/database"
)

// RefreshRepo persists refresh-token records keyed by token hash.
type RefreshRepo struct{}

func NewRefreshRepo() *RefreshRepo { return &RefreshRepo{} }

func (r *RefreshRepo) EnsureTable(ctx context.Context, q database.Querier) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id),
  token_hash TEXT NOT NULL UNIQUE,
  expires_at TIMESTAMP NOT NULL,
  revoked BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens(user_id)`,
	}
	for _, s := range stmts {
		if _, err := q.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *RefreshRepo) Save(ctx context.Context, q database.Querier, t *entity.RefreshToken) error {
	_, err := database.Exec(ctx, q,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.Revoked, t.CreatedAt)
	return err
}

// Get looks a record up by (token_hash, user_id), or returns sql.ErrNoRows.
func (r *RefreshRepo) Get(ctx context.Context, q database.Querier, hash, userID string) (*entity.RefreshToken, error) {
	var t entity.RefreshToken
	query := q.Rebind(`SELECT id, user_id, token_hash, expires_at, revoked, created_at FROM refresh_tokens WHERE token_hash = ? AND user_id = ?`)
	if err := sqlx.GetContext(ctx, q, &t, query, hash, userID); err != nil {
		return nil, err
	}
	return &t, nil
}

// Revoke flips one active record to revoked. It reports 0 when the record
// was already revoked, which callers use to detect a lost race.
func (r *RefreshRepo) Revoke(ctx context.Context, q database.Querier, id string) (int64, error) {
	return database.Exec(ctx, q, `UPDATE refresh_tokens SET revoked = TRUE WHERE id = ? AND revoked = FALSE`, id)
}

func (r *RefreshRepo) RevokeByHash(ctx context.Context, q database.Querier, userID, hash string) (int64, error) {
	return database.Exec(ctx, q, `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = ? AND token_hash = ? AND revoked = FALSE`, userID, hash)
}

func (r *RefreshRepo) RevokeAll(ctx context.Context, q database.Querier, userID string) (int64, error) {
	return database.Exec(ctx, q, `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = ? AND revoked = FALSE`, userID)
}

// DeleteStale removes revoked records and records expired before now.
func (r *RefreshRepo) DeleteStale(ctx context.Context, q database.Querier, now time.Time) (int64, error) {
	return database.Exec(ctx, q, `DELETE FROM refresh_tokens WHERE revoked = TRUE OR expires_at < ?`, now)
}

// CountActive counts unrevoked, unexpired records of a user.
func (r *RefreshRepo) CountActive(ctx context.Context, q database.Querier, userID string, now time.Time) (int, error) {
	var n int
	query := q.Rebind(`SELECT COUNT(*) FROM refresh_tokens WHERE user_id = ? AND revoked = FALSE AND expires_at > ?`)
	err := sqlx.GetContext(ctx, q, &n, query, userID, now)
	return n, err
}

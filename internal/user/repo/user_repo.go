package repo

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/database"
)

const userColumns = `id, email, username, password_hash, display_name, bio, avatar_url, theme, is_active, created_at, updated_at`

// UserRepo provides data access for the users table. Every method runs on the
// supplied Querier so callers decide the connection and transaction scope.
type UserRepo struct{}

func NewUserRepo() *UserRepo { return &UserRepo{} }

// EnsureTable creates the users table if not exists (idempotent).
func (r *UserRepo) EnsureTable(ctx context.Context, q database.Querier) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  display_name TEXT,
  bio TEXT,
  avatar_url TEXT,
  theme TEXT NOT NULL DEFAULT 'classic',
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
)`,
	}
	for _, s := range stmts {
		if _, err := q.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *UserRepo) Create(ctx context.Context, q database.Querier, u *entity.User) error {
	const stmt = `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, q.Rebind(stmt),
		u.ID, u.Email, u.Username, u.PasswordHash, u.DisplayName, u.Bio, u.AvatarURL,
		u.Theme, u.IsActive, u.CreatedAt, u.UpdatedAt)
	return err
}

// GetByID returns the user regardless of activation state, or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, q database.Querier, id string) (*entity.User, error) {
	var u entity.User
	if err := sqlx.GetContext(ctx, q, &u, q.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetActiveByEmail returns an active user by email, or sql.ErrNoRows.
func (r *UserRepo) GetActiveByEmail(ctx context.Context, q database.Querier, email string) (*entity.User, error) {
	var u entity.User
	query := q.Rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ? AND is_active = TRUE`)
	if err := sqlx.GetContext(ctx, q, &u, query, strings.ToLower(email)); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetPublicByUsername returns the public projection of an active user, or sql.ErrNoRows.
func (r *UserRepo) GetPublicByUsername(ctx context.Context, q database.Querier, username string) (*entity.PublicProfile, error) {
	var p entity.PublicProfile
	query := q.Rebind(`SELECT username, display_name, bio, avatar_url, theme FROM users WHERE username = ? AND is_active = TRUE`)
	if err := sqlx.GetContext(ctx, q, &p, query, strings.ToLower(username)); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetActiveIDByUsername resolves a username to the id of an active user, or sql.ErrNoRows.
func (r *UserRepo) GetActiveIDByUsername(ctx context.Context, q database.Querier, username string) (string, error) {
	var id string
	query := q.Rebind(`SELECT id FROM users WHERE username = ? AND is_active = TRUE`)
	if err := sqlx.GetContext(ctx, q, &id, query, strings.ToLower(username)); err != nil {
		return "", err
	}
	return id, nil
}

// Taken reports whether the email or the username is already registered,
// including by deactivated accounts.
func (r *UserRepo) Taken(ctx context.Context, q database.Querier, email, username string) (bool, error) {
	var n int
	query := q.Rebind(`SELECT COUNT(*) FROM users WHERE email = ? OR username = ?`)
	if err := sqlx.GetContext(ctx, q, &n, query, strings.ToLower(email), strings.ToLower(username)); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *UserRepo) UsernameExists(ctx context.Context, q database.Querier, username string) (bool, error) {
	var n int
	query := q.Rebind(`SELECT COUNT(*) FROM users WHERE username = ?`)
	if err := sqlx.GetContext(ctx, q, &n, query, strings.ToLower(username)); err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateProfile writes only the supplied columns. Empty strings clear the
// nullable columns. Returns the number of rows changed.
func (r *UserRepo) UpdateProfile(ctx context.Context, q database.Querier, id string, p entity.ProfilePatch, now time.Time) (int64, error) {
	var sets []string
	var args []any
	nullable := func(col string, v string) {
		sets = append(sets, col+" = ?")
		if v == "" {
			args = append(args, nil)
			return
		}
		args = append(args, v)
	}
	if v, ok := p.DisplayName.Get(); ok {
		nullable("display_name", v)
	}
	if v, ok := p.Bio.Get(); ok {
		nullable("bio", v)
	}
	if v, ok := p.AvatarURL.Get(); ok {
		nullable("avatar_url", v)
	}
	if v, ok := p.Theme.Get(); ok {
		sets = append(sets, "theme = ?")
		args = append(args, v)
	}
	if len(sets) == 0 {
		return 0, nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now, id)
	return database.Exec(ctx, q, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
}

func (r *UserRepo) UpdatePassword(ctx context.Context, q database.Querier, id, hash string, now time.Time) error {
	_, err := database.Exec(ctx, q, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, now, id)
	return err
}

// Deactivate marks the user inactive. Returns rows changed; already inactive
// users report 0.
func (r *UserRepo) Deactivate(ctx context.Context, q database.Querier, id string, now time.Time) (int64, error) {
	return database.Exec(ctx, q, `UPDATE users SET is_active = FALSE, updated_at = ? WHERE id = ? AND is_active = TRUE`, now, id)
}

// Reactivate marks the user active again.
func (r *UserRepo) Reactivate(ctx context.Context, q database.Querier, id string, now time.Time) (int64, error) {
	return database.Exec(ctx, q, `UPDATE users SET is_active = TRUE, updated_at = ? WHERE id = ? AND is_active = FALSE`, now, id)
}

// GetIDByEmail resolves an email regardless of activation state, or sql.ErrNoRows.
func (r *UserRepo) GetIDByEmail(ctx context.Context, q database.Querier, email string) (string, error) {
	var id string
	if err := sqlx.GetContext(ctx, q, &id, q.Rebind(`SELECT id FROM users WHERE email = ?`), strings.ToLower(email)); err != nil {
		return "", err
	}
	return id, nil
}

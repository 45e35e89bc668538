package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/auth/entity"
	authrepo "github.com/ovaphlow/pitchfork/service-orangelink-go/internal/auth/repo"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/user"
	userentity "github.com/ovaphlow/pitchfork/service-orangelink-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/metrics"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/utilities"
)

var (
	ErrInvalidRefresh = apperr.New(apperr.Unauthorized, "Invalid or expired refresh token")
	ErrRefreshRevoked = apperr.New(apperr.Unauthorized, "Refresh token is invalid, revoked, or expired")
)

// SessionManager runs register, login, refresh and logout over the refresh
// token lineage. A record moves from active to revoked exactly once.
type SessionManager struct {
	store  *database.Store
	users  *user.UserService
	tokens *TokenService
	repo   *authrepo.RefreshRepo
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewSessionManager(store *database.Store, users *user.UserService, tokens *TokenService, logger *zap.SugaredLogger) *SessionManager {
	return &SessionManager{
		store:  store,
		users:  users,
		tokens: tokens,
		repo:   authrepo.NewRefreshRepo(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *SessionManager) EnsureSchema(ctx context.Context, q database.Querier) error {
	return m.repo.EnsureTable(ctx, q)
}

func subjectOf(u *userentity.User) Subject {
	return Subject{ID: u.ID, Username: u.Username, Email: u.Email}
}

// Register creates the account and its first session in one transaction.
func (m *SessionManager) Register(ctx context.Context, in userentity.NewUser) (*entity.AuthResult, error) {
	var res entity.AuthResult
	err := m.store.WithTx(ctx, func(tx database.Querier) error {
		u, err := m.users.Create(ctx, tx, in)
		if err != nil {
			return err
		}
		pair, err := m.createTokenPair(ctx, tx, subjectOf(u))
		if err != nil {
			return err
		}
		res = entity.AuthResult{User: u, Tokens: pair}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Infow("user registered", "user_id", res.User.ID, "username", res.User.Username)
	return &res, nil
}

// Login authenticates an active user and opens a new session.
func (m *SessionManager) Login(ctx context.Context, email, password string) (*entity.AuthResult, error) {
	u, err := m.users.AuthenticatePassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	pair, err := m.CreateTokenPair(ctx, u.ID, u.Username, u.Email)
	if err != nil {
		return nil, err
	}
	return &entity.AuthResult{User: u, Tokens: pair}, nil
}

// CreateTokenPair issues both tokens and persists the refresh record.
func (m *SessionManager) CreateTokenPair(ctx context.Context, userID, username, email string) (*entity.TokenPair, error) {
	var pair *entity.TokenPair
	err := m.store.WithConn(ctx, func(q database.Querier) error {
		var err error
		pair, err = m.createTokenPair(ctx, q, Subject{ID: userID, Username: username, Email: email})
		return err
	})
	return pair, err
}

func (m *SessionManager) createTokenPair(ctx context.Context, q database.Querier, sub Subject) (*entity.TokenPair, error) {
	access, err := m.tokens.IssueAccessToken(sub)
	if err != nil {
		return nil, err
	}
	refresh, exp, err := m.tokens.IssueRefreshToken(sub)
	if err != nil {
		return nil, err
	}
	rec := &entity.RefreshToken{
		ID:        utilities.NewKSUID(),
		UserID:    sub.ID,
		TokenHash: HashToken(refresh),
		ExpiresAt: exp.UTC(),
		CreatedAt: m.now(),
	}
	if err := m.repo.Save(ctx, q, rec); err != nil {
		return nil, err
	}
	return &entity.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(m.tokens.AccessTTL() / time.Second),
	}, nil
}

// Refresh rotates a refresh token: the presented record is revoked and its
// successor persisted in the same transaction.
func (m *SessionManager) Refresh(ctx context.Context, raw string) (*entity.TokenPair, error) {
	claims, err := m.tokens.VerifyRefreshToken(raw)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("rejected").Inc()
		return nil, ErrInvalidRefresh
	}

	var pair *entity.TokenPair
	err = m.store.WithTx(ctx, func(tx database.Querier) error {
		rec, err := m.repo.Get(ctx, tx, HashToken(raw), claims.Subject)
		if err != nil {
			if database.IsNoRows(err) {
				return ErrRefreshRevoked
			}
			return err
		}
		if rec.Revoked || !m.now().Before(rec.ExpiresAt) {
			return ErrRefreshRevoked
		}
		u, err := m.users.GetActiveByID(ctx, tx, claims.Subject)
		if err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				return ErrRefreshRevoked
			}
			return err
		}
		n, err := m.repo.Revoke(ctx, tx, rec.ID)
		if err != nil {
			return err
		}
		if n != 1 {
			// another request rotated this token first
			return ErrRefreshRevoked
		}
		pair, err = m.createTokenPair(ctx, tx, subjectOf(u))
		return err
	})
	if err != nil {
		if apperr.Is(err, apperr.Unauthorized) {
			metrics.TokenRefreshes.WithLabelValues("rejected").Inc()
			m.logger.Debugw("refresh rejected", "user_id", claims.Subject, "err", err)
		}
		return nil, err
	}
	metrics.TokenRefreshes.WithLabelValues("rotated").Inc()
	return pair, nil
}

// Logout revokes the given refresh token of userID, or every active one when
// raw is empty. Revoking an already revoked token is not an error.
func (m *SessionManager) Logout(ctx context.Context, userID, raw string) error {
	return m.store.WithConn(ctx, func(q database.Querier) error {
		var n int64
		var err error
		if raw == "" {
			n, err = m.repo.RevokeAll(ctx, q, userID)
		} else {
			n, err = m.repo.RevokeByHash(ctx, q, userID, HashToken(raw))
		}
		if err != nil {
			return err
		}
		m.logger.Debugw("logout", "user_id", userID, "everywhere", raw == "", "revoked", n)
		return nil
	})
}

// Deactivate soft-deletes the account and revokes all of its sessions.
func (m *SessionManager) Deactivate(ctx context.Context, userID string) error {
	err := m.store.WithTx(ctx, func(tx database.Querier) error {
		if _, err := m.users.Repo().GetByID(ctx, tx, userID); err != nil {
			if database.IsNoRows(err) {
				return user.ErrUserNotFound
			}
			return err
		}
		if _, err := m.users.Repo().Deactivate(ctx, tx, userID, m.now()); err != nil {
			return err
		}
		_, err := m.repo.RevokeAll(ctx, tx, userID)
		return err
	})
	if err != nil {
		return err
	}
	m.logger.Infow("user deactivated", "user_id", userID)
	return nil
}

// DeactivateByEmail is Deactivate for operators who know the email only.
func (m *SessionManager) DeactivateByEmail(ctx context.Context, email string) error {
	var id string
	err := m.store.WithConn(ctx, func(q database.Querier) error {
		var err error
		id, err = m.users.Repo().GetIDByEmail(ctx, q, email)
		if database.IsNoRows(err) {
			return user.ErrUserNotFound
		}
		return err
	})
	if err != nil {
		return err
	}
	return m.Deactivate(ctx, id)
}

// PruneTokens deletes revoked and expired records.
func (m *SessionManager) PruneTokens(ctx context.Context) (int64, error) {
	var n int64
	err := m.store.WithConn(ctx, func(q database.Querier) error {
		var err error
		n, err = m.repo.DeleteStale(ctx, q, m.now())
		return err
	})
	return n, err
}

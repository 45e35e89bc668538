// Package app wires configuration, storage and the domain services into a
// runnable HTTP handler.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/analytics"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/assist"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/link"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/config"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/ratelimit"
)

const (
	authLimitMax      = 10
	authLimitWindow   = 15 * time.Minute
	publicLimitMax    = 60
	publicLimitWindow = time.Minute
)

type App struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	redis  *redis.Client

	Store     *database.Store
	Users     *user.UserService
	Tokens    *auth.TokenService
	Sessions  *auth.SessionManager
	Links     *link.Service
	Recorder  *analytics.Recorder
	Analytics *analytics.Service
	Assist    *assist.Service
	Limiters  router.Limiters
}

// New builds the services on top of an open store. hasher may be nil for the
// default bcrypt cost.
func New(cfg *config.Config, store *database.Store, hasher user.PasswordHasher, logger *zap.SugaredLogger) (*App, error) {
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
	})
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: logger, Store: store, Tokens: tokens}
	a.Users = user.NewUserService(store, hasher, logger)
	a.Sessions = auth.NewSessionManager(store, a.Users, tokens, logger)
	a.Recorder = analytics.NewRecorder(store, logger)
	a.Links = link.NewService(store, a.Recorder, logger)
	a.Analytics = analytics.NewService(store)
	a.Assist = assist.NewService(a.Users, a.Links, assist.NewRewriter(cfg.OpenAI, logger), logger)

	if err := a.buildLimiters(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) buildLimiters() error {
	rl := a.cfg.RateLimit
	if a.cfg.RedisURL == "" {
		a.Limiters = router.Limiters{
			General: ratelimit.NewMemory(rl.Max, rl.Window),
			Auth:    ratelimit.NewMemory(authLimitMax, authLimitWindow),
			Public:  ratelimit.NewMemory(publicLimitMax, publicLimitWindow),
		}
		return nil
	}
	client, err := ratelimit.NewRedisClient(a.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("rate limit redis: %w", err)
	}
	a.redis = client
	a.Limiters = router.Limiters{
		General: ratelimit.NewRedis(client, "orangelink:rl:general", rl.Max, rl.Window),
		Auth:    ratelimit.NewRedis(client, "orangelink:rl:auth", authLimitMax, authLimitWindow),
		Public:  ratelimit.NewRedis(client, "orangelink:rl:public", publicLimitMax, publicLimitWindow),
	}
	a.logger.Infow("rate limits backed by redis")
	return nil
}

// Migrate creates missing tables. Order matters for foreign keys.
func (a *App) Migrate(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context, database.Querier) error
	}{
		{"users", a.Users.EnsureSchema},
		{"refresh_tokens", a.Sessions.EnsureSchema},
		{"links", a.Links.EnsureSchema},
		{"events", a.Recorder.EnsureSchema},
	}
	return a.Store.WithConn(ctx, func(q database.Querier) error {
		for _, s := range steps {
			if err := s.fn(ctx, q); err != nil {
				return fmt.Errorf("migrate %s: %w", s.name, err)
			}
			a.logger.Debugw("schema ready", "table", s.name)
		}
		return nil
	})
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	return router.RegisterRoutes(router.Deps{
		Logger:           a.logger,
		Health:           a.Store,
		Tokens:           a.Tokens,
		Auth:             auth.NewHandler(a.Sessions, a.logger),
		Users:            user.NewHandler(a.Users, a.Recorder, a.logger),
		Links:            link.NewHandler(a.Links, a.logger),
		Analytics:        analytics.NewHandler(a.Analytics, a.logger),
		Assist:           assist.NewHandler(a.Assist, a.logger),
		Limiters:         a.Limiters,
		CORSOrigins:      a.cfg.CORSOrigins,
		TrustedProxyHops: a.cfg.TrustedProxyHops,
	})
}

// Close releases what New opened. The store belongs to the caller.
func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

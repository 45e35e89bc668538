package router

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/analytics"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/assist"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/link"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/metrics"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/ratelimit"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/request"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/response"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Limiters guard groups of routes. A nil limiter disables its group.
type Limiters struct {
	General ratelimit.Limiter
	Auth    ratelimit.Limiter
	Public  ratelimit.Limiter
}

// Deps is everything RegisterRoutes mounts.
type Deps struct {
	Logger      *zap.SugaredLogger
	Health      Pinger
	Tokens      *auth.TokenService
	Auth        *auth.Handler
	Users       *user.Handler
	Links       *link.Handler
	Analytics   *analytics.Handler
	Assist      *assist.Handler
	Limiters    Limiters
	CORSOrigins []string
	// TrustedProxyHops selects the client address from X-Forwarded-For.
	TrustedProxyHops int
}

type middleware func(http.Handler) http.Handler

func limit(name string, lim ratelimit.Limiter, logger *zap.SugaredLogger) middleware {
	if lim == nil {
		return func(h http.Handler) http.Handler { return h }
	}
	return RateLimitMiddleware(name, lim, logger)
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()
	logger := d.Logger

	requireAuth := auth.RequireAuth(d.Tokens, logger)
	private := func(h http.HandlerFunc) http.Handler { return requireAuth(h) }
	authLimit := limit("auth", d.Limiters.Auth, logger)
	publicLimit := limit("public", d.Limiters.Public, logger)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := d.Health.Ping(ctx); err != nil {
			logger.Warnw("health check failed", "err", err)
			response.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", metrics.Handler())

	// auth
	mux.Handle("POST /api/auth/register", authLimit(http.HandlerFunc(d.Auth.Register)))
	mux.Handle("POST /api/auth/login", authLimit(http.HandlerFunc(d.Auth.Login)))
	mux.HandleFunc("POST /api/auth/refresh", d.Auth.Refresh)
	mux.Handle("POST /api/auth/logout", private(d.Auth.Logout))
	mux.Handle("GET /api/auth/me", private(d.Auth.Me))

	// profile
	mux.Handle("GET /api/profile/me", private(d.Users.Me))
	mux.Handle("PATCH /api/profile/me", private(d.Users.UpdateMe))
	mux.Handle("DELETE /api/profile/me", private(d.Auth.Deactivate))
	mux.HandleFunc("GET /api/profile/check/{username}", d.Users.CheckUsername)

	// links
	mux.Handle("GET /api/links", private(d.Links.List))
	mux.Handle("POST /api/links", private(d.Links.Create))
	mux.Handle("PATCH /api/links/reorder", private(d.Links.Reorder))
	mux.Handle("PATCH /api/links/{id}", private(d.Links.Update))
	mux.Handle("DELETE /api/links/{id}", private(d.Links.Delete))

	// public pages
	mux.Handle("POST /api/public/click/{id}", publicLimit(http.HandlerFunc(d.Links.Click)))
	mux.Handle("GET /api/public/{username}", publicLimit(http.HandlerFunc(d.Users.PublicProfile)))
	mux.Handle("GET /api/public/{username}/links", publicLimit(http.HandlerFunc(d.Links.PublicLinks)))

	mux.Handle("GET /api/analytics/summary", private(d.Analytics.Summary))

	mux.Handle("POST /api/assist/bio", private(d.Assist.Bio))
	mux.Handle("POST /api/assist/links/{id}/title", private(d.Assist.LinkTitle))

	var h http.Handler = mux
	h = limit("general", d.Limiters.General, logger)(h)
	h = SecurityHeadersMiddleware()(h)
	h = CORSMiddleware(d.CORSOrigins)(h)
	h = LoggingMiddleware(logger)(h)
	return request.ResolveClientIP(d.TrustedProxyHops)(h)
}

package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/auth/identity"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/response"
)

var (
	errMissingBearer = apperr.New(apperr.Unauthorized, "Authorization header missing or malformed")
	errBadAccess     = apperr.New(apperr.Unauthorized, "Invalid or expired access token")
)

// RequireAuth rejects requests without a valid access token and stores the
// caller's identity in the request context.
func RequireAuth(tokens *TokenService, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r)
			if !ok {
				response.Error(w, logger, errMissingBearer)
				return
			}
			claims, err := tokens.VerifyAccessToken(raw)
			if err != nil {
				logger.Debugw("access token rejected", "path", r.URL.Path, "err", err)
				response.Error(w, logger, errBadAccess)
				return
			}
			ctx := identity.With(r.Context(), identity.Identity{
				UserID:   claims.Subject,
				Username: claims.Username,
				Email:    claims.Email,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

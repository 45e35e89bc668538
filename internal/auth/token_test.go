package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/apperr"
)

func testTokenConfig() TokenConfig {
	return TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "orangelink",
		Audience:      "orangelink-app",
	}
}

func newTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testTokenConfig())
	require.NoError(t, err)
	return ts
}

var bob = Subject{ID: "42", Username: "bob", Email: "bob@x.com"}

func TestAccessTokenRoundTrip(t *testing.T) {
	ts := newTokenService(t)

	tok, err := ts.IssueAccessToken(bob)
	require.NoError(t, err)

	claims, err := ts.VerifyAccessToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "bob", claims.Username)
	assert.Equal(t, "bob@x.com", claims.Email)
	assert.Equal(t, "orangelink", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestSecretsAreIndependent(t *testing.T) {
	ts := newTokenService(t)

	access, err := ts.IssueAccessToken(bob)
	require.NoError(t, err)
	refresh, _, err := ts.IssueRefreshToken(bob)
	require.NoError(t, err)

	_, err = ts.VerifyRefreshToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = ts.VerifyAccessToken(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ts.VerifyRefreshToken(refresh)
	assert.NoError(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	ts := newTokenService(t)
	issued := time.Now().Add(-time.Hour)
	ts.now = func() time.Time { return issued }
	tok, err := ts.IssueAccessToken(bob)
	require.NoError(t, err)

	ts.now = time.Now
	_, err = ts.VerifyAccessToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.True(t, apperr.Is(err, apperr.Unauthorized))
}

func TestIssuerAndAudienceBound(t *testing.T) {
	ts := newTokenService(t)

	otherIssuer := testTokenConfig()
	otherIssuer.Issuer = "someone-else"
	foreign, err := NewTokenService(otherIssuer)
	require.NoError(t, err)
	tok, err := foreign.IssueAccessToken(bob)
	require.NoError(t, err)
	_, err = ts.VerifyAccessToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	otherAudience := testTokenConfig()
	otherAudience.Audience = "another-app"
	foreign, err = NewTokenService(otherAudience)
	require.NoError(t, err)
	tok, err = foreign.IssueAccessToken(bob)
	require.NoError(t, err)
	_, err = ts.VerifyAccessToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestOtherSigningMethodRejected(t *testing.T) {
	ts := newTokenService(t)
	claims := Claims{
		Username: "bob",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			Issuer:    "orangelink",
			Audience:  jwt.ClaimStrings{"orangelink-app"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString([]byte("access-secret"))
	require.NoError(t, err)

	_, err = ts.VerifyAccessToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokensIssuedTogetherDiffer(t *testing.T) {
	ts := newTokenService(t)
	fixed := time.Now()
	ts.now = func() time.Time { return fixed }

	a, _, err := ts.IssueRefreshToken(bob)
	require.NoError(t, err)
	b, _, err := ts.IssueRefreshToken(bob)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, HashToken(a), HashToken(b))
}

func TestHashToken(t *testing.T) {
	h := HashToken("raw-token")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken("raw-token"))
	assert.NotEqual(t, h, HashToken("raw-token2"))
	assert.NotContains(t, h, "raw-token")
}

func TestComputeExpiry(t *testing.T) {
	ts := newTokenService(t)
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return fixed }

	exp, err := ts.ComputeExpiry("15m")
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(15*time.Minute), exp)

	exp, err = ts.ComputeExpiry("7d")
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(7*24*time.Hour), exp)

	_, err = ts.ComputeExpiry("7 days")
	assert.True(t, apperr.Is(err, apperr.Config))
}

func TestNewTokenServiceValidatesSecrets(t *testing.T) {
	cfg := testTokenConfig()
	cfg.RefreshSecret = cfg.AccessSecret
	_, err := NewTokenService(cfg)
	assert.True(t, apperr.Is(err, apperr.Config))

	cfg = testTokenConfig()
	cfg.AccessSecret = ""
	_, err = NewTokenService(cfg)
	assert.True(t, apperr.Is(err, apperr.Config))
}

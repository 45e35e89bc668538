package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/config"
)

var ErrInvalidToken = apperr.New(apperr.Unauthorized, "Invalid or expired token")

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
}

// Claims is the payload shared by access and refresh tokens.
type Claims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// Subject identifies whom a token is issued for.
type Subject struct {
	ID       string
	Username string
	Email    string
}

// TokenService signs and verifies HS256 tokens. Access and refresh tokens use
// independent secrets.
type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	switch {
	case cfg.AccessSecret == "" || cfg.RefreshSecret == "":
		return nil, apperr.New(apperr.Config, "token secrets are required")
	case cfg.AccessSecret == cfg.RefreshSecret:
		return nil, apperr.New(apperr.Config, "access and refresh secrets must differ")
	case cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0:
		return nil, apperr.New(apperr.Config, "token lifetimes must be positive")
	}
	return &TokenService{cfg: cfg, now: time.Now}, nil
}

// AccessTTL is the lifetime of access tokens, reported to clients as expiresIn.
func (s *TokenService) AccessTTL() time.Duration { return s.cfg.AccessTTL }

func (s *TokenService) sign(sub Subject, secret string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(ttl)
	claims := Claims{
		Username: sub.Username,
		Email:    sub.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   sub.ID,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (s *TokenService) IssueAccessToken(sub Subject) (string, error) {
	tok, _, err := s.sign(sub, s.cfg.AccessSecret, s.cfg.AccessTTL)
	return tok, err
}

// IssueRefreshToken returns the signed token and its expiry.
func (s *TokenService) IssueRefreshToken(sub Subject) (string, time.Time, error) {
	return s.sign(sub, s.cfg.RefreshSecret, s.cfg.RefreshTTL)
}

func (s *TokenService) verify(raw, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) VerifyAccessToken(raw string) (*Claims, error) {
	return s.verify(raw, s.cfg.AccessSecret)
}

func (s *TokenService) VerifyRefreshToken(raw string) (*Claims, error) {
	return s.verify(raw, s.cfg.RefreshSecret)
}

// HashToken is the storage key of a raw refresh token: hex sha256.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ComputeExpiry parses a duration spec and returns now plus that duration.
func (s *TokenService) ComputeExpiry(spec string) (time.Time, error) {
	d, err := config.ParseDuration(spec)
	if err != nil {
		return time.Time{}, err
	}
	return s.now().Add(d), nil
}

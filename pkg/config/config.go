package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/database"
)

type JWT struct {
	AccessSecret  string
	RefreshSecret string
	// AccessTTLSpec is kept verbatim for logging; AccessTTL is authoritative.
	AccessTTLSpec string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
}

type RateLimit struct {
	Window time.Duration
	Max    int
}

type OpenAI struct {
	APIKey  string
	Model   string
	BaseURL string
}

type Config struct {
	Port        string
	AppEnv      string
	Database    database.Config
	JWT         JWT
	CORSOrigins []string
	RateLimit   RateLimit
	// TrustedProxyHops is the number of reverse proxies that append to
	// X-Forwarded-For in front of the service. 0 means clients connect
	// directly and forwarding headers are ignored.
	TrustedProxyHops int
	RedisURL         string
	OpenAI           OpenAI
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

// Load reads configuration from the process environment after a best-effort
// .env load. Any malformed value fails with a Config error.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore error if .env not found (e.g. prod)
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads configuration through lookup.
func LoadFrom(lookup func(string) (string, bool)) (*Config, error) {
	env := func(key, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fallback
	}

	var errs []string
	duration := func(key, fallback string) time.Duration {
		d, err := ParseDuration(env(key, fallback))
		if err != nil {
			errs = append(errs, key+": "+err.(*apperr.Error).Message)
		}
		return d
	}
	integer := func(key string, fallback int) int {
		raw := env(key, "")
		if raw == "" {
			return fallback
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Sprintf("%s: want a positive integer, got %q", key, raw))
			return fallback
		}
		return n
	}
	hops := func(key string, fallback int) int {
		raw := env(key, "")
		if raw == "" {
			return fallback
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Sprintf("%s: want a non-negative integer, got %q", key, raw))
			return fallback
		}
		return n
	}

	cfg := &Config{
		Port:   env("PORT", "4000"),
		AppEnv: env("APP_ENV", "development"),
		Database: database.Config{
			DSN:            env("DATABASE_URL", "file:orangelink.db"),
			MaxConns:       integer("DATABASE_MAX_CONNS", 10),
			AcquireTimeout: duration("DATABASE_ACQUIRE_TIMEOUT", "2s"),
			Timeout:        5 * time.Second,
			TimeZone:       env("DATABASE_TIMEZONE", ""),
		},
		JWT: JWT{
			AccessSecret:  env("JWT_SECRET", ""),
			RefreshSecret: env("JWT_REFRESH_SECRET", ""),
			AccessTTLSpec: env("JWT_EXPIRES_IN", "15m"),
			AccessTTL:     duration("JWT_EXPIRES_IN", "15m"),
			RefreshTTL:    duration("JWT_REFRESH_EXPIRES_IN", "7d"),
			Issuer:        env("JWT_ISSUER", "orangelink"),
			Audience:      env("JWT_AUDIENCE", "orangelink-app"),
		},
		CORSOrigins: splitList(env("CORS_ORIGINS", "http://localhost:5173")),
		RateLimit: RateLimit{
			Window: duration("RATE_LIMIT_WINDOW", "15m"),
			Max:    integer("RATE_LIMIT_MAX", 100),
		},
		TrustedProxyHops: hops("TRUSTED_PROXY_HOPS", 1),
		RedisURL:         env("REDIS_URL", ""),
		OpenAI: OpenAI{
			APIKey:  env("OPENAI_API_KEY", ""),
			Model:   env("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: env("OPENAI_BASE_URL", ""),
		},
	}

	if cfg.JWT.AccessSecret == "" {
		errs = append(errs, "JWT_SECRET: required")
	}
	if cfg.JWT.RefreshSecret == "" {
		errs = append(errs, "JWT_REFRESH_SECRET: required")
	}
	if cfg.JWT.AccessSecret != "" && cfg.JWT.AccessSecret == cfg.JWT.RefreshSecret {
		errs = append(errs, "JWT_REFRESH_SECRET: must differ from JWT_SECRET")
	}
	if len(errs) > 0 {
		return nil, apperr.New(apperr.Config, "invalid configuration: "+strings.Join(errs, "; "))
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

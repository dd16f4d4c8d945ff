package library

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

const (
	EnvAPIURL      = "LIBRARY_API_URL"
	EnvAPIToken    = "LIBRARY_API_TOKEN"
	EnvJournal     = "LIBRARY_JOURNAL"
	EnvHTTPTimeout = "LIBRARY_HTTP_TIMEOUT"

	DefaultJournal = "library-admin.db"
	JournalOff     = "off"
)

// Config is everything the admin client needs to reach the API.
type Config struct {
	APIURL      string
	Token       string
	JournalPath string
	Timeout     time.Duration
}

// LoadConfig reads .env and .env.local (if present) and then the process
// environment. Variables already set in the environment win.
func LoadConfig() (Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	cfg := Config{
		APIURL:      strings.TrimRight(strings.TrimSpace(os.Getenv(EnvAPIURL)), "/"),
		Token:       strings.TrimSpace(os.Getenv(EnvAPIToken)),
		JournalPath: strings.TrimSpace(os.Getenv(EnvJournal)),
		Timeout:     30 * time.Second,
	}
	if cfg.JournalPath == "" {
		cfg.JournalPath = DefaultJournal
	}
	if v := strings.TrimSpace(os.Getenv(EnvHTTPTimeout)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvHTTPTimeout, err)
		}
		cfg.Timeout = d
	}
	return cfg, nil
}

// JournalEnabled is false when the journal is switched off.
func (c Config) JournalEnabled() bool {
	return c.JournalPath != "" && !strings.EqualFold(c.JournalPath, JournalOff)
}

// Validate checks the config before any request is made.
func (c Config) Validate(now time.Time) error {
	if c.APIURL == "" {
		return fmt.Errorf("%s is not set", EnvAPIURL)
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("%s must be an http(s) URL, got %q", EnvAPIURL, c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvHTTPTimeout)
	}
	return CheckTokenExpiry(c.Token, now)
}

// CheckTokenExpiry looks at the exp claim of a JWT without verifying its
// signature; the server does that. Opaque tokens and tokens without exp
// pass.
func CheckTokenExpiry(token string, now time.Time) error {
	if token == "" || strings.Count(token, ".") != 2 {
		return nil
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil
		}
		return fmt.Errorf("inspect token: %w", err)
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, claims.ExpiresAt.Time.Format(time.RFC3339))
	}
	return nil
}

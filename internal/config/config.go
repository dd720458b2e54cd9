// Package config loads the resource server's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config holds every setting the resource-server binary reads.
type Config struct {
	// ListenAddr is the TCP address to serve on. ENV: LISTEN_ADDR
	ListenAddr string `env:"LISTEN_ADDR,default=:8080"`

	// Issuer is the expected iss claim and the discovery base URL. ENV: OIDC_ISSUER
	Issuer string `env:"OIDC_ISSUER,required"`
	// AudienceList is a comma separated list of accepted audiences. ENV: OIDC_AUDIENCES
	AudienceList string `env:"OIDC_AUDIENCES"`
	// JWKSURL skips discovery when set. ENV: OIDC_JWKS_URL
	JWKSURL string `env:"OIDC_JWKS_URL"`
	// AlgList is a comma separated list of accepted signing algorithms. ENV: OIDC_ALLOWED_ALGS
	AlgList string `env:"OIDC_ALLOWED_ALGS,default=RS256"`
	// Leeway is the tolerated clock skew. ENV: OIDC_LEEWAY
	Leeway time.Duration `env:"OIDC_LEEWAY,default=60s"`

	// ResourceURL enables protected resource metadata. ENV: RESOURCE_URL
	ResourceURL string `env:"RESOURCE_URL"`

	// Audiences, when non-empty, must intersect the aud claim. Split from
	// AudienceList by Load.
	Audiences []string
	// AllowedAlgs restricts accepted signing algorithms. Split from AlgList
	// by Load.
	AllowedAlgs []string

	// LogLevel is one of debug, info, warn, error. ENV: LOG_LEVEL
	LogLevel string `env:"LOG_LEVEL,default=info"`
	// ShutdownTimeout bounds graceful shutdown. ENV: SHUTDOWN_TIMEOUT
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// Load decodes Config from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Issuer = strings.TrimSpace(c.Issuer)
	c.JWKSURL = strings.TrimSpace(c.JWKSURL)
	c.ResourceURL = strings.TrimSpace(c.ResourceURL)
	// envdecode splits slices on ";", so lists are decoded as strings.
	c.Audiences = splitList(c.AudienceList)
	c.AllowedAlgs = splitList(c.AlgList)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Issuer == "" {
		errs = append(errs, errors.New("config: OIDC_ISSUER is required"))
	} else if err := absoluteURL(c.Issuer); err != nil {
		errs = append(errs, fmt.Errorf("config: OIDC_ISSUER: %w", err))
	}
	if c.JWKSURL != "" {
		if err := absoluteURL(c.JWKSURL); err != nil {
			errs = append(errs, fmt.Errorf("config: OIDC_JWKS_URL: %w", err))
		}
	}
	if c.ResourceURL != "" {
		if err := absoluteURL(c.ResourceURL); err != nil {
			errs = append(errs, fmt.Errorf("config: RESOURCE_URL: %w", err))
		}
	}
	if len(c.AllowedAlgs) == 0 {
		errs = append(errs, errors.New("config: OIDC_ALLOWED_ALGS must not be empty"))
	}
	if slices.ContainsFunc(c.AllowedAlgs, func(a string) bool { return strings.EqualFold(a, "none") }) {
		errs = append(errs, errors.New(`config: OIDC_ALLOWED_ALGS must not contain "none"`))
	}
	if c.Leeway < 0 {
		errs = append(errs, errors.New("config: OIDC_LEEWAY must not be negative"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("config: SHUTDOWN_TIMEOUT must be positive"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

func absoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", raw)
	}
	return nil
}

func splitList(raw string) []string {
	out := []string{}
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

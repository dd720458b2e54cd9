package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// StaticConfig controls validation for tokens whose JWKS location is known
// up front, skipping discovery.
type StaticConfig struct {
	Issuer                 string
	ExpectedAudiences      []string
	RequiredScopes         []string
	ScopeModeAny           bool
	AllowedAlgs            []string
	Leeway                 time.Duration
	RequireAccessTokenType bool
}

// DefaultStaticConfig returns a StaticConfig with safe algorithm + leeway defaults.
func DefaultStaticConfig() *StaticConfig {
	return &StaticConfig{AllowedAlgs: []string{"RS256"}, Leeway: 60 * time.Second}
}

type staticAuthenticator struct {
	verifier
}

// NewStatic constructs an authenticator that validates tokens against a
// statically configured issuer and JWKS URI. Audiences are optional.
func NewStatic(ctx context.Context, cfg *StaticConfig, jwksURI string) (*staticAuthenticator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if jwksURI == "" {
		return nil, errors.New("jwks uri required")
	}
	applyDefaults(&cfg.AllowedAlgs, &cfg.Leeway)

	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURI})
	if err != nil {
		return nil, fmt.Errorf("jwks init failed: %w", err)
	}
	return newStaticWithKeyfunc(cfg, kf.Keyfunc), nil
}

func newStaticWithKeyfunc(cfg *StaticConfig, kf jwt.Keyfunc) *staticAuthenticator {
	return &staticAuthenticator{verifier: verifier{
		issuer:     cfg.Issuer,
		audiences:  slices.Clone(cfg.ExpectedAudiences),
		algs:       slices.Clone(cfg.AllowedAlgs),
		leeway:     cfg.Leeway,
		requireTyp: cfg.RequireAccessTokenType,
		scopes:     slices.Clone(cfg.RequiredScopes),
		scopeAny:   cfg.ScopeModeAny,
		keyfunc:    restrictAlgs(cfg.AllowedAlgs, kf),
	}}
}

var _ Authenticator = (*staticAuthenticator)(nil)

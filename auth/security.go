package auth

import (
	"context"
	"errors"
	"time"

	"github.com/ggoodman/realm-resource-server/internal/jwtauth"
)

// SecurityConfig is the immutable configuration describing how this
// resource validates and advertises bearer token authentication.
//
// A zero value is invalid; populate Issuer then call Validate.
type SecurityConfig struct {
	Issuer      string
	Audiences   []string // optional; empty disables the audience check
	AllowedAlgs []string // default: ["RS256"] if empty
	JWKSURL     string   // optional override / filled by discovery

	Leeway                 time.Duration // clock skew tolerance (default 60s)
	RequireAccessTokenType bool
	RequiredScopes         []string // set from WithRequiredScopes / WithAnyRequiredScope

	OIDC *OIDCExtra // optional extended metadata for advertisement only
}

// OIDCExtra carries optional authorization server metadata surfaced for
// client bootstrapping. None of these fields are used for token validation.
type OIDCExtra struct {
	AuthorizationEndpoint string
	TokenEndpoint         string
	ScopesSupported       []string
}

// Normalize fills defaults.
func (c *SecurityConfig) Normalize() {
	if len(c.AllowedAlgs) == 0 {
		c.AllowedAlgs = []string{"RS256"}
	}
	if c.Leeway == 0 {
		c.Leeway = 60 * time.Second
	}
}

// Validate returns an error if required invariants are not met.
func (c SecurityConfig) Validate() error {
	if c.Issuer == "" {
		return errors.New("security: issuer required")
	}
	for _, a := range c.Audiences {
		if a == "" {
			return errors.New("security: empty audience entry")
		}
	}
	for _, alg := range c.AllowedAlgs {
		if alg == "" || alg == "none" {
			return errors.New("security: invalid algorithm entry")
		}
	}
	return nil
}

// Copy returns a deep copy safe for mutation by the caller.
func (c SecurityConfig) Copy() SecurityConfig {
	dup := c
	dup.Audiences = append([]string(nil), c.Audiences...)
	dup.AllowedAlgs = append([]string(nil), c.AllowedAlgs...)
	dup.RequiredScopes = append([]string(nil), c.RequiredScopes...)
	if c.OIDC != nil {
		ox := *c.OIDC
		ox.ScopesSupported = append([]string(nil), c.OIDC.ScopesSupported...)
		dup.OIDC = &ox
	}
	return dup
}

// NewManualJWTAuthenticator constructs a JWT authenticator from this
// configuration without performing OIDC discovery. It expects c.Issuer and
// c.JWKSURL to be set. Options may add scope requirements or replace the
// authority mapper; audience, algorithm and leeway options override the
// corresponding fields of c.
func (c SecurityConfig) NewManualJWTAuthenticator(ctx context.Context, opts ...AccessTokenAuthOption) (SecurityProvider, error) {
	cc := c.Copy()
	cc.Normalize()
	if err := cc.Validate(); err != nil {
		return nil, err
	}
	if cc.JWKSURL == "" {
		return nil, errors.New("security: JWKSURL required for manual JWT authenticator")
	}

	cfg := &jwtauth.Config{
		Issuer:                 cc.Issuer,
		ExpectedAudiences:      cc.Audiences,
		AllowedAlgs:            cc.AllowedAlgs,
		Leeway:                 cc.Leeway,
		RequireAccessTokenType: cc.RequireAccessTokenType,
		RequiredScopes:         cc.RequiredScopes,
	}
	o := newAccessTokenOptions(cfg, opts)
	cc.Audiences = append([]string(nil), cfg.ExpectedAudiences...)
	cc.AllowedAlgs = append([]string(nil), cfg.AllowedAlgs...)
	cc.Leeway = cfg.Leeway
	cc.RequireAccessTokenType = cfg.RequireAccessTokenType
	cc.RequiredScopes = append([]string(nil), cfg.RequiredScopes...)
	if err := cc.Validate(); err != nil {
		return nil, err
	}

	sc := &jwtauth.StaticConfig{
		Issuer:                 cfg.Issuer,
		ExpectedAudiences:      cfg.ExpectedAudiences,
		RequiredScopes:         cfg.RequiredScopes,
		ScopeModeAny:           cfg.ScopeModeAny,
		AllowedAlgs:            cfg.AllowedAlgs,
		Leeway:                 cfg.Leeway,
		RequireAccessTokenType: cfg.RequireAccessTokenType,
	}
	a, err := jwtauth.NewStatic(ctx, sc, cc.JWKSURL)
	if err != nil {
		return nil, err
	}
	return &adapter{a: a, mapper: o.mapper, sec: cc}, nil
}

// SecurityDescriptor exposes security configuration for transports to advertise.
type SecurityDescriptor interface{ SecurityConfig() SecurityConfig }

// SecurityProvider combines validation + descriptor. Returned by constructors.
type SecurityProvider interface {
	Authenticator
	SecurityDescriptor
}

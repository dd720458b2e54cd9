package auth

import (
	"context"
	"errors"
	"time"

	"github.com/ggoodman/realm-resource-server/authority"
	"github.com/ggoodman/realm-resource-server/internal/jwtauth"
)

// AccessTokenAuthOption configures optional aspects of the JWT
// authenticator (audiences, scopes, algorithms, leeway, authority mapping).
type AccessTokenAuthOption func(*accessTokenOptions)

type accessTokenOptions struct {
	cfg    *jwtauth.Config
	mapper authority.Mapper
}

// WithAudiences sets the accepted "aud" values. A token is accepted when any
// of its audiences matches. Without this option the audience is not checked.
func WithAudiences(audiences ...string) AccessTokenAuthOption {
	return func(o *accessTokenOptions) {
		o.cfg.ExpectedAudiences = append([]string(nil), audiences...)
	}
}

// WithRequiredScopes requires all of the provided scopes to be present in the
// space-delimited "scope" claim.
func WithRequiredScopes(scopes ...string) AccessTokenAuthOption {
	return func(o *accessTokenOptions) {
		o.cfg.RequiredScopes = append([]string(nil), scopes...)
		o.cfg.ScopeModeAny = false
	}
}

// WithAnyRequiredScope requires at least one of the provided scopes to be present.
func WithAnyRequiredScope(scopes ...string) AccessTokenAuthOption {
	return func(o *accessTokenOptions) {
		o.cfg.RequiredScopes = append([]string(nil), scopes...)
		o.cfg.ScopeModeAny = true
	}
}

// WithAllowedAlgs restricts allowed JWS algorithms. "none" is never allowed.
// Defaults to ["RS256"].
func WithAllowedAlgs(algs ...string) AccessTokenAuthOption {
	return func(o *accessTokenOptions) {
		o.cfg.AllowedAlgs = append([]string(nil), algs...)
	}
}

// WithLeeway sets clock skew tolerance for time-based claims.
func WithLeeway(d time.Duration) AccessTokenAuthOption {
	return func(o *accessTokenOptions) { o.cfg.Leeway = d }
}

// WithAccessTokenType requires the RFC 9068 "at+jwt" typ header.
func WithAccessTokenType() AccessTokenAuthOption {
	return func(o *accessTokenOptions) { o.cfg.RequireAccessTokenType = true }
}

// WithAuthoritiesMapper replaces the claims-to-authorities mapping. The
// default is authority.RealmRoles.
func WithAuthoritiesMapper(m authority.Mapper) AccessTokenAuthOption {
	return func(o *accessTokenOptions) {
		if m != nil {
			o.mapper = m
		}
	}
}

func newAccessTokenOptions(cfg *jwtauth.Config, opts []AccessTokenAuthOption) *accessTokenOptions {
	o := &accessTokenOptions{cfg: cfg, mapper: authority.RealmRoles}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewFromDiscovery returns an Authenticator that verifies JWT access tokens
// using OpenID Connect discovery against issuer to locate the JWKS.
//
// For a Keycloak realm the issuer is the realm URL, for example
// https://sso.example.com/realms/demo.
func NewFromDiscovery(ctx context.Context, issuer string, opts ...AccessTokenAuthOption) (SecurityProvider, error) {
	cfg := jwtauth.DefaultConfig()
	cfg.Issuer = issuer
	o := newAccessTokenOptions(cfg, opts)
	for _, a := range cfg.ExpectedAudiences {
		if a == "" {
			return nil, errors.New("empty audience entry")
		}
	}
	internal, err := jwtauth.NewFromDiscovery(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sec := SecurityConfig{
		Issuer:                 cfg.Issuer,
		Audiences:              append([]string(nil), cfg.ExpectedAudiences...),
		AllowedAlgs:            append([]string(nil), cfg.AllowedAlgs...),
		JWKSURL:                internal.JWKSURI(),
		Leeway:                 cfg.Leeway,
		RequireAccessTokenType: cfg.RequireAccessTokenType,
		RequiredScopes:         append([]string(nil), cfg.RequiredScopes...),
		OIDC: &OIDCExtra{
			AuthorizationEndpoint: internal.AuthorizationEndpoint(),
			TokenEndpoint:         internal.TokenEndpoint(),
			ScopesSupported:       internal.ScopesSupported(),
		},
	}
	sec.Normalize()
	return &adapter{a: internal, mapper: o.mapper, sec: sec}, nil
}

// adapter wraps the internal authenticator to satisfy the public interface
// and applies the authority mapper to every verified token.
type adapter struct {
	a      jwtauth.Authenticator
	mapper authority.Mapper
	sec    SecurityConfig
}

func (ad *adapter) CheckAuthentication(ctx context.Context, tok string) (UserInfo, error) {
	ui, err := ad.a.CheckAuthentication(ctx, tok)
	if err != nil {
		// Map internal sentinel errors to public errors used by the handler.
		if errors.Is(err, jwtauth.ErrInsufficientScope) {
			return nil, errors.Join(ErrInsufficientScope, err)
		}
		return nil, errors.Join(ErrUnauthorized, err)
	}
	return NewUserInfo(ui.UserID(), ui.RawClaims(), ad.mapper), nil
}

func (ad *adapter) SecurityConfig() SecurityConfig { return ad.sec.Copy() }

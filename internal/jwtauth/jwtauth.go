package jwtauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// Config controls validation behavior for bearer tokens issued by an OIDC
// provider such as Keycloak.
type Config struct {
	Issuer string
	// ExpectedAudiences lists accepted "aud" values. When empty the audience
	// claim is not checked; Keycloak realms frequently issue tokens whose
	// audience is "account" or absent unless an audience mapper is set up.
	ExpectedAudiences []string
	RequiredScopes    []string
	ScopeModeAny      bool // if true, any of RequiredScopes is sufficient; else all are required
	AllowedAlgs       []string
	Leeway            time.Duration
	// RequireAccessTokenType enforces the RFC 9068 typ header (at+jwt).
	RequireAccessTokenType bool
}

// DefaultConfig returns a Config with safe defaults for algorithm and leeway.
func DefaultConfig() *Config {
	return &Config{
		AllowedAlgs: []string{"RS256"},
		Leeway:      60 * time.Second,
	}
}

// UserInfo carries the subject and claims of a verified token.
type UserInfo interface {
	UserID() string
	Claims(ref any) error
	// RawClaims returns a shallow copy of the decoded claims.
	RawClaims() map[string]any
}

type userInfo struct {
	sub    string
	claims map[string]any
}

func (u *userInfo) UserID() string { return u.sub }
func (u *userInfo) Claims(ref any) error {
	b, err := json.Marshal(u.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ref)
}
func (u *userInfo) RawClaims() map[string]any { return maps.Clone(u.claims) }

// Authenticator validates bearer tokens. Implementations MUST perform
// signature, issuer, audience and time validations.
type Authenticator interface {
	CheckAuthentication(ctx context.Context, tok string) (UserInfo, error)
}

// ErrUnauthorized indicates that the token failed validation (signature,
// issuer, audience, exp/nbf) and the request should be treated as
// unauthenticated.
var ErrUnauthorized = errors.New("jwtauth: unauthorized")

// ErrInsufficientScope indicates the token was valid but did not satisfy the
// required scopes policy; callers should respond with HTTP 403 where relevant.
var ErrInsufficientScope = errors.New("jwtauth: insufficient_scope")

// DiscoveryMetadata exposes advertisement-only endpoints learned via OIDC
// discovery.
type DiscoveryMetadata interface {
	AuthorizationEndpoint() string
	TokenEndpoint() string
	JWKSURI() string
	ScopesSupported() []string
}

type discoveryAuthenticator struct {
	verifier
	authorizationEndpoint string
	tokenEndpoint         string
	jwksURI               string
	scopes                []string
}

func (a *discoveryAuthenticator) AuthorizationEndpoint() string { return a.authorizationEndpoint }
func (a *discoveryAuthenticator) TokenEndpoint() string         { return a.tokenEndpoint }
func (a *discoveryAuthenticator) JWKSURI() string               { return a.jwksURI }
func (a *discoveryAuthenticator) ScopesSupported() []string     { return slices.Clone(a.scopes) }

// NewFromDiscovery performs OIDC discovery to obtain jwks_uri and issuer, and
// constructs an Authenticator that validates tokens using the policies in
// Config. JWKS keys are auto-refreshed for the lifetime of ctx.
func NewFromDiscovery(ctx context.Context, cfg *Config) (*discoveryAuthenticator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	applyDefaults(&cfg.AllowedAlgs, &cfg.Leeway)

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed: %w", err)
	}
	var meta struct {
		Issuer        string   `json:"issuer"`
		JwksURI       string   `json:"jwks_uri"`
		Authorization string   `json:"authorization_endpoint"`
		Token         string   `json:"token_endpoint"`
		Scopes        []string `json:"scopes_supported"`
	}
	if err := provider.Claims(&meta); err != nil {
		return nil, fmt.Errorf("invalid discovery metadata: %w", err)
	}
	if meta.JwksURI == "" {
		return nil, errors.New("discovery incomplete: missing jwks_uri")
	}

	kf, err := keyfunc.NewDefaultCtx(ctx, []string{meta.JwksURI})
	if err != nil {
		return nil, fmt.Errorf("jwks init failed: %w", err)
	}

	return &discoveryAuthenticator{
		verifier: verifier{
			issuer:     meta.Issuer,
			audiences:  slices.Clone(cfg.ExpectedAudiences),
			algs:       slices.Clone(cfg.AllowedAlgs),
			leeway:     cfg.Leeway,
			requireTyp: cfg.RequireAccessTokenType,
			scopes:     slices.Clone(cfg.RequiredScopes),
			scopeAny:   cfg.ScopeModeAny,
			keyfunc:    restrictAlgs(cfg.AllowedAlgs, kf.Keyfunc),
		},
		authorizationEndpoint: meta.Authorization,
		tokenEndpoint:         meta.Token,
		jwksURI:               meta.JwksURI,
		scopes:                slices.Clone(meta.Scopes),
	}, nil
}

var (
	_ Authenticator     = (*discoveryAuthenticator)(nil)
	_ DiscoveryMetadata = (*discoveryAuthenticator)(nil)
)

// verifier holds the validation policy shared by the discovery and static
// authenticators.
type verifier struct {
	issuer     string
	audiences  []string
	algs       []string
	leeway     time.Duration
	requireTyp bool
	scopes     []string
	scopeAny   bool
	keyfunc    jwt.Keyfunc
}

func (v *verifier) CheckAuthentication(ctx context.Context, tok string) (UserInfo, error) {
	if tok == "" {
		return nil, fmt.Errorf("%w: empty token", ErrUnauthorized)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(v.algs),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(v.issuer),
		jwt.WithLeeway(v.leeway),
	)
	parsed, err := parser.Parse(tok, v.keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: token parse/verify failed: %v", ErrUnauthorized, err)
	}

	if v.requireTyp {
		if typ, _ := parsed.Header["typ"].(string); typ != "at+jwt" && typ != "application/at+jwt" {
			return nil, fmt.Errorf("%w: invalid typ; want at+jwt", ErrUnauthorized)
		}
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}

	if len(v.audiences) > 0 && !audIntersects(claims["aud"], v.audiences) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrUnauthorized)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrUnauthorized)
	}

	if len(v.scopes) > 0 {
		scopeStr, _ := claims["scope"].(string)
		have := strings.Fields(scopeStr)
		if !scopesSatisfied(have, v.scopes, v.scopeAny) {
			return nil, ErrInsufficientScope
		}
	}

	return &userInfo{sub: sub, claims: claims}, nil
}

func scopesSatisfied(have, want []string, anyOf bool) bool {
	for _, w := range want {
		ok := slices.Contains(have, w)
		if anyOf && ok {
			return true
		}
		if !anyOf && !ok {
			return false
		}
	}
	return !anyOf
}

func applyDefaults(algs *[]string, leeway *time.Duration) {
	if len(*algs) == 0 {
		*algs = []string{"RS256"}
	}
	if *leeway == 0 {
		*leeway = 60 * time.Second
	}
}

// restrictAlgs rejects tokens signed with an algorithm outside allowed before
// any key lookup happens.
func restrictAlgs(allowed []string, next jwt.Keyfunc) jwt.Keyfunc {
	allowed = slices.Clone(allowed)
	return func(t *jwt.Token) (any, error) {
		alg := t.Method.Alg()
		if !slices.Contains(allowed, alg) {
			return nil, fmt.Errorf("disallowed alg: %s", alg)
		}
		return next(t)
	}
}

func audIntersects(aud any, wants []string) bool {
	switch v := aud.(type) {
	case string:
		return slices.Contains(wants, v)
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && slices.Contains(wants, s) {
				return true
			}
		}
	case []string:
		for _, s := range v {
			if slices.Contains(wants, s) {
				return true
			}
		}
	}
	return false
}

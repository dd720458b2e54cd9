// Package authtest provides authenticators and a throwaway OIDC issuer for
// tests of code that sits behind auth.Authenticator.
package authtest

import (
	"context"
	"fmt"

	"github.com/ggoodman/realm-resource-server/auth"
	"github.com/ggoodman/realm-resource-server/authority"
)

// Static is an authenticator that accepts a fixed set of token strings.
// Tokens map to the subject and claims they stand for; the authority mapper
// runs exactly as it would for a verified JWT.
type Static struct {
	tokens map[string]staticEntry
	mapper authority.Mapper
}

type staticEntry struct {
	sub    string
	claims map[string]any
}

// NewStatic creates a Static authenticator using mapper, or
// authority.RealmRoles when mapper is nil.
func NewStatic(mapper authority.Mapper) *Static {
	return &Static{tokens: map[string]staticEntry{}, mapper: mapper}
}

// Add registers tok for subject sub carrying claims. The "sub" claim is set
// when missing.
func (s *Static) Add(tok, sub string, claims map[string]any) *Static {
	c := make(map[string]any, len(claims)+1)
	for k, v := range claims {
		c[k] = v
	}
	if _, ok := c["sub"]; !ok {
		c["sub"] = sub
	}
	s.tokens[tok] = staticEntry{sub: sub, claims: c}
	return s
}

// AddRoles registers tok for sub with the given realm roles.
func (s *Static) AddRoles(tok, sub string, roles ...string) *Static {
	return s.Add(tok, sub, RealmAccess(roles...))
}

// CheckAuthentication implements auth.Authenticator.
func (s *Static) CheckAuthentication(ctx context.Context, tok string) (auth.UserInfo, error) {
	e, ok := s.tokens[tok]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", auth.ErrUnauthorized)
	}
	return auth.NewUserInfo(e.sub, e.claims, s.mapper), nil
}

var _ auth.Authenticator = (*Static)(nil)

// RealmAccess builds the Keycloak realm_access claim shape as JSON decoding
// would produce it.
func RealmAccess(roles ...string) map[string]any {
	rs := make([]any, 0, len(roles))
	for _, r := range roles {
		rs = append(rs, r)
	}
	return map[string]any{"realm_access": map[string]any{"roles": rs}}
}

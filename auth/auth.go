package auth

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"github.com/ggoodman/realm-resource-server/authority"
)

// ErrUnauthorized indicates authentication failed or no valid credentials were supplied.
var ErrUnauthorized = errors.New("unauthorized")

// ErrInsufficientScope indicates the caller authenticated but lacks required scope.
var ErrInsufficientScope = errors.New("insufficient scope")

// UserInfo represents an authenticated principal.
// Implementations should be lightweight and safe for concurrent use.
type UserInfo interface {
	// UserID returns the unique identifier for the user.
	UserID() string
	// Claims unmarshalls the user's claims into the provided struct reference.
	Claims(ref any) error
	// Authorities returns the authorities granted to the user, in the order
	// produced by the configured authority.Mapper.
	Authorities() []string
}

// Authenticator validates bearer tokens and returns associated user info.
// It should return ErrUnauthorized for invalid credentials.
type Authenticator interface {
	CheckAuthentication(ctx context.Context, tok string) (UserInfo, error)
}

// NewUserInfo builds a UserInfo from already verified claims. The mapper is
// applied once, here; a nil mapper defaults to authority.RealmRoles.
func NewUserInfo(sub string, claims map[string]any, mapper authority.Mapper) UserInfo {
	if mapper == nil {
		mapper = authority.RealmRoles
	}
	return &principal{sub: sub, claims: claims, authorities: mapper(claims)}
}

type principal struct {
	sub         string
	claims      map[string]any
	authorities []string
}

func (p *principal) UserID() string { return p.sub }

func (p *principal) Claims(ref any) error {
	b, err := json.Marshal(p.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ref)
}

func (p *principal) Authorities() []string { return slices.Clone(p.authorities) }

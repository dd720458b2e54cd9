package authority

import (
	"slices"
	"strings"
)

// Prefix is prepended to every role name to form an authority.
const Prefix = "ROLE_"

const (
	realmAccessClaim = "realm_access"
	rolesKey         = "roles"
)

// Mapper converts a verified claims mapping into an ordered list of
// authorities. Implementations must be pure and safe for concurrent use.
type Mapper func(claims map[string]any) []string

// Role returns the authority granted by a role name.
func Role(name string) string {
	return Prefix + strings.ToUpper(name)
}

// RealmRoles maps realm_access.roles to authorities. It never fails; any
// shape it does not recognise maps to an empty result.
func RealmRoles(claims map[string]any) []string {
	roles := stringList(lookup(asMap(claims[realmAccessClaim]), rolesKey))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, Role(r))
	}
	return out
}

// Set is an ordered list of authorities.
type Set []string

// Has reports whether a is present in the set.
func (s Set) Has(a string) bool { return slices.Contains(s, a) }

// HasRole reports whether the authority for role name is present.
func (s Set) HasRole(name string) bool { return s.Has(Role(name)) }

func lookup(m map[string]any, key string) any {
	if m == nil {
		return nil
	}
	return m[key]
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// stringList keeps string entries in order and drops everything else.
func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

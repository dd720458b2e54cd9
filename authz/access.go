package authz

import (
	"slices"

	"github.com/ggoodman/realm-resource-server/authority"
)

// Decision is the outcome of evaluating a request against a Policy.
type Decision int

const (
	// Granted lets the request through.
	Granted Decision = iota
	// Unauthenticated means credentials are required (HTTP 401).
	Unauthenticated
	// Forbidden means the caller is known but may not proceed (HTTP 403).
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Granted:
		return "granted"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// Principal is what access rules see of the caller. A nil Principal is an
// anonymous request.
type Principal interface {
	UserID() string
	Authorities() []string
}

// Access decides a single rule.
type Access interface {
	Decide(p Principal) Decision
}

// AccessFunc adapts a function to Access.
type AccessFunc func(p Principal) Decision

func (f AccessFunc) Decide(p Principal) Decision { return f(p) }

// PermitAll grants every request, authenticated or not.
func PermitAll() Access {
	return AccessFunc(func(Principal) Decision { return Granted })
}

// DenyAll rejects every request.
func DenyAll() Access {
	return AccessFunc(func(p Principal) Decision {
		if p == nil {
			return Unauthenticated
		}
		return Forbidden
	})
}

// Authenticated grants any authenticated caller regardless of authorities.
func Authenticated() Access {
	return AccessFunc(func(p Principal) Decision {
		if p == nil {
			return Unauthenticated
		}
		return Granted
	})
}

// HasAuthority grants callers holding the exact authority a.
func HasAuthority(a string) Access {
	return HasAnyAuthority(a)
}

// HasAnyAuthority grants callers holding at least one of the authorities.
func HasAnyAuthority(as ...string) Access {
	as = slices.Clone(as)
	return AccessFunc(func(p Principal) Decision {
		if p == nil {
			return Unauthenticated
		}
		have := authority.Set(p.Authorities())
		for _, a := range as {
			if have.Has(a) {
				return Granted
			}
		}
		return Forbidden
	})
}

// HasRole grants callers holding the authority for role, that is
// ROLE_<ROLE> with the name uppercased.
func HasRole(role string) Access {
	return HasAuthority(authority.Role(role))
}

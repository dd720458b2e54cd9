// Package authority turns verified token claims into the authority strings
// consumed by the authorization engine.
//
// An authority is a plain string of the form ROLE_<NAME>. The default
// Mapper, RealmRoles, reads the Keycloak-style realm_access.roles claim:
//
//	{"realm_access": {"roles": ["admin", "user"]}}
//
// yields
//
//	[]string{"ROLE_ADMIN", "ROLE_USER"}
//
// Order follows the source roles and duplicates are kept. Missing or
// malformed substructure produces no authorities rather than an error: a
// token without realm roles still authenticates, it simply carries nothing
// that a role-gated rule will accept.
package authority

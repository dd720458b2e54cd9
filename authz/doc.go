// Package authz decides whether an authenticated (or anonymous) request may
// proceed, based on the request path and the caller's authorities.
//
// A Policy is an ordered list of rules. The first rule whose Matcher accepts
// the request decides; a request no rule matches is denied. DefaultPolicy is
//
//	/admin/** -> HasRole("ADMIN")
//	anything  -> Authenticated()
package authz

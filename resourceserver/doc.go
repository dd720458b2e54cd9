// Package resourceserver is the HTTP filter chain of an OAuth2 resource
// server. It sits in front of an application http.Handler and, for every
// request:
//
//  1. extracts the bearer token from the Authorization header (RFC 6750),
//  2. verifies it with an auth.Authenticator, which also maps the token's
//     claims to authorities,
//  3. evaluates an authz.Policy against the request path and authorities,
//  4. forwards granted requests with the principal on the context.
//
// Failures become Bearer challenges: 400 for a malformed header, 401 for a
// missing or invalid token, 403 when the caller is authenticated but the
// policy denies the request.
//
//	authn, _ := auth.NewFromDiscovery(ctx, issuer)
//	h, _ := resourceserver.New(authn, authz.DefaultPolicy(), app,
//	    resourceserver.WithLogger(log),
//	    resourceserver.WithResourceMetadata("https://api.example.com"),
//	)
//	http.ListenAndServe(":8080", h)
//
// Handlers behind the chain read the caller with PrincipalFrom.
package resourceserver

// Package auth provides bearer token (JWT) authentication for HTTP resource
// servers that delegate token issuance to an external OIDC provider such as
// Keycloak.
//
// The public surface stays small: an Authenticator validates an incoming
// bearer token string and returns a UserInfo (or an error). The resourceserver
// package extracts the token from the HTTP request and maps sentinel errors
// into Bearer challenges.
//
// # Access Token Authentication
//
// NewFromDiscovery constructs an Authenticator that uses OpenID Connect
// discovery to locate the issuer's JWKS. SecurityConfig.NewManualJWTAuthenticator
// does the same from a known JWKS URL. Validation requirements are configured
// via functional options.
//
//	authn, err := auth.NewFromDiscovery(ctx, "https://sso.example.com/realms/demo",
//	    auth.WithAudiences("orders-api"),
//	)
//	if err != nil { log.Fatal(err) }
//
//	ui, err := authn.CheckAuthentication(r.Context(), bearerToken)
//	if errors.Is(err, auth.ErrUnauthorized) { /* 401 invalid_token */ }
//	ui.Authorities() // e.g. []string{"ROLE_ADMIN", "ROLE_USER"}
//
// # Authorities
//
// Every verified token is passed once through an authority.Mapper. The default
// is authority.RealmRoles, which maps realm_access.roles to ROLE_<NAME>
// strings. WithAuthoritiesMapper swaps in a different mapping.
//
// Algorithms & Clock Skew
//
// By default only RS256 is accepted. Use WithAllowedAlgs to broaden the set.
// WithLeeway adds tolerance for clock skew when validating exp/iat/nbf.
//
// # Errors
//
// ErrUnauthorized signals the token is invalid (signature, expiry, issuer,
// audience, etc.). ErrInsufficientScope signals successful authentication but
// missing required scope(s).
package auth

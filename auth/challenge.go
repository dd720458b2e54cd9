package auth

import (
	"fmt"
	"strings"
)

// RFC 6750 §3.1 error codes.
const (
	ErrorCodeInvalidRequest    = "invalid_request"
	ErrorCodeInvalidToken      = "invalid_token"
	ErrorCodeInsufficientScope = "insufficient_scope"
)

// Challenge is the content of a Bearer WWW-Authenticate header.
type Challenge struct {
	Realm            string
	ResourceMetadata string // RFC 9728 resource_metadata URL
	Error            string
	ErrorDescription string
	Scope            string
}

// String renders the challenge. Parameters appear in a fixed order: realm,
// resource_metadata, error, error_description, scope. A challenge with no
// parameters renders as a bare "Bearer".
func (c Challenge) String() string {
	esc := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	pieces := make([]string, 0, 5)
	add := func(k, v string) {
		if v != "" {
			pieces = append(pieces, fmt.Sprintf(`%s="%s"`, k, esc.Replace(v)))
		}
	}
	add("realm", c.Realm)
	add("resource_metadata", c.ResourceMetadata)
	add("error", c.Error)
	add("error_description", c.ErrorDescription)
	add("scope", c.Scope)
	if len(pieces) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(pieces, ", ")
}

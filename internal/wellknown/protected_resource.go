package wellknown

import (
	"net/url"
	"strings"
)

// ProtectedResourcePrefix is the RFC 9728 well-known path segment.
const ProtectedResourcePrefix = "/.well-known/oauth-protected-resource"

// ProtectedResourceMetadata is the RFC 9728 document describing this
// resource server.
type ProtectedResourceMetadata struct {
	Resource                          string   `json:"resource"`
	AuthorizationServers              []string `json:"authorization_servers,omitempty"`
	JwksURI                           string   `json:"jwks_uri,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported            []string `json:"bearer_methods_supported,omitempty"`
	ResourceSigningAlgValuesSupported []string `json:"resource_signing_alg_values_supported,omitempty"`
	ResourceName                      string   `json:"resource_name,omitempty"`
}

// ProtectedResourceURL returns the metadata URL for resource. Per RFC 9728
// §3.1 the well-known segment goes between the host and any path component.
func ProtectedResourceURL(resource *url.URL) *url.URL {
	p := strings.TrimSuffix(resource.Path, "/")
	return &url.URL{Scheme: resource.Scheme, Host: resource.Host, Path: ProtectedResourcePrefix + p}
}

package resourceserver

import (
	"log/slog"

	"github.com/ggoodman/realm-resource-server/authz"
)

// Option configures a Handler.
type Option func(*config)

type config struct {
	logger      *slog.Logger
	realm       string
	resourceURL string
	serverName  string
	public      []string
}

// WithLogger sets the logger used by the handler. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithRealm sets the realm advertised in WWW-Authenticate challenges.
func WithRealm(realm string) Option {
	return func(c *config) { c.realm = realm }
}

// WithResourceMetadata enables the RFC 9728 protected resource metadata
// endpoint for the resource identified by resourceURL. Challenges then carry
// a resource_metadata parameter pointing at it.
func WithResourceMetadata(resourceURL string) Option {
	return func(c *config) { c.resourceURL = resourceURL }
}

// WithServerName sets resource_name in the protected resource metadata.
func WithServerName(name string) Option {
	return func(c *config) { c.serverName = name }
}

// WithPublicPaths lists ant-style path patterns (see authz.PathPattern) that
// bypass authentication and authorization entirely. A bearer token sent to a
// public path is ignored.
func WithPublicPaths(patterns ...string) Option {
	return func(c *config) { c.public = append(c.public, patterns...) }
}

func (c *config) publicMatcher() authz.Matcher {
	if len(c.public) == 0 {
		return nil
	}
	return authz.PathPatterns(c.public...)
}

package resourceserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/realm-resource-server/auth"
	"github.com/ggoodman/realm-resource-server/authz"
	"github.com/ggoodman/realm-resource-server/internal/logctx"
	"github.com/ggoodman/realm-resource-server/internal/wellknown"
	"github.com/google/uuid"
)

const (
	authorizationHeader   = "Authorization"
	wwwAuthenticateHeader = "WWW-Authenticate"
	requestIDHeader       = "X-Request-Id"
	bearerScheme          = "Bearer"
)

var (
	textMediaType   = contenttype.NewMediaType("text/plain")
	jsonMediaType   = contenttype.NewMediaType("application/json")
	errorMediaTypes = []contenttype.MediaType{textMediaType, jsonMediaType}
)

var _ http.Handler = (*Handler)(nil)

// Handler authenticates and authorizes requests before handing them to the
// wrapped application handler.
type Handler struct {
	log    *slog.Logger
	auth   auth.Authenticator
	policy *authz.Policy
	next   http.Handler
	realm  string
	public authz.Matcher
	scope  string // RFC 6750 scope advertised on insufficient_scope

	prmDocument    wellknown.ProtectedResourceMetadata
	prmDocumentURL *url.URL
}

// New wraps next with bearer token authentication and policy enforcement. A
// nil policy means authz.DefaultPolicy().
//
// When authenticator also implements auth.SecurityDescriptor its issuer,
// JWKS location and algorithms are published in the protected resource
// metadata enabled by WithResourceMetadata.
func New(authenticator auth.Authenticator, policy *authz.Policy, next http.Handler, opts ...Option) (*Handler, error) {
	if authenticator == nil {
		return nil, errors.New("resourceserver: authenticator required")
	}
	if next == nil {
		return nil, errors.New("resourceserver: next handler required")
	}
	if policy == nil {
		policy = authz.DefaultPolicy()
	}

	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	h := &Handler{
		log:    slog.New(logctx.Handler{Handler: cfg.logger.Handler()}),
		auth:   authenticator,
		policy: policy,
		next:   next,
		realm:  cfg.realm,
		public: cfg.publicMatcher(),
	}
	if sd, ok := authenticator.(auth.SecurityDescriptor); ok {
		h.scope = strings.Join(sd.SecurityConfig().RequiredScopes, " ")
	}

	if cfg.resourceURL != "" {
		u, err := url.Parse(cfg.resourceURL)
		if err != nil {
			return nil, fmt.Errorf("resourceserver: invalid resource url: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("resourceserver: resource url must be absolute: %q", cfg.resourceURL)
		}
		h.prmDocumentURL = wellknown.ProtectedResourceURL(u)
		h.prmDocument = wellknown.ProtectedResourceMetadata{
			Resource:               cfg.resourceURL,
			BearerMethodsSupported: []string{"header"},
			ResourceName:           cfg.serverName,
		}
		if sd, ok := authenticator.(auth.SecurityDescriptor); ok {
			sec := sd.SecurityConfig()
			h.prmDocument.AuthorizationServers = []string{sec.Issuer}
			h.prmDocument.JwksURI = sec.JWKSURL
			h.prmDocument.ResourceSigningAlgValuesSupported = sec.AllowedAlgs
			if sec.OIDC != nil {
				h.prmDocument.ScopesSupported = sec.OIDC.ScopesSupported
			}
		}
	}

	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	reqID := r.Header.Get(requestIDHeader)
	if !validRequestID(reqID) {
		reqID = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, reqID)

	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  reqID,
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})
	r = r.WithContext(ctx)

	if h.prmDocumentURL != nil && r.URL.Path == h.prmDocumentURL.Path {
		h.handleProtectedResourceMetadata(w, r)
		return
	}

	if h.public != nil && h.public.Matches(r) {
		h.log.DebugContext(ctx, "authz.public")
		h.next.ServeHTTP(w, r)
		return
	}

	userInfo, ok := h.checkAuthentication(w, r)
	if !ok {
		return
	}

	var p authz.Principal
	if userInfo != nil {
		p = userInfo
		ctx = withPrincipal(ctx, userInfo)
		ctx = logctx.WithPrincipalData(ctx, &logctx.PrincipalData{
			UserID:      userInfo.UserID(),
			Authorities: userInfo.Authorities(),
		})
		r = r.WithContext(ctx)
	}

	decision := h.policy.Decide(r, p)
	switch decision {
	case authz.Granted:
		h.log.InfoContext(ctx, "authz.grant", slog.Duration("dur", time.Since(start)))
		h.next.ServeHTTP(w, r)
	case authz.Unauthenticated:
		// RFC 6750 §3.1: no error code when the request carried no credentials.
		h.log.InfoContext(ctx, "authz.deny", slog.String("decision", decision.String()))
		h.writeChallenge(w, r, http.StatusUnauthorized, h.challenge("", "authentication required"))
	default:
		h.log.InfoContext(ctx, "authz.deny", slog.String("decision", decision.String()))
		h.writeChallenge(w, r, http.StatusForbidden, h.challenge(auth.ErrorCodeInsufficientScope, "insufficient authority"))
	}
}

// checkAuthentication returns the verified caller, or nil for a request
// without bearer credentials. It reports false when it has already
// written an error response.
func (h *Handler) checkAuthentication(w http.ResponseWriter, r *http.Request) (auth.UserInfo, bool) {
	ctx := r.Context()
	authHeader := r.Header.Get(authorizationHeader)
	if authHeader == "" {
		h.log.DebugContext(ctx, "auth.check.missing")
		return nil, true
	}

	// Other schemes carry no bearer credentials; the request is anonymous.
	scheme, tok, found := strings.Cut(authHeader, " ")
	if !strings.EqualFold(scheme, bearerScheme) {
		h.log.DebugContext(ctx, "auth.check.foreign_scheme")
		return nil, true
	}
	// Bearer without a token -> invalid_request 400 per RFC 6750 §3.1.
	if !found {
		h.log.InfoContext(ctx, "auth.check.invalid", slog.String("err", "malformed bearer authorization header"))
		h.writeChallenge(w, r, http.StatusBadRequest, h.challenge(auth.ErrorCodeInvalidRequest, "malformed bearer authorization header"))
		return nil, false
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		h.log.InfoContext(ctx, "auth.check.invalid", slog.String("err", "empty bearer token"))
		h.writeChallenge(w, r, http.StatusBadRequest, h.challenge(auth.ErrorCodeInvalidRequest, "empty bearer token"))
		return nil, false
	}

	userInfo, err := h.auth.CheckAuthentication(ctx, tok)
	switch {
	case err == nil:
		h.log.DebugContext(ctx, "auth.ok", slog.String("user_id", userInfo.UserID()))
		return userInfo, true
	case errors.Is(err, auth.ErrInsufficientScope):
		h.log.InfoContext(ctx, "auth.check.fail", slog.String("err", err.Error()))
		c := h.challenge(auth.ErrorCodeInsufficientScope, "insufficient scope")
		c.Scope = h.scope
		h.writeChallenge(w, r, http.StatusForbidden, c)
	case errors.Is(err, auth.ErrUnauthorized):
		// The description stays generic; verification detail goes to the log only.
		h.log.InfoContext(ctx, "auth.check.fail", slog.String("err", err.Error()))
		h.writeChallenge(w, r, http.StatusUnauthorized, h.challenge(auth.ErrorCodeInvalidToken, "invalid token"))
	default:
		h.log.ErrorContext(ctx, "auth.check.err", slog.String("err", err.Error()))
		h.writeError(w, r, http.StatusInternalServerError, "server_error", "authentication unavailable")
	}
	return nil, false
}

const maxRequestIDLen = 128

// validRequestID accepts client ids of up to maxRequestIDLen characters drawn
// from [A-Za-z0-9._-]. Anything else is replaced with a fresh uuid.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		switch c := id[i]; {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

func (h *Handler) challenge(code, description string) auth.Challenge {
	c := auth.Challenge{Realm: h.realm, Error: code}
	if h.prmDocumentURL != nil {
		c.ResourceMetadata = h.prmDocumentURL.String()
	}
	if code != "" {
		c.ErrorDescription = description
	}
	return c
}

func (h *Handler) writeChallenge(w http.ResponseWriter, r *http.Request, status int, c auth.Challenge) {
	w.Header().Add(wwwAuthenticateHeader, c.String())
	code := c.Error
	if code == "" {
		code = "unauthorized"
	}
	desc := c.ErrorDescription
	if desc == "" {
		desc = http.StatusText(status)
	}
	h.writeError(w, r, status, code, desc)
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// writeError renders an error body as JSON when the client prefers it and as
// plain text otherwise.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, description string) {
	mt, _, err := contenttype.GetAcceptableMediaType(r, errorMediaTypes)
	if err == nil && mt.Type == jsonMediaType.Type && mt.Subtype == jsonMediaType.Subtype {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(errorBody{Error: code, ErrorDescription: description}); err != nil {
			h.log.ErrorContext(r.Context(), "error.write.fail", slog.String("err", err.Error()))
		}
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = fmt.Fprintln(w, description)
}

// handleProtectedResourceMetadata serves the RFC 9728 document. It is public.
func (h *Handler) handleProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		h.writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", http.StatusText(http.StatusMethodNotAllowed))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodHead {
		return
	}
	if err := json.NewEncoder(w).Encode(h.prmDocument); err != nil {
		h.log.ErrorContext(r.Context(), "prm.write.fail", slog.String("err", err.Error()))
	}
}

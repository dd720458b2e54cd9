package resourceserver_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ggoodman/realm-resource-server/auth"
	"github.com/ggoodman/realm-resource-server/auth/authtest"
	"github.com/ggoodman/realm-resource-server/authz"
	"github.com/ggoodman/realm-resource-server/resourceserver"
	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// whoami echoes the principal seen by the application handler.
func whoami() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := map[string]any{"path": r.URL.Path}
		if ui, ok := resourceserver.PrincipalFrom(r.Context()); ok {
			out["sub"] = ui.UserID()
			out["authorities"] = ui.Authorities()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
}

func staticAuth() *authtest.Static {
	return authtest.NewStatic(nil).
		AddRoles("admin-token", "alice", "admin", "user").
		AddRoles("user-token", "bob", "user").
		Add("bare-token", "svc", nil).
		Add("malformed-token", "mal", map[string]any{"realm_access": map[string]any{"roles": "admin"}})
}

func mustHandler(t *testing.T, a auth.Authenticator, pol *authz.Policy, opts ...resourceserver.Option) *resourceserver.Handler {
	t.Helper()
	opts = append([]resourceserver.Option{resourceserver.WithLogger(discardLogger())}, opts...)
	h, err := resourceserver.New(a, pol, whoami(), opts...)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return h
}

func do(t *testing.T, h http.Handler, path, authorization string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		r.Header.Set("Authorization", authorization)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		r.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestDefaultPolicy_AccessMatrix(t *testing.T) {
	h := mustHandler(t, staticAuth(), nil)

	cases := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"admin role on admin path", "/admin/x", "admin-token", http.StatusOK},
		{"user role on admin path", "/admin/x", "user-token", http.StatusForbidden},
		{"no roles on admin path", "/admin/x", "bare-token", http.StatusForbidden},
		{"malformed roles on admin path", "/admin/x", "malformed-token", http.StatusForbidden},
		{"admin root", "/admin", "user-token", http.StatusForbidden},
		{"user elsewhere", "/orders/1", "user-token", http.StatusOK},
		{"no roles elsewhere", "/orders/1", "bare-token", http.StatusOK},
		{"malformed roles elsewhere", "/orders/1", "malformed-token", http.StatusOK},
		{"admin elsewhere", "/", "admin-token", http.StatusOK},
		{"anonymous admin path", "/admin/x", "", http.StatusUnauthorized},
		{"anonymous elsewhere", "/orders/1", "", http.StatusUnauthorized},
		{"unknown token", "/orders/1", "nope", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			creds := ""
			if tc.token != "" {
				creds = "Bearer " + tc.token
			}
			w := do(t, h, tc.path, creds)
			if w.Code != tc.want {
				t.Fatalf("want %d, got %d (%s)", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestPrincipalForwarded(t *testing.T) {
	h := mustHandler(t, staticAuth(), nil)
	w := do(t, h, "/admin/users", "Bearer admin-token")
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	var out struct {
		Sub         string   `json:"sub"`
		Authorities []string `json:"authorities"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Sub != "alice" {
		t.Fatalf("want alice, got %q", out.Sub)
	}
	if strings.Join(out.Authorities, ",") != "ROLE_ADMIN,ROLE_USER" {
		t.Fatalf("unexpected authorities %v", out.Authorities)
	}
}

func TestChallenges(t *testing.T) {
	h := mustHandler(t, staticAuth(), nil, resourceserver.WithRealm("demo"))

	cases := []struct {
		name          string
		authorization string
		path          string
		status        int
		challenge     string
	}{
		{"missing", "", "/x", http.StatusUnauthorized, `Bearer realm="demo"`},
		{"foreign scheme is anonymous", "Basic dXNlcjpwYXNz", "/x", http.StatusUnauthorized, `Bearer realm="demo"`},
		{"no token", "Bearer", "/x", http.StatusBadRequest, `Bearer realm="demo", error="invalid_request", error_description="malformed bearer authorization header"`},
		{"blank token", "Bearer    ", "/x", http.StatusBadRequest, `Bearer realm="demo", error="invalid_request", error_description="empty bearer token"`},
		{"invalid token", "Bearer nope", "/x", http.StatusUnauthorized, `Bearer realm="demo", error="invalid_token", error_description="invalid token"`},
		{"forbidden", "Bearer user-token", "/admin/x", http.StatusForbidden, `Bearer realm="demo", error="insufficient_scope", error_description="insufficient authority"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, h, tc.path, tc.authorization)
			if w.Code != tc.status {
				t.Fatalf("want %d, got %d", tc.status, w.Code)
			}
			if got := w.Header().Get("WWW-Authenticate"); got != tc.challenge {
				t.Fatalf("want challenge %s, got %s", tc.challenge, got)
			}
		})
	}
}

func TestBearerSchemeCaseInsensitive(t *testing.T) {
	h := mustHandler(t, staticAuth(), nil)
	if w := do(t, h, "/x", "bearer user-token"); w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
}

func TestErrorBodyNegotiation(t *testing.T) {
	h := mustHandler(t, staticAuth(), nil)

	w := do(t, h, "/admin/x", "Bearer user-token", "Accept", "application/json")
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("want json content type, got %q", ct)
	}
	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "insufficient_scope" || body.ErrorDescription != "insufficient authority" {
		t.Fatalf("unexpected body %+v", body)
	}

	w = do(t, h, "/x", "", "Accept", "application/json")
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "unauthorized" {
		t.Fatalf("unexpected body %+v", body)
	}

	w = do(t, h, "/admin/x", "Bearer user-token")
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("want text/plain by default, got %q", ct)
	}
	if strings.TrimSpace(w.Body.String()) != "insufficient authority" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}

func TestRequestID(t *testing.T) {
	h := mustHandler(t, staticAuth(), nil)
	w := do(t, h, "/x", "Bearer user-token")
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id")
	}
	w = do(t, h, "/x", "Bearer user-token", "X-Request-Id", "abc-123")
	if got := w.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Fatalf("want propagated request id, got %q", got)
	}
	w = do(t, h, "/x", "Bearer user-token", "X-Request-Id", "trace_01.a")
	if got := w.Header().Get("X-Request-Id"); got != "trace_01.a" {
		t.Fatalf("want propagated request id, got %q", got)
	}
}

func TestRequestID_UntrustedValuesReplaced(t *testing.T) {
	h := mustHandler(t, staticAuth(), nil)
	for name, id := range map[string]string{
		"too long":    strings.Repeat("a", 129),
		"space":       "abc 123",
		"quote":       `abc"123`,
		"non ascii":   "abc\u00e9",
		"log newline": "abc\ninjected=1",
	} {
		t.Run(name, func(t *testing.T) {
			w := do(t, h, "/x", "Bearer user-token", "X-Request-Id", id)
			got := w.Header().Get("X-Request-Id")
			if got == id || got == "" {
				t.Fatalf("expected a generated id, got %q", got)
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("generated id is not a uuid: %q", got)
			}
		})
	}
	w := do(t, h, "/x", "Bearer user-token", "X-Request-Id", strings.Repeat("a", 128))
	if got := w.Header().Get("X-Request-Id"); got != strings.Repeat("a", 128) {
		t.Fatalf("128 characters should be accepted, got %q", got)
	}
}

func TestPublicPaths(t *testing.T) {
	h := mustHandler(t, staticAuth(), nil, resourceserver.WithPublicPaths("/healthz", "/docs/**"))

	if w := do(t, h, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("want 200 for public path, got %d", w.Code)
	}
	if w := do(t, h, "/docs/api/index.html", "Bearer nope"); w.Code != http.StatusOK {
		t.Fatalf("public paths ignore credentials, got %d", w.Code)
	}
	if w := do(t, h, "/docs/../admin/x", "Bearer user-token"); w.Code != http.StatusForbidden {
		t.Fatalf("dot segments must not reach a public pattern, got %d", w.Code)
	}
}

func TestPermitAllRule(t *testing.T) {
	pol := authz.NewPolicy(
		authz.When(authz.PathPattern("/catalog/**"), authz.PermitAll()),
		authz.When(authz.AnyRequest(), authz.Authenticated()),
	)
	h := mustHandler(t, staticAuth(), pol)

	w := do(t, h, "/catalog/items", "")
	if w.Code != http.StatusOK {
		t.Fatalf("anonymous should reach a permitAll route, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), `"sub"`) {
		t.Fatalf("anonymous request must not carry a principal: %s", w.Body.String())
	}

	// Non-bearer credentials are not ours to judge.
	if w := do(t, h, "/catalog/items", "Basic dXNlcjpwYXNz"); w.Code != http.StatusOK {
		t.Fatalf("foreign scheme on permitAll route: want 200, got %d", w.Code)
	}

	// A presented token is still verified on permitAll routes.
	if w := do(t, h, "/catalog/items", "Bearer nope"); w.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token on permitAll route: want 401, got %d", w.Code)
	}
	w = do(t, h, "/catalog/items", "Bearer user-token")
	if !strings.Contains(w.Body.String(), `"sub":"bob"`) {
		t.Fatalf("expected principal on permitAll route: %s", w.Body.String())
	}
}

type failingAuth struct{}

func (failingAuth) CheckAuthentication(ctx context.Context, tok string) (auth.UserInfo, error) {
	return nil, io.ErrUnexpectedEOF
}

type scopeAuth struct{}

func (scopeAuth) CheckAuthentication(ctx context.Context, tok string) (auth.UserInfo, error) {
	return nil, auth.ErrInsufficientScope
}

func TestAuthenticatorErrors(t *testing.T) {
	if w := do(t, mustHandler(t, failingAuth{}, nil), "/x", "Bearer t"); w.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", w.Code)
	}
	w := do(t, mustHandler(t, scopeAuth{}, nil), "/x", "Bearer t")
	if w.Code != http.StatusForbidden {
		t.Fatalf("want 403, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("WWW-Authenticate"), `error="insufficient_scope"`) {
		t.Fatalf("unexpected challenge %q", w.Header().Get("WWW-Authenticate"))
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := resourceserver.New(nil, nil, whoami()); err == nil {
		t.Fatalf("expected error for nil authenticator")
	}
	if _, err := resourceserver.New(staticAuth(), nil, nil); err == nil {
		t.Fatalf("expected error for nil next handler")
	}
	if _, err := resourceserver.New(staticAuth(), nil, whoami(), resourceserver.WithResourceMetadata("/relative")); err == nil {
		t.Fatalf("expected error for relative resource url")
	}
}

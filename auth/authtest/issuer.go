package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

const (
	discoveryPath = "/.well-known/openid-configuration"
	jwksPath      = "/protocol/openid-connect/certs"
	keyID         = "authtest-key"
)

// Issuer is an in-process OIDC provider serving discovery metadata and a
// JWKS for a single RSA signing key.
type Issuer struct {
	srv *httptest.Server
	key *rsa.PrivateKey
}

// NewIssuer starts an Issuer and registers its shutdown with t.Cleanup.
func NewIssuer(t testing.TB) *Issuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	jwks, err := json.Marshal(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &key.PublicKey,
		KeyID:     keyID,
		Algorithm: "RS256",
		Use:       "sig",
	}}})
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}

	iss := &Issuer{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc(discoveryPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                   iss.URL(),
			"jwks_uri":                 iss.JWKSURL(),
			"authorization_endpoint":   iss.URL() + "/protocol/openid-connect/auth",
			"token_endpoint":           iss.URL() + "/protocol/openid-connect/token",
			"response_types_supported": []string{"code"},
			"scopes_supported":         []string{"openid", "profile", "roles"},
		})
	})
	mux.HandleFunc(jwksPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwks)
	})
	iss.srv = httptest.NewServer(mux)
	t.Cleanup(iss.srv.Close)
	return iss
}

// URL returns the issuer identifier.
func (i *Issuer) URL() string { return i.srv.URL }

// JWKSURL returns the location of the issuer's key set.
func (i *Issuer) JWKSURL() string { return i.srv.URL + jwksPath }

// Token signs an access token for sub carrying the given realm roles, valid
// for one hour.
func (i *Issuer) Token(t testing.TB, sub string, roles ...string) string {
	t.Helper()
	claims := jwt.MapClaims(RealmAccess(roles...))
	claims["sub"] = sub
	return i.Sign(t, claims)
}

// Sign signs claims with the issuer key. iss, iat and exp are filled in
// when absent.
func (i *Issuer) Sign(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	now := time.Now()
	if _, ok := claims["iss"]; !ok {
		claims["iss"] = i.URL()
	}
	if _, ok := claims["iat"]; !ok {
		claims["iat"] = now.Unix()
	}
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = now.Add(time.Hour).Unix()
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = keyID
	s, err := tok.SignedString(i.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

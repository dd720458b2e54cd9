package config_test

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/ggoodman/realm-resource-server/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OIDC_ISSUER", "https://idp.example.com/realms/demo")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen addr: %q", cfg.ListenAddr)
	}
	if !slices.Equal(cfg.AllowedAlgs, []string{"RS256"}) {
		t.Fatalf("algs: %v", cfg.AllowedAlgs)
	}
	if cfg.Leeway != 60*time.Second || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("durations: %v %v", cfg.Leeway, cfg.ShutdownTimeout)
	}
	if len(cfg.Audiences) != 0 || cfg.JWKSURL != "" || cfg.ResourceURL != "" {
		t.Fatalf("unexpected optional values: %+v", cfg)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level: %q", cfg.LogLevel)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("OIDC_ISSUER", " https://idp.example.com/realms/demo ")
	t.Setenv("OIDC_AUDIENCES", "orders-api, account")
	t.Setenv("OIDC_JWKS_URL", "https://idp.example.com/realms/demo/protocol/openid-connect/certs")
	t.Setenv("OIDC_ALLOWED_ALGS", "RS256,ES256")
	t.Setenv("OIDC_LEEWAY", "5s")
	t.Setenv("RESOURCE_URL", "https://api.example.com")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Issuer != "https://idp.example.com/realms/demo" {
		t.Fatalf("issuer: %q", cfg.Issuer)
	}
	if !slices.Equal(cfg.Audiences, []string{"orders-api", "account"}) {
		t.Fatalf("audiences: %v", cfg.Audiences)
	}
	if !slices.Equal(cfg.AllowedAlgs, []string{"RS256", "ES256"}) {
		t.Fatalf("algs: %v", cfg.AllowedAlgs)
	}
	if cfg.Leeway != 5*time.Second || cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("durations: %v %v", cfg.Leeway, cfg.ShutdownTimeout)
	}
	lvl, err := cfg.SlogLevel()
	if err != nil || lvl.String() != "DEBUG" {
		t.Fatalf("level: %v %v", lvl, err)
	}
}

func TestLoad_RequiresIssuer(t *testing.T) {
	t.Setenv("OIDC_ISSUER", "")
	t.Setenv("LISTEN_ADDR", ":8081")
	if _, err := config.Load(); err == nil {
		t.Fatal("expected error without OIDC_ISSUER")
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := &config.Config{
		Issuer:          "not-a-url",
		JWKSURL:         "/certs",
		AllowedAlgs:     []string{"none"},
		Leeway:          -time.Second,
		LogLevel:        "loud",
		ShutdownTimeout: 0,
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"OIDC_ISSUER", "OIDC_JWKS_URL", `"none"`, "OIDC_LEEWAY", "SHUTDOWN_TIMEOUT", "LOG_LEVEL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_CommaSeparatedLists(t *testing.T) {
	cases := []struct {
		name     string
		algs     string
		auds     string
		wantAlgs []string
		wantAuds []string
	}{
		{"no spaces", "RS256,ES256", "a,b", []string{"RS256", "ES256"}, []string{"a", "b"}},
		{"spaces and empties", " RS256 , ,ES256 ", "a, ,b,", []string{"RS256", "ES256"}, []string{"a", "b"}},
		{"single element", "ES256", "orders-api", []string{"ES256"}, []string{"orders-api"}},
		{"no audiences", "RS256", "", []string{"RS256"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("OIDC_ISSUER", "https://idp.example.com/realms/demo")
			t.Setenv("OIDC_ALLOWED_ALGS", tc.algs)
			t.Setenv("OIDC_AUDIENCES", tc.auds)

			cfg, err := config.Load()
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if !slices.Equal(cfg.AllowedAlgs, tc.wantAlgs) {
				t.Fatalf("algs: got %q want %q", cfg.AllowedAlgs, tc.wantAlgs)
			}
			if !slices.Equal(cfg.Audiences, tc.wantAuds) {
				t.Fatalf("audiences: got %q want %q", cfg.Audiences, tc.wantAuds)
			}
		})
	}
}

func TestLoad_RejectsEmptyAlgList(t *testing.T) {
	t.Setenv("OIDC_ISSUER", "https://idp.example.com/realms/demo")
	t.Setenv("OIDC_ALLOWED_ALGS", " , ")
	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for an algorithm list with no entries")
	}
}

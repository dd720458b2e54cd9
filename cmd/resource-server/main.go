// Command resource-server fronts a small JSON application with bearer token
// verification and realm-role authorization.
//
// Requests under /admin require the realm role "admin"; every other path
// requires a valid access token. Configuration is read from the environment,
// see internal/config.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/ggoodman/realm-resource-server/auth"
	"github.com/ggoodman/realm-resource-server/authz"
	"github.com/ggoodman/realm-resource-server/internal/config"
	"github.com/ggoodman/realm-resource-server/internal/server"
	"github.com/ggoodman/realm-resource-server/resourceserver"
)

const serviceName = "resource-server"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	lvl, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	authn, err := newAuthenticator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("authenticator: %w", err)
	}

	opts := []resourceserver.Option{
		resourceserver.WithLogger(logger),
		resourceserver.WithServerName(serviceName),
	}
	if cfg.ResourceURL != "" {
		opts = append(opts, resourceserver.WithResourceMetadata(cfg.ResourceURL))
	}
	h, err := resourceserver.New(authn, authz.DefaultPolicy(), newApp(), opts...)
	if err != nil {
		return err
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	return server.Run(ctx, server.Params{
		Name:            serviceName,
		Handler:         h,
		Logger:          logger,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, ln)
}

// newAuthenticator uses OIDC discovery unless a JWKS URL is configured.
func newAuthenticator(ctx context.Context, cfg *config.Config) (auth.Authenticator, error) {
	opts := []auth.AccessTokenAuthOption{
		auth.WithAllowedAlgs(cfg.AllowedAlgs...),
		auth.WithLeeway(cfg.Leeway),
	}
	if len(cfg.Audiences) > 0 {
		opts = append(opts, auth.WithAudiences(cfg.Audiences...))
	}
	if cfg.JWKSURL == "" {
		return auth.NewFromDiscovery(ctx, cfg.Issuer, opts...)
	}
	sec := auth.SecurityConfig{
		Issuer:      cfg.Issuer,
		Audiences:   cfg.Audiences,
		AllowedAlgs: cfg.AllowedAlgs,
		JWKSURL:     cfg.JWKSURL,
		Leeway:      cfg.Leeway,
	}
	return sec.NewManualJWTAuthenticator(ctx, opts...)
}

package resourceserver

import (
	"context"

	"github.com/ggoodman/realm-resource-server/auth"
)

type principalKey struct{}

// PrincipalFrom returns the authenticated caller stored by the Handler. It
// reports false for anonymous requests (public paths or PermitAll rules
// reached without credentials).
func PrincipalFrom(ctx context.Context) (auth.UserInfo, bool) {
	ui, ok := ctx.Value(principalKey{}).(auth.UserInfo)
	return ui, ok && ui != nil
}

func withPrincipal(ctx context.Context, ui auth.UserInfo) context.Context {
	return context.WithValue(ctx, principalKey{}, ui)
}

package cli

import (
	"context"

	"github.com/compozy/webhookflow/pkg/config"
)

type managerCtxKey struct{}

// contextWithManager returns a copy of ctx carrying mgr, so subcommands can
// recover both the resolved Config and its Service (for GetSource-based
// precedence checks) without a global lookup.
func contextWithManager(ctx context.Context, mgr *config.Manager) context.Context {
	return context.WithValue(ctx, managerCtxKey{}, mgr)
}

// managerFromContext recovers the Manager attached by setupGlobalConfig.
func managerFromContext(ctx context.Context) *config.Manager {
	mgr, _ := ctx.Value(managerCtxKey{}).(*config.Manager)
	return mgr
}

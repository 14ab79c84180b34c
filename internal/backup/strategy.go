package backup

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/tweakctl/internal/ledger"
	"git.home.luguber.info/inful/tweakctl/internal/ownership"
	"git.home.luguber.info/inful/tweakctl/internal/scope"
)

// Selector decides, at capture time, how a file mutation will be reversed.
// The decision is frozen into the backup metadata; restore must never
// re-derive it because the live ownership state may have changed since.
type Selector struct {
	ctx      *scope.Context
	resolver *ownership.Resolver
}

// NewSelector builds a Selector. resolver may be nil, in which case the
// package strategy is never chosen.
func NewSelector(ctx *scope.Context, resolver *ownership.Resolver) *Selector {
	return &Selector{ctx: ctx, resolver: resolver}
}

// Select picks the reset strategy for path. The returned package name is
// non-empty only for the package strategy. Ownership detection failure must
// never abort an apply, so every degraded case falls back to the backup
// strategy.
func (s *Selector) Select(cx context.Context, path string, createdByUs bool) (ledger.Strategy, string) {
	if createdByUs {
		return ledger.StrategyDelete, ""
	}
	if s.ctx.UnderHome(path) {
		return ledger.StrategyBackup, ""
	}
	if s.resolver == nil {
		return ledger.StrategyBackup, ""
	}
	info := s.resolver.Resolve(cx, path)
	if info.Owned && info.CanRestore {
		return ledger.StrategyPackage, info.Package
	}
	slog.Debug("Falling back to backup strategy", "path", path, "owned", info.Owned)
	return ledger.StrategyBackup, ""
}

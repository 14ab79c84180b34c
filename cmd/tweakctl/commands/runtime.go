package commands

import (
	"fmt"

	"git.home.luguber.info/inful/tweakctl/internal/backup"
	"git.home.luguber.info/inful/tweakctl/internal/bootcfg"
	"git.home.luguber.info/inful/tweakctl/internal/config"
	"git.home.luguber.info/inful/tweakctl/internal/engine"
	"git.home.luguber.info/inful/tweakctl/internal/ledger"
	"git.home.luguber.info/inful/tweakctl/internal/ownership"
	"git.home.luguber.info/inful/tweakctl/internal/registry"
	"git.home.luguber.info/inful/tweakctl/internal/restore"
	"git.home.luguber.info/inful/tweakctl/internal/scope"
	"git.home.luguber.info/inful/tweakctl/internal/sysexec"
	"git.home.luguber.info/inful/tweakctl/internal/systemd"
)

// runtime wires the engine components for one invocation.
type runtime struct {
	cfg      *config.Config
	ctx      *scope.Context
	ledger   *ledger.Ledger
	runner   sysexec.Runner
	boot     *bootcfg.Editor
	resolver *ownership.Resolver
	store    *backup.Store
}

func newRuntime(configPath string, s scope.Scope) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	ctx, err := scope.New(s, cfg.State.UserRoot, cfg.State.SystemRoot)
	if err != nil {
		return nil, err
	}

	runner := sysexec.New()
	resolver := ownership.NewResolver(runner, cfg.Timeouts.OwnershipQuery, ctx.Home)
	return &runtime{
		cfg:      cfg,
		ctx:      ctx,
		ledger:   ledger.New(ctx),
		runner:   runner,
		boot:     bootcfg.NewEditor(runner, cfg.Timeouts.BootRegenerate),
		resolver: resolver,
		store:    backup.NewStore(ctx, backup.NewSelector(ctx, resolver)),
	}, nil
}

func (r *runtime) engine() *engine.Engine {
	units := systemd.NewClient(r.runner, r.cfg.Timeouts.UnitControl, r.ctx.Scope == scope.User)
	return engine.New(r.ctx, r.store, units, r.boot, r.runner, r.cfg.Timeouts.UnitControl)
}

func (r *runtime) restorer() *restore.Engine {
	return restore.New(r.ctx, r.store, r.boot, r.runner, r.resolver,
		r.cfg.Timeouts.UnitControl, r.cfg.Timeouts.PackageReinstall)
}

func (r *runtime) registry() (*registry.Registry, error) {
	return registry.Load(r.cfg.Registry)
}

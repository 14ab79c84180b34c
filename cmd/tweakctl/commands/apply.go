package commands

import (
	"context"
	"fmt"
	"os"

	"git.home.luguber.info/inful/tweakctl/internal/report"
	"git.home.luguber.info/inful/tweakctl/internal/scope"
)

// ApplyCmd implements the 'apply' command (root scope).
type ApplyCmd struct {
	Knobs []string `arg:"" help:"Knob ids to apply"`
}

func (a *ApplyCmd) Run(_ *Global, root *CLI) error {
	return runApply(root.Config, scope.Root, "apply", a.Knobs)
}

// ApplyUserCmd implements the 'apply-user' command (user scope).
type ApplyUserCmd struct {
	Knobs []string `arg:"" help:"Knob ids to apply"`
}

func (a *ApplyUserCmd) Run(_ *Global, root *CLI) error {
	return runApply(root.Config, scope.User, "apply-user", a.Knobs)
}

func runApply(configPath string, s scope.Scope, verb string, knobs []string) error {
	rt, err := newRuntime(configPath, s)
	if err != nil {
		return err
	}
	reg, err := rt.registry()
	if err != nil {
		return err
	}

	result, err := rt.engine().ApplyBatch(context.Background(), rt.ledger, reg, knobs)
	if err != nil {
		return err
	}
	if err := report.Emit(os.Stdout, verb, result); err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d knobs failed", result.Failed, len(result.Results))
	}
	return nil
}

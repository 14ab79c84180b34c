package commands

import (
	"context"
	"os"

	"git.home.luguber.info/inful/tweakctl/internal/probe"
	"git.home.luguber.info/inful/tweakctl/internal/report"
	"git.home.luguber.info/inful/tweakctl/internal/scope"
)

// DetectCmd implements the 'detect' command.
type DetectCmd struct{}

func (d *DetectCmd) Run(_ *Global, root *CLI) error {
	rt, err := newRuntime(root.Config, scope.User)
	if err != nil {
		return err
	}
	reg, err := rt.registry()
	if err != nil {
		return err
	}

	prober := probe.New(rt.runner, rt.boot, rt.cfg.Timeouts.OwnershipQuery)
	statuses := prober.Detect(context.Background(), reg)
	return report.Emit(os.Stdout, "detect", statuses)
}

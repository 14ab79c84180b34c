package commands

import (
	"fmt"
	"os"

	"git.home.luguber.info/inful/tweakctl/internal/preview"
	"git.home.luguber.info/inful/tweakctl/internal/report"
	"git.home.luguber.info/inful/tweakctl/internal/scope"
)

// PreviewCmd implements the 'preview' command.
type PreviewCmd struct {
	Knobs []string `arg:"" help:"Knob ids to preview"`
}

func (p *PreviewCmd) Run(_ *Global, root *CLI) error {
	rt, err := newRuntime(root.Config, scope.User)
	if err != nil {
		return err
	}
	reg, err := rt.registry()
	if err != nil {
		return err
	}

	results := preview.New(rt.boot).Preview(reg, p.Knobs)
	if err := report.Emit(os.Stdout, "preview", results); err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d knobs could not be previewed", failed, len(results))
	}
	return nil
}

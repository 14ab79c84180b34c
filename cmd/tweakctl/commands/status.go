package commands

import (
	"os"

	"git.home.luguber.info/inful/tweakctl/internal/report"
	"git.home.luguber.info/inful/tweakctl/internal/scope"
)

// StatusCmd implements the 'status' command.
type StatusCmd struct{}

type statusReport struct {
	Privileged     bool           `json:"privileged"`
	UserRoot       string         `json:"user_root"`
	SystemRoot     string         `json:"system_root"`
	PackageManager string         `json:"package_manager"`
	BootStyle      string         `json:"boot_style,omitempty"`
	Transactions   map[string]int `json:"transactions"`
}

func (s *StatusCmd) Run(_ *Global, root *CLI) error {
	rt, err := newRuntime(root.Config, scope.User)
	if err != nil {
		return err
	}

	status := statusReport{
		Privileged:     rt.ctx.Privileged(),
		UserRoot:       rt.ctx.UserRoot,
		SystemRoot:     rt.ctx.SystemRoot,
		PackageManager: string(rt.resolver.DetectManager()),
		Transactions:   map[string]int{},
	}
	if style, _, err := rt.boot.Detect(); err == nil {
		status.BootStyle = string(style)
	}
	for _, sc := range []scope.Scope{scope.User, scope.Root} {
		txs, err := rt.ledger.List(sc)
		if err != nil {
			return err
		}
		status.Transactions[string(sc)] = len(txs)
	}
	return report.Emit(os.Stdout, "status", status)
}

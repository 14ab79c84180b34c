package commands

import (
	"os"

	"git.home.luguber.info/inful/tweakctl/internal/report"
	"git.home.luguber.info/inful/tweakctl/internal/scope"
	"git.home.luguber.info/inful/tweakctl/internal/views"
)

// ListChangesCmd implements the 'list-changes' command.
type ListChangesCmd struct{}

func (l *ListChangesCmd) Run(_ *Global, root *CLI) error {
	rt, err := newRuntime(root.Config, scope.User)
	if err != nil {
		return err
	}
	changes, err := views.Audit(rt.ledger)
	if err != nil {
		return err
	}
	return report.Emit(os.Stdout, "list-changes", changes)
}

// ListPendingCmd implements the 'list-pending' command.
type ListPendingCmd struct{}

func (l *ListPendingCmd) Run(_ *Global, root *CLI) error {
	rt, err := newRuntime(root.Config, scope.User)
	if err != nil {
		return err
	}
	pending, err := views.Pending(rt.ledger)
	if err != nil {
		return err
	}
	return report.Emit(os.Stdout, "list-pending", pending)
}

package commands

import (
	"context"
	"fmt"
	"os"

	"git.home.luguber.info/inful/tweakctl/internal/report"
	"git.home.luguber.info/inful/tweakctl/internal/scope"
)

// RestoreCmd implements the 'restore' command.
type RestoreCmd struct {
	TxID string `arg:"" name:"txid" help:"Transaction id to restore"`
}

func (r *RestoreCmd) Run(_ *Global, root *CLI) error {
	rt, err := newRuntime(root.Config, scope.User)
	if err != nil {
		return err
	}

	result, err := rt.restorer().RestoreTransaction(context.Background(), rt.ledger, r.TxID)
	if err != nil {
		return err
	}
	if err := report.Emit(os.Stdout, "restore", result); err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("%d items failed to restore", len(result.Errors))
	}
	return nil
}

// RestoreKnobCmd implements the 'restore-knob' command.
type RestoreKnobCmd struct {
	Knob string `arg:"" name:"id" help:"Knob id to restore"`
}

func (r *RestoreKnobCmd) Run(_ *Global, root *CLI) error {
	rt, err := newRuntime(root.Config, scope.User)
	if err != nil {
		return err
	}

	result, err := rt.restorer().RestoreKnob(context.Background(), rt.ledger, r.Knob)
	if err != nil {
		return err
	}
	if err := report.Emit(os.Stdout, "restore-knob", result); err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("%d items failed to restore", len(result.Errors))
	}
	return nil
}

// ResetDefaultsCmd implements the 'reset-defaults' command.
type ResetDefaultsCmd struct {
	Scope string `help:"Scope to reset" enum:"user,root,all" default:"all"`
}

func (r *ResetDefaultsCmd) Run(_ *Global, root *CLI) error {
	rt, err := newRuntime(root.Config, scope.User)
	if err != nil {
		return err
	}

	var scopes []scope.Scope
	switch r.Scope {
	case "user":
		scopes = []scope.Scope{scope.User}
	case "root":
		scopes = []scope.Scope{scope.Root}
	default:
		scopes = []scope.Scope{scope.User, scope.Root}
	}

	results, err := rt.restorer().ResetDefaults(context.Background(), rt.ledger, scopes)
	if err != nil {
		return err
	}
	if err := report.Emit(os.Stdout, "reset-defaults", results); err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		failed += len(res.Errors)
	}
	if failed > 0 {
		return fmt.Errorf("%d items failed to restore", failed)
	}
	return nil
}

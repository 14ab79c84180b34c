package engine

import (
	"context"
	"errors"
	"log/slog"

	tkerrors "git.home.luguber.info/inful/tweakctl/internal/errors"
	"git.home.luguber.info/inful/tweakctl/internal/ledger"
	"git.home.luguber.info/inful/tweakctl/internal/registry"
)

// KnobResult is one knob's outcome within a batch.
type KnobResult struct {
	KnobID  string `json:"knob_id"`
	Applied bool   `json:"applied"`
	Error   string `json:"error,omitempty"`
}

// BatchResult summarizes one apply invocation.
type BatchResult struct {
	TxID    string       `json:"txid"`
	Results []KnobResult `json:"results"`
	Failed  int          `json:"failed"`
}

// ApplyBatch applies the requested knobs inside one fresh transaction. Knobs
// succeed or fail independently: one failure never rolls back its
// predecessors, and the manifest is written at the end regardless, recording
// every mutation that happened. Mutations of knobs that then failed are
// recorded too, so they stay reversible.
func (e *Engine) ApplyBatch(cx context.Context, l *ledger.Ledger, reg *registry.Registry, ids []string) (*BatchResult, error) {
	if err := e.Gate(); err != nil {
		return nil, err
	}

	tx, err := l.Begin(e.ctx.Scope)
	if err != nil {
		return nil, err
	}

	manifest := ledger.NewManifest(tx.ID)
	result := &BatchResult{TxID: tx.ID}
	backedUp := make(map[string]bool)

	for _, id := range ids {
		kr := KnobResult{KnobID: id}

		knob, err := reg.Get(id)
		if err != nil {
			kr.Error = err.Error()
			result.Failed++
			result.Results = append(result.Results, kr)
			continue
		}

		out, err := e.Apply(cx, tx, knob)
		for _, b := range out.Backups {
			// A path captured by an earlier knob in this transaction is
			// already recorded with its true pre-state.
			if backedUp[b.Path] {
				continue
			}
			backedUp[b.Path] = true
			manifest.Backups = append(manifest.Backups, b)
		}
		manifest.Effects = append(manifest.Effects, out.Effects...)
		if err != nil {
			slog.Error("Knob apply failed", "knob", id, "error", err)
			kr.Error = err.Error()
			result.Failed++
		} else {
			kr.Applied = true
			manifest.Applied = append(manifest.Applied, id)
		}
		result.Results = append(result.Results, kr)
	}

	if err := tx.WriteManifest(manifest); err != nil {
		return result, errors.Join(err, tkerrors.New(tkerrors.CategoryState, tkerrors.SeverityFatal,
			"failed to persist transaction manifest"))
	}
	return result, nil
}

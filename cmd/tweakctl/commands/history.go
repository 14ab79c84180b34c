package commands

import (
	"log/slog"
	"os"

	"git.home.luguber.info/inful/tweakctl/internal/report"
	"git.home.luguber.info/inful/tweakctl/internal/scope"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct{}

type historyEntry struct {
	TxID    string      `json:"txid"`
	Scope   scope.Scope `json:"scope"`
	Applied []string    `json:"applied"`
	Backups int         `json:"backups"`
	Effects int         `json:"effects"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	rt, err := newRuntime(root.Config, scope.User)
	if err != nil {
		return err
	}

	txs, err := rt.ledger.List(scope.User, scope.Root)
	if err != nil {
		return err
	}

	entries := make([]historyEntry, 0, len(txs))
	for i := len(txs) - 1; i >= 0; i-- {
		tx := txs[i]
		m, err := tx.Manifest()
		if err != nil {
			slog.Warn("Skipping unreadable manifest", "txid", tx.ID, "error", err)
			continue
		}
		entries = append(entries, historyEntry{
			TxID:    tx.ID,
			Scope:   tx.Scope,
			Applied: m.Applied,
			Backups: len(m.Backups),
			Effects: len(m.Effects),
		})
	}
	return report.Emit(os.Stdout, "history", entries)
}

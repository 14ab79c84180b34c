package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

// Global context passed to subcommands if we need to share global state later.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"/etc/tweakctl/config.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Detect        DetectCmd        `cmd:"" help:"Probe the current state of every knob (read-only)"`
	Preview       PreviewCmd       `cmd:"" help:"Show what applying knobs would change, without touching the system"`
	Apply         ApplyCmd         `cmd:"" help:"Apply knobs in the root scope (requires elevated privilege)"`
	ApplyUser     ApplyUserCmd     `cmd:"" name:"apply-user" help:"Apply knobs in the user scope"`
	Restore       RestoreCmd       `cmd:"" help:"Restore a transaction by id"`
	RestoreKnob   RestoreKnobCmd   `cmd:"" name:"restore-knob" help:"Restore the oldest transaction that applied a knob"`
	ResetDefaults ResetDefaultsCmd `cmd:"" name:"reset-defaults" help:"Restore every transaction of the selected scopes"`
	History       HistoryCmd       `cmd:"" help:"List recorded transactions, newest first"`
	ListChanges   ListChangesCmd   `cmd:"" name:"list-changes" help:"List every change ever recorded"`
	ListPending   ListPendingCmd   `cmd:"" name:"list-pending" help:"List changes still live on this system"`
	Status        StatusCmd        `cmd:"" help:"Report engine, host and ledger status"`
}

// AfterApply runs after flag parsing; setup logging once. stdout stays
// reserved for the JSON document each verb emits.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

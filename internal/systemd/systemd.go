// Package systemd drives systemctl for unit state queries and mask/unmask
// toggles, in either the system or the per-user manager.
package systemd

import (
	"context"
	"fmt"
	"strings"
	"time"

	tkerrors "git.home.luguber.info/inful/tweakctl/internal/errors"
	"git.home.luguber.info/inful/tweakctl/internal/ledger"
	"git.home.luguber.info/inful/tweakctl/internal/sysexec"
)

// Client wraps systemctl invocations with a bounded timeout.
type Client struct {
	runner  sysexec.Runner
	timeout time.Duration
	user    bool
}

// NewClient builds a Client. user selects `systemctl --user`.
func NewClient(runner sysexec.Runner, timeout time.Duration, user bool) *Client {
	return &Client{runner: runner, timeout: timeout, user: user}
}

func (c *Client) args(verb string, rest ...string) []string {
	out := make([]string, 0, len(rest)+2)
	if c.user {
		out = append(out, "--user")
	}
	out = append(out, verb)
	return append(out, rest...)
}

// UnitState queries a unit's current enabled/active state. is-enabled and
// is-active answer through their exit codes, so a non-zero exit here is an
// ordinary "no", not a failure.
func (c *Client) UnitState(ctx context.Context, unit string) (ledger.UnitState, error) {
	state := ledger.UnitState{Name: unit}

	res, err := c.runner.Run(ctx, c.timeout, "systemctl", c.args("is-enabled", unit)...)
	if err != nil {
		return state, tkerrors.Wrap(err, tkerrors.CategoryExternal, tkerrors.SeverityError,
			fmt.Sprintf("query enabled state of %s", unit))
	}
	state.WasEnabled = res.ExitCode == 0

	res, err = c.runner.Run(ctx, c.timeout, "systemctl", c.args("is-active", unit)...)
	if err != nil {
		return state, tkerrors.Wrap(err, tkerrors.CategoryExternal, tkerrors.SeverityError,
			fmt.Sprintf("query active state of %s", unit))
	}
	state.WasActive = res.ExitCode == 0

	return state, nil
}

// Masked reports whether a unit is currently masked. is-enabled prints the
// enablement state on stdout and answers through its exit code, so a non-zero
// exit is an ordinary answer, not a failure.
func (c *Client) Masked(ctx context.Context, unit string) (bool, error) {
	res, err := c.runner.Run(ctx, c.timeout, "systemctl", c.args("is-enabled", unit)...)
	if err != nil {
		return false, tkerrors.Wrap(err, tkerrors.CategoryExternal, tkerrors.SeverityError,
			fmt.Sprintf("query mask state of %s", unit))
	}
	return strings.TrimSpace(res.Stdout) == "masked", nil
}

// Mask masks a unit and stops it.
func (c *Client) Mask(ctx context.Context, unit string) error {
	if err := c.control(ctx, "mask", unit); err != nil {
		return err
	}
	return c.control(ctx, "stop", unit)
}

// Unmask removes a unit's mask.
func (c *Client) Unmask(ctx context.Context, unit string) error {
	return c.control(ctx, "unmask", unit)
}

// Enable enables a unit.
func (c *Client) Enable(ctx context.Context, unit string) error {
	return c.control(ctx, "enable", unit)
}

// Restart restarts a unit.
func (c *Client) Restart(ctx context.Context, unit string) error {
	return c.control(ctx, "restart", unit)
}

func (c *Client) control(ctx context.Context, verb, unit string) error {
	res, err := c.runner.Run(ctx, c.timeout, "systemctl", c.args(verb, unit)...)
	if err != nil {
		return tkerrors.Wrap(err, tkerrors.CategoryExternal, tkerrors.SeverityError,
			fmt.Sprintf("systemctl %s %s", verb, unit))
	}
	if res.ExitCode != 0 {
		return tkerrors.External(fmt.Errorf("exit status %d", res.ExitCode), res.Command, res.ExitCode, res.Stderr)
	}
	return nil
}

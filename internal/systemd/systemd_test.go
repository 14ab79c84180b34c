package systemd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	tkerrors "git.home.luguber.info/inful/tweakctl/internal/errors"
	"git.home.luguber.info/inful/tweakctl/internal/sysexec"
)

func TestUnitStateEnabledAndActive(t *testing.T) {
	fake := sysexec.NewFake().
		Respond("systemctl is-enabled tracker-miner-fs-3.service", 0, "enabled\n").
		Respond("systemctl is-active tracker-miner-fs-3.service", 0, "active\n")
	c := NewClient(fake, time.Second, false)

	state, err := c.UnitState(context.Background(), "tracker-miner-fs-3.service")
	require.NoError(t, err)
	require.True(t, state.WasEnabled)
	require.True(t, state.WasActive)
}

func TestUnitStateDisabledIsNotAnError(t *testing.T) {
	fake := sysexec.NewFake().
		Respond("systemctl is-enabled foo.service", 1, "disabled\n").
		Respond("systemctl is-active foo.service", 3, "inactive\n")
	c := NewClient(fake, time.Second, false)

	state, err := c.UnitState(context.Background(), "foo.service")
	require.NoError(t, err)
	require.False(t, state.WasEnabled)
	require.False(t, state.WasActive)
}

func TestUserScopePassesUserFlag(t *testing.T) {
	fake := sysexec.NewFake().
		Respond("systemctl --user is-enabled baloo.service", 0, "enabled\n").
		Respond("systemctl --user is-active baloo.service", 0, "active\n")
	c := NewClient(fake, time.Second, true)

	_, err := c.UnitState(context.Background(), "baloo.service")
	require.NoError(t, err)
	require.True(t, fake.Ran("systemctl --user is-enabled baloo.service"))
}

func TestMaskedReadsStdoutNotExitCode(t *testing.T) {
	fake := sysexec.NewFake().
		Respond("systemctl is-enabled masked.service", 1, "masked\n").
		Respond("systemctl is-enabled off.service", 1, "disabled\n")
	c := NewClient(fake, time.Second, false)

	masked, err := c.Masked(context.Background(), "masked.service")
	require.NoError(t, err)
	require.True(t, masked)

	masked, err = c.Masked(context.Background(), "off.service")
	require.NoError(t, err)
	require.False(t, masked)
}

func TestMaskMasksThenStops(t *testing.T) {
	fake := sysexec.NewFake()
	c := NewClient(fake, time.Second, false)

	require.NoError(t, c.Mask(context.Background(), "foo.service"))
	require.Equal(t, []string{"systemctl mask foo.service", "systemctl stop foo.service"}, fake.Calls)
}

func TestControlFailureIsExternal(t *testing.T) {
	fake := sysexec.NewFake().Respond("systemctl unmask foo.service", 1, "")
	c := NewClient(fake, time.Second, false)

	err := c.Unmask(context.Background(), "foo.service")
	require.True(t, tkerrors.IsCategory(err, tkerrors.CategoryExternal))
}

package risk

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestManager(limits Limits) *Manager {
	return New(limits, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCheckRejectsWhenDisarmed(t *testing.T) {
	m := newTestManager(Limits{})
	err := m.Check("BUY", 1, 100, 0, false)
	require.ErrorIs(t, err, ErrDisarmed)
}

func TestCheckDryRunBypassesStructuralChecksButNotKillSwitch(t *testing.T) {
	m := newTestManager(Limits{})
	// disarmed: dry-run must still be rejected.
	require.ErrorIs(t, m.Check("BUY", -5, -5, 0, true), ErrDisarmed)

	m.Arm()
	// armed + dry-run: invalid qty/price bypassed.
	require.NoError(t, m.Check("BUY", -5, -5, 0, true))
}

func TestCheckRejectsInvalidQuantityAndPrice(t *testing.T) {
	m := newTestManager(Limits{})
	m.Arm()
	require.Error(t, m.Check("BUY", 0, 100, 0, false))
	require.Error(t, m.Check("BUY", 1, 0, 0, false))
}

func TestCheckAcceptsValidArmedInstruction(t *testing.T) {
	m := newTestManager(Limits{})
	m.Arm()
	require.NoError(t, m.Check("BUY", 1, 100, 0, false))
}

func TestCheckEnforcesMaxOrderSize(t *testing.T) {
	m := newTestManager(Limits{MaxOrderSize: 0.5})
	m.Arm()
	require.Error(t, m.Check("BUY", 1, 100, 0, false))
	require.NoError(t, m.Check("BUY", 0.5, 100, 0, false))
}

func TestCheckEnforcesMaxPosition(t *testing.T) {
	m := newTestManager(Limits{MaxPosition: 1})
	m.Arm()
	require.NoError(t, m.Check("BUY", 1, 100, 0, false))
	require.Error(t, m.Check("BUY", 1, 100, 0.5, false))
	require.NoError(t, m.Check("SELL", 1, 100, 0.5, false))
}

func TestArmDisarmIdempotent(t *testing.T) {
	m := newTestManager(Limits{})
	m.Arm()
	m.Arm()
	require.True(t, m.IsArmed())
	m.Disarm()
	m.Disarm()
	require.False(t, m.IsArmed())
}

func TestNoHTTPRequestWhenDisarmed(t *testing.T) {
	// The gate itself never touches the network; this test documents the
	// invariant that Check returning an error is sufficient for callers
	// (the execution dispatcher) to never invoke the venue client.
	m := newTestManager(Limits{})
	err := m.Check("BUY", 1, 100, 0, false)
	require.Error(t, err)
}

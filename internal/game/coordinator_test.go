package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netsiege/netsiege/internal/player"
	"github.com/netsiege/netsiege/internal/protocol"
)

type nullOut struct{}

func (nullOut) SendMessage(protocol.Message) error { return nil }

func newTestRegistry(t *testing.T, ids ...string) *player.Registry {
	t.Helper()
	r := player.NewRegistry(0)
	for i, id := range ids {
		_, err := r.Add(id, "10.0.0."+string(rune('1'+i)), 40000+i, nullOut{})
		require.NoError(t, err)
	}
	return r
}

func playingStatus(round int) *matchStatus {
	s := newMatchStatus()
	s.setRound(round, ForRound(round))
	s.set(StatePlaying)
	return s
}

func newTestCoordinator(t *testing.T, timeout time.Duration, ids ...string) (*Coordinator, *player.Registry) {
	t.Helper()
	reg := newTestRegistry(t, ids...)
	return NewCoordinator(reg, playingStatus(1), timeout, 10001), reg
}

func denyReason(t *testing.T, err error) string {
	t.Helper()
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	return denied.Reason
}

func TestRequestApprovalGrants(t *testing.T) {
	c, reg := newTestCoordinator(t, time.Minute, "A", "B")

	ap, err := c.RequestApproval("A", "B")
	require.NoError(t, err)
	require.Equal(t, "A", ap.Attacker.ID())
	require.Equal(t, "B", ap.Target.ID())

	target, _ := reg.Lookup("B")
	require.Equal(t, 10001+target.Index(), ap.TargetPort)
	require.Contains(t, ap.AttackID, "A→B_")
	require.Equal(t, 1, c.PendingCount())
}

func TestRequestApprovalDeniesSelfAttackFirst(t *testing.T) {
	c, _ := newTestCoordinator(t, time.Minute, "A", "B")
	// Self-attack is rejected even before the phase check.
	c.status.set(StateWaiting)

	_, err := c.RequestApproval("A", "A")
	require.Equal(t, DenySelfAttack, denyReason(t, err))
}

func TestRequestApprovalDeniesOutsidePlayPhase(t *testing.T) {
	c, _ := newTestCoordinator(t, time.Minute, "A", "B")

	for _, state := range []State{StateWaiting, StatePreparation, StateDefense, StateRoundEnd} {
		c.status.set(state)
		_, err := c.RequestApproval("A", "B")
		require.Equal(t, DenyNotPlaying, denyReason(t, err), "state %s", state)
	}
}

func TestRequestApprovalDeniesUnknownTarget(t *testing.T) {
	c, _ := newTestCoordinator(t, time.Minute, "A", "B")

	_, err := c.RequestApproval("A", "ghost")
	require.Equal(t, DenyNoTarget, denyReason(t, err))
}

func TestAttackCapCountsOnlyCommitted(t *testing.T) {
	c, _ := newTestCoordinator(t, time.Minute, "A", "B")
	limit := ForRound(1).AttackLimit

	// Pending approvals do not consume the cap.
	for range limit + 1 {
		_, err := c.RequestApproval("A", "B")
		require.NoError(t, err)
	}

	// Committing up to the limit exhausts it.
	for range limit {
		ap, err := c.RequestApproval("A", "B")
		require.NoError(t, err)
		require.True(t, c.ConfirmSent(ap.AttackID))
		require.True(t, c.ConfirmReceived(ap.AttackID))
	}
	require.Equal(t, limit, c.Count("A"))

	_, err := c.RequestApproval("A", "B")
	require.Contains(t, denyReason(t, err), "cap reached")
}

func TestTwoPhaseCommit(t *testing.T) {
	c, reg := newTestCoordinator(t, time.Minute, "A", "B")

	ap, err := c.RequestApproval("A", "B")
	require.NoError(t, err)

	// One confirmation is not enough.
	require.True(t, c.ConfirmSent(ap.AttackID))
	require.Empty(t, c.Committed())
	require.Equal(t, 1, c.PendingCount())

	require.True(t, c.ConfirmReceived(ap.AttackID))
	committed := c.Committed()
	require.Len(t, committed, 1)
	require.Equal(t, "A", committed[0].AttackerID)
	require.Equal(t, "B", committed[0].TargetID)
	require.Zero(t, c.PendingCount())

	// The target's round record carries the attacker's address.
	target, _ := reg.Lookup("B")
	attacker, _ := reg.Lookup("A")
	require.Equal(t, []string{attacker.Host()}, target.AttacksReceived())
}

func TestConfirmOrderIrrelevant(t *testing.T) {
	c, _ := newTestCoordinator(t, time.Minute, "A", "B")

	ap, err := c.RequestApproval("A", "B")
	require.NoError(t, err)
	require.True(t, c.ConfirmReceived(ap.AttackID))
	require.True(t, c.ConfirmSent(ap.AttackID))
	require.Len(t, c.Committed(), 1)
}

func TestHalfConfirmedAttackTimesOut(t *testing.T) {
	c, reg := newTestCoordinator(t, 20*time.Millisecond, "A", "B")

	ap, err := c.RequestApproval("A", "B")
	require.NoError(t, err)
	require.True(t, c.ConfirmSent(ap.AttackID))

	require.Eventually(t, func() bool { return c.PendingCount() == 0 },
		time.Second, time.Millisecond)

	// Never committed: no score-relevant trace on either side.
	require.Empty(t, c.Committed())
	require.Zero(t, c.Count("A"))
	target, _ := reg.Lookup("B")
	require.Empty(t, target.AttacksReceived())

	// Late confirmations for the expired id are ignored.
	require.False(t, c.ConfirmReceived(ap.AttackID))
}

func TestConfirmUnknownIDIgnored(t *testing.T) {
	c, _ := newTestCoordinator(t, time.Minute, "A", "B")
	require.False(t, c.ConfirmSent("no-such-id"))
	require.False(t, c.ConfirmReceived("no-such-id"))
	require.Empty(t, c.Committed())
}

func TestResetRoundClearsCommittedAndCounts(t *testing.T) {
	c, _ := newTestCoordinator(t, time.Minute, "A", "B")

	ap, err := c.RequestApproval("A", "B")
	require.NoError(t, err)
	c.ConfirmSent(ap.AttackID)
	c.ConfirmReceived(ap.AttackID)
	require.Len(t, c.Committed(), 1)

	c.ResetRound()
	require.Empty(t, c.Committed())
	require.Zero(t, c.Count("A"))
}

func TestShutdownDropsPending(t *testing.T) {
	c, _ := newTestCoordinator(t, time.Hour, "A", "B")

	_, err := c.RequestApproval("A", "B")
	require.NoError(t, err)
	require.Equal(t, 1, c.PendingCount())

	c.Shutdown()
	require.Zero(t, c.PendingCount())
}

func TestAttackIDsUnique(t *testing.T) {
	c, _ := newTestCoordinator(t, time.Minute, "A", "B")

	seen := make(map[string]struct{})
	for range 10 {
		ap, err := c.RequestApproval("A", "B")
		require.NoError(t, err)
		_, dup := seen[ap.AttackID]
		require.False(t, dup, "duplicate attack id %s", ap.AttackID)
		seen[ap.AttackID] = struct{}{}
	}
}

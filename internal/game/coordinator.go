package game

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/netsiege/netsiege/internal/metrics"
	"github.com/netsiege/netsiege/internal/player"
)

// Attack denial reasons, in the order they are checked.
const (
	DenySelfAttack   = "self-attack forbidden"
	DenyNotPlaying   = "not in play phase"
	DenyNoDifficulty = "no difficulty"
	DenyNoTarget     = "no such target"
	DenyAttackerGone = "attacker gone"
)

// DeniedError carries the reason an attack request was rejected.
// A denied attack never counts against the attacker's cap.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string { return "attack denied: " + e.Reason }

// CommittedAttack is one fully confirmed attack, appended in two-phase
// completion order and cleared at round start.
type CommittedAttack struct {
	AttackerID   string
	TargetID     string
	AttackerAddr string
	Timestamp    time.Time
}

// Approval is the coordinator's grant for one attack.
type Approval struct {
	AttackID   string
	Attacker   *player.Player
	Target     *player.Player
	TargetPort int
}

type pendingAttack struct {
	attackerID   string
	targetID     string
	attackerAddr string
	targetAddr   string
	created      time.Time
	attackerSent bool
	targetRecv   bool
	timer        *time.Timer
}

// Coordinator owns the two-phase P2P attack protocol: approval with policy
// checks, per-attack pending state with a confirmation timeout, and the
// per-round committed list the scorer reads.
//
// Lock order: coordinator → registry, never the reverse.
type Coordinator struct {
	registry *player.Registry
	status   *matchStatus
	timeout  time.Duration
	basePort int

	mu        sync.Mutex
	pending   map[string]*pendingAttack
	committed []CommittedAttack
	counts    map[string]int
	seq       uint64
}

// NewCoordinator creates an attack coordinator. timeout bounds how long an
// attack may stay half-confirmed; basePort is the first P2P attack port.
func NewCoordinator(registry *player.Registry, status *matchStatus, timeout time.Duration, basePort int) *Coordinator {
	return &Coordinator{
		registry: registry,
		status:   status,
		timeout:  timeout,
		basePort: basePort,
		pending:  make(map[string]*pendingAttack),
		counts:   make(map[string]int),
	}
}

// RequestApproval runs the policy checks and, on success, registers a
// pending attack with an armed timeout. The caller delivers the
// ATTACK_APPROVED and INCOMING_ATTACK_WARNING messages outside any lock.
func (c *Coordinator) RequestApproval(attackerID, targetID string) (*Approval, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if attackerID == targetID {
		return nil, c.deny(attackerID, DenySelfAttack)
	}

	state, _, difficulty := c.status.snapshot()
	if state != StatePlaying {
		return nil, c.deny(attackerID, DenyNotPlaying)
	}
	if difficulty == nil {
		return nil, c.deny(attackerID, DenyNoDifficulty)
	}

	if count := c.counts[attackerID]; count >= difficulty.AttackLimit {
		return nil, c.deny(attackerID,
			fmt.Sprintf("cap reached (%d/%d)", count, difficulty.AttackLimit))
	}

	target, ok := c.registry.Lookup(targetID)
	if !ok {
		return nil, c.deny(attackerID, DenyNoTarget)
	}
	attacker, ok := c.registry.Lookup(attackerID)
	if !ok {
		return nil, c.deny(attackerID, DenyAttackerGone)
	}

	c.seq++
	attackID := fmt.Sprintf("%s→%s_%d_%d", attackerID, targetID, time.Now().Unix(), c.seq)

	pa := &pendingAttack{
		attackerID:   attackerID,
		targetID:     targetID,
		attackerAddr: attacker.Host(),
		targetAddr:   target.Host(),
		created:      time.Now(),
	}
	pa.timer = time.AfterFunc(c.timeout, func() { c.handleTimeout(attackID) })
	c.pending[attackID] = pa

	metrics.AttacksApproved.Inc()
	slog.Info("attack approved",
		"attackID", attackID,
		"attacker", attackerID,
		"target", targetID,
		"targetPort", c.basePort+target.Index())

	return &Approval{
		AttackID:   attackID,
		Attacker:   attacker,
		Target:     target,
		TargetPort: c.basePort + target.Index(),
	}, nil
}

func (c *Coordinator) deny(attackerID, reason string) error {
	metrics.AttacksDenied.WithLabelValues(reason).Inc()
	slog.Info("attack denied", "attacker", attackerID, "reason", reason)
	return &DeniedError{Reason: reason}
}

// ConfirmSent marks the attacker's half of the exchange.
// Unknown ids are ignored; the attack may already have timed out.
func (c *Coordinator) ConfirmSent(attackID string) bool {
	return c.confirm(attackID, func(pa *pendingAttack) { pa.attackerSent = true })
}

// ConfirmReceived marks the target's half of the exchange.
func (c *Coordinator) ConfirmReceived(attackID string) bool {
	return c.confirm(attackID, func(pa *pendingAttack) { pa.targetRecv = true })
}

func (c *Coordinator) confirm(attackID string, mark func(*pendingAttack)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	pa, ok := c.pending[attackID]
	if !ok {
		slog.Debug("confirm for unknown attack id", "attackID", attackID)
		return false
	}
	mark(pa)

	if pa.attackerSent && pa.targetRecv {
		c.commitLocked(attackID, pa)
	}
	return true
}

// commitLocked finalises a fully confirmed attack. Caller holds c.mu.
func (c *Coordinator) commitLocked(attackID string, pa *pendingAttack) {
	pa.timer.Stop()
	delete(c.pending, attackID)

	c.committed = append(c.committed, CommittedAttack{
		AttackerID:   pa.attackerID,
		TargetID:     pa.targetID,
		AttackerAddr: pa.attackerAddr,
		Timestamp:    time.Now(),
	})
	c.counts[pa.attackerID]++

	c.registry.RecordAttackReceived(pa.targetID, pa.attackerAddr)

	metrics.AttacksCommitted.Inc()
	slog.Info("attack committed",
		"attackID", attackID,
		"attacker", pa.attackerID,
		"target", pa.targetID,
		"roundCount", c.counts[pa.attackerID])
}

// handleTimeout discards a half-confirmed attack. The attack never counts,
// in either direction, and neither side is told.
func (c *Coordinator) handleTimeout(attackID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pa, ok := c.pending[attackID]
	if !ok {
		return // committed between timer fire and lock acquisition
	}
	delete(c.pending, attackID)

	metrics.AttacksTimedOut.Inc()
	slog.Info("attack timed out",
		"attackID", attackID,
		"attackerSent", pa.attackerSent,
		"targetReceived", pa.targetRecv)
}

// ResetRound clears the committed list and the per-player counters.
// Pending attacks are left to their timers.
func (c *Coordinator) ResetRound() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed = nil
	c.counts = make(map[string]int)
}

// Shutdown cancels all pending timers and drops pending state.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, pa := range c.pending {
		pa.timer.Stop()
		delete(c.pending, id)
	}
}

// Committed returns a snapshot of this round's committed attacks in
// two-phase completion order.
func (c *Coordinator) Committed() []CommittedAttack {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CommittedAttack, len(c.committed))
	copy(out, c.committed)
	return out
}

// Count returns the attacker's committed-attack count for this round.
func (c *Coordinator) Count(attackerID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[attackerID]
}

// PendingCount returns the number of attacks awaiting confirmation.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

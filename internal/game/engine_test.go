package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/netsiege/netsiege/internal/config"
	"github.com/netsiege/netsiege/internal/player"
	"github.com/netsiege/netsiege/internal/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder captures everything the engine emits.
type recorder struct {
	mu        sync.Mutex
	broadcast []protocol.Message
	sent      map[string][]protocol.Message
}

func newRecorder() *recorder {
	return &recorder{sent: make(map[string][]protocol.Message)}
}

func (r *recorder) Broadcast(m protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast = append(r.broadcast, m)
}

func (r *recorder) SendTo(p *player.Player, m protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[p.ID()] = append(r.sent[p.ID()], m)
}

func (r *recorder) broadcasts() []protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.Message, len(r.broadcast))
	copy(out, r.broadcast)
	return out
}

func (r *recorder) sentTo(id string) []protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.Message, len(r.sent[id]))
	copy(out, r.sent[id])
	return out
}

func (r *recorder) lastGameEnd() *protocol.GameEnd {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.broadcast) - 1; i >= 0; i-- {
		if ge, ok := r.broadcast[i].(*protocol.GameEnd); ok {
			return ge
		}
	}
	return nil
}

func fastConfig() config.GameServer {
	cfg := config.Default()
	cfg.PreparationTime = 10 * time.Millisecond
	cfg.RoundTime = 60 * time.Millisecond
	cfg.DefenseTime = 15 * time.Millisecond
	cfg.GameStartPause = 5 * time.Millisecond
	cfg.RoundEndPause = 5 * time.Millisecond
	cfg.AttackTimeout = 50 * time.Millisecond
	return cfg
}

func newTestEngine(t *testing.T, ids ...string) (*Engine, *player.Registry, *recorder) {
	t.Helper()
	reg := newTestRegistry(t, ids...)
	rec := newRecorder()
	e := NewEngine(fastConfig(), reg, rec.Broadcast, rec.SendTo)
	return e, reg, rec
}

func TestStartRequiresTwoPlayers(t *testing.T) {
	e, _, _ := newTestEngine(t, "A")
	require.ErrorIs(t, e.Start(), ErrNotEnoughPlayers)
	require.Equal(t, StateWaiting, e.State())
}

func TestStartRejectsSecondMatch(t *testing.T) {
	e, _, _ := newTestEngine(t, "A", "B")
	require.NoError(t, e.Start())
	defer e.Stop()

	require.ErrorIs(t, e.Start(), ErrMatchRunning)
}

func TestFullMatchRunsAllRounds(t *testing.T) {
	e, _, rec := newTestEngine(t, "A", "B")
	require.NoError(t, e.Start())
	defer e.Stop()

	require.Eventually(t, func() bool { return rec.lastGameEnd() != nil },
		5*time.Second, 5*time.Millisecond)
	require.Equal(t, StateGameEnd, e.State())

	rounds, ends := 0, 0
	for _, m := range rec.broadcasts() {
		switch m.(type) {
		case *protocol.RoundStart:
			rounds++
		case *protocol.RoundEnd:
			ends++
		}
	}
	require.Equal(t, 5, rounds)
	require.Equal(t, 5, ends)

	ge := rec.lastGameEnd()
	require.Len(t, ge.Rankings, 2)
	require.NotNil(t, ge.Winner)
	require.Equal(t, ge.Rankings[0].PlayerID, *ge.Winner)
	for i, rk := range ge.Rankings {
		require.Equal(t, i+1, rk.Rank)
	}
}

func TestCommittedAttackScoresDefender(t *testing.T) {
	e, reg, rec := newTestEngine(t, "A", "B")
	require.NoError(t, e.Start())
	defer e.Stop()

	// Wait for round 1 play phase, run the full two-phase exchange, and
	// file B's defense naming A's observed address.
	require.Eventually(t, func() bool { return e.State() == StatePlaying },
		time.Second, time.Millisecond)

	ap, err := e.Coordinator().RequestApproval("A", "B")
	require.NoError(t, err)
	require.True(t, e.Coordinator().ConfirmSent(ap.AttackID))
	require.True(t, e.Coordinator().ConfirmReceived(ap.AttackID))

	attacker, _ := reg.Lookup("A")
	e.SubmitDefense("B", []string{attacker.Host()})

	require.Eventually(t, func() bool {
		for _, m := range rec.sentTo("B") {
			if sc, ok := m.(*protocol.Score); ok && sc.Score > 0 {
				return sc.Correct
			}
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)

	b, _ := reg.Lookup("B")
	require.Equal(t, 10, b.Score())
	require.Equal(t, 100, b.HP())
}

func TestMissedAttackDrainsHP(t *testing.T) {
	e, reg, rec := newTestEngine(t, "A", "B")
	require.NoError(t, e.Start())
	defer e.Stop()

	require.Eventually(t, func() bool { return e.State() == StatePlaying },
		time.Second, time.Millisecond)

	ap, err := e.Coordinator().RequestApproval("A", "B")
	require.NoError(t, err)
	require.True(t, e.Coordinator().ConfirmSent(ap.AttackID))
	require.True(t, e.Coordinator().ConfirmReceived(ap.AttackID))
	// No defense from B: the hit lands.

	require.Eventually(t, func() bool {
		b, _ := reg.Lookup("B")
		return b.HP() == 90
	}, 5*time.Second, 5*time.Millisecond)

	b, _ := reg.Lookup("B")
	require.Equal(t, -3, b.Score())

	// HP damage triggers a roster broadcast.
	require.Eventually(t, func() bool {
		for _, m := range rec.broadcasts() {
			if pl, ok := m.(*protocol.PlayerList); ok {
				for _, info := range pl.Players {
					if info.PlayerID == "B" && info.HP == 90 {
						return true
					}
				}
			}
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)
}

func TestStopMidMatchReturnsToWaiting(t *testing.T) {
	e, _, rec := newTestEngine(t, "A", "B")
	require.NoError(t, e.Start())

	require.Eventually(t, func() bool { return e.State() != StateWaiting },
		time.Second, time.Millisecond)

	e.Stop()
	require.Equal(t, StateWaiting, e.State())

	ge := rec.lastGameEnd()
	require.NotNil(t, ge)
	require.Equal(t, "match stopped", ge.Message)
	require.Nil(t, ge.Winner)

	// A stopped engine can host a fresh match.
	require.NoError(t, e.Start())
	e.Stop()
}

func TestStopIdleEngineIsSilent(t *testing.T) {
	e, _, rec := newTestEngine(t, "A", "B")
	e.Stop()
	require.Equal(t, StateWaiting, e.State())

	// No match ever ran, so nothing goes out, in particular no GAME_END.
	require.Empty(t, rec.broadcasts())
}

func TestSubmitDefenseAccumulates(t *testing.T) {
	e, _, _ := newTestEngine(t, "A", "B")

	e.SubmitDefense("B", []string{"10.0.0.1"})
	e.SubmitDefense("B", []string{"10.0.0.2", "10.0.0.1"})

	snap := e.defenseSnapshot()
	require.Len(t, snap["B"], 2)
	require.Contains(t, snap["B"], "10.0.0.1")
	require.Contains(t, snap["B"], "10.0.0.2")
}

func TestStatusSnapshot(t *testing.T) {
	e, _, _ := newTestEngine(t, "A", "B")

	snap := e.Status()
	require.Equal(t, StateWaiting, snap.State)
	require.Equal(t, 2, snap.PlayerCount)
	require.Equal(t, 5, snap.Total)
	require.Nil(t, snap.Difficulty)

	require.NoError(t, e.Start())
	defer e.Stop()

	require.Eventually(t, func() bool {
		s := e.Status()
		return s.Round == 1 && s.Difficulty != nil
	}, time.Second, time.Millisecond)
	require.Equal(t, "Rookie", e.Status().Difficulty.Name)
}

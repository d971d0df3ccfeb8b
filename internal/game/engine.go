package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/netsiege/netsiege/internal/config"
	"github.com/netsiege/netsiege/internal/constants"
	"github.com/netsiege/netsiege/internal/metrics"
	"github.com/netsiege/netsiege/internal/player"
	"github.com/netsiege/netsiege/internal/protocol"
	"github.com/netsiege/netsiege/internal/traffic"
)

// Match start failures.
var (
	ErrMatchRunning     = errors.New("match already running")
	ErrNotEnoughPlayers = fmt.Errorf("at least %d players required", constants.MinPlayers)
)

// Engine drives the match: preparation → play → defense → round end across
// five rounds, toggling the traffic generators per round profile and
// collecting defense submissions. It holds no persistent lock; on phase
// transitions it calls component operations under their own locks.
type Engine struct {
	cfg       config.GameServer
	registry  *player.Registry
	status    *matchStatus
	coord     *Coordinator
	broadcast func(protocol.Message)
	sendTo    func(*player.Player, protocol.Message)

	dummy *traffic.Dummy
	noise *traffic.Noise
	decoy *traffic.Decoy

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	defMu   sync.Mutex
	defense map[string]map[string]struct{}
}

// NewEngine wires the match core. Generators emit through the supplied
// callbacks; they never reach back into the engine.
func NewEngine(
	cfg config.GameServer,
	registry *player.Registry,
	broadcast func(protocol.Message),
	sendTo func(*player.Player, protocol.Message),
) *Engine {
	status := newMatchStatus()
	e := &Engine{
		cfg:       cfg,
		registry:  registry,
		status:    status,
		coord:     NewCoordinator(registry, status, cfg.AttackTimeout, cfg.AttackPortBase),
		broadcast: broadcast,
		sendTo:    sendTo,
		defense:   make(map[string]map[string]struct{}),
	}
	e.dummy = traffic.NewDummy(ForRound(1).DummyInterval, broadcast)
	e.noise = traffic.NewNoise(registry, sendTo)
	e.decoy = traffic.NewDecoy(registry, sendTo)
	return e
}

// Coordinator returns the attack coordinator the dispatcher routes to.
func (e *Engine) Coordinator() *Coordinator { return e.coord }

// State returns the current match state.
func (e *Engine) State() State {
	state, _, _ := e.status.snapshot()
	return state
}

// Start launches the match driver. Requires at least MinPlayers connected.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrMatchRunning
	}
	if e.registry.Count() < constants.MinPlayers {
		return ErrNotEnoughPlayers
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.running = true

	go e.run(ctx, cancel, done)
	return nil
}

// Stop cancels the current match, returns to WAITING, resets per-round
// data, and broadcasts a synthetic GAME_END. A no-op when no match has
// been started since the last reset; idle players hear nothing.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}

	e.status.reset()
	e.registry.ResetAllRoundData()
	e.resetDefense()
	e.coord.ResetRound()
	e.coord.Shutdown()

	e.broadcast(&protocol.GameEnd{Message: "match stopped"})
	slog.Info("match stopped, back to waiting")
}

// SubmitDefense merges a player's submitted addresses into their round
// set. Submissions accumulate across the round; duplicates collapse.
func (e *Engine) SubmitDefense(playerID string, attackerIPs []string) {
	e.defMu.Lock()
	defer e.defMu.Unlock()

	set, ok := e.defense[playerID]
	if !ok {
		set = make(map[string]struct{}, len(attackerIPs))
		e.defense[playerID] = set
	}
	for _, ip := range attackerIPs {
		set[ip] = struct{}{}
	}
	slog.Info("defense submitted", "player", playerID, "addresses", attackerIPs, "accumulated", len(set))
}

func (e *Engine) defenseSnapshot() map[string]map[string]struct{} {
	e.defMu.Lock()
	defer e.defMu.Unlock()

	out := make(map[string]map[string]struct{}, len(e.defense))
	for id, set := range e.defense {
		cp := make(map[string]struct{}, len(set))
		for ip := range set {
			cp[ip] = struct{}{}
		}
		out[id] = cp
	}
	return out
}

func (e *Engine) resetDefense() {
	e.defMu.Lock()
	defer e.defMu.Unlock()
	e.defense = make(map[string]map[string]struct{})
}

func (e *Engine) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		close(done)
	}()
	var wg sync.WaitGroup
	wg.Go(func() { e.dummy.Run(ctx) })
	defer func() {
		cancel() // stops the dummy generator on natural completion
		wg.Wait()
	}()

	e.status.reset()
	e.registry.ResetAllMatchData()
	slog.Info("match starting", "players", e.registry.Count(), "rounds", constants.TotalRounds)
	e.broadcast(&protocol.GameStart{
		TotalRounds: constants.TotalRounds,
		Message:     fmt.Sprintf("Game start! %d rounds total", constants.TotalRounds),
		Players:     e.registry.ListInfos(),
	})
	if !sleepCtx(ctx, e.cfg.GameStartPause) {
		return
	}

	for round := 1; round <= constants.TotalRounds; round++ {
		if ctx.Err() != nil {
			return
		}
		e.runRound(ctx, round)
		if ctx.Err() == nil {
			metrics.RoundsPlayed.Inc()
		}
	}

	if ctx.Err() == nil {
		e.endGame()
	}
}

func (e *Engine) runRound(ctx context.Context, round int) {
	d := ForRound(round)
	slog.Info("round starting", "round", round, "difficulty", d.Name)

	e.status.setRound(round, d)
	e.dummy.SetInterval(d.DummyInterval)

	// Per-round reset: player attack lists, defense map, counters, committed list.
	e.registry.ResetAllRoundData()
	e.resetDefense()
	e.coord.ResetRound()

	e.preparationPhase(ctx, round, d)
	if ctx.Err() != nil {
		return
	}
	e.playingPhase(ctx, round, d)
	if ctx.Err() != nil {
		return
	}
	e.defensePhase(ctx, round, d)
	if ctx.Err() != nil {
		return
	}
	e.roundEndPhase(ctx, round)
}

func (e *Engine) preparationPhase(ctx context.Context, round int, d Difficulty) {
	e.status.set(StatePreparation)
	e.broadcast(&protocol.RoundStart{
		RoundNum:      round,
		TotalRounds:   constants.TotalRounds,
		TimeRemaining: seconds(e.cfg.PreparationTime),
		Message:       fmt.Sprintf("Round %d preparing...", round),
		Difficulty:    d.Summary(),
	})
	sleepCtx(ctx, e.cfg.PreparationTime)
}

func (e *Engine) playingPhase(ctx context.Context, round int, d Difficulty) {
	e.status.set(StatePlaying)

	playCtx, stopTraffic := context.WithCancel(ctx)
	defer stopTraffic()

	var wg sync.WaitGroup
	if d.NoiseTraffic {
		wg.Go(func() { e.noise.Run(playCtx) })
	}
	if d.DecoyAttacks {
		// Decoys are spread across the configured round duration, not the
		// remaining phase time.
		wg.Go(func() { e.decoy.Run(playCtx, e.cfg.RoundTime, d.DecoyCount) })
	}

	e.broadcast(&protocol.Playing{
		RoundNum:      round,
		TimeRemaining: seconds(e.cfg.RoundTime),
		Message:       "Play! Attack and watch the wire for attackers.",
	})

	deadline := time.Now().Add(e.cfg.RoundTime)
	lastAnnounced := -1
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 || ctx.Err() != nil {
			break
		}
		step := min(remaining, time.Second)
		if !sleepCtx(ctx, step) {
			break
		}

		rem := int(time.Until(deadline).Round(time.Second) / time.Second)
		if rem > 0 && rem%10 == 0 && rem != lastAnnounced {
			lastAnnounced = rem
			e.broadcast(&protocol.Info{
				InfoType:      protocol.InfoTimeUpdate,
				Message:       fmt.Sprintf("%d seconds remaining", rem),
				TimeRemaining: rem,
			})
		}
	}

	stopTraffic()
	wg.Wait()
}

func (e *Engine) defensePhase(ctx context.Context, round int, d Difficulty) {
	e.status.set(StateDefense)

	// The profile defines the window; a non-default config value (tests,
	// custom exercises) overrides it.
	window := d.DefenseTime
	if e.cfg.DefenseTime != constants.DefenseTime {
		window = e.cfg.DefenseTime
	}

	e.broadcast(&protocol.DefensePhase{
		RoundNum:      round,
		TimeRemaining: seconds(window),
		Message:       "Defense phase! Submit the attacker addresses.",
	})
	sleepCtx(ctx, window)
}

func (e *Engine) roundEndPhase(ctx context.Context, round int) {
	e.status.set(StateRoundEnd)

	players := e.registry.List()
	ids := make([]string, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID())
	}

	results := ScoreRound(round, e.coord.Committed(), e.defenseSnapshot(), ids)

	hpChanged := false
	for _, p := range players {
		res, ok := results[p.ID()]
		if !ok {
			continue
		}

		score := e.registry.UpdateScore(p.ID(), res.ScoreDelta)
		hp := p.HP()
		if res.HPDelta != 0 {
			hp = e.registry.UpdateHP(p.ID(), res.HPDelta)
			hpChanged = true
		}

		e.sendTo(p, &protocol.Score{
			PlayerID: p.ID(),
			Score:    score,
			HP:       hp,
			Correct:  res.Clean,
			Reason:   res.Reason,
		})
	}

	if hpChanged {
		e.broadcast(&protocol.PlayerList{Players: e.registry.ListInfos()})
	}

	e.broadcast(&protocol.RoundEnd{
		RoundNum: round,
		Message:  fmt.Sprintf("Round %d over", round),
		Players:  e.registry.ListInfos(),
	})
	sleepCtx(ctx, e.cfg.RoundEndPause)
}

func (e *Engine) endGame() {
	e.status.set(StateGameEnd)

	players := e.registry.List()
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Score() != players[j].Score() {
			return players[i].Score() > players[j].Score()
		}
		return players[i].HP() > players[j].HP()
	})

	rankings := make([]protocol.Ranking, 0, len(players))
	for i, p := range players {
		rankings = append(rankings, protocol.Ranking{
			Rank:     i + 1,
			PlayerID: p.ID(),
			Score:    p.Score(),
			HP:       p.HP(),
		})
	}

	var winner *string
	message := "Game over!"
	if len(players) > 0 {
		id := players[0].ID()
		winner = &id
		message = fmt.Sprintf("Game over! Winner: %s", id)
	}

	e.broadcast(&protocol.GameEnd{
		Message:  message,
		Rankings: rankings,
		Winner:   winner,
	})
	slog.Info("match finished", "winner", message)
}

// StatusSnapshot is the admin surface's status projection.
type StatusSnapshot struct {
	State       State                       `json:"match_state"`
	Round       int                         `json:"round"`
	Total       int                         `json:"total"`
	PlayerCount int                         `json:"player_count"`
	Players     []protocol.PlayerInfo       `json:"players"`
	Difficulty  *protocol.DifficultySummary `json:"difficulty,omitempty"`
}

// Status returns the current state projection for the admin surface.
func (e *Engine) Status() StatusSnapshot {
	state, round, difficulty := e.status.snapshot()
	snap := StatusSnapshot{
		State:       state,
		Round:       round,
		Total:       constants.TotalRounds,
		PlayerCount: e.registry.Count(),
		Players:     e.registry.ListInfos(),
	}
	if difficulty != nil {
		summary := difficulty.Summary()
		snap.Difficulty = &summary
	}
	return snap
}

func seconds(d time.Duration) int {
	return int(d.Round(time.Second) / time.Second)
}

// sleepCtx sleeps for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

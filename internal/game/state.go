// Package game implements the match core: state machine, difficulty
// profiles, the two-phase attack coordinator, the round engine, and the
// scorer.
package game

import (
	"sync"
	"time"
)

// State is the match state machine's tagged value.
type State string

const (
	StateWaiting     State = "WAITING"
	StatePreparation State = "PREPARATION"
	StatePlaying     State = "PLAYING"
	StateDefense     State = "DEFENSE"
	StateRoundEnd    State = "ROUND_END"
	StateGameEnd     State = "GAME_END"
)

// matchStatus is the shared view of where the match is. The round engine
// writes it on phase transitions; the coordinator and the admin surface
// read it. It carries its own lock so readers never need the engine.
type matchStatus struct {
	mu         sync.Mutex
	state      State
	round      int
	difficulty *Difficulty
	playStart  time.Time
}

func newMatchStatus() *matchStatus {
	return &matchStatus{state: StateWaiting}
}

func (s *matchStatus) set(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	if state == StatePlaying {
		s.playStart = time.Now()
	}
}

func (s *matchStatus) setRound(round int, d Difficulty) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.round = round
	s.difficulty = &d
}

func (s *matchStatus) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateWaiting
	s.round = 0
	s.difficulty = nil
	s.playStart = time.Time{}
}

func (s *matchStatus) snapshot() (State, int, *Difficulty) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.round, s.difficulty
}

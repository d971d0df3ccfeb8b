package player

import (
	"errors"
	"sort"
	"sync"

	"github.com/netsiege/netsiege/internal/constants"
	"github.com/netsiege/netsiege/internal/protocol"
)

// Registration failures.
var (
	ErrDuplicateID = errors.New("player id already connected")
	ErrServerFull  = errors.New("player cap reached")
)

// Registry is the authoritative table of connected players.
// All operations are serialisable with respect to each other.
type Registry struct {
	mu         sync.RWMutex
	players    map[string]*Player
	nextIndex  int
	maxPlayers int
}

// NewRegistry creates a registry with the given connected-player cap.
// A cap of zero or less means unbounded.
func NewRegistry(maxPlayers int) *Registry {
	return &Registry{
		players:    make(map[string]*Player, constants.MaxPlayers),
		maxPlayers: maxPlayers,
	}
}

// Add registers a new player and assigns the next 0-based index.
// Rejects a re-use of a currently connected id and enforces the cap.
func (r *Registry) Add(playerID, host string, port int, out Outbound) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.players[playerID]; exists {
		return nil, ErrDuplicateID
	}
	if r.maxPlayers > 0 && len(r.players) >= r.maxPlayers {
		return nil, ErrServerFull
	}

	p := &Player{
		id:        playerID,
		host:      host,
		port:      port,
		index:     r.nextIndex,
		out:       out,
		connected: true,
		hp:        constants.InitialHP,
	}
	r.nextIndex++
	r.players[playerID] = p
	return p, nil
}

// Remove marks the player disconnected and evicts them.
// A later Add with the same id succeeds.
func (r *Registry) Remove(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok {
		return false
	}
	p.markDisconnected()
	delete(r.players, playerID)
	return true
}

// Lookup returns the player with the given id.
func (r *Registry) Lookup(playerID string) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[playerID]
	return p, ok
}

// ByAddress returns the first player observed at the given host.
func (r *Registry) ByAddress(host string) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.players {
		if p.host == host {
			return p, true
		}
	}
	return nil, false
}

// UpdateScore applies a delta and returns the new score. No floor.
func (r *Registry) UpdateScore(playerID string, delta int) int {
	if p, ok := r.Lookup(playerID); ok {
		return p.addScore(delta)
	}
	return 0
}

// UpdateHP applies a delta and returns the new hp, clamped to [0, 100].
func (r *Registry) UpdateHP(playerID string, delta int) int {
	if p, ok := r.Lookup(playerID); ok {
		return p.addHP(delta)
	}
	return 0
}

// RecordAttackReceived appends an attacker address to the target's
// per-round list of confirmed attacks.
func (r *Registry) RecordAttackReceived(targetID, attackerAddr string) {
	if p, ok := r.Lookup(targetID); ok {
		p.recordAttack(attackerAddr)
	}
}

// ResetAllMatchData restores every player to a fresh-match state:
// zero score, full health, empty attack list.
func (r *Registry) ResetAllMatchData() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.players {
		p.resetMatchData()
	}
}

// ResetAllRoundData clears every player's per-round attack list.
func (r *Registry) ResetAllRoundData() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.players {
		p.resetRoundData()
	}
}

// Count returns the number of connected players.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// List returns a snapshot of all players ordered by index.
func (r *Registry) List() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

// ListInfos returns the broadcast projection, ordered by index.
func (r *Registry) ListInfos() []protocol.PlayerInfo {
	players := r.List()
	infos := make([]protocol.PlayerInfo, 0, len(players))
	for _, p := range players {
		infos = append(infos, p.Info())
	}
	return infos
}

// Package player holds the authoritative table of connected players:
// network identity, score, health, and per-round attack facts.
package player

import (
	"sync"

	"github.com/netsiege/netsiege/internal/constants"
	"github.com/netsiege/netsiege/internal/protocol"
)

// Outbound is the per-player output channel the session layer supplies at
// registration. Send must not block the caller beyond a bounded queue.
type Outbound interface {
	SendMessage(msg protocol.Message) error
}

// Player is one connected participant. Identity fields (id, host, port,
// index, out) are fixed at registration; mutable game state is guarded by
// the player's own mutex.
type Player struct {
	id    string
	host  string
	port  int
	index int
	out   Outbound

	mu              sync.Mutex
	connected       bool
	score           int
	hp              int
	attacksReceived []string // attacker addresses confirmed delivered this round
}

// ID returns the player's opaque identifier.
func (p *Player) ID() string { return p.id }

// Host returns the address the server observed on the player's TCP connection.
func (p *Player) Host() string { return p.host }

// Port returns the observed TCP source port.
func (p *Player) Port() int { return p.port }

// Index returns the per-session index assigned in insertion order.
// The player's P2P attack port is AttackPortBase + Index.
func (p *Player) Index() int { return p.index }

// Out returns the player's output channel.
func (p *Player) Out() Outbound { return p.out }

// Connected reports whether the player's session is still live.
func (p *Player) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Score returns the player's current score. May be negative.
func (p *Player) Score() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.score
}

// HP returns the player's current health, always within [0, 100].
func (p *Player) HP() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hp
}

// AttacksReceived returns a copy of this round's confirmed attacker addresses.
func (p *Player) AttacksReceived() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.attacksReceived))
	copy(out, p.attacksReceived)
	return out
}

// Info returns the projection broadcast in player lists.
func (p *Player) Info() protocol.PlayerInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return protocol.PlayerInfo{
		PlayerID:    p.id,
		IP:          p.host,
		Score:       p.score,
		HP:          p.hp,
		IsConnected: p.connected,
	}
}

func (p *Player) addScore(delta int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.score += delta
	return p.score
}

func (p *Player) addHP(delta int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hp += delta
	if p.hp < 0 {
		p.hp = 0
	}
	if p.hp > constants.MaxHP {
		p.hp = constants.MaxHP
	}
	return p.hp
}

func (p *Player) recordAttack(attackerAddr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attacksReceived = append(p.attacksReceived, attackerAddr)
}

func (p *Player) resetMatchData() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.score = 0
	p.hp = constants.InitialHP
	p.attacksReceived = p.attacksReceived[:0]
}

func (p *Player) resetRoundData() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attacksReceived = p.attacksReceived[:0]
}

func (p *Player) markDisconnected() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
}

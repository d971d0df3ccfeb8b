package traffic

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/netsiege/netsiege/internal/metrics"
	"github.com/netsiege/netsiege/internal/player"
	"github.com/netsiege/netsiege/internal/protocol"
)

// Noise tick interval bounds.
const (
	noiseIntervalMin = 3 * time.Second
	noiseIntervalMax = 8 * time.Second
)

// Noise delivers benign player-to-player traffic. Each tick picks a random
// ordered pair of distinct connected players and sends the receiver a NOISE
// message attributed to the sender.
type Noise struct {
	registry *player.Registry
	sendTo   func(*player.Player, protocol.Message)

	// interval bounds are fixed by the exercise; overridable for tests
	min, max time.Duration
}

// NewNoise creates a noise generator emitting through sendTo.
func NewNoise(registry *player.Registry, sendTo func(*player.Player, protocol.Message)) *Noise {
	return &Noise{
		registry: registry,
		sendTo:   sendTo,
		min:      noiseIntervalMin,
		max:      noiseIntervalMax,
	}
}

// Run emits until ctx is cancelled. The round engine runs it only during
// play phases whose profile enables noise traffic.
func (n *Noise) Run(ctx context.Context) {
	slog.Debug("noise generator started")
	defer slog.Debug("noise generator stopped")

	for {
		wait := n.min + time.Duration(rand.Int64N(int64(n.max-n.min)+1))
		if !sleepCtx(ctx, wait) {
			return
		}
		n.emit()
	}
}

func (n *Noise) emit() {
	sender, receiver, ok := pickPair(n.registry)
	if !ok {
		return
	}

	n.sendTo(receiver, &protocol.Noise{
		FromIP:     sender.Host(),
		ToIP:       receiver.Host(),
		FromPlayer: sender.ID(),
		ToPlayer:   receiver.ID(),
		Payload:    protocol.NoisePayload(),
	})
	metrics.PacketsSent.WithLabelValues(protocol.TypeNoise).Inc()
}

// pickPair selects a uniformly random ordered pair of distinct players.
func pickPair(registry *player.Registry) (sender, receiver *player.Player, ok bool) {
	players := registry.List()
	if len(players) < 2 {
		return nil, nil, false
	}

	si := rand.IntN(len(players))
	ri := rand.IntN(len(players) - 1)
	if ri >= si {
		ri++
	}
	return players[si], players[ri], true
}

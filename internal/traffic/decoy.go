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

// decoyMinWait is the floor on the spacing between decoy emissions.
const decoyMinWait = time.Second

// Decoy synthesises pseudo-attacks attributed to a random player who did
// not actually attack. On the wire a decoy matches a real attack's payload
// shape; only the type tag and the is_decoy marker differ. Decoys are never
// recorded by the registry and never reach the committed list.
type Decoy struct {
	registry *player.Registry
	sendTo   func(*player.Player, protocol.Message)
}

// NewDecoy creates a decoy generator emitting through sendTo.
func NewDecoy(registry *player.Registry, sendTo func(*player.Player, protocol.Message)) *Decoy {
	return &Decoy{registry: registry, sendTo: sendTo}
}

// Run spaces count emissions across duration with +-20% jitter per gap and
// a 1 s floor, stopping early if ctx is cancelled. Duration is the round's
// configured play time, not the remaining phase time.
func (d *Decoy) Run(ctx context.Context, duration time.Duration, count int) {
	if count <= 0 {
		return
	}
	slog.Debug("decoy generator started", "count", count, "window", duration)
	defer slog.Debug("decoy generator stopped")

	interval := duration / time.Duration(count)
	for range count {
		jitter := time.Duration((rand.Float64()*0.4 - 0.2) * float64(interval))
		wait := max(interval+jitter, decoyMinWait)
		if !sleepCtx(ctx, wait) {
			return
		}
		d.emit()
	}
}

func (d *Decoy) emit() {
	fakeSender, target, ok := pickPair(d.registry)
	if !ok {
		return
	}

	d.sendTo(target, &protocol.DecoyAttack{
		FromIP:     fakeSender.Host(),
		ToIP:       target.Host(),
		FromPlayer: fakeSender.ID(),
		ToPlayer:   target.ID(),
		Payload:    protocol.AttackPayload(target.ID()),
		IsDecoy:    true,
	})
	metrics.PacketsSent.WithLabelValues(protocol.TypeDecoyAttack).Inc()
}

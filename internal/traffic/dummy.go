// Package traffic implements the three background emitters that obscure
// real attacks: dummy broadcast filler, player-to-player noise, and decoy
// attacks. Generators never touch sockets; they emit through callbacks
// supplied at construction and are started/stopped by the round engine
// through context cancellation.
package traffic

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/netsiege/netsiege/internal/metrics"
	"github.com/netsiege/netsiege/internal/protocol"
)

// Dummy broadcasts filler packets to all connected players for the whole
// match at intervals drawn uniformly from [interval, 2*interval] around
// the round's configured mean.
type Dummy struct {
	interval  atomic.Int64 // mean interval in nanoseconds
	broadcast func(protocol.Message)
}

// NewDummy creates a dummy generator with the given mean interval.
func NewDummy(interval time.Duration, broadcast func(protocol.Message)) *Dummy {
	d := &Dummy{broadcast: broadcast}
	d.SetInterval(interval)
	return d
}

// SetInterval reconfigures the mean interval; the round engine calls this
// when loading a round's difficulty profile.
func (d *Dummy) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	d.interval.Store(int64(interval))
}

// Run emits until ctx is cancelled.
func (d *Dummy) Run(ctx context.Context) {
	slog.Debug("dummy generator started")
	defer slog.Debug("dummy generator stopped")

	for {
		mean := time.Duration(d.interval.Load())
		wait := mean + time.Duration(rand.Int64N(int64(mean)+1))
		if !sleepCtx(ctx, wait) {
			return
		}

		d.broadcast(&protocol.Dummy{Payload: protocol.DummyPayload()})
		metrics.PacketsSent.WithLabelValues(protocol.TypeDummy).Inc()
	}
}

// sleepCtx sleeps for d unless ctx is cancelled first.
// Returns false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

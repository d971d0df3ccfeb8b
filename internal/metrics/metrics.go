// Package metrics exposes prometheus instrumentation for the game server.
// The /metrics listener is optional; counters are cheap either way.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectedPlayers tracks the current registry size.
	ConnectedPlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netsiege_connected_players",
		Help: "Number of currently connected players.",
	})

	// PacketsSent counts server-emitted traffic by message type.
	PacketsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netsiege_packets_sent_total",
		Help: "Server-generated packets emitted, by wire type.",
	}, []string{"type"})

	// AttacksApproved counts approvals granted by the coordinator.
	AttacksApproved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netsiege_attacks_approved_total",
		Help: "Attack requests approved.",
	})

	// AttacksDenied counts denials by reason.
	AttacksDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netsiege_attacks_denied_total",
		Help: "Attack requests denied, by reason.",
	}, []string{"reason"})

	// AttacksCommitted counts attacks confirmed by both endpoints.
	AttacksCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netsiege_attacks_committed_total",
		Help: "Attacks committed after two-phase confirmation.",
	})

	// AttacksTimedOut counts pending attacks discarded by the 5s timer.
	AttacksTimedOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netsiege_attacks_timed_out_total",
		Help: "Pending attacks discarded on confirmation timeout.",
	})

	// RoundsPlayed counts completed rounds.
	RoundsPlayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netsiege_rounds_played_total",
		Help: "Rounds driven to completion by the round engine.",
	})
)

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

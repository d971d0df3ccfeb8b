package gameserver

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/netsiege/netsiege/internal/game"
	"github.com/netsiege/netsiege/internal/player"
	"github.com/netsiege/netsiege/internal/protocol"
)

// Handler routes decoded client messages to the match core.
type Handler struct {
	registry *player.Registry
	engine   *game.Engine
}

// NewHandler creates the message dispatcher.
func NewHandler(registry *player.Registry, engine *game.Engine) *Handler {
	return &Handler{registry: registry, engine: engine}
}

// Handle dispatches one message from a connected player. Unroutable
// messages are logged and dropped; they never tear down the session.
func (h *Handler) Handle(p *player.Player, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.AttackRequest:
		h.handleAttackRequest(p, m)
	case *protocol.AttackConfirm:
		h.handleAttackConfirm(p, m)
	case *protocol.Defense:
		h.handleDefense(p, m)
	default:
		slog.Debug("ignoring unroutable message",
			"player", p.ID(), "type", protocol.TypeOf(msg))
	}
}

// handleAttackRequest runs the approval policy. The attacker identity comes
// from the session, not the message body.
func (h *Handler) handleAttackRequest(p *player.Player, m *protocol.AttackRequest) {
	approval, err := h.engine.Coordinator().RequestApproval(p.ID(), m.TargetID)
	if err != nil {
		// The reason goes out verbatim; clients display it as-is.
		var denied *game.DeniedError
		reason := err.Error()
		if errors.As(err, &denied) {
			reason = denied.Reason
		}
		sendTo(p, &protocol.Info{
			InfoType: protocol.InfoAttackDenied,
			Message:  reason,
		})
		return
	}

	sendTo(approval.Attacker, &protocol.AttackApproved{
		AttackID:   approval.AttackID,
		TargetIP:   approval.Target.Host(),
		TargetPort: approval.TargetPort,
		TargetID:   approval.Target.ID(),
	})
	sendTo(approval.Target, &protocol.IncomingAttackWarning{
		AttackID:   approval.AttackID,
		AttackerIP: approval.Attacker.Host(),
		AttackerID: approval.Attacker.ID(),
	})
}

func (h *Handler) handleAttackConfirm(p *player.Player, m *protocol.AttackConfirm) {
	coord := h.engine.Coordinator()
	switch m.ConfirmType {
	case protocol.ConfirmSent:
		coord.ConfirmSent(m.AttackID)
	case protocol.ConfirmReceived:
		coord.ConfirmReceived(m.AttackID)
	default:
		slog.Warn("unknown confirm type",
			"player", p.ID(), "confirmType", m.ConfirmType, "attackID", m.AttackID)
	}
}

// handleDefense files a defense submission for the session's player.
// The body's player_id is ignored; sessions cannot defend for each other.
func (h *Handler) handleDefense(p *player.Player, m *protocol.Defense) {
	h.engine.SubmitDefense(p.ID(), m.AttackerIPs)
	sendTo(p, &protocol.Info{
		InfoType: protocol.InfoDefenseAck,
		Message:  fmt.Sprintf("defense recorded: %d address(es)", len(m.AttackerIPs)),
	})
}

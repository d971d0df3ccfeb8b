// Package client is a headless reference player: it speaks the control
// protocol, runs the P2P attack listener, and exposes the attack and
// defense flows to callers such as the bot binary and the integration
// suite.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/netsiege/netsiege/internal/constants"
	"github.com/netsiege/netsiege/internal/protocol"
)

// Config controls a client instance.
type Config struct {
	ServerAddr     string
	PlayerID       string
	AttackPortBase int           // 0 means the standard base port
	DialTimeout    time.Duration // 0 means the standard connect deadline

	// OnMessage observes every server message after internal routing.
	// Called from the pump goroutine; must not block.
	OnMessage func(protocol.Message)
}

type attackOutcome struct {
	approval *protocol.AttackApproved
	denial   string
}

// Client is one connected player.
type Client struct {
	cfg   Config
	conn  net.Conn
	index int

	p2p net.Listener

	writeMu sync.Mutex // serialises frames on the control connection

	mu      sync.Mutex
	pending chan attackOutcome // single in-flight attack request

	wg      sync.WaitGroup
	closeCh chan struct{}
	once    sync.Once
}

// New creates an unconnected client.
func New(cfg Config) *Client {
	if cfg.AttackPortBase == 0 {
		cfg.AttackPortBase = constants.PlayerAttackPortBase
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = constants.ConnectDeadline
	}
	return &Client{cfg: cfg, closeCh: make(chan struct{})}
}

// Index returns the server-assigned player index. Valid after Connect.
func (c *Client) Index() int { return c.index }

// Connect dials the server, completes the handshake, opens the P2P attack
// listener on the assigned port, and starts the message pump.
func (c *Client) Connect(ctx context.Context) error {
	d := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.cfg.ServerAddr, err)
	}
	c.conn = conn

	if err := c.send(&protocol.Connect{PlayerID: c.cfg.PlayerID}); err != nil {
		conn.Close()
		return err
	}

	welcome, err := c.awaitWelcome()
	if err != nil {
		conn.Close()
		return err
	}
	c.index = *welcome.PlayerIndex

	addr := fmt.Sprintf(":%d", c.cfg.AttackPortBase+c.index)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		conn.Close()
		return fmt.Errorf("opening attack listener on %s: %w", addr, err)
	}
	c.p2p = ln

	slog.Info("connected",
		"player", c.cfg.PlayerID,
		"index", c.index,
		"attackPort", c.cfg.AttackPortBase+c.index)

	c.wg.Go(c.pump)
	c.wg.Go(c.acceptAttacks)
	return nil
}

// awaitWelcome reads until the WELCOME info arrives. A handshake rejection
// surfaces as an error instead.
func (c *Client) awaitWelcome() (*protocol.Info, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.DialTimeout)); err != nil {
		return nil, fmt.Errorf("setting welcome deadline: %w", err)
	}
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		msg, err := protocol.ReadMessage(c.conn)
		if err != nil {
			return nil, fmt.Errorf("reading welcome: %w", err)
		}
		info, ok := msg.(*protocol.Info)
		if !ok {
			continue
		}
		switch info.InfoType {
		case protocol.InfoWelcome:
			if info.PlayerIndex == nil {
				return nil, fmt.Errorf("welcome without player_index")
			}
			return info, nil
		case protocol.InfoError:
			return nil, fmt.Errorf("rejected: %s", info.Message)
		}
	}
}

// Attack runs the full exchange: request approval, deliver the hostile
// packet to the target's P2P port, and confirm the send.
func (c *Client) Attack(ctx context.Context, targetID string) error {
	outcome := make(chan attackOutcome, 1)
	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		return errors.New("attack already in flight")
	}
	c.pending = outcome
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
	}()

	if err := c.send(&protocol.AttackRequest{
		AttackerID: c.cfg.PlayerID,
		TargetID:   targetID,
	}); err != nil {
		return err
	}

	var out attackOutcome
	select {
	case out = <-outcome:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closeCh:
		return errors.New("client closed")
	}
	if out.denial != "" {
		return fmt.Errorf("attack denied: %s", out.denial)
	}
	ap := out.approval

	if err := c.deliverAttack(ctx, ap); err != nil {
		return fmt.Errorf("delivering attack %s: %w", ap.AttackID, err)
	}

	return c.send(&protocol.AttackConfirm{
		AttackID:    ap.AttackID,
		ConfirmType: protocol.ConfirmSent,
		FromPlayer:  c.cfg.PlayerID,
		ToPlayer:    ap.TargetID,
	})
}

// deliverAttack writes the hostile packet straight to the target peer.
func (c *Client) deliverAttack(ctx context.Context, ap *protocol.AttackApproved) error {
	d := net.Dialer{Timeout: c.cfg.DialTimeout}
	peer, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ap.TargetIP, fmt.Sprint(ap.TargetPort)))
	if err != nil {
		return fmt.Errorf("dialing peer: %w", err)
	}
	defer peer.Close()

	return protocol.WriteMessage(peer, &protocol.Attack{
		AttackID:   ap.AttackID,
		FromPlayer: c.cfg.PlayerID,
		ToPlayer:   ap.TargetID,
		Payload:    protocol.AttackPayload(ap.TargetID),
	})
}

// SubmitDefense files the addresses this player believes attacked them.
func (c *Client) SubmitDefense(attackerIPs []string) error {
	return c.send(&protocol.Defense{
		PlayerID:    c.cfg.PlayerID,
		AttackerIPs: attackerIPs,
	})
}

// pump reads server messages, resolves in-flight attack requests, and
// forwards everything to the observer.
func (c *Client) pump() {
	for {
		msg, err := protocol.ReadMessage(c.conn)
		if err != nil {
			select {
			case <-c.closeCh:
			default:
				slog.Info("server connection closed", "player", c.cfg.PlayerID, "error", err)
			}
			c.Close()
			return
		}

		switch m := msg.(type) {
		case *protocol.AttackApproved:
			c.resolve(attackOutcome{approval: m})
		case *protocol.Info:
			if m.InfoType == protocol.InfoAttackDenied {
				c.resolve(attackOutcome{denial: m.Message})
			}
		}

		if c.cfg.OnMessage != nil {
			c.cfg.OnMessage(msg)
		}
	}
}

func (c *Client) resolve(out attackOutcome) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	if pending != nil {
		pending <- out
	}
}

// acceptAttacks serves the P2P port: each peer connection delivers one
// hostile packet, which is acknowledged to the server with a RECEIVED
// confirmation.
func (c *Client) acceptAttacks() {
	for {
		peer, err := c.p2p.Accept()
		if err != nil {
			return // listener closed
		}
		c.wg.Go(func() { c.handlePeer(peer) })
	}
}

func (c *Client) handlePeer(peer net.Conn) {
	defer peer.Close()

	if err := peer.SetReadDeadline(time.Now().Add(c.cfg.DialTimeout)); err != nil {
		return
	}
	msg, err := protocol.ReadMessage(peer)
	if err != nil {
		slog.Warn("bad peer frame", "player", c.cfg.PlayerID, "error", err)
		return
	}
	atk, ok := msg.(*protocol.Attack)
	if !ok {
		slog.Warn("unexpected peer message", "player", c.cfg.PlayerID, "type", protocol.TypeOf(msg))
		return
	}

	slog.Info("attack received",
		"player", c.cfg.PlayerID,
		"attackID", atk.AttackID,
		"from", atk.FromPlayer)

	if err := c.send(&protocol.AttackConfirm{
		AttackID:    atk.AttackID,
		ConfirmType: protocol.ConfirmReceived,
		FromPlayer:  atk.FromPlayer,
		ToPlayer:    c.cfg.PlayerID,
	}); err != nil {
		slog.Warn("confirm failed", "player", c.cfg.PlayerID, "error", err)
	}

	if c.cfg.OnMessage != nil {
		c.cfg.OnMessage(atk)
	}
}

func (c *Client) send(msg protocol.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := protocol.WriteMessage(c.conn, msg); err != nil {
		return fmt.Errorf("sending %s: %w", protocol.TypeOf(msg), err)
	}
	return nil
}

// Close tears down the control connection and the P2P listener.
// Safe to call multiple times.
func (c *Client) Close() error {
	c.once.Do(func() {
		close(c.closeCh)
		if c.p2p != nil {
			c.p2p.Close()
		}
		if c.conn != nil {
			c.conn.Close()
		}
	})
	return nil
}

// Wait blocks until the pump and listener goroutines exit.
func (c *Client) Wait() {
	c.wg.Wait()
}

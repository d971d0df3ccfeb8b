package gameserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/netsiege/netsiege/internal/config"
	"github.com/netsiege/netsiege/internal/game"
	"github.com/netsiege/netsiege/internal/metrics"
	"github.com/netsiege/netsiege/internal/player"
	"github.com/netsiege/netsiege/internal/protocol"
)

// Server accepts player control connections, runs the CONNECT handshake,
// and feeds decoded messages to the dispatcher. The match itself is driven
// by the embedded engine.
type Server struct {
	cfg      config.GameServer
	registry *player.Registry
	engine   *game.Engine
	handler  *Handler

	listener net.Listener
	mu       sync.Mutex
}

// NewServer wires the registry, engine, and dispatcher together.
func NewServer(cfg config.GameServer) *Server {
	s := &Server{
		cfg:      cfg,
		registry: player.NewRegistry(cfg.MaxPlayers),
	}
	s.engine = game.NewEngine(cfg, s.registry, s.Broadcast, sendTo)
	s.handler = NewHandler(s.registry, s.engine)
	return s
}

// Registry returns the player table.
func (s *Server) Registry() *player.Registry { return s.registry }

// Engine returns the match engine, for the admin surface.
func (s *Server) Engine() *game.Engine { return s.engine }

// Addr returns the address the server is listening on.
// Returns nil if the server hasn't started yet.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Broadcast sends a message to every connected player.
// Failures are per player; a dead session never stalls the rest.
func (s *Server) Broadcast(msg protocol.Message) {
	for _, p := range s.registry.List() {
		if err := p.Out().SendMessage(msg); err != nil {
			slog.Debug("broadcast send failed", "player", p.ID(), "error", err)
		}
	}
}

func sendTo(p *player.Player, msg protocol.Message) {
	if err := p.Out().SendMessage(msg); err != nil {
		slog.Debug("direct send failed", "player", p.ID(), "error", err)
	}
}

// Run begins listening for player connections on cfg.BindAddress:cfg.Port
// and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve accepts connections from the given listener until ctx is cancelled.
// Used directly by tests with :0 listeners.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	slog.Info("game server started", "address", ln.Addr())

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			slog.Error("failed to accept new connection", "error", err)
			continue
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			if err := tcpConn.SetKeepAlive(true); err != nil {
				slog.Warn("set keepalive failed", "error", err)
			}
		}

		wg.Go(func() {
			s.handleConnection(ctx, conn)
		})
	}

	s.engine.Stop()
	wg.Wait()
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	session, err := NewSession(conn, s.cfg.SendQueueSize, s.cfg.WriteTimeout)
	if err != nil {
		slog.Error("failed to create session", "remote", conn.RemoteAddr(), "error", err)
		return
	}
	slog.Info("new connection", "remote", session.Host())

	go session.writePump()
	defer session.Close()

	p, err := s.handshake(session)
	if err != nil {
		slog.Info("handshake rejected", "remote", session.Host(), "error", err)
		// Best effort: tell the client why before closing.
		session.SendMessage(&protocol.Info{
			InfoType: protocol.InfoError,
			Message:  err.Error(),
		})
		time.Sleep(50 * time.Millisecond) // let the pump flush
		return
	}

	metrics.ConnectedPlayers.Inc()
	defer func() {
		s.registry.Remove(p.ID())
		metrics.ConnectedPlayers.Dec()
		slog.Info("player disconnected", "player", p.ID())
		s.Broadcast(&protocol.PlayerList{Players: s.registry.ListInfos()})
	}()

	s.welcome(p)

	for {
		msg, err := protocol.ReadMessage(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				slog.Info("client closed connection", "player", p.ID())
			} else {
				slog.Warn("read failed", "player", p.ID(), "error", err)
			}
			return
		}
		s.handler.Handle(p, msg)
	}
}

// handshake reads the CONNECT message and registers the player.
// The first frame must arrive within the connect timeout.
func (s *Server) handshake(session *Session) (*player.Player, error) {
	if err := session.Conn().SetReadDeadline(time.Now().Add(s.cfg.ConnectTimeout)); err != nil {
		return nil, fmt.Errorf("setting handshake deadline: %w", err)
	}

	msg, err := protocol.ReadMessage(session.Conn())
	if err != nil {
		return nil, fmt.Errorf("reading handshake: %w", err)
	}
	if err := session.Conn().SetReadDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("clearing handshake deadline: %w", err)
	}

	connect, ok := msg.(*protocol.Connect)
	if !ok {
		return nil, fmt.Errorf("expected %s, got %s", protocol.TypeConnect, protocol.TypeOf(msg))
	}
	if connect.PlayerID == "" {
		return nil, fmt.Errorf("empty player_id")
	}

	p, err := s.registry.Add(connect.PlayerID, session.Host(), session.Port(), session)
	if err != nil {
		return nil, fmt.Errorf("registering %s: %w", connect.PlayerID, err)
	}
	session.setPlayerID(connect.PlayerID)
	return p, nil
}

// welcome delivers the player's index and attack port, then shows everyone
// the updated roster.
func (s *Server) welcome(p *player.Player) {
	index := p.Index()
	attackPort := s.cfg.AttackPortBase + index

	slog.Info("player connected",
		"player", p.ID(),
		"address", p.Host(),
		"index", index,
		"attackPort", attackPort)

	sendTo(p, &protocol.Info{
		InfoType:    protocol.InfoWelcome,
		Message:     fmt.Sprintf("Welcome %s! You are player %d. Listen for attacks on port %d.", p.ID(), index, attackPort),
		PlayerID:    p.ID(),
		PlayerIP:    p.Host(),
		PlayerIndex: &index,
	})

	s.Broadcast(&protocol.PlayerList{Players: s.registry.ListInfos()})
}

package gameserver

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/netsiege/netsiege/internal/metrics"
	"github.com/netsiege/netsiege/internal/protocol"
)

// Default write queue / timeout constants.
// Overridden by config values when available.
const (
	defaultSendQueueSize = 64
	defaultWriteTimeout  = 5 * time.Second
)

// Session is one player's control connection. Reads happen on the
// connection goroutine; all writes go through a dedicated writePump fed by
// a bounded queue, so a stalled client never blocks the match.
type Session struct {
	conn net.Conn
	host string
	port int

	mu       sync.Mutex
	playerID string

	sendCh    chan []byte // encoded frames
	closeCh   chan struct{}
	closeOnce sync.Once

	writeTimeout time.Duration
}

// NewSession wraps an accepted connection.
func NewSession(conn net.Conn, sendQueueSize int, writeTimeout time.Duration) (*Session, error) {
	host, portStr, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return nil, fmt.Errorf("splitting host port: %w", err)
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return nil, fmt.Errorf("parsing remote port %q: %w", portStr, err)
	}

	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	return &Session{
		conn:         conn,
		host:         host,
		port:         port,
		sendCh:       make(chan []byte, sendQueueSize),
		closeCh:      make(chan struct{}),
		writeTimeout: writeTimeout,
	}, nil
}

// Conn returns the underlying network connection.
func (s *Session) Conn() net.Conn { return s.conn }

// Host returns the remote IP as observed on the control connection.
func (s *Session) Host() string { return s.host }

// Port returns the remote TCP source port.
func (s *Session) Port() int { return s.port }

// PlayerID returns the registered id, empty before the handshake completes.
func (s *Session) PlayerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerID
}

func (s *Session) setPlayerID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playerID = id
}

// SendMessage encodes and queues a message for async delivery.
// Non-blocking: a full queue means a slow client, which gets disconnected.
func (s *Session) SendMessage(msg protocol.Message) error {
	frame, err := protocol.EncodeFrame(msg)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", protocol.TypeOf(msg), err)
	}

	select {
	case s.sendCh <- frame:
		metrics.PacketsSent.WithLabelValues(protocol.TypeOf(msg)).Inc()
		return nil
	case <-s.closeCh:
		return fmt.Errorf("session closed")
	default:
		slog.Warn("send queue full, disconnecting slow client",
			"client", s.host, "player", s.PlayerID())
		s.CloseAsync()
		return fmt.Errorf("send queue full")
	}
}

// writePump is the dedicated writer goroutine for this session.
// Drains queued frames and batches them through net.Buffers (writev).
func (s *Session) writePump() {
	bufs := make(net.Buffers, 0, 16)

	for {
		select {
		case frame := <-s.sendCh:
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
				slog.Warn("set write deadline failed", "client", s.host, "error", err)
				return
			}

			queued := len(s.sendCh)
			if queued == 0 {
				if _, err := s.conn.Write(frame); err != nil {
					slog.Warn("write failed", "client", s.host, "error", err)
					return
				}
				continue
			}

			bufs = bufs[:0]
			bufs = append(bufs, frame)
			for range queued {
				bufs = append(bufs, <-s.sendCh)
			}
			if _, err := bufs.WriteTo(s.conn); err != nil {
				slog.Warn("batch write failed", "client", s.host, "error", err)
				return
			}

		case <-s.closeCh:
			return
		}
	}
}

// CloseAsync stops the writePump and closes the connection, which also
// interrupts any goroutine blocked reading from it. Safe to call multiple
// times and from any goroutine.
func (s *Session) CloseAsync() {
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.conn.Close()
	})
}

// Close tears down the session.
func (s *Session) Close() error {
	s.CloseAsync()
	return nil
}

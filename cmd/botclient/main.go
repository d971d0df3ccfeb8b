package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/netsiege/netsiege/internal/client"
	"github.com/netsiege/netsiege/internal/constants"
	"github.com/netsiege/netsiege/internal/protocol"
)

func main() {
	server := flag.String("server", fmt.Sprintf("127.0.0.1:%d", constants.DefaultPort), "server address")
	id := flag.String("id", fmt.Sprintf("bot-%04d", rand.IntN(10000)), "player id")
	base := flag.Int("attack-port-base", constants.PlayerAttackPortBase, "first P2P attack port")
	interval := flag.Duration("attack-interval", 8*time.Second, "pause between attack attempts")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, *server, *id, *base, *interval); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// bot plays a full match on its own: attacks random opponents during play
// phases and defends with the attacker addresses it was warned about.
type bot struct {
	id string

	mu        sync.Mutex
	playing   bool
	opponents []string
	seenIPs   map[string]struct{}
}

func run(ctx context.Context, server, id string, base int, interval time.Duration) error {
	b := &bot{id: id, seenIPs: make(map[string]struct{})}

	var c *client.Client
	c = client.New(client.Config{
		ServerAddr:     server,
		PlayerID:       id,
		AttackPortBase: base,
		OnMessage:      func(m protocol.Message) { b.observe(c, m) },
	})
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer c.Close()

	go b.attackLoop(ctx, c, interval)

	<-ctx.Done()
	return nil
}

func (b *bot) observe(c *client.Client, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.PlayerList:
		b.mu.Lock()
		b.opponents = b.opponents[:0]
		for _, p := range m.Players {
			if p.PlayerID != b.id {
				b.opponents = append(b.opponents, p.PlayerID)
			}
		}
		b.mu.Unlock()

	case *protocol.Playing:
		slog.Info("round playing", "round", m.RoundNum)
		b.mu.Lock()
		b.playing = true
		b.seenIPs = make(map[string]struct{})
		b.mu.Unlock()

	case *protocol.IncomingAttackWarning:
		b.mu.Lock()
		b.seenIPs[m.AttackerIP] = struct{}{}
		b.mu.Unlock()

	case *protocol.DefensePhase:
		b.mu.Lock()
		b.playing = false
		ips := make([]string, 0, len(b.seenIPs))
		for ip := range b.seenIPs {
			ips = append(ips, ip)
		}
		b.mu.Unlock()

		slog.Info("submitting defense", "round", m.RoundNum, "addresses", ips)
		if err := c.SubmitDefense(ips); err != nil {
			slog.Warn("defense failed", "error", err)
		}

	case *protocol.Score:
		slog.Info("round scored", "score", m.Score, "hp", m.HP, "reason", m.Reason)

	case *protocol.GameEnd:
		slog.Info("game over", "message", m.Message)
	}
}

func (b *bot) attackLoop(ctx context.Context, c *client.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		b.mu.Lock()
		playing := b.playing
		var target string
		if len(b.opponents) > 0 {
			target = b.opponents[rand.IntN(len(b.opponents))]
		}
		b.mu.Unlock()

		if !playing || target == "" {
			continue
		}

		attackCtx, cancel := context.WithTimeout(ctx, constants.AttackApprovalTimeout)
		err := c.Attack(attackCtx, target)
		cancel()
		if err != nil {
			slog.Info("attack attempt failed", "target", target, "error", err)
		} else {
			slog.Info("attack delivered", "target", target)
		}
	}
}

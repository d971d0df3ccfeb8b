package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/netsiege/netsiege/internal/config"
	"github.com/netsiege/netsiege/internal/gameserver"
	"github.com/netsiege/netsiege/internal/metrics"
)

const GameConfigPath = "config/gameserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cancel); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cancel context.CancelFunc) error {
	cfgPath := flag.String("config", GameConfigPath, "path to gameserver config")
	host := flag.String("host", "", "bind address (overrides config)")
	port := flag.Int("port", 0, "listen port (overrides config)")
	flag.Parse()

	if p := os.Getenv("NETSIEGE_CONFIG"); p != "" && *cfgPath == GameConfigPath {
		*cfgPath = p
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *host != "" {
		cfg.BindAddress = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	slog.Info("netsiege server starting",
		"bind", cfg.BindAddress,
		"port", cfg.Port,
		"attack_port_base", cfg.AttackPortBase,
		"max_players", cfg.MaxPlayers,
		"log_level", cfg.LogLevel)

	srv := gameserver.NewServer(cfg)
	admin := gameserver.NewAdmin(srv)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("game server: %w", err)
		}
		return nil
	})

	if cfg.MetricsPort > 0 {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsPort)
		})
	}

	g.Go(func() error {
		runConsole(gctx, admin, cancel)
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// runConsole reads operator commands from stdin until ctx is cancelled.
func runConsole(ctx context.Context, admin *gameserver.Admin, cancel context.CancelFunc) {
	fmt.Println("commands: start | stop | status | quit")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				// Stdin closed (service mode): keep serving without a console.
				<-ctx.Done()
				return
			}
			switch strings.TrimSpace(line) {
			case "start":
				if err := admin.StartMatch(); err != nil {
					fmt.Println("cannot start:", err)
				} else {
					fmt.Println("match started")
				}
			case "stop":
				admin.StopMatch()
				fmt.Println("match stopped")
			case "status":
				out, err := admin.Status()
				if err != nil {
					fmt.Println("status error:", err)
				} else {
					fmt.Println(out)
				}
			case "quit", "exit":
				cancel()
				return
			case "":
			default:
				fmt.Println("commands: start | stop | status | quit")
			}
		}
	}
}

// serveMetrics exposes /metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics listener started", "port", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics listener: %w", err)
	}
	return nil
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

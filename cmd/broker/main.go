// Command broker runs the multi-agent coordination broker: a JSON-RPC 2.0
// MCP server that assigns tasks across registered agents, supervises
// downstream MCP servers, and exposes stdio/HTTP transports.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Rooba/AgentCoordinator-sub000/internal/codebase"
	"github.com/Rooba/AgentCoordinator-sub000/internal/config"
	"github.com/Rooba/AgentCoordinator-sub000/internal/dispatcher"
	"github.com/Rooba/AgentCoordinator-sub000/internal/eventbus"
	"github.com/Rooba/AgentCoordinator-sub000/internal/heartbeat"
	"github.com/Rooba/AgentCoordinator-sub000/internal/registry"
	"github.com/Rooba/AgentCoordinator-sub000/internal/session"
	"github.com/Rooba/AgentCoordinator-sub000/internal/supervisor"
	"github.com/Rooba/AgentCoordinator-sub000/internal/transport"
)

func main() {
	tmpLogger := log.New(os.Stderr, "[broker] ", log.LstdFlags)

	cfgPath := os.Getenv("BROKER_CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		tmpLogger.Fatalf("config: %v", err)
	}
	cfg.ApplyEnv(os.Getenv)

	logger := setupLogger(cfg.LogFile)
	logger.Println("Starting agent coordination broker...")
	logger.Printf("Workspace root: %s", cfg.WorkspaceRoot)
	logger.Printf("Transport: %s", cfg.Transport)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signal.Ignore(syscall.SIGHUP)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	bus := buildEventBus(cfg, logger)
	codes := codebase.NewRegistry()
	reg := registry.New(bus, codes)
	sessions := session.NewManager(cfg.SessionTTL)

	downstreamCfg, err := supervisor.LoadConfig(cfg.DownstreamConfigPath())
	if err != nil {
		logger.Printf("downstream config: %v (starting with no downstream servers)", err)
		downstreamCfg = &supervisor.FileConfig{Servers: map[string]supervisor.ServerConfig{}}
	}
	super := supervisor.New(ctx, downstreamCfg, logger, bus)
	defer super.Close()

	d := dispatcher.New(reg, codes, sessions, super)

	hbScheduler := heartbeat.New(cfg.HeartbeatSchedulerInterval, reg.Heartbeat)
	d.OnCall(hbScheduler.Arm)
	defer hbScheduler.Stop()

	go runSessionSweeper(ctx, sessions, logger)

	modes := strings.Split(strings.ToLower(cfg.Transport), ",")
	var wg doneGroup
	for _, m := range modes {
		switch strings.TrimSpace(m) {
		case "stdio":
			wg.add(func() { runStdio(ctx, d, logger) })
		case "http", "all":
			wg.add(func() { runHTTP(ctx, d, sessions, cfg, logger) })
			if strings.TrimSpace(m) == "all" {
				wg.add(func() { runStdio(ctx, d, logger) })
			}
		case "websocket":
			logger.Printf("transport %q: reserved, no websocket implementation wired in this build", m)
		default:
			logger.Printf("unknown transport %q, ignoring", m)
		}
	}
	wg.wait()
	logger.Println("broker shut down")
}

func setupLogger(path string) *log.Logger {
	if path == "" {
		return log.New(os.Stderr, "[broker] ", log.LstdFlags)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stderr, "[broker] ", log.LstdFlags)
	}
	return log.New(f, "[broker] ", log.LstdFlags)
}

func buildEventBus(cfg *config.Config, logger *log.Logger) eventbus.Bus {
	if cfg.WorkspaceRoot == "" {
		return eventbus.NoopBus{}
	}
	signalPath := cfg.WorkspaceRoot + "/.broker-events-signal"
	return eventbus.NewLocalBus(signalPath, logger)
}

func runSessionSweeper(ctx context.Context, sessions *session.Manager, logger *log.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				logger.Printf("session sweep: removed %d expired session(s)", n)
			}
		}
	}
}

func runStdio(ctx context.Context, d *dispatcher.Dispatcher, logger *log.Logger) {
	if err := transport.ServeStdio(ctx, d, os.Stdin, os.Stdout); err != nil {
		logger.Printf("stdio transport: %v", err)
	}
}

func runHTTP(ctx context.Context, d *dispatcher.Dispatcher, sessions *session.Manager, cfg *config.Config, logger *log.Logger) {
	h := transport.NewHTTPServer(d, sessions)
	addr := cfg.HTTPHost + ":" + itoa(cfg.HTTPPort)
	srv := &http.Server{Addr: addr, Handler: h}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("HTTP transport listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP transport: %v", err)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// doneGroup runs a fixed set of blocking functions concurrently and waits
// for all of them, mirroring the teacher's simple goroutine+signal shutdown
// style rather than pulling in a separate errgroup dependency for two
// transports.
type doneGroup struct {
	fns []func()
}

func (g *doneGroup) add(fn func()) { g.fns = append(g.fns, fn) }

func (g *doneGroup) wait() {
	done := make(chan struct{}, len(g.fns))
	for _, fn := range g.fns {
		fn := fn
		go func() {
			fn()
			done <- struct{}{}
		}()
	}
	for range g.fns {
		<-done
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spatialcall/spatialcall/internal/config"
	"github.com/spatialcall/spatialcall/internal/httpserver"
	"github.com/spatialcall/spatialcall/internal/metrics"
	"github.com/spatialcall/spatialcall/internal/origin"
	"github.com/spatialcall/spatialcall/internal/relay"
)

var (
	// Set via -ldflags at build time. Values may be empty in local/dev builds.
	buildCommit = ""
	buildTime   = ""
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, logCloser, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting spatialcall-relay",
		"listen_addr", cfg.ListenAddr,
		"mode", cfg.Mode,
		"max_members", cfg.MaxMembers,
		"max_message_bytes", cfg.MaxMessageBytes,
		"messages_per_second", cfg.MessagesPerSecond,
		"message_burst", cfg.MessageBurst,
		"bytes_per_second", cfg.BytesPerSecond,
		"idle_timeout", cfg.IdleTimeout,
		"ping_interval", cfg.PingInterval,
		"ice_servers", len(cfg.ICEServers),
		"allowed_origins", cfg.AllowedOrigins,
	)
	if err := cfg.ICEConfigError(); err != nil {
		// Signaling still works without ICE servers; /readyz reports the error.
		logger.Error("invalid ICE server configuration", "err", err)
	}

	logStartupSecurityWarnings(logger, cfg)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "err", err)
		os.Exit(1)
	}

	commit, builtAt := resolveBuildInfo(buildCommit, buildTime)

	checker, err := origin.NewChecker(cfg.AllowedOrigins)
	if err != nil {
		logger.Error("invalid allowed origins", "err", err)
		os.Exit(2)
	}

	m := metrics.New()
	hub := relay.New(logger, m)
	sig := relay.NewServer(hub, relay.ServerConfig{
		MaxMembers:        cfg.MaxMembers,
		MaxMessageBytes:   cfg.MaxMessageBytes,
		MessagesPerSecond: cfg.MessagesPerSecond,
		MessageBurst:      cfg.MessageBurst,
		BytesPerSecond:    cfg.BytesPerSecond,
		IdleTimeout:       cfg.IdleTimeout,
		PingInterval:      cfg.PingInterval,
		CheckOrigin:       checker.CheckRequest,
	}, logger, m)

	srv := httpserver.New(cfg, logger, httpserver.BuildInfo{Commit: commit, BuildTime: builtAt}, httpserver.Routes{
		Signaling: sig,
		Metrics:   m,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		sig.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", "err", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by http.Server, so close
	// the relay members explicitly.
	sig.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "err", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server exited after shutdown", "err", err)
		os.Exit(1)
	}
	logger.Info("relay stopped", "forwarded", m.Get(metrics.RelayForwarded))
}

func resolveBuildInfo(commit, buildTime string) (string, string) {
	// Prefer ldflags-injected values (production builds) but fall back to the Go
	// build info when available (useful for `go run` / dev builds).
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if buildTime == "" {
					buildTime = s.Value
				}
			}
		}
	}

	return commit, buildTime
}

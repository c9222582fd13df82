package main

import (
	"log/slog"
	"net"
	"slices"
	"strings"

	"github.com/spatialcall/spatialcall/internal/config"
	"github.com/spatialcall/spatialcall/internal/origin"
)

func logStartupSecurityWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		logger = slog.Default()
	}

	// The relay forwards to every member without authentication.
	if isPublicBind(cfg.ListenAddr) {
		logger.Warn("startup security warning: relay is reachable beyond loopback and has no authentication (any client can join and read signaling)",
			"warning_code", "relay_public_bind",
			"listen_addr", cfg.ListenAddr,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && cfg.ICEConfigError() == nil && !config.HasTURN(cfg.ICEServers) {
		logger.Warn("startup warning: no TURN server configured while --mode=prod (peers behind symmetric NATs will fail to connect)",
			"warning_code", "no_turn_in_prod",
			"ice_servers", len(cfg.ICEServers),
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && cfg.MaxMembers <= 0 {
		logger.Warn("startup security warning: SPATIALCALL_RELAY_MAX_MEMBERS is unset/0 (unlimited) while --mode=prod",
			"warning_code", "max_members_unlimited_in_prod",
			"max_members", cfg.MaxMembers,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && cfg.MessagesPerSecond <= 0 {
		logger.Warn("startup security warning: SPATIALCALL_RELAY_MESSAGES_PER_SECOND is unset/0 (unlimited) while --mode=prod",
			"warning_code", "message_rate_unlimited_in_prod",
			"messages_per_second", cfg.MessagesPerSecond,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && allowsAnyOrigin(cfg.AllowedOrigins) {
		logger.Warn("startup security warning: any browser origin may open relay connections while --mode=prod (set SPATIALCALL_RELAY_ALLOWED_ORIGINS)",
			"warning_code", "any_origin_in_prod",
			"allowed_origins", cfg.AllowedOrigins,
			"mode", cfg.Mode,
		)
	}

	if cfg.MaxMessageBytes > 1<<20 { // 1MiB
		logger.Warn("startup security warning: SPATIALCALL_RELAY_MAX_MESSAGE_BYTES is very large (an SDP is a few KiB; large caps increase per-message allocation risk)",
			"warning_code", "max_message_bytes_large",
			"max_message_bytes", cfg.MaxMessageBytes,
			"mode", cfg.Mode,
		)
	}
}

func allowsAnyOrigin(allowed []string) bool {
	return len(allowed) == 0 || slices.Contains(allowed, origin.Any)
}

// isPublicBind reports whether addr listens on anything other than loopback.
// Host names other than "localhost" are treated as public.
func isPublicBind(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	host = strings.Trim(strings.TrimSpace(host), "[]")
	if host == "" {
		return true
	}
	if strings.EqualFold(host, "localhost") {
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return true
	}
	return !ip.IsLoopback()
}

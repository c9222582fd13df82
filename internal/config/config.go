package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/spatialcall/spatialcall/internal/origin"
)

const (
	envVarListenAddr      = "SPATIALCALL_RELAY_LISTEN_ADDR"
	envVarPort            = "SPATIALCALL_RELAY_PORT"
	envVarMode            = "SPATIALCALL_MODE"
	envVarLogFormat       = "SPATIALCALL_LOG_FORMAT"
	envVarLogLevel        = "SPATIALCALL_LOG_LEVEL"
	envVarLogFile         = "SPATIALCALL_LOG_FILE"
	envVarShutdownTimeout = "SPATIALCALL_RELAY_SHUTDOWN_TIMEOUT"

	// Relay limits.
	envVarMaxMembers        = "SPATIALCALL_RELAY_MAX_MEMBERS"
	envVarMaxMessageBytes   = "SPATIALCALL_RELAY_MAX_MESSAGE_BYTES"
	envVarMessagesPerSecond = "SPATIALCALL_RELAY_MESSAGES_PER_SECOND"
	envVarMessageBurst      = "SPATIALCALL_RELAY_MESSAGE_BURST"
	envVarBytesPerSecond    = "SPATIALCALL_RELAY_BYTES_PER_SECOND"
	envVarIdleTimeout       = "SPATIALCALL_RELAY_IDLE_TIMEOUT"
	envVarPingInterval      = "SPATIALCALL_RELAY_PING_INTERVAL"
	envVarAllowedOrigins    = "SPATIALCALL_RELAY_ALLOWED_ORIGINS"
)

const (
	DefaultPort       = 8765
	DefaultListenAddr = ":8765"
	DefaultMode       = ModeDev
	DefaultShutdown   = 15 * time.Second

	DefaultMaxMessageBytes   = int64(64 * 1024)
	DefaultMessagesPerSecond = 50
	DefaultMessageBurst      = 100
	DefaultIdleTimeout       = 60 * time.Second
	DefaultPingInterval      = 20 * time.Second
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Logging selects the slog handler. File, when set, sends output to a
// rotating log file instead of the process output.
type Logging struct {
	LogFormat LogFormat
	LogLevel  slog.Level
	LogFile   string
}

// Config is the relay binary's configuration.
type Config struct {
	Logging

	ListenAddr      string
	Mode            Mode
	ShutdownTimeout time.Duration

	// MaxMembers caps concurrent relay connections. 0 means unlimited.
	MaxMembers      int
	MaxMessageBytes int64
	// MessagesPerSecond and BytesPerSecond bound what one connection may send.
	// A value <= 0 disables that limit.
	MessagesPerSecond int
	MessageBurst      int
	BytesPerSecond    int
	IdleTimeout       time.Duration
	PingInterval      time.Duration
	// AllowedOrigins lists browser origins that may connect. Empty allows any
	// origin.
	AllowedOrigins []string

	// ICEServers is what GET /webrtc/ice hands to peers.
	ICEServers []webrtc.ICEServer

	iceConfigErr error
}

// ICEConfigError is the error from parsing the ICE server settings, if any.
// The relay still starts without ICE servers when this is set.
func (c Config) ICEConfigError() error {
	return c.iceConfigErr
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

func load(lookup func(string) (string, bool), args []string) (Config, error) {
	envMode, _ := lookup(envVarMode)
	modeDefault := string(DefaultMode)
	if envMode != "" {
		modeDefault = envMode
	}

	envLogFormat, envLogFormatOK := lookup(envVarLogFormat)
	envLogFormatSet := envLogFormatOK && envLogFormat != ""
	logFormatDefault := envLogFormat
	if !envLogFormatSet {
		logFormatDefault = defaultLogFormatForMode(modeDefault)
	}

	envLogLevel, envLogLevelOK := lookup(envVarLogLevel)
	envLogLevelSet := envLogLevelOK && envLogLevel != ""
	logLevelDefault := envLogLevel
	if !envLogLevelSet {
		logLevelDefault = defaultLogLevelForMode(modeDefault)
	}

	listenAddr := DefaultListenAddr
	if raw, ok := lookup(envVarPort); ok && strings.TrimSpace(raw) != "" {
		p, err := parsePortString(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarPort, raw, err)
		}
		listenAddr = ":" + strconv.Itoa(int(p))
	}
	listenAddr = envOrDefault(lookup, envVarListenAddr, listenAddr)
	logFile := envOrDefault(lookup, envVarLogFile, "")
	allowedOrigins := envOrDefault(lookup, envVarAllowedOrigins, "")

	iceServersJSON := envOrDefault(lookup, envICEServersJSON, "")
	stunURLs := envOrDefault(lookup, envStunURLs, "")
	turnURLs := envOrDefault(lookup, envTurnURLs, "")
	turnUsername := envOrDefault(lookup, envTurnUsername, "")
	turnCredential := envOrDefault(lookup, envTurnCredential, "")

	shutdownTimeout, err := envDurationOrDefault(lookup, envVarShutdownTimeout, DefaultShutdown)
	if err != nil {
		return Config{}, err
	}
	idleTimeout, err := envDurationOrDefault(lookup, envVarIdleTimeout, DefaultIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	pingInterval, err := envDurationOrDefault(lookup, envVarPingInterval, DefaultPingInterval)
	if err != nil {
		return Config{}, err
	}

	maxMembers, err := envIntOrDefault(lookup, envVarMaxMembers, 0)
	if err != nil {
		return Config{}, err
	}
	maxMessageBytes := DefaultMaxMessageBytes
	if raw, ok := lookup(envVarMaxMessageBytes); ok && strings.TrimSpace(raw) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarMaxMessageBytes, raw, err)
		}
		maxMessageBytes = n
	}
	messagesPerSecond, err := envIntOrDefault(lookup, envVarMessagesPerSecond, DefaultMessagesPerSecond)
	if err != nil {
		return Config{}, err
	}
	messageBurst, err := envIntOrDefault(lookup, envVarMessageBurst, DefaultMessageBurst)
	if err != nil {
		return Config{}, err
	}
	bytesPerSecond, err := envIntOrDefault(lookup, envVarBytesPerSecond, 0)
	if err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("spatialcall-relay", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		modeStr      string
		logFormatStr string
		logLevelStr  string
	)

	fs.StringVar(&listenAddr, "listen-addr", listenAddr, "HTTP listen address (host:port; env "+envVarListenAddr+" or "+envVarPort+")")
	fs.StringVar(&modeStr, "mode", modeDefault, "Run mode: dev or prod")
	fs.StringVar(&logFormatStr, "log-format", logFormatDefault, "Log format: text or json")
	fs.StringVar(&logLevelStr, "log-level", logLevelDefault, "Log level: debug, info, warn, error")
	fs.StringVar(&logFile, "log-file", logFile, "Write logs to this rotating file instead of stdout (env "+envVarLogFile+")")
	fs.DurationVar(&shutdownTimeout, "shutdown-timeout", shutdownTimeout, "Graceful shutdown timeout (e.g. 15s)")
	fs.StringVar(&iceServersJSON, "ice-servers-json", iceServersJSON, "ICE server JSON config ("+envICEServersJSON+")")
	fs.StringVar(&stunURLs, "stun-urls", stunURLs, "comma-separated STUN URLs ("+envStunURLs+")")
	fs.StringVar(&turnURLs, "turn-urls", turnURLs, "comma-separated TURN URLs ("+envTurnURLs+")")
	fs.StringVar(&turnUsername, "turn-username", turnUsername, "TURN username ("+envTurnUsername+")")
	fs.StringVar(&turnCredential, "turn-credential", turnCredential, "TURN credential ("+envTurnCredential+")")

	fs.IntVar(&maxMembers, "max-members", maxMembers, "Maximum concurrent relay connections (0 = unlimited; env "+envVarMaxMembers+")")
	fs.Int64Var(&maxMessageBytes, "max-message-bytes", maxMessageBytes, "Maximum size of one signaling message (env "+envVarMaxMessageBytes+")")
	fs.IntVar(&messagesPerSecond, "messages-per-second", messagesPerSecond, "Signaling messages/sec per connection (0 = unlimited; env "+envVarMessagesPerSecond+")")
	fs.IntVar(&messageBurst, "message-burst", messageBurst, "Signaling message burst per connection (env "+envVarMessageBurst+")")
	fs.IntVar(&bytesPerSecond, "bytes-per-second", bytesPerSecond, "Signaling bytes/sec per connection (0 = unlimited; env "+envVarBytesPerSecond+")")
	fs.DurationVar(&idleTimeout, "idle-timeout", idleTimeout, "Close connections that send nothing (not even pongs) for this long (env "+envVarIdleTimeout+")")
	fs.DurationVar(&pingInterval, "ping-interval", pingInterval, "WebSocket ping interval (env "+envVarPingInterval+")")
	fs.StringVar(&allowedOrigins, "allowed-origins", allowedOrigins, "Comma-separated browser origins allowed to connect, or * (empty = any; env "+envVarAllowedOrigins+")")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	setFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	mode, err := parseMode(modeStr)
	if err != nil {
		return Config{}, err
	}

	// A --mode flag changes the logging defaults unless they were set
	// explicitly.
	if !envLogFormatSet && !setFlags["log-format"] {
		logFormatStr = defaultLogFormatForMode(string(mode))
	}
	if !envLogLevelSet && !setFlags["log-level"] {
		logLevelStr = defaultLogLevelForMode(string(mode))
	}

	logFormat, err := parseLogFormat(logFormatStr)
	if err != nil {
		return Config{}, err
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(listenAddr) == "" {
		return Config{}, fmt.Errorf("listen address must not be empty")
	}
	if shutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("shutdown timeout must be > 0")
	}
	if maxMembers < 0 {
		return Config{}, fmt.Errorf("%s/--max-members must be >= 0", envVarMaxMembers)
	}
	if maxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("%s/--max-message-bytes must be > 0", envVarMaxMessageBytes)
	}
	if idleTimeout <= 0 {
		return Config{}, fmt.Errorf("%s/--idle-timeout must be > 0", envVarIdleTimeout)
	}
	if pingInterval <= 0 || pingInterval >= idleTimeout {
		return Config{}, fmt.Errorf("%s/--ping-interval must be > 0 and < idle timeout (%s); got %s", envVarPingInterval, idleTimeout, pingInterval)
	}
	origins := splitCommaSeparated(allowedOrigins)
	if _, err := origin.NewChecker(origins); err != nil {
		return Config{}, fmt.Errorf("%s/--allowed-origins: %w", envVarAllowedOrigins, err)
	}
	if messagesPerSecond > 0 && messageBurst <= 0 {
		messageBurst = messagesPerSecond
	}

	cfg := Config{
		Logging: Logging{
			LogFormat: logFormat,
			LogLevel:  level,
			LogFile:   strings.TrimSpace(logFile),
		},
		ListenAddr:        listenAddr,
		Mode:              mode,
		ShutdownTimeout:   shutdownTimeout,
		MaxMembers:        maxMembers,
		MaxMessageBytes:   maxMessageBytes,
		MessagesPerSecond: messagesPerSecond,
		MessageBurst:      messageBurst,
		BytesPerSecond:    bytesPerSecond,
		IdleTimeout:       idleTimeout,
		PingInterval:      pingInterval,
		AllowedOrigins:    origins,
	}

	iceServers, err := parseICEServersFromValues(iceServersJSON, stunURLs, turnURLs, turnUsername, turnCredential)
	if err != nil {
		cfg.iceConfigErr = err
	} else {
		cfg.ICEServers = iceServers
	}

	return cfg, nil
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envDurationOrDefault(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func defaultLogFormatForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return string(LogFormatJSON)
	default:
		return string(LogFormatText)
	}
}

func defaultLogLevelForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return "info"
	default:
		return "debug"
	}
}

func parseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeDev), "development":
		return ModeDev, nil
	case string(ModeProd), "production":
		return ModeProd, nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected dev or prod)", raw)
	}
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(LogFormatText):
		return LogFormatText, nil
	case string(LogFormatJSON):
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format %q (expected text or json)", raw)
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug, info, warn, error)", raw)
	}
}

func IsUnspecifiedIP(ip net.IP) bool {
	return ip == nil || ip.Equal(net.IPv4zero) || ip.Equal(net.IPv6zero)
}

func parsePortString(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return parsePortUint(uint(v))
}

func parsePortUint(v uint) (uint16, error) {
	if v == 0 || v > 65535 {
		return 0, fmt.Errorf("port %d out of range (1-65535)", v)
	}
	return uint16(v), nil
}

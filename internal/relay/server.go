package relay

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spatialcall/spatialcall/internal/metrics"
	"github.com/spatialcall/spatialcall/internal/ratelimit"
)

const (
	wsWriteWait = 10 * time.Second

	DefaultMaxMessageBytes   = 64 * 1024
	DefaultIdleTimeout       = 60 * time.Second
	DefaultPingInterval      = (DefaultIdleTimeout * 9) / 10
	DefaultSendQueueMessages = 64
)

var (
	errMemberClosed = errors.New("relay: member closed")
	errQueueFull    = errors.New("relay: send queue full")
)

type ServerConfig struct {
	// MaxMembers caps concurrent members. 0 means unlimited.
	MaxMembers        int
	MaxMessageBytes   int64
	MessagesPerSecond int
	MessageBurst      int
	BytesPerSecond    int
	IdleTimeout       time.Duration
	PingInterval      time.Duration
	SendQueueMessages int
	Clock             ratelimit.Clock
	// CheckOrigin vets browser upgrades. nil allows every origin.
	CheckOrigin func(*http.Request) bool
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.IdleTimeout {
		c.PingInterval = (c.IdleTimeout * 9) / 10
	}
	if c.SendQueueMessages <= 0 {
		c.SendQueueMessages = DefaultSendQueueMessages
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = func(*http.Request) bool { return true }
	}
	return c
}

// Server accepts WebSocket connections and joins each one to the relay.
type Server struct {
	relay    *Relay
	cfg      ServerConfig
	log      *slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*wsMember]struct{}
	closed bool
}

func NewServer(r *Relay, cfg ServerConfig, logger *slog.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg = cfg.withDefaults()
	return &Server{
		relay:   r,
		cfg:     cfg,
		log:     logger,
		metrics: m,
		upgrader: websocket.Upgrader{
			CheckOrigin: cfg.CheckOrigin,
		},
		conns: make(map[*wsMember]struct{}),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxMembers > 0 && s.relay.Len() >= s.cfg.MaxMembers {
		s.metrics.Inc(metrics.RelayRejectedFull)
		http.Error(w, "relay full", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("relay upgrade failed", "remote_addr", r.RemoteAddr, "origin", r.Header.Get("Origin"), "err", err)
		return
	}

	m := &wsMember{
		conn: conn,
		send: make(chan []byte, s.cfg.SendQueueMessages),
		done: make(chan struct{}),
	}
	m.open.Store(true)

	if !s.track(m) {
		writeClose(conn, websocket.CloseGoingAway, "shutting down")
		_ = conn.Close()
		return
	}
	defer s.untrack(m)

	if !s.relay.Admit(m, s.cfg.MaxMembers) {
		writeClose(conn, websocket.CloseTryAgainLater, "relay full")
		_ = conn.Close()
		return
	}
	defer s.relay.Disconnect(m)

	s.log.Info("relay connection opened", "remote_addr", r.RemoteAddr)

	go m.writePump(s.cfg.PingInterval)
	s.readPump(m)
	m.shutdown()

	s.log.Info("relay connection closed", "remote_addr", r.RemoteAddr)
}

// Close disconnects every member. New connections are refused afterwards.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	conns := make([]*wsMember, 0, len(s.conns))
	for m := range s.conns {
		conns = append(conns, m)
	}
	s.mu.Unlock()

	for _, m := range conns {
		m.shutdown()
	}
}

func (s *Server) track(m *wsMember) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[m] = struct{}{}
	return true
}

func (s *Server) untrack(m *wsMember) {
	s.mu.Lock()
	delete(s.conns, m)
	s.mu.Unlock()
}

func (s *Server) readPump(m *wsMember) {
	conn := m.conn
	conn.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
	})

	limiter := ratelimit.NewConnLimiter(s.cfg.Clock, ratelimit.ConnLimits{
		MessagesPerSecond: s.cfg.MessagesPerSecond,
		MessageBurst:      s.cfg.MessageBurst,
		BytesPerSecond:    s.cfg.BytesPerSecond,
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				writeClose(conn, websocket.CloseMessageTooBig, "message too large")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))

		// Charge the limiter after reading so the socket buffer is drained.
		if !limiter.Allow(len(data)) {
			s.metrics.Inc(metrics.DropReasonRateLimited)
			continue
		}
		if msgType != websocket.TextMessage {
			s.metrics.Inc(metrics.RelayMalformed)
			continue
		}
		s.relay.Message(m, data)
	}
}

// wsMember adapts a WebSocket connection to Member. Writes go through a
// bounded queue drained by writePump.
type wsMember struct {
	conn *websocket.Conn
	send chan []byte

	open     atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
}

func (m *wsMember) Open() bool { return m.open.Load() }

func (m *wsMember) Send(raw []byte) error {
	if !m.open.Load() {
		return errMemberClosed
	}
	select {
	case m.send <- raw:
		return nil
	case <-m.done:
		return errMemberClosed
	default:
		return errQueueFull
	}
}

func (m *wsMember) shutdown() {
	m.doneOnce.Do(func() {
		m.open.Store(false)
		close(m.done)
	})
}

func (m *wsMember) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = m.conn.Close()
	}()

	for {
		select {
		case msg := <-m.send:
			_ = m.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := m.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				m.shutdown()
				return
			}
		case <-ticker.C:
			_ = m.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := m.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				m.shutdown()
				return
			}
		case <-m.done:
			writeClose(m.conn, websocket.CloseNormalClosure, "")
			return
		}
	}
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}

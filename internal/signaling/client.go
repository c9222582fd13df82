package signaling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendQueueSize  = 64
)

var (
	ErrClientClosed  = errors.New("signaling: client closed")
	ErrSendQueueFull = errors.New("signaling: send queue full")
)

// Handler receives every well-formed envelope from the relay, in arrival
// order, on the client's read goroutine.
type Handler func(Envelope)

type ClientOptions struct {
	Logger *slog.Logger
	// OnClose runs once after the connection is gone, with the read error
	// (nil after a local Close).
	OnClose func(error)
	Dialer  *websocket.Dialer
}

// Client is a relay connection. Sends are queued and written by a single
// writer goroutine; inbound messages are decoded and passed to the handler.
type Client struct {
	conn    *websocket.Conn
	log     *slog.Logger
	handler Handler
	onClose func(error)

	outgoing chan []byte
	done     chan struct{}

	closeOnce sync.Once
	closing   chan struct{}
}

// Dial connects to the relay at url. ctx bounds the handshake only.
func Dial(ctx context.Context, url string, handler Handler, opts ClientOptions) (*Client, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c := &Client{
		conn:     conn,
		log:      logger,
		handler:  handler,
		onClose:  opts.OnClose,
		outgoing: make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
		closing:  make(chan struct{}),
	}
	go c.readPump()
	go c.writePump()
	return c, nil
}

// Send queues raw for delivery. It never blocks.
func (c *Client) Send(raw []byte) error {
	select {
	case <-c.closing:
		return ErrClientClosed
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.outgoing <- raw:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Done is closed once the read side has stopped.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close starts a graceful close. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closing)
	})
	return nil
}

func (c *Client) readPump() {
	var readErr error
	defer func() {
		_ = c.conn.Close()
		close(c.done)
		if c.onClose != nil {
			select {
			case <-c.closing:
				c.onClose(nil)
			default:
				c.onClose(readErr)
			}
		}
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			readErr = err
			return
		}
		if msgType != websocket.TextMessage {
			c.log.Debug("dropping non-text signaling message")
			continue
		}
		env, err := ParseEnvelope(data)
		if err != nil {
			c.log.Debug("dropping malformed signaling message", "err", err)
			continue
		}
		if c.handler != nil {
			c.handler(env)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closing:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case <-c.done:
			return
		}
	}
}

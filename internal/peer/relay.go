package peer

import (
	"context"
	"errors"
	"fmt"

	"github.com/spatialcall/spatialcall/internal/signaling"
)

// ConnectSignaling opens a relay connection. From then on local descriptions
// and candidates are also sent over the relay, and relayed offers, answers and
// candidates are applied as they arrive. An offer received before Initialize
// initializes the transport first.
func (m *Manager) ConnectSignaling(ctx context.Context, url string) error {
	m.mu.Lock()
	if m.sig != nil || m.sigDialing {
		m.mu.Unlock()
		return fmt.Errorf("%w: relay already connected", ErrInvalidState)
	}
	m.sigDialing = true
	m.sigGen++
	gen := m.sigGen
	m.mu.Unlock()

	conn, err := m.dial(ctx, url, func(env signaling.Envelope) { m.onSignal(gen, env) }, func(err error) { m.onSignalClosed(gen, err) })

	m.mu.Lock()
	m.sigDialing = false
	if err != nil {
		m.sigGen++
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrRelayUnavailable, err)
	}
	if m.sigGen != gen {
		// Closed before the dial finished.
		m.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("%w: connection closed during dial", ErrRelayUnavailable)
	}
	m.sig = conn
	m.mu.Unlock()

	m.log.Info("relay connected", "url", url)
	if fn := m.observer.OnSignalingChange; fn != nil {
		fn(true)
	}
	return nil
}

// DisconnectSignaling closes the relay connection. It reports false when
// none was open.
func (m *Manager) DisconnectSignaling() bool {
	m.mu.Lock()
	conn := m.sig
	if conn == nil {
		m.mu.Unlock()
		return false
	}
	m.sig = nil
	m.sigGen++
	m.mu.Unlock()

	_ = conn.Close()
	m.log.Info("relay disconnected")
	if fn := m.observer.OnSignalingChange; fn != nil {
		fn(false)
	}
	return true
}

func (m *Manager) SignalingConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sig != nil
}

// Publish sends the current local description and every local candidate over
// the relay. It is how a session started by copy and paste moves to the relay.
func (m *Manager) Publish() error {
	m.mu.Lock()
	conn := m.sig
	desc := m.localDesc
	cands := append([]ICECandidate(nil), m.localCandidates...)
	m.mu.Unlock()

	if conn == nil {
		return ErrRelayUnavailable
	}
	if desc == nil {
		return fmt.Errorf("%w: no local description to publish", ErrInvalidState)
	}
	m.sendSDP(conn, *desc)
	for _, c := range cands {
		m.sendCandidate(conn, c)
	}
	return nil
}

func (m *Manager) onSignalClosed(gen uint64, err error) {
	m.mu.Lock()
	if m.sigGen != gen {
		m.mu.Unlock()
		return
	}
	m.sig = nil
	m.sigGen++
	m.mu.Unlock()

	m.log.Warn("relay connection lost", "err", err)
	if fn := m.observer.OnSignalingChange; fn != nil {
		fn(false)
	}
}

// onSignal runs on the relay client's read goroutine, so envelopes are handled
// strictly in arrival order.
func (m *Manager) onSignal(gen uint64, env signaling.Envelope) {
	m.mu.Lock()
	live := m.sigGen == gen
	m.mu.Unlock()
	if !live {
		return
	}
	if err := m.HandleSignal(context.Background(), env); err != nil {
		m.log.Warn("relayed message rejected", "type", env.Type, "err", err)
	}
}

// HandleSignal applies one signaling envelope from the other side: an offer
// initializes the transport if needed and is answered, an answer completes
// negotiation, and a candidate is added. Unknown types are ignored. Manual
// mode feeds pasted envelopes through here as well.
func (m *Manager) HandleSignal(ctx context.Context, env signaling.Envelope) error {
	switch env.Type {
	case signaling.MessageTypeOffer:
		sdp, err := env.SDP()
		if err != nil {
			return err
		}
		if !m.Initialized() {
			if err := m.Initialize(); err != nil && !errors.Is(err, ErrAlreadyInitialized) {
				return err
			}
		}
		if err := m.SetRemoteSDP(ctx, sdp, SDPTypeOffer); err != nil {
			return err
		}
		if _, err := m.CreateAnswer(ctx); err != nil {
			return fmt.Errorf("answer offer: %w", err)
		}
	case signaling.MessageTypeAnswer:
		sdp, err := env.SDP()
		if err != nil {
			return err
		}
		return m.SetRemoteSDP(ctx, sdp, SDPTypeAnswer)
	case signaling.MessageTypeICE:
		c, err := env.Candidate()
		if err != nil {
			return err
		}
		return m.AddICECandidate(c)
	default:
		m.log.Debug("ignoring signaling message", "type", env.Type)
	}
	return nil
}

func (m *Manager) sendSDP(conn SignalingConn, desc SessionDescription) {
	raw, err := signaling.EncodeSDP(signaling.MessageType(desc.Type), desc.SDP)
	if err != nil {
		m.log.Error("encoding description failed", "err", err)
		return
	}
	if err := conn.Send(raw); err != nil {
		m.log.Warn("sending description to relay failed", "type", desc.Type, "err", err)
	}
}

func (m *Manager) sendCandidate(conn SignalingConn, c ICECandidate) {
	raw, err := signaling.EncodeCandidate(c)
	if err != nil {
		m.log.Error("encoding candidate failed", "err", err)
		return
	}
	if err := conn.Send(raw); err != nil {
		m.log.Warn("sending candidate to relay failed", "err", err)
	}
}

package peer

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/spatialcall/spatialcall/internal/geometry"
	"github.com/spatialcall/spatialcall/internal/pose"
	"github.com/spatialcall/spatialcall/internal/spatial"
)

// SetLocalPose records the listener pose, recomputes the remote peer's
// parameters and, once the data channel is open, sends the pose unless it
// moved less than the throttle thresholds.
func (m *Manager) SetLocalPose(p geometry.Pose) {
	m.mu.Lock()
	m.localPose = p
	params := m.recomputeLocked()
	var t Transport
	if m.dataOpen && m.throttle.Allow(p) {
		t = m.transport
	}
	m.mu.Unlock()

	m.emitParameters(params)
	if t != nil {
		m.send(t, pose.NewPosition(m.peerID, p))
	}
}

// SetSpeaking records voice activity and sends it when it changed.
func (m *Manager) SetSpeaking(speaking bool) {
	m.mu.Lock()
	changed := m.speaking != speaking
	m.speaking = speaking
	var t Transport
	if changed && m.dataOpen {
		t = m.transport
	}
	m.mu.Unlock()

	if t != nil {
		m.send(t, pose.NewSpeaking(m.peerID, speaking))
	}
}

// LocalPose returns the last pose passed to SetLocalPose.
func (m *Manager) LocalPose() geometry.Pose {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.localPose
}

func (m *Manager) SetAudioOptions(opts spatial.Options) {
	m.mu.Lock()
	m.audio = opts
	params := m.recomputeLocked()
	m.mu.Unlock()
	m.emitParameters(params)
}

func (m *Manager) SetRooms(rooms []geometry.Room) {
	m.mu.Lock()
	m.rooms = slices.Clone(rooms)
	params := m.recomputeLocked()
	m.mu.Unlock()
	m.emitParameters(params)
}

// RunPoseTicker sends the current pose every interval while the data channel
// is open, regardless of the throttle. It returns when ctx is done, or at once
// with ErrInvalidInterval for a non-positive interval.
func (m *Manager) RunPoseTicker(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.mu.Lock()
			p := m.localPose
			var t Transport
			if m.dataOpen {
				t = m.transport
			}
			m.mu.Unlock()
			if t != nil {
				m.send(t, pose.NewPosition(m.peerID, p))
			}
		}
	}
}

func (m *Manager) onDataOpen(gen uint64) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.dataOpen = true
	m.throttle.Reset()
	p := m.localPose
	m.throttle.Allow(p)
	speaking := m.speaking
	t := m.transport
	m.mu.Unlock()

	m.log.Info("data channel open", "codec", m.codec.Name())
	if t == nil {
		return
	}
	m.send(t, pose.NewPosition(m.peerID, p))
	m.send(t, pose.NewSpeaking(m.peerID, speaking))
}

func (m *Manager) onDataMessage(gen uint64, b []byte) {
	msg, err := pose.Decode(b)
	if err != nil {
		m.log.Debug("dropping data channel message", "err", err)
		return
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	var state pose.PeerState
	if m.remotePeer != nil {
		state = *m.remotePeer
	}
	state = state.Apply(msg)
	m.remotePeer = &state
	var params *spatial.Parameters
	if msg.Type == pose.TypePosition {
		params = m.recomputeLocked()
	}
	m.mu.Unlock()

	if fn := m.observer.OnRemotePeer; fn != nil {
		snapshot := state
		fn(&snapshot)
	}
	m.emitParameters(params)
}

// recomputeLocked refreshes the cached parameters and returns a copy, or nil
// while the remote pose is unknown.
func (m *Manager) recomputeLocked() *spatial.Parameters {
	if m.remotePeer == nil || !m.remotePeer.HasPose {
		return nil
	}
	p := spatial.ComputeFrom(m.localPose, m.remotePeer.Pose(), m.rooms, &m.audio)
	m.params = &p
	out := p
	return &out
}

func (m *Manager) emitParameters(p *spatial.Parameters) {
	if p == nil {
		return
	}
	if fn := m.observer.OnParameters; fn != nil {
		fn(*p)
	}
}

func (m *Manager) send(t Transport, msg pose.Message) {
	b, err := m.codec.Encode(msg)
	if err != nil {
		m.log.Warn("encoding pose message failed", "type", msg.Type, "err", err)
		return
	}
	if err := t.SendData(b); err != nil {
		m.log.Debug("sending pose message failed", "type", msg.Type, "err", err)
	}
}

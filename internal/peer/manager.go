// Package peer drives one side of a two-party call: it owns the RTC transport,
// runs offer/answer negotiation either by hand or through the signaling relay,
// and turns the remote participant's pose updates into spatial audio
// parameters.
package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/spatialcall/spatialcall/internal/geometry"
	"github.com/spatialcall/spatialcall/internal/pose"
	"github.com/spatialcall/spatialcall/internal/signaling"
	"github.com/spatialcall/spatialcall/internal/spatial"
)

// ErrDecode marks inbound data-channel messages that failed to decode. They
// are logged and dropped.
var ErrDecode = pose.ErrDecode

// Observer holds optional callbacks. They run on whichever goroutine caused
// the change and never while the manager's lock is held.
type Observer struct {
	OnStateChange     func(State)
	OnLocalSDP        func(SessionDescription)
	OnLocalCandidate  func(ICECandidate)
	OnRemoteTrack     func(Track)
	OnRemotePeer      func(*pose.PeerState)
	OnParameters      func(spatial.Parameters)
	OnSignalingChange func(connected bool)
}

type Config struct {
	Transport TransportFactory
	// Dial opens relay connections. Defaults to signaling.Dial.
	Dial SignalingDialer

	Logger   *slog.Logger
	Observer Observer

	// PeerID identifies this side in pose messages. Defaults to a random UUID.
	PeerID string
	// Codec encodes pose messages. Defaults to JSON.
	Codec pose.Codec

	Audio *spatial.Options
	Rooms []geometry.Room

	// MinMove and MinTurn bound how small a pose change may be before
	// SetLocalPose stops sending it. Zero selects the pose package defaults.
	MinMove float64
	MinTurn float64
}

// Manager is safe for concurrent use.
type Manager struct {
	factory  TransportFactory
	dial     SignalingDialer
	log      *slog.Logger
	observer Observer
	peerID   string
	codec    pose.Codec

	mu           sync.Mutex
	transport    Transport
	gen          uint64
	initializing bool
	state        State

	localDesc       *SessionDescription
	remoteDesc      *SessionDescription
	localCandidates []ICECandidate
	heldLocal       []ICECandidate
	pendingRemote   []ICECandidate
	remoteTrack     *Track
	remotePeer      *pose.PeerState
	params          *spatial.Parameters
	dataOpen        bool

	localPose geometry.Pose
	speaking  bool
	throttle  pose.Throttle
	audio     spatial.Options
	rooms     []geometry.Room

	sig        SignalingConn
	sigGen     uint64
	sigDialing bool
}

func New(cfg Config) (*Manager, error) {
	if cfg.Transport == nil {
		return nil, errors.New("peer: transport factory is required")
	}
	m := &Manager{
		factory:  cfg.Transport,
		dial:     cfg.Dial,
		log:      cfg.Logger,
		observer: cfg.Observer,
		peerID:   cfg.PeerID,
		codec:    cfg.Codec,
		state:    StateNew,
		rooms:    slices.Clone(cfg.Rooms),
		throttle: pose.Throttle{MinMove: cfg.MinMove, MinTurn: cfg.MinTurn},
	}
	if m.log == nil {
		m.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.peerID == "" {
		m.peerID = uuid.NewString()
	}
	if m.codec == nil {
		m.codec = pose.JSON{}
	}
	if m.throttle.MinMove <= 0 {
		m.throttle.MinMove = pose.DefaultMinMove
	}
	if m.throttle.MinTurn <= 0 {
		m.throttle.MinTurn = pose.DefaultMinTurn
	}
	if cfg.Audio != nil {
		m.audio = *cfg.Audio
	} else {
		m.audio = spatial.DefaultOptions()
	}
	if m.dial == nil {
		m.dial = dialRelay(m.log)
	}
	m.log = m.log.With("peer_id", m.peerID)
	return m, nil
}

func dialRelay(logger *slog.Logger) SignalingDialer {
	return func(ctx context.Context, url string, handler signaling.Handler, onClose func(error)) (SignalingConn, error) {
		c, err := signaling.Dial(ctx, url, handler, signaling.ClientOptions{Logger: logger, OnClose: onClose})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Initialize creates the transport. It fails with ErrAlreadyInitialized while
// one exists.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	if m.transport != nil || m.initializing {
		m.mu.Unlock()
		return ErrAlreadyInitialized
	}
	m.initializing = true
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	t, err := m.factory(m.handlers(gen))

	m.mu.Lock()
	m.initializing = false
	if err != nil {
		m.gen++
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrTransportFailed, err)
	}
	m.transport = t
	m.mu.Unlock()

	m.log.Info("transport initialized")
	return nil
}

// CreateOffer makes and applies a local offer. The offer is published to the
// observer and, when connected, sent over the relay. Calling it again
// renegotiates.
func (m *Manager) CreateOffer(ctx context.Context) (SessionDescription, error) {
	t, gen, err := m.current()
	if err != nil {
		return SessionDescription{}, err
	}
	desc, err := t.CreateOffer(ctx)
	if err != nil {
		return SessionDescription{}, fmt.Errorf("%w: create offer: %v", ErrNegotiation, err)
	}
	if err := m.applyLocal(ctx, t, gen, desc); err != nil {
		return SessionDescription{}, err
	}
	return desc, nil
}

// CreateAnswer answers a previously applied remote offer.
func (m *Manager) CreateAnswer(ctx context.Context) (SessionDescription, error) {
	t, gen, err := m.current()
	if err != nil {
		return SessionDescription{}, err
	}
	m.mu.Lock()
	hasOffer := m.remoteDesc != nil && m.remoteDesc.Type == SDPTypeOffer
	m.mu.Unlock()
	if !hasOffer {
		return SessionDescription{}, fmt.Errorf("%w: no remote offer to answer", ErrNegotiation)
	}

	desc, err := t.CreateAnswer(ctx)
	if err != nil {
		return SessionDescription{}, fmt.Errorf("%w: create answer: %v", ErrNegotiation, err)
	}
	if err := m.applyLocal(ctx, t, gen, desc); err != nil {
		return SessionDescription{}, err
	}
	return desc, nil
}

func (m *Manager) applyLocal(ctx context.Context, t Transport, gen uint64, desc SessionDescription) error {
	if err := t.SetLocalDescription(ctx, desc); err != nil {
		return fmt.Errorf("%w: set local %s: %v", ErrNegotiation, desc.Type, err)
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrInvalidState, ErrNotInitialized)
	}
	d := desc
	m.localDesc = &d
	held := m.heldLocal
	m.heldLocal = nil
	m.localCandidates = append(m.localCandidates, held...)
	sig := m.sig
	m.mu.Unlock()

	m.log.Info("local description applied", "type", desc.Type)
	if fn := m.observer.OnLocalSDP; fn != nil {
		fn(desc)
	}
	if sig != nil {
		m.sendSDP(sig, desc)
	}
	for _, c := range held {
		m.emitCandidate(sig, c)
	}
	return nil
}

// SetRemoteSDP applies a remote offer or answer and flushes any candidates
// that arrived before it.
func (m *Manager) SetRemoteSDP(ctx context.Context, sdp string, kind SDPType) error {
	t, gen, err := m.current()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if _, ok := ParseSDPType(string(kind)); !ok {
		return fmt.Errorf("%w: unknown description type %q", ErrNegotiation, kind)
	}
	if sdp == "" {
		return fmt.Errorf("%w: empty %s", ErrNegotiation, kind)
	}

	desc := SessionDescription{Type: kind, SDP: sdp}
	if err := t.SetRemoteDescription(ctx, desc); err != nil {
		return fmt.Errorf("%w: set remote %s: %v", ErrNegotiation, kind, err)
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrInvalidState, ErrNotInitialized)
	}
	m.remoteDesc = &desc
	pending := m.pendingRemote
	m.pendingRemote = nil
	m.mu.Unlock()

	m.log.Info("remote description applied", "type", kind, "queued_candidates", len(pending))
	for _, c := range pending {
		if err := t.AddICECandidate(c); err != nil {
			m.log.Warn("queued remote candidate rejected", "err", err)
		}
	}
	return nil
}

// AddICECandidate applies a remote candidate, or queues it until a remote
// description exists. An empty candidate marks end of gathering and is
// ignored.
func (m *Manager) AddICECandidate(c ICECandidate) error {
	if c.Candidate == "" {
		return nil
	}
	m.mu.Lock()
	t := m.transport
	if t == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrInvalidState, ErrNotInitialized)
	}
	if m.isLocalCandidateLocked(c) {
		m.mu.Unlock()
		return fmt.Errorf("%w: refusing to apply a local candidate as remote", ErrNegotiation)
	}
	if m.remoteDesc == nil {
		m.pendingRemote = append(m.pendingRemote, c)
		m.mu.Unlock()
		m.log.Debug("queued remote candidate until remote description")
		return nil
	}
	m.mu.Unlock()

	if err := t.AddICECandidate(c); err != nil {
		return fmt.Errorf("%w: add candidate: %v", ErrNegotiation, err)
	}
	return nil
}

// isLocalCandidateLocked covers candidates already emitted and those held
// until the local description is applied.
func (m *Manager) isLocalCandidateLocked(c ICECandidate) bool {
	for _, list := range [][]ICECandidate{m.localCandidates, m.heldLocal} {
		for _, own := range list {
			if own.Candidate == c.Candidate {
				return true
			}
		}
	}
	return false
}

// Disconnect tears the transport down and resets session state. It reports
// false when there was nothing to tear down.
func (m *Manager) Disconnect() bool {
	m.mu.Lock()
	t := m.transport
	if t == nil {
		m.mu.Unlock()
		return false
	}
	m.transport = nil
	m.gen++
	prev := m.state
	m.state = StateNew
	hadPeer := m.remotePeer != nil
	m.resetSessionLocked()
	m.mu.Unlock()

	t.Detach()
	if err := t.Close(); err != nil {
		m.log.Warn("closing transport failed", "err", err)
	}
	m.log.Info("transport closed")

	if prev != StateNew {
		if fn := m.observer.OnStateChange; fn != nil {
			fn(StateNew)
		}
	}
	if hadPeer {
		if fn := m.observer.OnRemotePeer; fn != nil {
			fn(nil)
		}
	}
	return true
}

func (m *Manager) resetSessionLocked() {
	m.localDesc = nil
	m.remoteDesc = nil
	m.localCandidates = nil
	m.heldLocal = nil
	m.pendingRemote = nil
	m.remoteTrack = nil
	m.remotePeer = nil
	m.params = nil
	m.dataOpen = false
	m.throttle.Reset()
}

func (m *Manager) current() (Transport, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transport == nil {
		return nil, 0, ErrNotInitialized
	}
	return m.transport, m.gen, nil
}

func (m *Manager) handlers(gen uint64) TransportHandlers {
	return TransportHandlers{
		OnConnectionStateChange: func(s State) { m.onState(gen, s) },
		OnICECandidate:          func(c ICECandidate) { m.onLocalCandidate(gen, c) },
		OnTrack:                 func(tr Track) { m.onTrack(gen, tr) },
		OnDataOpen:              func() { m.onDataOpen(gen) },
		OnDataMessage:           func(b []byte) { m.onDataMessage(gen, b) },
	}
}

func (m *Manager) onState(gen uint64, s State) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	if s == StateConnected && (m.localDesc == nil || m.remoteDesc == nil) {
		m.mu.Unlock()
		m.log.Warn("ignoring connected state before negotiation finished")
		return
	}
	if s == m.state {
		m.mu.Unlock()
		return
	}
	m.state = s
	if s == StateDisconnected || s == StateFailed {
		m.dataOpen = false
	}
	m.mu.Unlock()

	switch s {
	case StateFailed:
		m.log.Error("connection failed", "err", ErrTransportFailed)
	default:
		m.log.Info("connection state changed", "state", s)
	}
	if fn := m.observer.OnStateChange; fn != nil {
		fn(s)
	}
}

func (m *Manager) onLocalCandidate(gen uint64, c ICECandidate) {
	if c.Candidate == "" {
		return
	}
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	if m.localDesc == nil {
		m.heldLocal = append(m.heldLocal, c)
		m.mu.Unlock()
		return
	}
	m.localCandidates = append(m.localCandidates, c)
	sig := m.sig
	m.mu.Unlock()

	m.emitCandidate(sig, c)
}

func (m *Manager) emitCandidate(sig SignalingConn, c ICECandidate) {
	if fn := m.observer.OnLocalCandidate; fn != nil {
		fn(c)
	}
	if sig != nil {
		m.sendCandidate(sig, c)
	}
}

func (m *Manager) onTrack(gen uint64, tr Track) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	track := tr
	m.remoteTrack = &track
	m.mu.Unlock()

	m.log.Info("remote track", "kind", tr.Kind, "track_id", tr.ID)
	if fn := m.observer.OnRemoteTrack; fn != nil {
		fn(tr)
	}
}

// State is the last connection state the transport reported.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) PeerID() string {
	return m.peerID
}

func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transport != nil
}

// LocalSDP returns the applied local description's SDP, or "".
func (m *Manager) LocalSDP() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.localDesc == nil {
		return ""
	}
	return m.localDesc.SDP
}

func (m *Manager) LocalDescription() (SessionDescription, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.localDesc == nil {
		return SessionDescription{}, false
	}
	return *m.localDesc, true
}

// LocalCandidates returns the candidates emitted so far, in order.
func (m *Manager) LocalCandidates() []ICECandidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.localCandidates)
}

// PendingCandidates is the number of remote candidates waiting for a remote
// description.
func (m *Manager) PendingCandidates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pendingRemote)
}

func (m *Manager) RemoteTrack() (Track, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.remoteTrack == nil {
		return Track{}, false
	}
	return *m.remoteTrack, true
}

func (m *Manager) RemotePeer() (pose.PeerState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.remotePeer == nil {
		return pose.PeerState{}, false
	}
	return *m.remotePeer, true
}

// Parameters returns the spatial parameters for the remote peer. ok is false
// until the remote pose is known.
func (m *Manager) Parameters() (spatial.Parameters, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.params == nil {
		return spatial.Parameters{}, false
	}
	return *m.params, true
}

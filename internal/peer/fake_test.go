package peer

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// fakeTransport is an in-memory transport. It emits one local candidate from
// SetLocalDescription and reports connected once both descriptions are set
// and a remote candidate arrived. SendData hands bytes straight to the partner
// transport's data handler.
type fakeTransport struct {
	name    string
	factory *fakeFactory

	mu        sync.Mutex
	h         TransportHandlers
	original  TransportHandlers
	local     *SessionDescription
	remote    *SessionDescription
	added     []ICECandidate
	sent      [][]byte
	connected bool
	closed    bool
	detached  bool
}

func (f *fakeTransport) handlers() TransportHandlers {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.h
}

func (f *fakeTransport) CreateOffer(context.Context) (SessionDescription, error) {
	return SessionDescription{Type: SDPTypeOffer, SDP: "v=0 offer " + f.name}, nil
}

func (f *fakeTransport) CreateAnswer(context.Context) (SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remote == nil || f.remote.Type != SDPTypeOffer {
		return SessionDescription{}, errors.New("no remote offer")
	}
	return SessionDescription{Type: SDPTypeAnswer, SDP: "v=0 answer " + f.name}, nil
}

func (f *fakeTransport) SetLocalDescription(_ context.Context, d SessionDescription) error {
	f.mu.Lock()
	f.local = &d
	h := f.h
	f.mu.Unlock()

	if h.OnICECandidate != nil {
		h.OnICECandidate(ICECandidate{Candidate: fmt.Sprintf("candidate:%s 1 udp 1 10.0.0.1 5000 typ host", f.name)})
	}
	return nil
}

func (f *fakeTransport) SetRemoteDescription(_ context.Context, d SessionDescription) error {
	if d.SDP == "reject" {
		return errors.New("malformed sdp")
	}
	f.mu.Lock()
	f.remote = &d
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) AddICECandidate(c ICECandidate) error {
	f.mu.Lock()
	if f.remote == nil {
		f.mu.Unlock()
		return errors.New("candidate before remote description")
	}
	f.added = append(f.added, c)
	ready := !f.connected && f.local != nil
	if ready {
		f.connected = true
	}
	h := f.h
	f.mu.Unlock()

	if ready {
		if h.OnConnectionStateChange != nil {
			h.OnConnectionStateChange(StateConnecting)
			h.OnConnectionStateChange(StateConnected)
		}
		if h.OnTrack != nil {
			h.OnTrack(Track{ID: "audio", StreamID: "stream", Kind: "audio"})
		}
		if h.OnDataOpen != nil {
			h.OnDataOpen()
		}
	}
	return nil
}

func (f *fakeTransport) SendData(b []byte) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return errors.New("closed")
	}
	f.sent = append(f.sent, append([]byte(nil), b...))
	f.mu.Unlock()

	if f.factory == nil || f.factory.partner == nil {
		return nil
	}
	if peer := f.factory.partner.last(); peer != nil {
		if h := peer.handlers(); h.OnDataMessage != nil {
			h.OnDataMessage(b)
		}
	}
	return nil
}

func (f *fakeTransport) Detach() {
	f.mu.Lock()
	f.h = TransportHandlers{}
	f.detached = true
	f.mu.Unlock()
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) addedCandidates() []ICECandidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ICECandidate(nil), f.added...)
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeFactory records every transport it builds. Transports built by
// linked factories deliver data to the partner's newest transport.
type fakeFactory struct {
	name    string
	err     error
	partner *fakeFactory

	mu    sync.Mutex
	built []*fakeTransport
}

func (ff *fakeFactory) New(h TransportHandlers) (Transport, error) {
	if ff.err != nil {
		return nil, ff.err
	}
	ff.mu.Lock()
	defer ff.mu.Unlock()
	t := &fakeTransport{name: fmt.Sprintf("%s%d", ff.name, len(ff.built)), factory: ff, h: h, original: h}
	ff.built = append(ff.built, t)
	return t, nil
}

func (ff *fakeFactory) last() *fakeTransport {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if len(ff.built) == 0 {
		return nil
	}
	return ff.built[len(ff.built)-1]
}

func linkFactories(a, b *fakeFactory) {
	a.partner = b
	b.partner = a
}

// recordConn is a SignalingConn that keeps what was sent.
type recordConn struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (c *recordConn) Send(raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	c.sent = append(c.sent, raw)
	return nil
}

func (c *recordConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *recordConn) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

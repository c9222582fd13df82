package webrtcpeer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/spatialcall/spatialcall/internal/peer"
	"github.com/spatialcall/spatialcall/internal/pose"
)

const (
	// DataChannelLabelPose carries pose messages. It is pre-negotiated on
	// both sides with a fixed ID so neither end waits for the other to open
	// it.
	DataChannelLabelPose = "pose"
	DataChannelIDPose    = uint16(0)

	audioTrackID  = "audio"
	audioStreamID = "spatialcall"
)

var ErrDataChannelNotOpen = errors.New("data channel not open")

type TransportOptions struct {
	ICEServers []webrtc.ICEServer
	// Protocol labels the local pose codec and defaults to "json". The channel
	// is pre-negotiated, so the label is not exchanged; it only selects text
	// (json) or binary sends.
	Protocol string
	Logger   *slog.Logger
}

// Transport implements peer.Transport on top of one PeerConnection.
type Transport struct {
	pc       *webrtc.PeerConnection
	dc       *webrtc.DataChannel
	audio    *webrtc.TrackLocalStaticSample
	textMode bool
	log      *slog.Logger

	h atomic.Pointer[peer.TransportHandlers]
}

var _ peer.Transport = (*Transport)(nil)

// NewTransportFactory adapts api into the factory peer.Manager calls on
// Initialize.
func NewTransportFactory(api *webrtc.API, opts TransportOptions) peer.TransportFactory {
	return func(h peer.TransportHandlers) (peer.Transport, error) {
		return NewTransport(api, opts, h)
	}
}

func NewTransport(api *webrtc.API, opts TransportOptions, h peer.TransportHandlers) (*Transport, error) {
	if api == nil {
		return nil, errors.New("webrtcpeer: nil api")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	protocol := opts.Protocol
	if protocol == "" {
		protocol = pose.CodecNameJSON
	}

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: opts.ICEServers})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	t := &Transport{
		pc:       pc,
		textMode: protocol == pose.CodecNameJSON,
		log:      logger,
	}
	t.h.Store(&h)

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		audioTrackID, audioStreamID,
	)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("new audio track: %w", err)
	}
	sender, err := pc.AddTrack(audio)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add audio track: %w", err)
	}
	t.audio = audio
	go drainRTCP(sender)

	negotiated := true
	id := DataChannelIDPose
	ordered := true
	dc, err := pc.CreateDataChannel(DataChannelLabelPose, &webrtc.DataChannelInit{
		Negotiated: &negotiated,
		ID:         &id,
		Ordered:    &ordered,
		Protocol:   &protocol,
	})
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("create pose datachannel: %w", err)
	}
	t.dc = dc

	dc.OnOpen(func() {
		if h := t.handlers(); h.OnDataOpen != nil {
			h.OnDataOpen()
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if h := t.handlers(); h.OnDataMessage != nil {
			h.OnDataMessage(msg.Data)
		}
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		t.log.Debug("peer connection state", "state", s.String())
		if h := t.handlers(); h.OnConnectionStateChange != nil {
			h.OnConnectionStateChange(mapState(s))
		}
	})
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		// nil marks the end of gathering.
		if c == nil {
			return
		}
		h := t.handlers()
		if h.OnICECandidate == nil {
			return
		}
		ci := c.ToJSON()
		h.OnICECandidate(peer.ICECandidate{
			Candidate:        ci.Candidate,
			SDPMid:           ci.SDPMid,
			SDPMLineIndex:    ci.SDPMLineIndex,
			UsernameFragment: ci.UsernameFragment,
		})
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if h := t.handlers(); h.OnTrack != nil {
			h.OnTrack(peer.Track{
				ID:       track.ID(),
				StreamID: track.StreamID(),
				Kind:     track.Kind().String(),
				Remote:   track,
			})
		}
	})

	return t, nil
}

func (t *Transport) handlers() peer.TransportHandlers {
	if h := t.h.Load(); h != nil {
		return *h
	}
	return peer.TransportHandlers{}
}

// PeerConnection exposes the underlying connection for stats and tests.
func (t *Transport) PeerConnection() *webrtc.PeerConnection { return t.pc }

// AudioTrack is the local Opus track. Callers feed it encoded samples.
func (t *Transport) AudioTrack() *webrtc.TrackLocalStaticSample { return t.audio }

func (t *Transport) CreateOffer(ctx context.Context) (peer.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return peer.SessionDescription{}, err
	}
	d, err := t.pc.CreateOffer(nil)
	if err != nil {
		return peer.SessionDescription{}, err
	}
	return fromPion(d)
}

func (t *Transport) CreateAnswer(ctx context.Context) (peer.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return peer.SessionDescription{}, err
	}
	d, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return peer.SessionDescription{}, err
	}
	return fromPion(d)
}

func (t *Transport) SetLocalDescription(ctx context.Context, d peer.SessionDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pd, err := toPion(d)
	if err != nil {
		return err
	}
	return t.pc.SetLocalDescription(pd)
}

func (t *Transport) SetRemoteDescription(ctx context.Context, d peer.SessionDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pd, err := toPion(d)
	if err != nil {
		return err
	}
	return t.pc.SetRemoteDescription(pd)
}

func (t *Transport) AddICECandidate(c peer.ICECandidate) error {
	return t.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	})
}

func (t *Transport) SendData(b []byte) error {
	if t.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrDataChannelNotOpen
	}
	if t.textMode {
		return t.dc.SendText(string(b))
	}
	return t.dc.Send(b)
}

// Detach stops event delivery. pion keeps its callbacks registered, so they
// are swapped for no-ops here rather than unset.
func (t *Transport) Detach() {
	t.h.Store(&peer.TransportHandlers{})
}

func (t *Transport) Close() error {
	return t.pc.Close()
}

func mapState(s webrtc.PeerConnectionState) peer.State {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return peer.StateConnecting
	case webrtc.PeerConnectionStateConnected:
		return peer.StateConnected
	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
		return peer.StateDisconnected
	case webrtc.PeerConnectionStateFailed:
		return peer.StateFailed
	default:
		return peer.StateNew
	}
}

func fromPion(d webrtc.SessionDescription) (peer.SessionDescription, error) {
	switch d.Type {
	case webrtc.SDPTypeOffer:
		return peer.SessionDescription{Type: peer.SDPTypeOffer, SDP: d.SDP}, nil
	case webrtc.SDPTypeAnswer:
		return peer.SessionDescription{Type: peer.SDPTypeAnswer, SDP: d.SDP}, nil
	default:
		return peer.SessionDescription{}, fmt.Errorf("unsupported sdp type %s", d.Type)
	}
}

func toPion(d peer.SessionDescription) (webrtc.SessionDescription, error) {
	switch d.Type {
	case peer.SDPTypeOffer:
		return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: d.SDP}, nil
	case peer.SDPTypeAnswer:
		return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: d.SDP}, nil
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("unsupported sdp type %q", d.Type)
	}
}

// drainRTCP keeps the sender's interceptors (NACK, reports) running.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

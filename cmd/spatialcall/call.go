package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spatialcall/spatialcall/internal/config"
	"github.com/spatialcall/spatialcall/internal/geometry"
	"github.com/spatialcall/spatialcall/internal/peer"
	"github.com/spatialcall/spatialcall/internal/pose"
	"github.com/spatialcall/spatialcall/internal/signaling"
	"github.com/spatialcall/spatialcall/internal/spatial"
	"github.com/spatialcall/spatialcall/internal/webrtcpeer"
)

type callFlags struct {
	manual       bool
	offer        bool
	pose         string
	poseInterval time.Duration
}

func newCallCmd(opts *config.PeerOptions) *cobra.Command {
	var flags callFlags

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Join a call through the relay or by copy/paste",
		Long: `Join a two-party call.

Relay mode (default) connects to the signaling relay. Run one side with
--offer; the other side answers automatically.

Manual mode (--manual) prints signaling messages as JSON lines on stdout and
reads the other side's lines from stdin. Paste every line one side prints into
the other side's terminal.

Examples:
  spatialcall call --offer --relay-url ws://relay.example:8765/ws
  spatialcall call --manual --offer --pose 1,2,0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCall(ctx, *opts, flags, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.BoolVar(&flags.manual, "manual", false, "Exchange signaling by copy/paste instead of the relay")
	f.BoolVar(&flags.offer, "offer", false, "Start negotiation (exactly one side should)")
	f.StringVar(&flags.pose, "pose", "", "Local pose as x,y[,facing] (default: audio settings listener, else 0,0,0)")
	f.DurationVar(&flags.poseInterval, "pose-interval", 250*time.Millisecond, "Re-send the local pose at this interval (0 disables)")

	f.StringVar(&opts.RelayURL, "relay-url", "", "Signaling relay WebSocket URL (env SPATIALCALL_RELAY_URL; default "+config.DefaultRelayURL+")")
	f.StringVar(&opts.PeerID, "peer-id", "", "Identifier sent in pose messages (env SPATIALCALL_PEER_ID; default random)")
	f.StringVar(&opts.PoseCodec, "codec", "", "Pose codec: json or msgpack (env SPATIALCALL_POSE_CODEC)")
	f.StringVar(&opts.ICEServersJSON, "ice-servers-json", "", "ICE servers as JSON (env SPATIALCALL_ICE_SERVERS_JSON)")
	f.StringVar(&opts.STUNURLs, "stun-urls", "", "Comma-separated STUN URLs (env SPATIALCALL_STUN_URLS)")
	f.StringVar(&opts.TURNURLs, "turn-urls", "", "Comma-separated TURN URLs (env SPATIALCALL_TURN_URLS)")
	f.StringVar(&opts.TURNUsername, "turn-username", "", "TURN username (env SPATIALCALL_TURN_USERNAME)")
	f.StringVar(&opts.TURNCredential, "turn-credential", "", "TURN credential (env SPATIALCALL_TURN_CREDENTIAL)")
	f.UintVar(&opts.UDPPortMin, "webrtc-udp-port-min", 0, "Min UDP port for ICE (env SPATIALCALL_WEBRTC_UDP_PORT_MIN)")
	f.UintVar(&opts.UDPPortMax, "webrtc-udp-port-max", 0, "Max UDP port for ICE (env SPATIALCALL_WEBRTC_UDP_PORT_MAX)")
	f.StringVar(&opts.UDPListenIP, "webrtc-udp-listen-ip", "", "Local IP for ICE sockets (env SPATIALCALL_WEBRTC_UDP_LISTEN_IP)")
	f.StringVar(&opts.NAT1To1IPs, "webrtc-nat-1to1-ips", "", "Public IPs to advertise for ICE (env SPATIALCALL_WEBRTC_NAT_1TO1_IPS)")
	f.StringVar(&opts.NAT1To1IPCandidateType, "webrtc-nat-1to1-ip-candidate-type", "", "host or srflx (env SPATIALCALL_WEBRTC_NAT_1TO1_IP_CANDIDATE_TYPE)")

	return cmd
}

func newCLILogger(cfg config.Logging) (*slog.Logger, io.Closer, error) {
	if cfg.LogFile != "" {
		return config.NewLogger(cfg)
	}
	// stdout carries signaling lines in manual mode.
	logger, err := config.NewLoggerTo(os.Stderr, cfg)
	if err != nil {
		return nil, nil, err
	}
	return logger, nopCloser{}, nil
}

func runCall(ctx context.Context, opts config.PeerOptions, flags callFlags, in io.Reader, out io.Writer) error {
	cfg, err := config.LoadPeer(opts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, closer, err := newCLILogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()

	start := geometry.Pose{}
	if cfg.Audio.Listener != nil {
		start = *cfg.Audio.Listener
	}
	if flags.pose != "" {
		if start, err = parsePose(flags.pose); err != nil {
			return err
		}
	}

	api, err := webrtcpeer.NewAPI(webrtcpeer.APIOptions{Network: cfg.Network, Logger: logger})
	if err != nil {
		return fmt.Errorf("configure webrtc: %w", err)
	}

	printer := &linePrinter{w: out}
	connected := make(chan struct{})
	var connectedOnce sync.Once
	failed := make(chan struct{})
	var failedOnce sync.Once

	observer := peer.Observer{
		OnStateChange: func(s peer.State) {
			logger.Info("call state", "state", s)
			switch s {
			case peer.StateConnected:
				connectedOnce.Do(func() { close(connected) })
			case peer.StateFailed:
				failedOnce.Do(func() { close(failed) })
			}
		},
		OnParameters: func(p spatial.Parameters) {
			printer.printf("params %s\n", p)
		},
		OnRemotePeer: func(ps *pose.PeerState) {
			if ps == nil {
				logger.Info("remote participant left")
				return
			}
			logger.Debug("remote participant", "peer_id", ps.PeerID, "x", ps.Position.X, "y", ps.Position.Y, "facing", ps.Facing, "speaking", ps.IsSpeaking)
		},
		OnSignalingChange: func(up bool) {
			logger.Info("relay connection", "connected", up)
		},
	}
	if flags.manual {
		observer.OnLocalSDP = func(d peer.SessionDescription) {
			raw, err := signaling.EncodeSDP(signaling.MessageType(d.Type), d.SDP)
			if err != nil {
				logger.Error("encoding description failed", "err", err)
				return
			}
			printer.printf("%s\n", raw)
		}
		observer.OnLocalCandidate = func(c peer.ICECandidate) {
			raw, err := signaling.EncodeCandidate(c)
			if err != nil {
				logger.Error("encoding candidate failed", "err", err)
				return
			}
			printer.printf("%s\n", raw)
		}
	}

	m, err := peer.New(peer.Config{
		Transport: webrtcpeer.NewTransportFactory(api, webrtcpeer.TransportOptions{
			ICEServers: cfg.ICEServers,
			Protocol:   cfg.PoseCodec.Name(),
			Logger:     logger,
		}),
		Logger:   logger,
		Observer: observer,
		PeerID:   cfg.PeerID,
		Codec:    cfg.PoseCodec,
		Audio:    &cfg.Audio.Audio,
		Rooms:    cfg.Audio.Rooms,
	})
	if err != nil {
		return err
	}
	defer m.DisconnectSignaling()
	defer m.Disconnect()

	m.SetLocalPose(start)
	logger.Info("joining call", "peer_id", m.PeerID(), "manual", flags.manual, "offer", flags.offer, "codec", cfg.PoseCodec.Name())

	if flags.manual {
		go readSignalLines(ctx, m, in, logger)
	} else {
		if err := m.ConnectSignaling(ctx, cfg.RelayURL); err != nil {
			return err
		}
	}

	if flags.offer {
		if err := m.Initialize(); err != nil {
			return err
		}
		if _, err := m.CreateOffer(ctx); err != nil {
			return err
		}
	}

	select {
	case <-connected:
	case <-failed:
		return errors.New("connection failed")
	case <-ctx.Done():
		return nil
	}

	if flags.poseInterval > 0 {
		go func() {
			_ = m.RunPoseTicker(ctx, flags.poseInterval)
		}()
	}

	select {
	case <-failed:
		return errors.New("connection failed")
	case <-ctx.Done():
		return nil
	}
}

// readSignalLines feeds pasted signaling envelopes, one JSON object per line,
// into the manager.
func readSignalLines(ctx context.Context, m *peer.Manager, in io.Reader, logger *slog.Logger) {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		env, err := signaling.ParseEnvelope([]byte(line))
		if err != nil {
			logger.Warn("ignoring pasted line", "err", err)
			continue
		}
		if err := m.HandleSignal(ctx, env); err != nil {
			logger.Warn("pasted message rejected", "type", env.Type, "err", err)
		}
	}
	if err := sc.Err(); err != nil {
		logger.Warn("reading stdin failed", "err", err)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// linePrinter serializes writes from observer callbacks.
type linePrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *linePrinter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.w, format, args...)
}

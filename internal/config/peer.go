package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/spatialcall/spatialcall/internal/pose"
)

const (
	envVarRelayURL  = "SPATIALCALL_RELAY_URL"
	envVarPeerID    = "SPATIALCALL_PEER_ID"
	envVarPoseCodec = "SPATIALCALL_POSE_CODEC"
	envVarAudioFile = "SPATIALCALL_AUDIO_SETTINGS"

	DefaultRelayURL = "ws://localhost:8765/ws"
)

// PeerOptions carries CLI flag values. Empty fields fall back to the
// environment, then to defaults.
type PeerOptions struct {
	RelayURL  string
	PeerID    string
	PoseCodec string
	AudioFile string

	LogFormat string
	LogLevel  string
	LogFile   string

	ICEServersJSON string
	STUNURLs       string
	TURNURLs       string
	TURNUsername   string
	TURNCredential string

	UDPPortMin             uint
	UDPPortMax             uint
	UDPListenIP            string
	NAT1To1IPs             string
	NAT1To1IPCandidateType string
}

// PeerConfig is the resolved configuration of the peer CLI.
type PeerConfig struct {
	Logging

	RelayURL string
	// PeerID is empty when the manager should generate one.
	PeerID     string
	PoseCodec  pose.Codec
	ICEServers []webrtc.ICEServer
	Network    WebRTCNetwork
	Audio      AudioSettings
}

// LoadPeer resolves flags > env > defaults.
func LoadPeer(opts PeerOptions) (PeerConfig, error) {
	return loadPeer(os.LookupEnv, opts)
}

func loadPeer(lookup func(string) (string, bool), opts PeerOptions) (PeerConfig, error) {
	pick := func(flagValue, env, fallback string) string {
		if strings.TrimSpace(flagValue) != "" {
			return flagValue
		}
		return envOrDefault(lookup, env, fallback)
	}

	relayURL := strings.TrimSpace(pick(opts.RelayURL, envVarRelayURL, DefaultRelayURL))
	if err := validateRelayURL(relayURL); err != nil {
		return PeerConfig{}, err
	}

	codec, err := pose.CodecByName(pick(opts.PoseCodec, envVarPoseCodec, pose.CodecNameJSON))
	if err != nil {
		return PeerConfig{}, err
	}

	logFormat, err := parseLogFormat(pick(opts.LogFormat, envVarLogFormat, string(LogFormatText)))
	if err != nil {
		return PeerConfig{}, err
	}
	level, err := parseLogLevel(pick(opts.LogLevel, envVarLogLevel, "info"))
	if err != nil {
		return PeerConfig{}, err
	}

	iceServers, err := parseICEServersFromValues(
		pick(opts.ICEServersJSON, envICEServersJSON, ""),
		pick(opts.STUNURLs, envStunURLs, ""),
		pick(opts.TURNURLs, envTurnURLs, ""),
		pick(opts.TURNUsername, envTurnUsername, ""),
		pick(opts.TURNCredential, envTurnCredential, ""),
	)
	if err != nil {
		return PeerConfig{}, err
	}

	nv := networkValues{
		UDPPortMin:             opts.UDPPortMin,
		UDPPortMax:             opts.UDPPortMax,
		UDPListenIP:            opts.UDPListenIP,
		NAT1To1IPs:             opts.NAT1To1IPs,
		NAT1To1IPCandidateType: opts.NAT1To1IPCandidateType,
	}
	if err := nv.applyEnv(lookup); err != nil {
		return PeerConfig{}, err
	}
	network, err := nv.parse()
	if err != nil {
		return PeerConfig{}, err
	}

	audio, err := LoadAudioSettings(audioSettingsPath(lookup, opts.AudioFile))
	if err != nil {
		return PeerConfig{}, err
	}

	return PeerConfig{
		Logging: Logging{
			LogFormat: logFormat,
			LogLevel:  level,
			LogFile:   strings.TrimSpace(pick(opts.LogFile, envVarLogFile, "")),
		},
		RelayURL:   relayURL,
		PeerID:     strings.TrimSpace(pick(opts.PeerID, envVarPeerID, "")),
		PoseCodec:  codec,
		ICEServers: iceServers,
		Network:    network,
		Audio:      audio,
	}, nil
}

// AudioSettingsPath resolves the audio settings file from the flag value and
// SPATIALCALL_AUDIO_SETTINGS. Empty means defaults.
func AudioSettingsPath(flagValue string) string {
	return audioSettingsPath(os.LookupEnv, flagValue)
}

func audioSettingsPath(lookup func(string) (string, bool), flagValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	return strings.TrimSpace(envOrDefault(lookup, envVarAudioFile, ""))
}

func validateRelayURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid relay url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("invalid relay url %q: scheme must be ws or wss", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid relay url %q: missing host", raw)
	}
	return nil
}

// Package webrtcpeer builds the pion-backed transport used by peer.Manager:
// one PeerConnection carrying an Opus audio track and a negotiated data
// channel for pose messages.
package webrtcpeer

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/pion/interceptor"
	"github.com/pion/transport/v4"
	"github.com/pion/webrtc/v4"

	"github.com/spatialcall/spatialcall/internal/config"
)

type APIOptions struct {
	Network config.WebRTCNetwork
	// Net replaces the OS network. Tests pass a vnet.Net.
	Net transport.Net
	// Logger receives pion's internal logs. Nil keeps pion's default logger.
	Logger *slog.Logger
}

// NewAPI builds a webrtc.API with the default codecs and interceptors and the
// configured network settings applied.
func NewAPI(opts APIOptions) (*webrtc.API, error) {
	se := webrtc.SettingEngine{}
	if opts.Logger != nil {
		se.LoggerFactory = LoggerFactory{Logger: opts.Logger}
	}
	if opts.Net != nil {
		se.SetNet(opts.Net)
	}
	if err := ApplyNetworkSettings(&se, opts.Network); err != nil {
		return nil, err
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithSettingEngine(se),
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
	)
	return api, nil
}

func ApplyNetworkSettings(se *webrtc.SettingEngine, network config.WebRTCNetwork) error {
	if network.UDPPortRange != nil {
		if err := se.SetEphemeralUDPPortRange(network.UDPPortRange.Min, network.UDPPortRange.Max); err != nil {
			return fmt.Errorf("set ephemeral udp port range: %w", err)
		}
	}

	if len(network.NAT1To1IPs) > 0 {
		var candidateType webrtc.ICECandidateType
		switch network.NAT1To1IPCandidateType {
		case config.NAT1To1CandidateTypeHost, "":
			candidateType = webrtc.ICECandidateTypeHost
		case config.NAT1To1CandidateTypeSrflx:
			candidateType = webrtc.ICECandidateTypeSrflx
		default:
			return fmt.Errorf("invalid NAT 1:1 IP candidate type %q", network.NAT1To1IPCandidateType)
		}
		se.SetNAT1To1IPs(network.NAT1To1IPs, candidateType)
	}

	// SettingEngine has no "bind to this address" switch; restrict gathering
	// with an IP filter instead.
	if !config.IsUnspecifiedIP(network.UDPListenIP) {
		listenIP := network.UDPListenIP
		se.SetIPFilter(func(ip net.IP) bool {
			return ip.Equal(listenIP)
		})
	}

	return nil
}

package config

import (
	"fmt"
	"net"
	"strings"
)

const (
	envVarWebRTCUDPPortMin             = "SPATIALCALL_WEBRTC_UDP_PORT_MIN"
	envVarWebRTCUDPPortMax             = "SPATIALCALL_WEBRTC_UDP_PORT_MAX"
	envVarWebRTCUDPListenIP            = "SPATIALCALL_WEBRTC_UDP_LISTEN_IP"
	envVarWebRTCNAT1To1IPs             = "SPATIALCALL_WEBRTC_NAT_1TO1_IPS"
	envVarWebRTCNAT1To1IPCandidateType = "SPATIALCALL_WEBRTC_NAT_1TO1_IP_CANDIDATE_TYPE"

	DefaultWebRTCUDPListenIP = "0.0.0.0"
)

// recommendedWebRTCUDPPortRangeSize is a conservative minimum. A call uses a
// handful of ports, but restarts and parallel peers on one host add up.
const recommendedWebRTCUDPPortRangeSize = 100

type NAT1To1IPCandidateType string

const (
	NAT1To1CandidateTypeHost  NAT1To1IPCandidateType = "host"
	NAT1To1CandidateTypeSrflx NAT1To1IPCandidateType = "srflx"
)

type UDPPortRange struct {
	Min uint16
	Max uint16
}

// WebRTCNetwork holds the ICE socket settings applied to pion's
// SettingEngine.
type WebRTCNetwork struct {
	// UDPPortRange restricts the UDP ports used for ICE. When nil, pion uses
	// OS-assigned ephemeral ports.
	UDPPortRange *UDPPortRange

	// NAT1To1IPs are advertised instead of the local addresses when the host
	// sits behind a static 1:1 NAT.
	NAT1To1IPs             []string
	NAT1To1IPCandidateType NAT1To1IPCandidateType

	// UDPListenIP restricts which local address ICE gathers on. Unspecified
	// means every interface.
	UDPListenIP net.IP
}

// networkValues are the raw WebRTC network settings before validation.
type networkValues struct {
	UDPPortMin             uint
	UDPPortMax             uint
	UDPListenIP            string
	NAT1To1IPs             string
	NAT1To1IPCandidateType string
}

func (v *networkValues) applyEnv(lookup func(string) (string, bool)) error {
	if v.UDPPortMin == 0 {
		if raw, ok := lookup(envVarWebRTCUDPPortMin); ok && strings.TrimSpace(raw) != "" {
			p, err := parsePortString(raw)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", envVarWebRTCUDPPortMin, raw, err)
			}
			v.UDPPortMin = uint(p)
		}
	}
	if v.UDPPortMax == 0 {
		if raw, ok := lookup(envVarWebRTCUDPPortMax); ok && strings.TrimSpace(raw) != "" {
			p, err := parsePortString(raw)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", envVarWebRTCUDPPortMax, raw, err)
			}
			v.UDPPortMax = uint(p)
		}
	}
	if v.UDPListenIP == "" {
		v.UDPListenIP = envOrDefault(lookup, envVarWebRTCUDPListenIP, DefaultWebRTCUDPListenIP)
	}
	if v.NAT1To1IPs == "" {
		v.NAT1To1IPs = envOrDefault(lookup, envVarWebRTCNAT1To1IPs, "")
	}
	if v.NAT1To1IPCandidateType == "" {
		v.NAT1To1IPCandidateType = envOrDefault(lookup, envVarWebRTCNAT1To1IPCandidateType, string(NAT1To1CandidateTypeHost))
	}
	return nil
}

func (v networkValues) parse() (WebRTCNetwork, error) {
	var out WebRTCNetwork

	if v.UDPPortMin != 0 || v.UDPPortMax != 0 {
		if v.UDPPortMin == 0 || v.UDPPortMax == 0 {
			return WebRTCNetwork{}, fmt.Errorf("%s and %s must be set together (or both unset)", envVarWebRTCUDPPortMin, envVarWebRTCUDPPortMax)
		}
		min, err := parsePortUint(v.UDPPortMin)
		if err != nil {
			return WebRTCNetwork{}, fmt.Errorf("%s: %w", envVarWebRTCUDPPortMin, err)
		}
		max, err := parsePortUint(v.UDPPortMax)
		if err != nil {
			return WebRTCNetwork{}, fmt.Errorf("%s: %w", envVarWebRTCUDPPortMax, err)
		}
		if min > max {
			return WebRTCNetwork{}, fmt.Errorf("WebRTC UDP port range min (%d) must be <= max (%d)", min, max)
		}
		size := int(max) - int(min) + 1
		if size < recommendedWebRTCUDPPortRangeSize {
			return WebRTCNetwork{}, fmt.Errorf("WebRTC UDP port range is too small: %d ports (min %d recommended)", size, recommendedWebRTCUDPPortRangeSize)
		}
		out.UDPPortRange = &UDPPortRange{Min: min, Max: max}
	}

	listenIP := strings.TrimSpace(v.UDPListenIP)
	if listenIP == "" {
		listenIP = DefaultWebRTCUDPListenIP
	}
	out.UDPListenIP = net.ParseIP(listenIP)
	if out.UDPListenIP == nil {
		return WebRTCNetwork{}, fmt.Errorf("invalid %s %q", envVarWebRTCUDPListenIP, v.UDPListenIP)
	}

	if strings.TrimSpace(v.NAT1To1IPs) != "" {
		ips, err := parseIPList(v.NAT1To1IPs)
		if err != nil {
			return WebRTCNetwork{}, fmt.Errorf("invalid %s %q: %w", envVarWebRTCNAT1To1IPs, v.NAT1To1IPs, err)
		}
		out.NAT1To1IPs = ips
	}

	candidateType := v.NAT1To1IPCandidateType
	if strings.TrimSpace(candidateType) == "" {
		candidateType = string(NAT1To1CandidateTypeHost)
	}
	ct, err := parseCandidateType(candidateType)
	if err != nil {
		return WebRTCNetwork{}, fmt.Errorf("invalid %s %q: %w", envVarWebRTCNAT1To1IPCandidateType, candidateType, err)
	}
	out.NAT1To1IPCandidateType = ct

	return out, nil
}

func parseCandidateType(s string) (NAT1To1IPCandidateType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(NAT1To1CandidateTypeHost):
		return NAT1To1CandidateTypeHost, nil
	case string(NAT1To1CandidateTypeSrflx):
		return NAT1To1CandidateTypeSrflx, nil
	default:
		return "", fmt.Errorf("unknown candidate type %q", s)
	}
}

func parseIPList(s string) ([]string, error) {
	var out []string
	for _, raw := range strings.Split(s, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		ip := net.ParseIP(raw)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP %q", raw)
		}
		out = append(out, ip.String())
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("must include at least one IP")
	}
	return out, nil
}

package signaling

import (
	"errors"
	"testing"
)

func TestParseEnvelope(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"offer", `{"type":"offer","payload":"v=0"}`, true},
		{"object payload", `{"type":"ice","payload":{"candidate":"candidate:1"}}`, true},
		{"unknown type still an envelope", `{"type":"hello","payload":1}`, true},
		{"not json", `not json`, false},
		{"missing type", `{"payload":"x"}`, false},
		{"empty type", `{"type":"","payload":"x"}`, false},
		{"missing payload", `{"type":"offer"}`, false},
		{"null payload", `{"type":"offer","payload":null}`, false},
		{"array", `[1,2]`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseEnvelope([]byte(tc.raw))
			if tc.ok && err != nil {
				t.Fatalf("ParseEnvelope(%s) error: %v", tc.raw, err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidEnvelope) {
				t.Fatalf("ParseEnvelope(%s) err=%v, want ErrInvalidEnvelope", tc.raw, err)
			}
		})
	}
}

func TestEnvelope_SDP(t *testing.T) {
	raw, err := EncodeSDP(MessageTypeOffer, "v=0\r\n")
	if err != nil {
		t.Fatalf("EncodeSDP: %v", err)
	}
	env, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.Type != MessageTypeOffer {
		t.Fatalf("type=%q", env.Type)
	}
	sdp, err := env.SDP()
	if err != nil || sdp != "v=0\r\n" {
		t.Fatalf("SDP()=%q, %v", sdp, err)
	}

	obj, _ := ParseEnvelope([]byte(`{"type":"answer","payload":{"type":"answer","sdp":"v=0"}}`))
	if sdp, err := obj.SDP(); err != nil || sdp != "v=0" {
		t.Fatalf("object SDP()=%q, %v", sdp, err)
	}

	bad, _ := ParseEnvelope([]byte(`{"type":"offer","payload":42}`))
	if _, err := bad.SDP(); !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("numeric payload err=%v", err)
	}
}

func TestEnvelope_Candidate(t *testing.T) {
	mid := "0"
	var idx uint16
	raw, err := EncodeCandidate(Candidate{Candidate: "candidate:1 1 udp 1 10.0.0.1 5000 typ host", SDPMid: &mid, SDPMLineIndex: &idx})
	if err != nil {
		t.Fatalf("EncodeCandidate: %v", err)
	}
	env, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	c, err := env.Candidate()
	if err != nil {
		t.Fatalf("Candidate(): %v", err)
	}
	if c.SDPMid == nil || *c.SDPMid != "0" || c.SDPMLineIndex == nil || *c.SDPMLineIndex != 0 {
		t.Fatalf("candidate fields lost: %+v", c)
	}

	bare, _ := ParseEnvelope([]byte(`{"type":"ice","payload":"candidate:2"}`))
	if c, err := bare.Candidate(); err != nil || c.Candidate != "candidate:2" {
		t.Fatalf("bare Candidate()=%+v, %v", c, err)
	}

	empty, _ := ParseEnvelope([]byte(`{"type":"ice","payload":{"candidate":""}}`))
	if _, err := empty.Candidate(); !errors.Is(err, ErrInvalidEnvelope) {
		t.Fatalf("empty candidate err=%v", err)
	}
}

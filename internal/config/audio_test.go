package config

import (
	"math"
	"testing"

	"github.com/spatialcall/spatialcall/internal/geometry"
	"github.com/spatialcall/spatialcall/internal/spatial"
)

const sampleAudioSettings = `
audio:
  distanceModel: exponential
  masterVolume: 0.8
  attenuationPerWall: 0.5
  maxDistance: 8
  listenerDirectivity: cardioid
rooms:
  - name: kitchen
    vertices:
      - {x: 0, y: 0}
      - {x: 4, y: 0}
      - {x: 4, y: 4}
      - {x: 0, y: 4}
  - name: hall
    center: {x: 10, y: 2}
    width: 4
    height: 2
listener:
  x: 1
  y: 2
  facing: 1.5
`

func TestParseAudioSettings(t *testing.T) {
	s, err := ParseAudioSettings([]byte(sampleAudioSettings))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	o := s.Audio
	if o.DistanceModel != spatial.DistanceExponential {
		t.Fatalf("DistanceModel=%q, want exponential", o.DistanceModel)
	}
	if o.MasterVolume != 0.8 || o.AttenuationPerWall != 0.5 || o.MaxDistance != 8 {
		t.Fatalf("options=%+v", o)
	}
	if o.ListenerDirectivity != spatial.DirectivityCardioid {
		t.Fatalf("ListenerDirectivity=%q, want cardioid", o.ListenerDirectivity)
	}
	// Absent keys keep their defaults.
	if o.RearGainFloor != spatial.DefaultRearGainFloor || o.PanDistance != spatial.DefaultPanDistance {
		t.Fatalf("defaults lost: %+v", o)
	}
	if o.SourceDirectivity != spatial.DirectivityNone {
		t.Fatalf("SourceDirectivity=%q, want none", o.SourceDirectivity)
	}

	if len(s.Rooms) != 2 {
		t.Fatalf("rooms=%d, want 2", len(s.Rooms))
	}
	kitchen := s.Rooms[0]
	if kitchen.Name != "kitchen" || len(kitchen.Walls) != 4 {
		t.Fatalf("kitchen=%+v", kitchen)
	}
	if kitchen.Center != (geometry.Position{X: 2, Y: 2}) {
		t.Fatalf("kitchen center=%+v, want (2,2)", kitchen.Center)
	}
	hall := s.Rooms[1]
	if len(hall.Walls) != 4 || !hall.Contains(geometry.Position{X: 11, Y: 2.5}) || hall.Contains(geometry.Position{X: 13, Y: 2}) {
		t.Fatalf("hall=%+v", hall)
	}

	if s.Listener == nil {
		t.Fatal("Listener=nil")
	}
	if s.Listener.Position != (geometry.Position{X: 1, Y: 2}) || math.Abs(s.Listener.Facing-1.5) > 1e-12 {
		t.Fatalf("Listener=%+v", *s.Listener)
	}
}

func TestParseAudioSettingsEmptyIsDefault(t *testing.T) {
	s, err := ParseAudioSettings([]byte(""))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Audio != spatial.DefaultOptions() || len(s.Rooms) != 0 || s.Listener != nil {
		t.Fatalf("settings=%+v, want defaults", s)
	}
}

func TestParseAudioSettingsRejects(t *testing.T) {
	for _, raw := range []string{
		"audio:\n  distanceModel: cubic\n",
		"audio:\n  masterVolume: 1.5\n",
		"audio:\n  attenuationPerWall: -0.1\n",
		"audio:\n  maxDistance: 0\n",
		"audio:\n  sourceDirectivity: shotgun\n",
		"audio:\n  volume: 1\n",
		"rooms:\n  - name: a\n    vertices: [{x: 0, y: 0}, {x: 1, y: 0}]\n",
		"rooms:\n  - name: a\n    center: {x: 0, y: 0}\n    width: 0\n    height: 1\n",
		"rooms:\n  - name: a\n",
		"rooms: [\n",
	} {
		if _, err := ParseAudioSettings([]byte(raw)); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestLoadAudioSettingsEmptyPath(t *testing.T) {
	s, err := LoadAudioSettings("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Audio != spatial.DefaultOptions() {
		t.Fatalf("Audio=%+v, want defaults", s.Audio)
	}
}

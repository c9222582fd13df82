package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/spatialcall/spatialcall/internal/geometry"
	"github.com/spatialcall/spatialcall/internal/spatial"
)

// AudioSettings is the contents of an audio settings file: engine options,
// the room layout and an optional starting pose for the local participant.
type AudioSettings struct {
	Audio    spatial.Options
	Rooms    []geometry.Room
	Listener *geometry.Pose
}

// DefaultAudioSettings has default engine options, no rooms and no pose.
func DefaultAudioSettings() AudioSettings {
	return AudioSettings{Audio: spatial.DefaultOptions()}
}

type audioFile struct {
	Audio    audioOptionsFile `yaml:"audio"`
	Rooms    []roomFile       `yaml:"rooms"`
	Listener *poseFile        `yaml:"listener"`
}

// Pointer fields tell "absent" apart from zero so absent keys keep their
// defaults.
type audioOptionsFile struct {
	DistanceModel       *string  `yaml:"distanceModel"`
	MasterVolume        *float64 `yaml:"masterVolume"`
	AttenuationPerWall  *float64 `yaml:"attenuationPerWall"`
	MaxDistance         *float64 `yaml:"maxDistance"`
	RearGainFloor       *float64 `yaml:"rearGainFloor"`
	PanDistance         *float64 `yaml:"panDistance"`
	ListenerDirectivity *string  `yaml:"listenerDirectivity"`
	SourceDirectivity   *string  `yaml:"sourceDirectivity"`
}

// A room is either a polygon (vertices) or a rectangle (center, width,
// height).
type roomFile struct {
	Name     string              `yaml:"name"`
	Vertices []geometry.Position `yaml:"vertices"`
	Center   *geometry.Position  `yaml:"center"`
	Width    float64             `yaml:"width"`
	Height   float64             `yaml:"height"`
}

type poseFile struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Facing float64 `yaml:"facing"`
}

// LoadAudioSettings reads a YAML audio settings file. An empty path returns
// the defaults.
func LoadAudioSettings(path string) (AudioSettings, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultAudioSettings(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return AudioSettings{}, fmt.Errorf("read audio settings: %w", err)
	}
	s, err := ParseAudioSettings(data)
	if err != nil {
		return AudioSettings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func ParseAudioSettings(data []byte) (AudioSettings, error) {
	var raw audioFile
	if err := yaml.UnmarshalWithOptions(data, &raw, yaml.DisallowUnknownField()); err != nil {
		return AudioSettings{}, fmt.Errorf("parse audio settings: %w", err)
	}

	out := DefaultAudioSettings()
	if err := raw.Audio.apply(&out.Audio); err != nil {
		return AudioSettings{}, err
	}

	for i, r := range raw.Rooms {
		room, err := r.room()
		if err != nil {
			return AudioSettings{}, fmt.Errorf("rooms[%d]: %w", i, err)
		}
		out.Rooms = append(out.Rooms, room)
	}

	if raw.Listener != nil {
		p := geometry.Pose{
			Position: geometry.Position{X: raw.Listener.X, Y: raw.Listener.Y},
			Facing:   raw.Listener.Facing,
		}
		if !p.Position.IsFinite() || math.IsNaN(p.Facing) || math.IsInf(p.Facing, 0) {
			return AudioSettings{}, fmt.Errorf("listener: pose must be finite")
		}
		out.Listener = &p
	}
	return out, nil
}

func (f audioOptionsFile) apply(o *spatial.Options) error {
	if f.DistanceModel != nil {
		m, err := spatial.ParseDistanceModel(*f.DistanceModel)
		if err != nil {
			return fmt.Errorf("audio.distanceModel: %w", err)
		}
		o.DistanceModel = m
	}
	if f.ListenerDirectivity != nil {
		d, err := spatial.ParseDirectivity(*f.ListenerDirectivity)
		if err != nil {
			return fmt.Errorf("audio.listenerDirectivity: %w", err)
		}
		o.ListenerDirectivity = d
	}
	if f.SourceDirectivity != nil {
		d, err := spatial.ParseDirectivity(*f.SourceDirectivity)
		if err != nil {
			return fmt.Errorf("audio.sourceDirectivity: %w", err)
		}
		o.SourceDirectivity = d
	}

	unit := []struct {
		name string
		v    *float64
		dst  *float64
	}{
		{"masterVolume", f.MasterVolume, &o.MasterVolume},
		{"attenuationPerWall", f.AttenuationPerWall, &o.AttenuationPerWall},
		{"rearGainFloor", f.RearGainFloor, &o.RearGainFloor},
	}
	for _, u := range unit {
		if u.v == nil {
			continue
		}
		if !(*u.v >= 0 && *u.v <= 1) {
			return fmt.Errorf("audio.%s must be within [0, 1], got %v", u.name, *u.v)
		}
		*u.dst = *u.v
	}

	positive := []struct {
		name string
		v    *float64
		dst  *float64
	}{
		{"maxDistance", f.MaxDistance, &o.MaxDistance},
		{"panDistance", f.PanDistance, &o.PanDistance},
	}
	for _, p := range positive {
		if p.v == nil {
			continue
		}
		if !(*p.v > 0) || math.IsInf(*p.v, 0) {
			return fmt.Errorf("audio.%s must be > 0, got %v", p.name, *p.v)
		}
		*p.dst = *p.v
	}
	return nil
}

func (r roomFile) room() (geometry.Room, error) {
	switch {
	case len(r.Vertices) > 0 && r.Center != nil:
		return geometry.Room{}, fmt.Errorf("room %q: set either vertices or center/width/height", r.Name)
	case len(r.Vertices) > 0:
		if len(r.Vertices) < 3 {
			return geometry.Room{}, fmt.Errorf("room %q: need at least 3 vertices, got %d", r.Name, len(r.Vertices))
		}
		for _, v := range r.Vertices {
			if !v.IsFinite() {
				return geometry.Room{}, fmt.Errorf("room %q: vertices must be finite", r.Name)
			}
		}
		return geometry.NewRoom(r.Name, r.Vertices...), nil
	case r.Center != nil:
		if !r.Center.IsFinite() || !(r.Width > 0) || !(r.Height > 0) {
			return geometry.Room{}, fmt.Errorf("room %q: center must be finite and width/height > 0", r.Name)
		}
		return geometry.RectRoom(r.Name, *r.Center, r.Width, r.Height), nil
	default:
		return geometry.Room{}, fmt.Errorf("room %q: missing vertices or center", r.Name)
	}
}

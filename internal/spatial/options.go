package spatial

import (
	"fmt"
	"strings"
)

// DistanceModel selects the decay from distance to base volume.
type DistanceModel string

const (
	DistanceLinear      DistanceModel = "linear"
	DistanceInverse     DistanceModel = "inverse"
	DistanceExponential DistanceModel = "exponential"
)

// ParseDistanceModel accepts the model names case-insensitively. The empty
// string selects the default.
func ParseDistanceModel(raw string) (DistanceModel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return DefaultDistanceModel, nil
	case string(DistanceLinear):
		return DistanceLinear, nil
	case string(DistanceInverse):
		return DistanceInverse, nil
	case string(DistanceExponential):
		return DistanceExponential, nil
	default:
		return "", fmt.Errorf("invalid distance model %q (expected linear, inverse, or exponential)", raw)
	}
}

// Directivity is a gain pattern over the angle off a facing direction.
type Directivity string

const (
	DirectivityNone          Directivity = "none"
	DirectivityCardioid      Directivity = "cardioid"
	DirectivitySupercardioid Directivity = "supercardioid"
)

func ParseDirectivity(raw string) (Directivity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(DirectivityNone):
		return DirectivityNone, nil
	case string(DirectivityCardioid):
		return DirectivityCardioid, nil
	case string(DirectivitySupercardioid):
		return DirectivitySupercardioid, nil
	default:
		return "", fmt.Errorf("invalid directivity %q (expected none, cardioid, or supercardioid)", raw)
	}
}

const (
	DefaultDistanceModel      = DistanceInverse
	DefaultMasterVolume       = 1.0
	DefaultAttenuationPerWall = 0.3
	DefaultMaxDistance        = 5.0
	DefaultRearGainFloor      = 0.1
	// DefaultPanDistance is the lateral offset that pans fully to one side.
	// Matches the half-width of the room space renderers assume.
	DefaultPanDistance = 2.5

	minPositive = 1e-6
)

// Options configures one computation. A zero Options is not the default; use
// DefaultOptions or pass nil to Compute.
type Options struct {
	DistanceModel DistanceModel `yaml:"distanceModel" json:"distanceModel"`
	MasterVolume  float64       `yaml:"masterVolume" json:"masterVolume"`
	// AttenuationPerWall is the gain factor applied per crossed wall.
	AttenuationPerWall  float64     `yaml:"attenuationPerWall" json:"attenuationPerWall"`
	MaxDistance         float64     `yaml:"maxDistance" json:"maxDistance"`
	RearGainFloor       float64     `yaml:"rearGainFloor" json:"rearGainFloor"`
	PanDistance         float64     `yaml:"panDistance" json:"panDistance"`
	ListenerDirectivity Directivity `yaml:"listenerDirectivity" json:"listenerDirectivity"`
	SourceDirectivity   Directivity `yaml:"sourceDirectivity" json:"sourceDirectivity"`
}

func DefaultOptions() Options {
	return Options{
		DistanceModel:       DefaultDistanceModel,
		MasterVolume:        DefaultMasterVolume,
		AttenuationPerWall:  DefaultAttenuationPerWall,
		MaxDistance:         DefaultMaxDistance,
		RearGainFloor:       DefaultRearGainFloor,
		PanDistance:         DefaultPanDistance,
		ListenerDirectivity: DirectivityNone,
		SourceDirectivity:   DirectivityNone,
	}
}

// normalized returns a copy with out-of-range values clamped and unknown enum
// values replaced by their defaults.
func (o Options) normalized() Options {
	switch o.DistanceModel {
	case DistanceLinear, DistanceInverse, DistanceExponential:
	default:
		o.DistanceModel = DefaultDistanceModel
	}
	o.ListenerDirectivity = normalizeDirectivity(o.ListenerDirectivity)
	o.SourceDirectivity = normalizeDirectivity(o.SourceDirectivity)
	o.MasterVolume = clampUnit(o.MasterVolume)
	o.AttenuationPerWall = clampUnit(o.AttenuationPerWall)
	o.RearGainFloor = clampUnit(o.RearGainFloor)
	if !(o.MaxDistance > minPositive) {
		o.MaxDistance = minPositive
	}
	if !(o.PanDistance > minPositive) {
		o.PanDistance = minPositive
	}
	return o
}

func normalizeDirectivity(d Directivity) Directivity {
	switch d {
	case DirectivityCardioid, DirectivitySupercardioid:
		return d
	default:
		return DirectivityNone
	}
}

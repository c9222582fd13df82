package spatial

import (
	"fmt"
	"math"

	"github.com/spatialcall/spatialcall/internal/geometry"
)

// Parameters is the result of one computation. Intermediate values are kept
// so callers can show diagnostics.
type Parameters struct {
	Volume          float64 `json:"volume"`
	Pan             float64 `json:"pan"`
	Distance        float64 `json:"distance"`
	BaseVolume      float64 `json:"baseVolume"`
	DirectionalGain float64 `json:"directionalGain"`
	// WallAttenuation is the per-wall gain factor that was applied WallCount
	// times.
	WallAttenuation float64 `json:"wallAttenuation"`
	WallCount       int     `json:"wallCount"`
}

// WallGain is the combined gain of all crossed walls.
func (p Parameters) WallGain() float64 {
	return math.Pow(p.WallAttenuation, float64(p.WallCount))
}

func (p Parameters) String() string {
	walls := "no walls"
	switch {
	case p.WallCount == 1:
		walls = fmt.Sprintf("1 wall, %.0f%% reduction", (1-p.WallAttenuation)*100)
	case p.WallCount > 1:
		walls = fmt.Sprintf("%d walls, %.0f%% each", p.WallCount, (1-p.WallAttenuation)*100)
	}
	return fmt.Sprintf("volume=%.3f pan=%+.2f distance=%.2f (%s)", p.Volume, p.Pan, p.Distance, walls)
}

// Compute derives parameters for a source heard by listener. Only the
// listener's orientation is taken into account. nil opts selects
// DefaultOptions.
//
// Pan is the source's offset to the listener's right, in the listener's own
// frame, divided by PanDistance. For a listener facing 0 this is
// dx / PanDistance; a turned listener hears the source where it is relative
// to their facing.
func Compute(listener geometry.Pose, source geometry.Position, rooms []geometry.Room, opts *Options) Parameters {
	o := resolve(opts)
	return compute(listener, geometry.Pose{Position: source}, false, rooms, o)
}

// ComputeFrom is Compute for a source that also has a facing, so its
// SourceDirectivity applies as well.
func ComputeFrom(listener, source geometry.Pose, rooms []geometry.Room, opts *Options) Parameters {
	o := resolve(opts)
	return compute(listener, source, true, rooms, o)
}

func resolve(opts *Options) Options {
	if opts == nil {
		return DefaultOptions()
	}
	return opts.normalized()
}

func compute(listener, source geometry.Pose, sourceOriented bool, rooms []geometry.Room, o Options) Parameters {
	p := Parameters{WallAttenuation: o.AttenuationPerWall, DirectionalGain: 1}
	if !listener.Position.IsFinite() || !source.Position.IsFinite() {
		return p
	}

	p.Distance = geometry.Distance(listener.Position, source.Position)
	p.BaseVolume = baseVolume(o.DistanceModel, p.Distance, o.MaxDistance)

	lateral := geometry.Local(sanitizeFacing(listener), source.Position).X
	p.Pan = clamp(lateral/o.PanDistance, -1, 1)

	gain := 1.0
	directional := false
	if o.ListenerDirectivity != DirectivityNone {
		a := geometry.AngleBetween(sanitizeFacing(listener).Facing, listener.Position, source.Position)
		gain *= pattern(o.ListenerDirectivity, a)
		directional = true
	}
	if sourceOriented && o.SourceDirectivity != DirectivityNone {
		a := geometry.AngleBetween(sanitizeFacing(source).Facing, source.Position, listener.Position)
		gain *= pattern(o.SourceDirectivity, a)
		directional = true
	}
	if directional {
		gain = math.Max(gain, o.RearGainFloor)
	}
	p.DirectionalGain = clamp(gain, 0, 1)

	p.WallCount = geometry.CountCrossings(listener.Position, source.Position, rooms)

	p.Volume = p.BaseVolume * p.DirectionalGain * p.WallGain() * o.MasterVolume
	p.Volume = clamp(p.Volume, 0, o.MasterVolume)
	return p
}

func baseVolume(model DistanceModel, distance, maxDistance float64) float64 {
	var v float64
	switch model {
	case DistanceLinear:
		v = 1 - distance/maxDistance
	case DistanceExponential:
		v = math.Exp(-distance / maxDistance)
	default:
		v = 1 / (1 + distance)
	}
	return clamp(v, 0, 1)
}

// pattern maps the angle off axis to a gain in [0, 1].
func pattern(d Directivity, angle float64) float64 {
	c := math.Cos(angle)
	switch d {
	case DirectivityCardioid:
		return (1 + c) / 2
	case DirectivitySupercardioid:
		return math.Abs(0.37 + 0.63*c)
	default:
		return 1
	}
}

func sanitizeFacing(p geometry.Pose) geometry.Pose {
	if math.IsNaN(p.Facing) || math.IsInf(p.Facing, 0) {
		p.Facing = 0
	}
	return p
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampUnit(v float64) float64 {
	return clamp(v, 0, 1)
}

// Package geometry holds the 2D room-space primitives shared by the spatial
// engine and the pose protocol.
//
// Coordinates are in room units, not pixels. Facing is in radians with 0
// pointing along -Y (screen "up") and positive angles turning clockwise.
package geometry

import "math"

// Position is a point in room space.
type Position struct {
	X float64 `json:"x" msgpack:"x" yaml:"x"`
	Y float64 `json:"y" msgpack:"y" yaml:"y"`
}

// Pose is a position plus a facing angle in radians.
type Pose struct {
	Position Position
	Facing   float64
}

func (p Position) Add(o Position) Position { return Position{X: p.X + o.X, Y: p.Y + o.Y} }
func (p Position) Sub(o Position) Position { return Position{X: p.X - o.X, Y: p.Y - o.Y} }
func (p Position) Scale(k float64) Position { return Position{X: p.X * k, Y: p.Y * k} }
func (p Position) Dot(o Position) float64 { return p.X*o.X + p.Y*o.Y }
func (p Position) Cross(o Position) float64 { return p.X*o.Y - p.Y*o.X }
func (p Position) Len() float64 { return math.Hypot(p.X, p.Y) }
func (p Position) IsFinite() bool { return isFinite(p.X) && isFinite(p.Y) }

// Distance is the Euclidean distance between a and b.
func Distance(a, b Position) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Forward is the unit vector a pose with the given facing looks along.
func Forward(facing float64) Position {
	return Position{X: math.Sin(facing), Y: -math.Cos(facing)}
}

// Right is the unit vector to the right of Forward(facing).
func Right(facing float64) Position {
	return Position{X: math.Cos(facing), Y: math.Sin(facing)}
}

// NormalizeAngle maps a to (-π, π].
func NormalizeAngle(a float64) float64 {
	if !isFinite(a) {
		return 0
	}
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// AngleBetween returns the unsigned angle in [0, π] between the facing vector
// at from and the line from -> to. Coincident points yield 0.
func AngleBetween(facing float64, from, to Position) float64 {
	d := to.Sub(from)
	l := d.Len()
	if l == 0 {
		return 0
	}
	c := Forward(facing).Dot(d) / l
	return math.Acos(clamp(c, -1, 1))
}

// Local expresses target in the frame of pose: X is the lateral offset (right
// positive) and Y the offset along the facing direction (ahead positive).
func Local(pose Pose, target Position) Position {
	d := target.Sub(pose.Position)
	return Position{X: d.Dot(Right(pose.Facing)), Y: d.Dot(Forward(pose.Facing))}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

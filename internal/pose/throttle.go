package pose

import (
	"math"

	"github.com/spatialcall/spatialcall/internal/geometry"
)

const (
	DefaultMinMove = 0.01
	DefaultMinTurn = 0.5 * math.Pi / 180
)

// Throttle suppresses pose updates that moved less than MinMove and turned
// less than MinTurn since the last one that was let through. It is not safe
// for concurrent use.
type Throttle struct {
	MinMove float64
	MinTurn float64

	last geometry.Pose
	sent bool
}

// Allow reports whether p differs enough from the last allowed pose and, if
// so, records it.
func (t *Throttle) Allow(p geometry.Pose) bool {
	if t.sent {
		moved := geometry.Distance(t.last.Position, p.Position)
		turned := math.Abs(geometry.NormalizeAngle(p.Facing - t.last.Facing))
		if moved <= t.MinMove && turned <= t.MinTurn {
			return false
		}
	}
	t.last = p
	t.sent = true
	return true
}

// Reset forgets the last pose so the next Allow always passes.
func (t *Throttle) Reset() {
	t.sent = false
	t.last = geometry.Pose{}
}

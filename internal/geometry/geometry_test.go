package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForwardAndRight(t *testing.T) {
	f := Forward(0)
	assert.InDelta(t, 0, f.X, 1e-12)
	assert.InDelta(t, -1, f.Y, 1e-12)

	r := Right(0)
	assert.InDelta(t, 1, r.X, 1e-12)
	assert.InDelta(t, 0, r.Y, 1e-12)

	// Quarter turn clockwise faces +X.
	f = Forward(math.Pi / 2)
	assert.InDelta(t, 1, f.X, 1e-12)
	assert.InDelta(t, 0, f.Y, 1e-12)
}

func TestAngleBetween(t *testing.T) {
	origin := Position{}
	tests := []struct {
		name   string
		facing float64
		target Position
		want   float64
	}{
		{"ahead", 0, Position{Y: -1}, 0},
		{"behind", 0, Position{Y: 1}, math.Pi},
		{"right", 0, Position{X: 1}, math.Pi / 2},
		{"left", 0, Position{X: -1}, math.Pi / 2},
		{"coincident", 1, origin, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AngleBetween(tt.facing, origin, tt.target), 1e-9)
		})
	}
}

func TestLocal(t *testing.T) {
	l := Local(Pose{Facing: math.Pi}, Position{X: 2})
	// Turned around, +X is on the left.
	assert.InDelta(t, -2, l.X, 1e-9)
	assert.InDelta(t, 0, l.Y, 1e-9)
}

func TestNormalizeAngle(t *testing.T) {
	assert.InDelta(t, 0, NormalizeAngle(2*math.Pi), 1e-12)
	assert.InDelta(t, math.Pi, NormalizeAngle(-math.Pi), 1e-12)
	assert.InDelta(t, -math.Pi/2, NormalizeAngle(3*math.Pi/2), 1e-12)
	assert.Equal(t, 0.0, NormalizeAngle(math.NaN()))
}

func TestCrosses(t *testing.T) {
	w := Wall{Start: Position{X: -1, Y: 0}, End: Position{X: 1, Y: 0}}

	assert.True(t, Crosses(w, Position{Y: -1}, Position{Y: 1}))
	assert.False(t, Crosses(w, Position{Y: -1}, Position{Y: -0.5}), "short of the wall")
	assert.False(t, Crosses(w, Position{Y: -1}, Position{Y: 0}), "ends on the wall")
	assert.False(t, Crosses(w, Position{X: -2}, Position{X: 2}), "collinear")
	assert.False(t, Crosses(w, Position{X: 2, Y: -1}, Position{X: 2, Y: 1}), "past the end")
}

func TestCountCrossings(t *testing.T) {
	left := RectRoom("left", Position{X: -1}, 2, 2)
	right := RectRoom("right", Position{X: 1}, 2, 2)

	assert.Equal(t, 0, CountCrossings(Position{X: -1}, Position{X: -0.5}, []Room{left, right}))
	// The shared wall at x=0 counts once.
	assert.Equal(t, 1, CountCrossings(Position{X: -1}, Position{X: 1}, []Room{left, right}))
	// Leaving both rooms adds the outer wall.
	assert.Equal(t, 2, CountCrossings(Position{X: -1}, Position{X: 3}, []Room{left, right}))
	assert.Equal(t, 0, CountCrossings(Position{X: -1}, Position{X: 3}, nil))
}

func TestCountCrossingsThroughCorner(t *testing.T) {
	room := []Room{RectRoom("r", Position{}, 2, 2)}

	// Leaving through the corner (1,1) counts like leaving through a wall.
	assert.Equal(t, 1, CountCrossings(Position{}, Position{X: 2, Y: 2}, room))
	assert.Equal(t, 1, CountCrossings(Position{}, Position{X: 2, Y: 1.9}, room))
	// Diagonal through two opposite corners enters and leaves.
	assert.Equal(t, 2, CountCrossings(Position{X: -2, Y: -2}, Position{X: 2, Y: 2}, room))
	// Entering through a corner and leaving through a wall.
	assert.Equal(t, 2, CountCrossings(Position{X: -2, Y: -3}, Position{X: 0.5, Y: 2}, room))
	// Grazing a corner from outside stays outside.
	assert.Equal(t, 0, CountCrossings(Position{Y: 2}, Position{X: 2}, room))
	// Ending on the corner is not a crossing.
	assert.Equal(t, 0, CountCrossings(Position{}, Position{X: 1, Y: 1}, room))
}

func TestCountCrossingsCornerOfAdjacentRooms(t *testing.T) {
	left := RectRoom("left", Position{X: -1}, 2, 2)
	right := RectRoom("right", Position{X: 1}, 2, 2)

	// Through the top of the shared wall: leaves left, never enters right.
	assert.Equal(t, 1, CountCrossings(Position{X: -1}, Position{X: 1, Y: 2}, []Room{left, right}))
}

func TestRoomContains(t *testing.T) {
	r := RectRoom("r", Position{}, 2, 2)
	assert.True(t, r.Contains(Position{X: 0.5, Y: 0.5}))
	assert.False(t, r.Contains(Position{X: 1.5}))
	assert.InDelta(t, 0, r.Center.X, 1e-12)
	assert.Len(t, r.Walls, 4)
}

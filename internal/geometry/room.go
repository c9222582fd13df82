package geometry

import "math"

// Wall is one boundary segment of a room.
type Wall struct {
	Start Position `json:"start" yaml:"start"`
	End   Position `json:"end" yaml:"end"`
}

// Room is a closed polygon of walls plus a reference center.
type Room struct {
	Name   string   `json:"name" yaml:"name"`
	Walls  []Wall   `json:"walls" yaml:"walls"`
	Center Position `json:"center" yaml:"center"`
}

// NewRoom closes the polygon described by vertices and computes its center as
// the vertex average. Fewer than two vertices produce a room without walls.
func NewRoom(name string, vertices ...Position) Room {
	r := Room{Name: name}
	if len(vertices) == 0 {
		return r
	}
	var sum Position
	for _, v := range vertices {
		sum = sum.Add(v)
	}
	r.Center = sum.Scale(1 / float64(len(vertices)))
	if len(vertices) < 2 {
		return r
	}
	n := len(vertices)
	if n == 2 {
		r.Walls = []Wall{{Start: vertices[0], End: vertices[1]}}
		return r
	}
	r.Walls = make([]Wall, 0, n)
	for i := 0; i < n; i++ {
		r.Walls = append(r.Walls, Wall{Start: vertices[i], End: vertices[(i+1)%n]})
	}
	return r
}

// RectRoom is an axis-aligned rectangle of the given size around center.
func RectRoom(name string, center Position, width, height float64) Room {
	hw, hh := math.Abs(width)/2, math.Abs(height)/2
	return NewRoom(name,
		Position{X: center.X - hw, Y: center.Y - hh},
		Position{X: center.X + hw, Y: center.Y - hh},
		Position{X: center.X + hw, Y: center.Y + hh},
		Position{X: center.X - hw, Y: center.Y + hh},
	)
}

// Contains reports whether p lies inside the room using the even-odd rule.
// Points exactly on a wall may report either way.
func (r Room) Contains(p Position) bool {
	inside := false
	for _, w := range r.Walls {
		a, b := w.Start, w.End
		if (a.Y > p.Y) == (b.Y > p.Y) {
			continue
		}
		x := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
		if p.X < x {
			inside = !inside
		}
	}
	return inside
}

// Crosses reports whether the segment a->b properly crosses the wall. Touching
// an endpoint or running collinear along the wall is not a crossing.
func Crosses(w Wall, a, b Position) bool {
	d1 := orient(w.Start, w.End, a)
	d2 := orient(w.Start, w.End, b)
	d3 := orient(a, b, w.Start)
	d4 := orient(a, b, w.End)
	return d1*d2 < 0 && d3*d4 < 0
}

// CountCrossings counts the room boundaries the straight line between a and b
// crosses: distinct walls it properly crosses, plus corners it passes through
// from one side of a room's boundary to the other. A wall shared by two rooms
// counts once.
func CountCrossings(a, b Position, rooms []Room) int {
	if len(rooms) == 0 {
		return 0
	}
	seen := make(map[wallKey]struct{})
	n := 0
	for _, r := range rooms {
		for _, w := range r.Walls {
			k := keyOf(w)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			if Crosses(w, a, b) {
				n++
			}
		}
		n += cornerCrossings(r, a, b)
	}
	return n
}

// cornerCrossings counts vertices of r that lie strictly inside a->b where the
// line passes through the boundary rather than grazing it: the two walls
// meeting there end on opposite sides of the line.
func cornerCrossings(r Room, a, b Position) int {
	if len(r.Walls) < 3 {
		return 0
	}
	n := 0
	for i, w := range r.Walls {
		v := w.Start
		if !strictlyBetween(a, b, v) {
			continue
		}
		prev := r.Walls[(i+len(r.Walls)-1)%len(r.Walls)].Start
		next := w.End
		if orient(a, b, prev)*orient(a, b, next) < 0 {
			n++
		}
	}
	return n
}

// strictlyBetween reports whether p lies on segment a->b, excluding its ends.
func strictlyBetween(a, b, p Position) bool {
	if orient(a, b, p) != 0 {
		return false
	}
	d := b.Sub(a)
	t := p.Sub(a).Dot(d)
	return t > 0 && t < d.Dot(d)
}

type wallKey struct {
	a, b Position
}

func keyOf(w Wall) wallKey {
	s, e := w.Start, w.End
	if e.X < s.X || (e.X == s.X && e.Y < s.Y) {
		s, e = e, s
	}
	return wallKey{a: s, b: e}
}

const orientEpsilon = 1e-12

func orient(p, q, r Position) float64 {
	v := q.Sub(p).Cross(r.Sub(p))
	if math.Abs(v) < orientEpsilon {
		return 0
	}
	return v
}

package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spatialcall/spatialcall/internal/geometry"
)

func at(x, y float64) geometry.Position { return geometry.Position{X: x, Y: y} }

func TestCompute_InverseDistance(t *testing.T) {
	p := Compute(geometry.Pose{}, at(0, -2), nil, nil)
	assert.InDelta(t, 2, p.Distance, 1e-12)
	assert.InDelta(t, 1.0/3.0, p.BaseVolume, 1e-9)
	assert.InDelta(t, 1.0/3.0, p.Volume, 1e-9)
	assert.Equal(t, 0, p.WallCount)
}

func TestCompute_DistanceModels(t *testing.T) {
	tests := []struct {
		model DistanceModel
		d     float64
		want  float64
	}{
		{DistanceLinear, 0, 1},
		{DistanceLinear, 2.5, 0.5},
		{DistanceLinear, 10, 0},
		{DistanceInverse, 0, 1},
		{DistanceInverse, 1, 0.5},
		{DistanceExponential, 0, 1},
		{DistanceExponential, 5, math.Exp(-1)},
	}
	for _, tt := range tests {
		opts := DefaultOptions()
		opts.DistanceModel = tt.model
		p := Compute(geometry.Pose{}, at(tt.d, 0), nil, &opts)
		assert.InDelta(t, tt.want, p.BaseVolume, 1e-9, "model=%s d=%v", tt.model, tt.d)
	}
}

func TestCompute_StereoPan(t *testing.T) {
	left := Compute(geometry.Pose{}, at(-2.5, 0), nil, nil)
	right := Compute(geometry.Pose{}, at(2.5, 0), nil, nil)

	assert.Less(t, left.Pan, 0.0)
	assert.Greater(t, right.Pan, 0.0)
	assert.InDelta(t, math.Abs(left.Pan), math.Abs(right.Pan), 1e-12)

	far := Compute(geometry.Pose{}, at(100, 0), nil, nil)
	assert.Equal(t, 1.0, far.Pan)
}

func TestCompute_PanFollowsListenerFacing(t *testing.T) {
	// Facing backwards swaps the ears.
	p := Compute(geometry.Pose{Facing: math.Pi}, at(2.5, 0), nil, nil)
	assert.InDelta(t, -1, p.Pan, 1e-9)
}

func TestCompute_SingleWallScalesVolume(t *testing.T) {
	room := geometry.RectRoom("a", at(0, 0), 2, 2)
	listener := geometry.Pose{Position: at(0, 0)}

	opts := DefaultOptions()
	opts.AttenuationPerWall = 0.3

	inside := Compute(listener, at(0.5, 0), nil, &opts)
	through := Compute(listener, at(0.5, 0), []geometry.Room{room}, &opts)
	require.Equal(t, 0, through.WallCount)
	assert.InDelta(t, inside.Volume, through.Volume, 1e-12)

	open := Compute(listener, at(3, 0), nil, &opts)
	walled := Compute(listener, at(3, 0), []geometry.Room{room}, &opts)
	require.Equal(t, 1, walled.WallCount)
	assert.InDelta(t, 0.3*open.Volume, walled.Volume, 1e-12)
	assert.Equal(t, "volume=0.075 pan=+1.00 distance=3.00 (1 wall, 70% reduction)", walled.String())
}

func TestCompute_WallThroughCorner(t *testing.T) {
	rooms := []geometry.Room{geometry.RectRoom("r", geometry.Position{}, 2, 2)}

	corner := Compute(geometry.Pose{}, at(2, 2), rooms, nil)
	beside := Compute(geometry.Pose{}, at(2, 1.9), rooms, nil)
	assert.Equal(t, 1, corner.WallCount)
	assert.Equal(t, 1, beside.WallCount)
	assert.InDelta(t, beside.Volume, corner.Volume, 0.01)
}

func TestCompute_VolumeMonotonicInWallCount(t *testing.T) {
	var rooms []geometry.Room
	prevCount := -1
	prevVolume := math.Inf(1)
	for i := 0; i < 5; i++ {
		rooms = append(rooms, geometry.RectRoom("r", at(0, 0), float64(2*i+1), float64(2*i+1)))
		p := Compute(geometry.Pose{}, at(20, 0), rooms, nil)
		assert.GreaterOrEqual(t, p.WallCount, prevCount)
		assert.LessOrEqual(t, p.Volume, prevVolume)
		prevCount, prevVolume = p.WallCount, p.Volume
	}
	assert.Equal(t, 5, prevCount)
}

func TestCompute_Bounds(t *testing.T) {
	models := []DistanceModel{DistanceLinear, DistanceInverse, DistanceExponential}
	masters := []float64{0, 0.25, 1}
	for _, model := range models {
		for _, master := range masters {
			opts := DefaultOptions()
			opts.DistanceModel = model
			opts.MasterVolume = master
			opts.ListenerDirectivity = DirectivityCardioid
			for d := 0.0; d <= 12; d += 0.75 {
				for f := -math.Pi; f <= math.Pi; f += math.Pi / 6 {
					p := Compute(geometry.Pose{Facing: f}, at(d*math.Cos(f), d*math.Sin(f)), nil, &opts)
					assert.GreaterOrEqual(t, p.Volume, 0.0)
					assert.LessOrEqual(t, p.Volume, master)
					assert.GreaterOrEqual(t, p.Pan, -1.0)
					assert.LessOrEqual(t, p.Pan, 1.0)
				}
			}
		}
	}
}

func TestCompute_CardioidRearFloor(t *testing.T) {
	opts := DefaultOptions()
	opts.ListenerDirectivity = DirectivityCardioid

	front := Compute(geometry.Pose{}, at(0, -1), nil, &opts)
	side := Compute(geometry.Pose{}, at(1, 0), nil, &opts)
	behind := Compute(geometry.Pose{}, at(0, 1), nil, &opts)

	assert.InDelta(t, 1, front.DirectionalGain, 1e-9)
	assert.InDelta(t, 0.5, side.DirectionalGain, 1e-9)
	assert.InDelta(t, DefaultRearGainFloor, behind.DirectionalGain, 1e-9)
	assert.Greater(t, behind.Volume, 0.0)
}

func TestComputeFrom_SourceDirectivity(t *testing.T) {
	opts := DefaultOptions()
	opts.SourceDirectivity = DirectivityCardioid

	facingListener := ComputeFrom(geometry.Pose{}, geometry.Pose{Position: at(0, -2), Facing: math.Pi}, nil, &opts)
	facingAway := ComputeFrom(geometry.Pose{}, geometry.Pose{Position: at(0, -2)}, nil, &opts)

	assert.InDelta(t, 1, facingListener.DirectionalGain, 1e-9)
	assert.InDelta(t, DefaultRearGainFloor, facingAway.DirectionalGain, 1e-9)

	// Compute ignores source orientation entirely.
	plain := Compute(geometry.Pose{}, at(0, -2), nil, &opts)
	assert.Equal(t, 1.0, plain.DirectionalGain)
}

func TestCompute_ZeroDistance(t *testing.T) {
	for _, model := range []DistanceModel{DistanceLinear, DistanceInverse, DistanceExponential} {
		opts := DefaultOptions()
		opts.DistanceModel = model
		p := Compute(geometry.Pose{Position: at(1, 1)}, at(1, 1), nil, &opts)
		assert.Equal(t, 1.0, p.Volume, "model=%s", model)
		assert.Equal(t, 0.0, p.Pan)
	}
}

func TestCompute_ClampsConfiguration(t *testing.T) {
	opts := Options{
		DistanceModel:      DistanceLinear,
		MasterVolume:       3,
		AttenuationPerWall: -1,
		MaxDistance:        0,
		PanDistance:        -2,
	}
	p := Compute(geometry.Pose{}, at(0.5, 0), nil, &opts)
	assert.False(t, math.IsNaN(p.Volume))
	assert.Equal(t, 0.0, p.Volume, "max distance clamps to epsilon so anything past it is silent")
	assert.Equal(t, 1.0, p.Pan)
	assert.Equal(t, 0.0, p.WallAttenuation)

	unknown := Options{DistanceModel: "cubic", MasterVolume: 1}
	p = Compute(geometry.Pose{}, at(1, 0), nil, &unknown)
	assert.InDelta(t, 0.5, p.BaseVolume, 1e-9)
}

func TestCompute_NonFiniteInputIsSilent(t *testing.T) {
	p := Compute(geometry.Pose{}, at(math.NaN(), 0), nil, nil)
	assert.Equal(t, 0.0, p.Volume)
	assert.Equal(t, 0.0, p.Pan)
}

func TestParseDistanceModel(t *testing.T) {
	m, err := ParseDistanceModel(" Linear ")
	require.NoError(t, err)
	assert.Equal(t, DistanceLinear, m)

	m, err = ParseDistanceModel("")
	require.NoError(t, err)
	assert.Equal(t, DistanceInverse, m)

	_, err = ParseDistanceModel("cubic")
	assert.Error(t, err)
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spatialcall/spatialcall/internal/geometry"
)

func TestParsePose(t *testing.T) {
	cases := []struct {
		in   string
		want geometry.Pose
	}{
		{"1,2", geometry.Pose{Position: geometry.Position{X: 1, Y: 2}}},
		{" -1.5 , 0 , 3.14 ", geometry.Pose{Position: geometry.Position{X: -1.5, Y: 0}, Facing: 3.14}},
	}
	for _, tc := range cases {
		got, err := parsePose(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"", "1", "1,2,3,4", "a,b", "1,NaN", "1,2,Inf"} {
		_, err := parsePose(bad)
		require.Error(t, err, bad)
	}
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParamsCommand(t *testing.T) {
	t.Setenv("SPATIALCALL_AUDIO_SETTINGS", "")

	out, err := runRoot(t, "params", "--listener", "0,0,0", "--source", "2,0")
	require.NoError(t, err)
	require.Contains(t, out, "Volume")
	require.Contains(t, out, "+0.80")
	require.Contains(t, out, "2.00")
}

func TestParamsCommandCountsWalls(t *testing.T) {
	t.Setenv("SPATIALCALL_AUDIO_SETTINGS", "")

	path := filepath.Join(t.TempDir(), "rooms.yaml")
	settings := `
rooms:
  - name: office
    center: {x: 0, y: 0}
    width: 4
    height: 4
`
	require.NoError(t, os.WriteFile(path, []byte(settings), 0o600))

	out, err := runRoot(t, "params", "--audio-settings", path, "--listener", "0,0", "--source", "5,0")
	require.NoError(t, err)

	var walls string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "Walls crossed") {
			walls = line
		}
	}
	require.Contains(t, walls, "1", out)
}

func TestParamsCommandRejectsBadPose(t *testing.T) {
	t.Setenv("SPATIALCALL_AUDIO_SETTINGS", "")

	_, err := runRoot(t, "params", "--listener", "nope")
	require.ErrorContains(t, err, "--listener")
}

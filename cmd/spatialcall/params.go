package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/spatialcall/spatialcall/internal/config"
	"github.com/spatialcall/spatialcall/internal/geometry"
	"github.com/spatialcall/spatialcall/internal/spatial"
)

func newParamsCmd(opts *config.PeerOptions) *cobra.Command {
	var listener, source string

	cmd := &cobra.Command{
		Use:   "params",
		Short: "Print the spatial audio parameters for two poses",
		Long: `Compute volume and pan for a source heard by a listener, using the
audio settings file (if any) for engine options and room walls.

Poses are x,y[,facing] with facing in radians, 0 pointing along -y (screen up).

Example:
  spatialcall params --listener 0,0,0 --source 2,3 --audio-settings rooms.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadAudioSettings(config.AudioSettingsPath(opts.AudioFile))
			if err != nil {
				return err
			}
			l, err := parsePose(listener)
			if err != nil {
				return fmt.Errorf("--listener: %w", err)
			}
			s, err := parsePose(source)
			if err != nil {
				return fmt.Errorf("--source: %w", err)
			}
			p := spatial.ComputeFrom(l, s, settings.Rooms, &settings.Audio)
			renderParams(cmd.OutOrStdout(), p)
			return nil
		},
	}

	cmd.Flags().StringVar(&listener, "listener", "0,0,0", "Listener pose x,y[,facing]")
	cmd.Flags().StringVar(&source, "source", "0,-1,0", "Source pose x,y[,facing]")
	return cmd
}

// parsePose parses "x,y" or "x,y,facing".
func parsePose(raw string) (geometry.Pose, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 && len(parts) != 3 {
		return geometry.Pose{}, fmt.Errorf("invalid pose %q (expected x,y[,facing])", raw)
	}
	vals := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return geometry.Pose{}, fmt.Errorf("invalid pose %q: %w", raw, err)
		}
		vals[i] = v
	}
	p := geometry.Pose{Position: geometry.Position{X: vals[0], Y: vals[1]}}
	if len(vals) == 3 {
		p.Facing = vals[2]
	}
	if !p.Position.IsFinite() || math.IsNaN(p.Facing) || math.IsInf(p.Facing, 0) {
		return geometry.Pose{}, fmt.Errorf("invalid pose %q: values must be finite", raw)
	}
	return p, nil
}

func renderParams(w io.Writer, p spatial.Parameters) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Parameter", "Value"})
	t.AppendRows([]table.Row{
		{"Volume", fmt.Sprintf("%.3f", p.Volume)},
		{"Pan", fmt.Sprintf("%+.2f", p.Pan)},
		{"Distance", fmt.Sprintf("%.2f", p.Distance)},
		{"Base volume", fmt.Sprintf("%.3f", p.BaseVolume)},
		{"Directional gain", fmt.Sprintf("%.3f", p.DirectionalGain)},
		{"Walls crossed", p.WallCount},
		{"Wall gain", fmt.Sprintf("%.3f", p.WallGain())},
	})
	t.Render()
}

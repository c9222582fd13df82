package main

import (
	"github.com/spf13/cobra"

	"github.com/spatialcall/spatialcall/internal/config"
)

var (
	// Set via -ldflags at build time.
	version = "dev"
)

func newRootCmd() *cobra.Command {
	var opts config.PeerOptions

	root := &cobra.Command{
		Use:   "spatialcall",
		Short: "Two-party peer-to-peer audio call with spatial audio parameters",
		Long: `spatialcall connects two participants directly over WebRTC. Each side
shares its position and facing in a 2D room over a data channel and derives
volume and stereo pan for the other participant's audio.

Negotiation runs through a signaling relay (spatialcall-relay) or by hand,
copying signaling messages between terminals.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.AudioFile, "audio-settings", "", "YAML audio settings file (env SPATIALCALL_AUDIO_SETTINGS)")
	f.StringVar(&opts.LogFormat, "log-format", "", "Log format: text or json (env SPATIALCALL_LOG_FORMAT)")
	f.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error (env SPATIALCALL_LOG_LEVEL)")
	f.StringVar(&opts.LogFile, "log-file", "", "Write logs to this rotating file instead of stderr (env SPATIALCALL_LOG_FILE)")

	root.AddCommand(newCallCmd(&opts))
	root.AddCommand(newParamsCmd(&opts))
	return root
}

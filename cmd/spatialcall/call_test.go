package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spatialcall/spatialcall/internal/config"
	"github.com/spatialcall/spatialcall/internal/peer"
)

func TestRunCallRejectsBadConfig(t *testing.T) {
	t.Setenv("SPATIALCALL_AUDIO_SETTINGS", "")
	t.Setenv("SPATIALCALL_POSE_CODEC", "")

	err := runCall(context.Background(), config.PeerOptions{PoseCodec: "protobuf"}, callFlags{}, strings.NewReader(""), &bytes.Buffer{})
	require.ErrorContains(t, err, "load config")

	err = runCall(context.Background(), config.PeerOptions{}, callFlags{pose: "1"}, strings.NewReader(""), &bytes.Buffer{})
	require.ErrorContains(t, err, "invalid pose")
}

func TestReadSignalLines(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m, err := peer.New(peer.Config{
		Transport: func(peer.TransportHandlers) (peer.Transport, error) {
			return nil, errors.New("no transport in tests")
		},
		Logger: logger,
	})
	require.NoError(t, err)

	in := strings.Join([]string{
		"",
		"not json",
		`{"type":"ice","payload":{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"}}`,
		`{"type":"bye","payload":{}}`,
	}, "\n")
	readSignalLines(context.Background(), m, strings.NewReader(in), logger)

	out := logs.String()
	require.Contains(t, out, "ignoring pasted line")
	require.Contains(t, out, "pasted message rejected")
	require.Contains(t, out, "type=ice")
	require.Contains(t, out, "ignoring signaling message")
	require.False(t, m.Initialized())
}

func TestLinePrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &linePrinter{w: &buf}
	p.printf("params %s\n", "volume=1")
	require.Equal(t, "params volume=1\n", buf.String())
}

// Package signaling defines the envelope peers exchange through the relay
// while negotiating a connection, and a WebSocket client for the relay.
//
// Envelopes are JSON objects {"type": ..., "payload": ...}. The relay only
// checks that both fields are present; peers interpret them.
package signaling

package peer

import "errors"

var (
	// ErrAlreadyInitialized is returned by Initialize when a transport exists.
	ErrAlreadyInitialized = errors.New("peer: already initialized")
	// ErrNotInitialized is returned by operations that need a transport.
	ErrNotInitialized = errors.New("peer: not initialized")
	// ErrInvalidState is returned when an operation does not fit the current
	// session state. It is usually joined with a more specific cause.
	ErrInvalidState = errors.New("peer: invalid state")
	// ErrNegotiation wraps descriptions or candidates the transport rejected.
	ErrNegotiation = errors.New("peer: negotiation failed")
	// ErrTransportFailed wraps failures constructing or driving the transport.
	ErrTransportFailed = errors.New("peer: transport failed")
	// ErrRelayUnavailable is returned by relay-dependent actions while no
	// signaling connection is up.
	ErrRelayUnavailable = errors.New("peer: relay unavailable")
	// ErrInvalidInterval is returned by RunPoseTicker for an interval <= 0.
	ErrInvalidInterval = errors.New("peer: pose interval must be positive")
)

package metrics

import "sync"

// Relay event names.
const (
	RelayConnect          = "relay_connect"
	RelayDisconnect       = "relay_disconnect"
	RelayRejectedFull     = "relay_rejected_full"
	RelayForwarded        = "relay_forwarded"
	RelayDelivered        = "relay_delivered"
	RelayMalformed        = "relay_malformed"
	RelaySkippedClosed    = "relay_skipped_closed"
	RelaySendFailed       = "relay_send_failed"
	DropReasonRateLimited = "rate_limited"
)

// Metrics is a concurrency-safe counter registry keyed by event name.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

// Inc is a no-op on a nil receiver so components can run without metrics.
func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, n uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name] += n
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return map[string]uint64{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}

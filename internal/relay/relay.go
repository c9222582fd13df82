package relay

import (
	"io"
	"log/slog"
	"sync"

	"github.com/spatialcall/spatialcall/internal/metrics"
	"github.com/spatialcall/spatialcall/internal/signaling"
)

// Member is one connected participant. Implementations must be comparable
// (typically a pointer) since the relay keys its membership set on them.
type Member interface {
	Send(raw []byte) error
	Open() bool
}

type Relay struct {
	log     *slog.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	members map[Member]struct{}
}

func New(logger *slog.Logger, m *metrics.Metrics) *Relay {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Relay{
		log:     logger,
		metrics: m,
		members: make(map[Member]struct{}),
	}
}

// Connect adds m to the membership set.
func (r *Relay) Connect(m Member) {
	r.Admit(m, 0)
}

// Admit adds m unless the relay already holds limit members. limit <= 0
// means unlimited.
func (r *Relay) Admit(m Member, limit int) bool {
	if m == nil {
		return false
	}
	r.mu.Lock()
	if _, ok := r.members[m]; !ok && limit > 0 && len(r.members) >= limit {
		r.mu.Unlock()
		r.metrics.Inc(metrics.RelayRejectedFull)
		return false
	}
	r.members[m] = struct{}{}
	n := len(r.members)
	r.mu.Unlock()

	r.metrics.Inc(metrics.RelayConnect)
	r.log.Debug("relay member connected", "members", n)
	return true
}

// Disconnect removes m. Unknown members are ignored.
func (r *Relay) Disconnect(m Member) {
	r.mu.Lock()
	_, ok := r.members[m]
	delete(r.members, m)
	n := len(r.members)
	r.mu.Unlock()

	if ok {
		r.metrics.Inc(metrics.RelayDisconnect)
		r.log.Debug("relay member disconnected", "members", n)
	}
}

// Len is the current member count.
func (r *Relay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Message forwards raw to every open member other than from. Malformed input
// is dropped. Send failures are counted and otherwise ignored.
func (r *Relay) Message(from Member, raw []byte) {
	env, err := signaling.ParseEnvelope(raw)
	if err != nil {
		r.metrics.Inc(metrics.RelayMalformed)
		r.log.Debug("dropping malformed relay message", "err", err, "bytes", len(raw))
		return
	}

	r.mu.RLock()
	targets := make([]Member, 0, len(r.members))
	for m := range r.members {
		if m != from {
			targets = append(targets, m)
		}
	}
	r.mu.RUnlock()

	r.metrics.Inc(metrics.RelayForwarded)
	for _, m := range targets {
		r.deliver(m, raw, env.Type)
	}
}

func (r *Relay) deliver(m Member, raw []byte, t signaling.MessageType) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.Inc(metrics.RelaySendFailed)
			r.log.Error("panic delivering relay message", "recover", rec)
		}
	}()
	if !m.Open() {
		r.metrics.Inc(metrics.RelaySkippedClosed)
		return
	}
	if err := m.Send(raw); err != nil {
		r.metrics.Inc(metrics.RelaySendFailed)
		r.log.Debug("relay send failed", "type", t, "err", err)
		return
	}
	r.metrics.Inc(metrics.RelayDelivered)
}

package registry

import (
	"log/slog"
	"sync"

	"github.com/larosafrancesco289/voiceflow/internal/metrics"
)

// Conn is the send side of a registered connection. Send must be safe to
// call concurrently with the connection's own writes.
type Conn interface {
	Send(v any) error
}

// Registry is the set of live connections. All mutation goes through one
// mutex so concurrent register/deregister/broadcast cannot race.
type Registry struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	conns map[Conn]struct{}
}

// New creates an empty connection registry.
func New(logger *slog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		logger:  logger,
		metrics: m,
		conns:   make(map[Conn]struct{}),
	}
}

// Register adds a connection to the set.
func (r *Registry) Register(c Conn) {
	r.mu.Lock()
	r.conns[c] = struct{}{}
	count := len(r.conns)
	r.mu.Unlock()

	r.logger.Debug("Connection registered",
		slog.Int("active_connections", count),
	)
}

// Deregister removes a connection from the set. Removing an unknown
// connection is a no-op.
func (r *Registry) Deregister(c Conn) {
	r.mu.Lock()
	delete(r.conns, c)
	count := len(r.conns)
	r.mu.Unlock()

	r.logger.Debug("Connection deregistered",
		slog.Int("active_connections", count),
	)
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Broadcast sends an event to every registered connection. Delivery is
// best-effort: connections whose send fails are removed from the set, no
// ordering is guaranteed across members, and Broadcast itself never fails.
func (r *Registry) Broadcast(event any) {
	r.mu.Lock()
	targets := make([]Conn, 0, len(r.conns))
	for c := range r.conns {
		targets = append(targets, c)
	}
	r.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	var failed []Conn
	for _, c := range targets {
		if err := c.Send(event); err != nil {
			failed = append(failed, c)
		}
	}

	r.metrics.BroadcastDelivered(len(targets) - len(failed))

	if len(failed) == 0 {
		return
	}

	r.metrics.BroadcastFailed(len(failed))

	r.mu.Lock()
	for _, c := range failed {
		delete(r.conns, c)
	}
	remaining := len(r.conns)
	r.mu.Unlock()

	r.logger.Warn("Removed connections after failed broadcast delivery",
		slog.Int("failed", len(failed)),
		slog.Int("active_connections", remaining),
	)
}

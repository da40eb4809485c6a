// Package registry owns the process-wide MonitorRegistry that hands out
// (and lazily creates) one Monitor per replica-set name, and the Watcher
// goroutine that keeps every registered Monitor's topology fresh.
package registry

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/devrev/rsmon/internal/config"
	"github.com/devrev/rsmon/internal/metrics"
	"github.com/devrev/rsmon/internal/monitor"
	"github.com/devrev/rsmon/internal/rpc"
	"github.com/devrev/rsmon/internal/topology"
)

// MonitorRegistry hands out one Monitor per replica-set name, creating
// it lazily on first request. It is the single point of truth every
// ReplicaSetClient in the process shares.
type MonitorRegistry struct {
	dialer rpc.Dialer
	cfg    config.MonitorConfig
	logger *zap.Logger
	m      *metrics.Metrics

	mu       sync.Mutex
	monitors map[string]*monitor.Monitor
}

// New constructs an empty registry. Callers still need to start a
// Watcher against it for periodic re-checks to happen.
func New(dialer rpc.Dialer, cfg config.MonitorConfig, logger *zap.Logger, m *metrics.Metrics) *MonitorRegistry {
	return &MonitorRegistry{
		dialer:   dialer,
		cfg:      cfg,
		logger:   logger,
		m:        m,
		monitors: make(map[string]*monitor.Monitor),
	}
}

// Get returns the Monitor for name, constructing it from seeds if this
// is the first request for that name. Subsequent calls ignore seeds and
// return the existing Monitor, matching the source driver's behavior:
// a replica set's seed list is fixed at first discovery.
func (r *MonitorRegistry) Get(ctx context.Context, name string, seeds []topology.Addr) *monitor.Monitor {
	r.mu.Lock()
	mon, ok := r.monitors[name]
	r.mu.Unlock()
	if ok {
		return mon
	}

	mon = monitor.New(ctx, name, seeds, r.dialer, r.cfg, r.logger, r.m)

	r.mu.Lock()
	if existing, ok := r.monitors[name]; ok {
		r.mu.Unlock()
		return existing
	}
	r.monitors[name] = mon
	r.mu.Unlock()

	return mon
}

// Snapshot returns the currently registered monitors as a plain slice,
// taken under the registry lock once. The Watcher uses this to avoid
// re-acquiring the registry lock once per monitor while it runs checks
// that may take an arbitrary amount of time against the network.
func (r *MonitorRegistry) Snapshot() []*monitor.Monitor {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*monitor.Monitor, 0, len(r.monitors))
	for _, mon := range r.monitors {
		out = append(out, mon)
	}
	return out
}

// Names returns the replica-set names currently registered.
func (r *MonitorRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.monitors))
	for name := range r.monitors {
		out = append(out, name)
	}
	return out
}

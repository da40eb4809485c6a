// Package monitor implements the per-replica-set discovery and health
// check state machine: ReplicaSetMonitor (which owns a topology.Table as
// its NodeTable) and the process-wide ConfigChangeHook.
package monitor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devrev/rsmon/internal/config"
	rsmonerrors "github.com/devrev/rsmon/internal/errors"
	"github.com/devrev/rsmon/internal/metrics"
	"github.com/devrev/rsmon/internal/rpc"
	"github.com/devrev/rsmon/internal/topology"
)

// Monitor is a per-replica-set singleton owning a NodeTable, performing
// discovery and health checks, and answering "who is primary?" and
// "give me a healthy secondary?" for every Client sharing it.
//
// mu protects table and must never be held across Connection I/O; see
// checkNodeIndex for the read-copy-release-probe-reacquire pattern this
// enforces.
type Monitor struct {
	name   string
	dialer rpc.Dialer
	cfg    config.MonitorConfig
	logger *zap.Logger
	m      *metrics.Metrics

	mu    sync.Mutex
	table *topology.Table

	rngMu sync.Mutex
	rng   *rand.Rand

	lastPrimary string // for transition-metric bookkeeping only
}

// New constructs a Monitor for name, probing each seed in order until
// one confirms itself primary. A seed that fails to connect is logged and
// skipped; a seed that connects but fails its check remains in the table
// for future checks to retry.
func New(ctx context.Context, name string, seeds []topology.Addr, dialer rpc.Dialer, cfg config.MonitorConfig, logger *zap.Logger, m *metrics.Metrics) *Monitor {
	mon := &Monitor{
		name:   name,
		dialer: dialer,
		cfg:    cfg,
		logger: logger.With(zap.String("replica_set", name)),
		m:      m,
		table:  topology.NewTable(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	for _, seed := range seeds {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		conn, err := dialer.Dial(dialCtx, seed)
		cancel()
		if err != nil {
			mon.logger.Warn("seed connect failed, skipping", zap.String("addr", seed.String()), zap.Error(err))
			continue
		}

		mon.mu.Lock()
		idx := mon.table.Find(seed)
		if idx == -1 {
			mon.table.Add(seed, conn)
			idx = mon.table.Len() - 1
		}
		mon.mu.Unlock()

		isPrimary, _ := mon.checkNodeIndex(ctx, idx)
		if isPrimary {
			mon.mu.Lock()
			mon.table.SetMaster(idx)
			mon.mu.Unlock()
			mon.recordPrimaryTransition(seed.String())
			break
		}
	}

	return mon
}

// Name returns the logical replica-set identity this monitor owns.
func (mon *Monitor) Name() string {
	return mon.name
}

// GetServerAddress renders "<name>/host1:port1,host2:port2,…" for the
// currently known nodes, in insertion order.
func (mon *Monitor) GetServerAddress() string {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	return mon.table.ServerAddress(mon.name)
}

// GetMaster returns the current primary's address, running a full check
// first if the primary is unknown or unhealthy. It fails with
// NoPrimaryAvailable if no primary can be found.
func (mon *Monitor) GetMaster(ctx context.Context) (topology.Addr, error) {
	mon.mu.Lock()
	master := mon.table.Master()
	needsCheck := master < 0
	if !needsCheck {
		needsCheck = !mon.table.Node(master).Ok
	}
	mon.mu.Unlock()

	if needsCheck {
		mon.checkFull(ctx)
	}

	mon.mu.Lock()
	defer mon.mu.Unlock()
	master = mon.table.Master()
	if master < 0 {
		return topology.Addr{}, &rsmonerrors.NoPrimaryAvailable{Set: mon.name}
	}
	return mon.table.Node(master).Addr, nil
}

// HasKnownPrimary reports whether the table currently designates a
// primary, without triggering a check.
func (mon *Monitor) HasKnownPrimary() bool {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	return mon.table.Master() >= 0
}

// NodeSnapshot describes one known node for introspection purposes.
type NodeSnapshot struct {
	Addr      string `json:"addr"`
	Healthy   bool   `json:"healthy"`
	IsPrimary bool   `json:"is_primary"`
}

// Snapshot renders the current NodeTable for the debug HTTP API. It
// never triggers a check itself.
func (mon *Monitor) Snapshot() []NodeSnapshot {
	mon.mu.Lock()
	defer mon.mu.Unlock()

	master := mon.table.Master()
	nodes := mon.table.Nodes()
	out := make([]NodeSnapshot, len(nodes))
	for i, n := range nodes {
		out[i] = NodeSnapshot{Addr: n.Addr.String(), Healthy: n.Ok, IsPrimary: i == master}
	}
	return out
}

// GetSlave delegates to the table's cyclic secondary picker.
func (mon *Monitor) GetSlave() (topology.Addr, bool) {
	mon.mu.Lock()
	defer mon.mu.Unlock()

	if mon.table.Len() == 0 {
		return topology.Addr{}, false
	}
	mon.rngMu.Lock()
	x := mon.rng.Int()
	mon.rngMu.Unlock()
	return mon.table.PickSecondary(x)
}

// NotifyFailure clears the primary index if addr names the current
// primary. It has no effect otherwise.
func (mon *Monitor) NotifyFailure(addr topology.Addr) {
	mon.mu.Lock()
	cleared := mon.table.ClearPrimaryIf(addr)
	mon.mu.Unlock()

	if cleared {
		mon.logger.Warn("primary failure reported, clearing designation", zap.String("addr", addr.String()))
		mon.recordPrimaryTransition("")
	}
}

// NotifySlaveFailure marks addr unhealthy. It has no effect if addr is
// not a known node.
func (mon *Monitor) NotifySlaveFailure(addr topology.Addr) {
	mon.mu.Lock()
	idx := mon.table.Find(addr)
	if idx >= 0 {
		mon.table.SetHealth(idx, false)
	}
	mon.mu.Unlock()

	if idx >= 0 {
		mon.logger.Warn("secondary failure reported", zap.String("addr", addr.String()))
		mon.setHealthMetric(addr, false)
	}
}

func (mon *Monitor) recordPrimaryTransition(newPrimary string) {
	if mon.lastPrimary == newPrimary {
		return
	}
	mon.lastPrimary = newPrimary
	if mon.m != nil {
		mon.m.PrimaryTransitions.WithLabelValues(mon.name).Inc()
	}
}

func (mon *Monitor) setHealthMetric(addr topology.Addr, ok bool) {
	if mon.m == nil {
		return
	}
	v := 0.0
	if ok {
		v = 1.0
	}
	mon.m.NodeHealthy.WithLabelValues(mon.name, addr.String()).Set(v)
}

package registry

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/devrev/rsmon/internal/monitor"
)

// Watcher periodically re-checks every Monitor known to a
// MonitorRegistry. One Watcher runs for the lifetime of the process.
type Watcher struct {
	registry *MonitorRegistry
	interval time.Duration
	logger   *zap.Logger
}

// NewWatcher builds a Watcher over registry, re-checking every interval.
func NewWatcher(registry *MonitorRegistry, interval time.Duration, logger *zap.Logger) *Watcher {
	return &Watcher{registry: registry, interval: interval, logger: logger}
}

// Run blocks, running checkAll every interval, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopping")
			return
		case <-ticker.C:
			w.checkAll(ctx)
		}
	}
}

// checkAll snapshots the registry once, then runs each monitor's
// periodic Check outside the registry lock, so a slow or unreachable
// replica set never blocks discovery of new sets or GetMaster/GetSlave
// callers on unrelated ones. Distinct replica sets have no ordering
// requirement between them, so they are checked concurrently; each
// check is wrapped in its own catch-all so one panicking Connection
// implementation can't take down the watcher goroutine.
func (w *Watcher) checkAll(ctx context.Context) {
	monitors := w.registry.Snapshot()

	g, gctx := errgroup.WithContext(ctx)
	for _, mon := range monitors {
		mon := mon
		g.Go(func() error {
			w.checkOne(gctx, mon)
			return nil
		})
	}
	_ = g.Wait()
}

// checkOne runs a single monitor's periodic Check, recovering and
// logging any panic instead of letting it escape and crash the
// watcher loop.
func (w *Watcher) checkOne(ctx context.Context, mon *monitor.Monitor) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("recovered from panic during periodic check",
				zap.String("replica_set", mon.Name()),
				zap.Any("panic", r))
		}
	}()
	mon.Check(ctx)
}

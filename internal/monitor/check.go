package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devrev/rsmon/internal/rpc"
	"github.com/devrev/rsmon/internal/topology"
)

const replSetGetStatusCommand = "replSetGetStatus"

// Check is the periodic check driven by the Watcher. Fast path: if a
// primary is currently designated, probe only it; if it still confirms
// primary, return without a full sweep. Otherwise fall through to a
// full check.
func (mon *Monitor) Check(ctx context.Context) {
	mon.mu.Lock()
	master := mon.table.Master()
	mon.mu.Unlock()

	if master >= 0 {
		isPrimary, _ := mon.checkNodeIndex(ctx, master)
		if isPrimary {
			return
		}
		mon.mu.Lock()
		stillSame := mon.table.Master() == master
		if stillSame {
			mon.table.SetMaster(-1)
		}
		mon.mu.Unlock()
		if stillSame {
			mon.recordPrimaryTransition("")
		}
	}

	mon.checkFull(ctx)
}

// checkFull runs the two-round discovery/health sweep described in the
// design: each round visits every currently-known node in order, and
// stops as soon as one node (or, out of order, a hinted primary
// candidate) confirms itself primary. Two full rounds with no primary
// found leaves the table's master at -1.
func (mon *Monitor) checkFull(ctx context.Context) {
	if mon.m != nil {
		mon.m.ChecksTotal.WithLabelValues(mon.name).Inc()
	}

	for round := 0; round < mon.cfg.CheckRounds; round++ {
		mon.mu.Lock()
		n := mon.table.Len()
		mon.mu.Unlock()

		checked := make(map[int]bool, n)
		for i := 0; i < n; i++ {
			if checked[i] {
				continue
			}
			isPrimary, hint := mon.checkNodeIndex(ctx, i)
			checked[i] = true
			if isPrimary {
				mon.promote(i)
				return
			}
			if hint == "" {
				continue
			}
			hintAddr, err := topology.ParseAddr(hint)
			if err != nil {
				continue
			}
			mon.mu.Lock()
			hintIdx := mon.table.Find(hintAddr)
			mon.mu.Unlock()
			if hintIdx < 0 || checked[hintIdx] {
				continue
			}
			isPrimary2, _ := mon.checkNodeIndex(ctx, hintIdx)
			checked[hintIdx] = true
			if isPrimary2 {
				mon.promote(hintIdx)
				return
			}
		}

		if round < mon.cfg.CheckRounds-1 {
			time.Sleep(mon.cfg.RoundInterval)
		}
	}
}

func (mon *Monitor) promote(idx int) {
	mon.mu.Lock()
	mon.table.SetMaster(idx)
	addr := mon.table.Node(idx).Addr
	mon.mu.Unlock()
	mon.recordPrimaryTransition(addr.String())
}

// checkNodeIndex is the connection check: it issues isMaster against
// the node's connection (dialing lazily if the node has none), folds in
// any hosts/passives it reports, and independently reconciles health
// against replSetGetStatus. mu is only held to read the node pointer and
// to apply results — never across the probe calls themselves.
func (mon *Monitor) checkNodeIndex(ctx context.Context, idx int) (isPrimary bool, primaryHint string) {
	correlationID := uuid.NewString()

	mon.mu.Lock()
	node := mon.table.Node(idx)
	addr := node.Addr
	conn := node.Conn
	mon.mu.Unlock()

	logger := mon.logger.With(zap.String("addr", addr.String()), zap.String("check_id", correlationID))

	if conn == nil {
		dialCtx, cancel := context.WithTimeout(ctx, mon.cfg.ConnectTimeout)
		newConn, err := mon.dialer.Dial(dialCtx, addr)
		cancel()
		if err != nil {
			logger.Warn("probe connect failed", zap.Error(err))
			mon.mu.Lock()
			mon.table.SetHealth(idx, false)
			mon.mu.Unlock()
			mon.setHealthMetric(addr, false)
			return false, ""
		}
		mon.mu.Lock()
		mon.table.Node(idx).Conn = newConn
		mon.mu.Unlock()
		conn = newConn
	}

	reply, err := conn.IsMaster(ctx)
	if err != nil {
		logger.Warn("isMaster probe failed", zap.Error(err))
		mon.mu.Lock()
		mon.table.SetHealth(idx, false)
		mon.mu.Unlock()
		mon.setHealthMetric(addr, false)
		return false, ""
	}

	mon.mu.Lock()
	mon.table.SetHealth(idx, true)
	mon.mu.Unlock()
	mon.setHealthMetric(addr, true)

	hostList := make([]string, 0, len(reply.Hosts)+len(reply.Passives))
	hostList = append(hostList, reply.Hosts...)
	hostList = append(hostList, reply.Passives...)
	if len(hostList) > 0 {
		if mon.checkHosts(ctx, correlationID, hostList) {
			fireConfigChangeHook(mon)
		}
	}

	mon.reconcileReplSetStatus(ctx, conn, logger)

	return reply.IsPrimary, reply.Primary
}

// reconcileReplSetStatus issues replSetGetStatus on admin and, for each
// member it names, marks the matching known node healthy or unhealthy.
// A failure here (unsupported command, auth, transport) is logged and
// otherwise ignored — it never crashes the monitor.
func (mon *Monitor) reconcileReplSetStatus(ctx context.Context, conn rpc.Connection, logger *zap.Logger) {
	var status rpc.ReplSetStatus
	cmd := map[string]any{replSetGetStatusCommand: 1}
	if err := conn.RunCommand(ctx, "admin", cmd, &status); err != nil {
		logger.Debug("replSetGetStatus unavailable", zap.Error(err))
		return
	}

	for _, member := range status.Members {
		addr, err := topology.ParseAddr(member.Name)
		if err != nil {
			continue
		}
		mon.mu.Lock()
		idx := mon.table.Find(addr)
		if idx >= 0 {
			mon.table.SetHealth(idx, member.Healthy())
		}
		mon.mu.Unlock()
		if idx >= 0 {
			mon.setHealthMetric(addr, member.Healthy())
		}
	}
}

// checkHosts adds every host/passive not already known, dialing a probe
// connection for each with the configured connect timeout. A dial
// failure does not prevent the node from being added — it is recorded
// unhealthy and retried by future checks.
func (mon *Monitor) checkHosts(ctx context.Context, correlationID string, hosts []string) (changed bool) {
	for _, raw := range hosts {
		addr, err := topology.ParseAddr(raw)
		if err != nil {
			mon.logger.Warn("checkHosts: unparseable host entry", zap.String("raw", raw), zap.String("check_id", correlationID), zap.Error(err))
			continue
		}

		mon.mu.Lock()
		exists := mon.table.Find(addr) != -1
		mon.mu.Unlock()
		if exists {
			continue
		}

		dialCtx, cancel := context.WithTimeout(ctx, mon.cfg.ConnectTimeout)
		conn, err := mon.dialer.Dial(dialCtx, addr)
		cancel()
		if err != nil {
			mon.logger.Warn("checkHosts: probe connect failed, adding node unhealthy", zap.String("addr", addr.String()), zap.String("check_id", correlationID), zap.Error(err))
			conn = nil
		}

		mon.mu.Lock()
		if mon.table.Find(addr) == -1 {
			node := mon.table.Add(addr, conn)
			if conn == nil {
				node.Ok = false
			}
			changed = true
		} else if conn != nil {
			_ = conn.Close()
		}
		mon.mu.Unlock()
	}

	if changed {
		mon.logger.Info("replica set membership updated", zap.String("server_address", mon.GetServerAddress()), zap.String("check_id", correlationID))
	}
	return changed
}

// Package routing implements ReplicaSetClient: a single connection-like
// surface over a replica set that resolves addresses through a Monitor
// and lazily opens direct node connections, routing each operation to
// the primary or a secondary per its own read/write semantics.
package routing

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/devrev/rsmon/internal/metrics"
	"github.com/devrev/rsmon/internal/monitor"
	"github.com/devrev/rsmon/internal/rpc"
	"github.com/devrev/rsmon/internal/topology"
)

const maxSecondaryAttempts = 2

// authInfo is one cached credential to replay against freshly opened
// connections, mirroring how a reconnect must re-authenticate.
type authInfo struct {
	db             string
	user           string
	password       string
	digestPassword bool
}

// ReplicaSetClient is the routing-aware Connection-like façade
// application code holds. It is safe for concurrent use.
type ReplicaSetClient struct {
	mon    *monitor.Monitor
	dialer rpc.Dialer
	logger *zap.Logger
	m      *metrics.Metrics

	mu          sync.Mutex
	primaryAddr topology.Addr
	primaryConn rpc.Connection
	slaveAddr   topology.Addr
	slaveConn   rpc.Connection
	auths       []authInfo
}

// New constructs a ReplicaSetClient routed through mon.
func New(mon *monitor.Monitor, dialer rpc.Dialer, logger *zap.Logger, m *metrics.Metrics) *ReplicaSetClient {
	return &ReplicaSetClient{mon: mon, dialer: dialer, logger: logger.With(zap.String("replica_set", mon.Name())), m: m}
}

// checkMaster returns a live primary connection, opening a fresh one and
// replaying cached credentials if the cache is stale or failed.
func (c *ReplicaSetClient) checkMaster(ctx context.Context) (rpc.Connection, error) {
	addr, err := c.mon.GetMaster(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.primaryConn != nil && c.primaryAddr.Equal(addr) && !c.primaryConn.IsFailed() {
		conn := c.primaryConn
		c.mu.Unlock()
		return conn, nil
	}
	staleAddr := c.primaryAddr
	staleConn := c.primaryConn
	c.mu.Unlock()

	if staleConn != nil && staleAddr.Equal(addr) {
		c.mon.NotifyFailure(staleAddr)
		addr, err = c.mon.GetMaster(ctx)
		if err != nil {
			return nil, err
		}
	}

	conn, err := c.dialer.Dial(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("dial primary %s: %w", addr, err)
	}
	c.replayAuth(ctx, conn)

	c.mu.Lock()
	c.primaryAddr = addr
	c.primaryConn = conn
	c.mu.Unlock()

	return conn, nil
}

// checkSlave returns the cached secondary connection while it is not
// failed, without consulting the Monitor. Otherwise it reports a failed
// cached secondary to the Monitor, asks the Monitor for a secondary, and
// opens a fresh connection to it, replaying cached credentials.
func (c *ReplicaSetClient) checkSlave(ctx context.Context) (rpc.Connection, error) {
	c.mu.Lock()
	if c.slaveConn != nil && !c.slaveConn.IsFailed() {
		conn := c.slaveConn
		c.mu.Unlock()
		return conn, nil
	}
	staleAddr := c.slaveAddr
	staleConn := c.slaveConn
	c.mu.Unlock()

	if staleConn != nil {
		c.mon.NotifySlaveFailure(staleAddr)
	}

	addr, ok := c.mon.GetSlave()
	if !ok {
		return nil, fmt.Errorf("no secondary available for %s", c.mon.Name())
	}

	c.mu.Lock()
	if c.slaveConn != nil && c.slaveAddr.Equal(addr) && !c.slaveConn.IsFailed() {
		conn := c.slaveConn
		c.mu.Unlock()
		return conn, nil
	}
	c.mu.Unlock()

	conn, err := c.dialer.Dial(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("dial secondary %s: %w", addr, err)
	}
	c.replayAuth(ctx, conn)

	c.mu.Lock()
	c.slaveAddr = addr
	c.slaveConn = conn
	c.mu.Unlock()

	return conn, nil
}

func (c *ReplicaSetClient) replayAuth(ctx context.Context, conn rpc.Connection) {
	c.mu.Lock()
	auths := append([]authInfo(nil), c.auths...)
	c.mu.Unlock()

	for _, a := range auths {
		if err := conn.Auth(ctx, a.db, a.user, a.password, a.digestPassword); err != nil {
			c.logger.Warn("credential replay failed on new connection", zap.String("db", a.db), zap.String("user", a.user), zap.Error(err))
		}
	}
}

// Connect attempts to resolve and reach the primary. On failure it
// reports the cached primary (if any) to the Monitor as failed and
// returns false rather than propagating the error, matching the source
// driver's connect() contract.
func (c *ReplicaSetClient) Connect(ctx context.Context) bool {
	conn, err := c.checkMaster(ctx)
	if err != nil {
		c.logger.Warn("connect failed", zap.Error(err))
		c.mu.Lock()
		primary := c.primaryAddr
		c.mu.Unlock()
		if !primary.IsZero() {
			c.mon.NotifyFailure(primary)
		}
		return false
	}
	return !conn.IsFailed()
}

// Auth authenticates against the primary and, on success, caches the
// credential for replay against every future connection this client
// opens.
func (c *ReplicaSetClient) Auth(ctx context.Context, db, user, password string, digestPassword bool) error {
	conn, err := c.checkMaster(ctx)
	if err != nil {
		return err
	}
	if err := conn.Auth(ctx, db, user, password, digestPassword); err != nil {
		return err
	}

	c.mu.Lock()
	c.auths = append(c.auths, authInfo{db: db, user: user, password: password, digestPassword: digestPassword})
	c.mu.Unlock()
	return nil
}

// Insert routes to the primary, single attempt.
func (c *ReplicaSetClient) Insert(ctx context.Context, ns string, docs ...map[string]any) error {
	conn, err := c.checkMaster(ctx)
	if err != nil {
		return err
	}
	c.recordOp("insert", "primary")
	return conn.Insert(ctx, ns, docs...)
}

// Update routes to the primary, single attempt.
func (c *ReplicaSetClient) Update(ctx context.Context, ns string, query, update map[string]any, upsert, multi bool) error {
	conn, err := c.checkMaster(ctx)
	if err != nil {
		return err
	}
	c.recordOp("update", "primary")
	return conn.Update(ctx, ns, query, update, upsert, multi)
}

// Remove routes to the primary, single attempt.
func (c *ReplicaSetClient) Remove(ctx context.Context, ns string, query map[string]any, justOne bool) error {
	conn, err := c.checkMaster(ctx)
	if err != nil {
		return err
	}
	c.recordOp("remove", "primary")
	return conn.Remove(ctx, ns, query, justOne)
}

// KillCursor routes to the primary, single attempt.
func (c *ReplicaSetClient) KillCursor(ctx context.Context, id int64) error {
	conn, err := c.checkMaster(ctx)
	if err != nil {
		return err
	}
	c.recordOp("kill_cursor", "primary")
	return conn.KillCursor(ctx, id)
}

// Query routes to a secondary (with up to maxSecondaryAttempts rotating
// attempts) when opts requests secondary-ok, falling back to the
// primary if every secondary attempt fails; otherwise it goes straight
// to the primary.
func (c *ReplicaSetClient) Query(ctx context.Context, ns string, query map[string]any, nToReturn, nToSkip int, fields map[string]any, opts rpc.QueryOptions, batchSize int) (rpc.Cursor, error) {
	if !opts.HasSecondaryOk() {
		conn, err := c.checkMaster(ctx)
		if err != nil {
			return nil, err
		}
		c.recordOp("query", "primary")
		return conn.Query(ctx, ns, query, nToReturn, nToSkip, fields, opts, batchSize)
	}

	for attempt := 0; attempt < maxSecondaryAttempts; attempt++ {
		conn, err := c.checkSlave(ctx)
		if err != nil {
			break
		}
		cur, err := conn.Query(ctx, ns, query, nToReturn, nToSkip, fields, opts, batchSize)
		if err == nil {
			c.recordOp("query", "secondary")
			return cur, nil
		}
		c.recordRetry("query")
		c.mon.NotifySlaveFailure(c.currentSlaveAddr())
	}

	conn, err := c.checkMaster(ctx)
	if err != nil {
		return nil, err
	}
	c.recordOp("query", "secondary_fallback")
	return conn.Query(ctx, ns, query, nToReturn, nToSkip, fields, opts, batchSize)
}

// FindOne applies the same secondary-ok/fallback routing as Query.
func (c *ReplicaSetClient) FindOne(ctx context.Context, ns string, query, fields map[string]any, opts rpc.QueryOptions) (map[string]any, error) {
	if !opts.HasSecondaryOk() {
		conn, err := c.checkMaster(ctx)
		if err != nil {
			return nil, err
		}
		c.recordOp("find_one", "primary")
		return conn.FindOne(ctx, ns, query, fields, opts)
	}

	for attempt := 0; attempt < maxSecondaryAttempts; attempt++ {
		conn, err := c.checkSlave(ctx)
		if err != nil {
			break
		}
		doc, err := conn.FindOne(ctx, ns, query, fields, opts)
		if err == nil {
			c.recordOp("find_one", "secondary")
			return doc, nil
		}
		c.recordRetry("find_one")
		c.mon.NotifySlaveFailure(c.currentSlaveAddr())
	}

	conn, err := c.checkMaster(ctx)
	if err != nil {
		return nil, err
	}
	c.recordOp("find_one", "secondary_fallback")
	return conn.FindOne(ctx, ns, query, fields, opts)
}

// Call issues a raw message, inspecting its header to decide routing:
// a query carrying the secondary-ok flag gets the same rotate-then-
// fallback treatment as Query/FindOne; anything else goes to the
// primary only.
func (c *ReplicaSetClient) Call(ctx context.Context, out, in *rpc.Message) error {
	if out.Opcode != rpc.OpQuery || !out.Options.HasSecondaryOk() {
		conn, err := c.checkMaster(ctx)
		if err != nil {
			return err
		}
		c.recordOp("call", "primary")
		return conn.Call(ctx, out, in)
	}

	for attempt := 0; attempt < maxSecondaryAttempts; attempt++ {
		conn, err := c.checkSlave(ctx)
		if err != nil {
			break
		}
		if err := conn.Call(ctx, out, in); err == nil {
			c.recordOp("call", "secondary")
			return nil
		}
		c.recordRetry("call")
		c.mon.NotifySlaveFailure(c.currentSlaveAddr())
	}

	conn, err := c.checkMaster(ctx)
	if err != nil {
		return err
	}
	c.recordOp("call", "secondary_fallback")
	return conn.Call(ctx, out, in)
}

func (c *ReplicaSetClient) currentSlaveAddr() topology.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slaveAddr
}

func (c *ReplicaSetClient) recordOp(op, routing string) {
	if c.m == nil {
		return
	}
	c.m.ClientOperationsTotal.WithLabelValues(op, routing).Inc()
}

func (c *ReplicaSetClient) recordRetry(op string) {
	if c.m == nil {
		return
	}
	c.m.ClientRetriesTotal.WithLabelValues(op).Inc()
}

// Close releases any cached connections this client opened.
func (c *ReplicaSetClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	if c.primaryConn != nil {
		if err := c.primaryConn.Close(); err != nil {
			firstErr = err
		}
		c.primaryConn = nil
	}
	if c.slaveConn != nil {
		if err := c.slaveConn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.slaveConn = nil
	}
	return firstErr
}

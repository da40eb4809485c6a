package monitor

import (
	"context"
	"fmt"
	"sync"

	"github.com/devrev/rsmon/internal/rpc"
	"github.com/devrev/rsmon/internal/topology"
)

// fakeConn is a minimal, configurable rpc.Connection used to drive
// Monitor's check logic without any real network I/O.
type fakeConn struct {
	mu sync.Mutex

	isMasterReply rpc.IsMasterReply
	isMasterErr   error

	replStatus rpc.ReplSetStatus
	replErr    error

	failed bool
	closed bool
}

func (c *fakeConn) Connect(ctx context.Context, addr topology.Addr) error { return nil }

func (c *fakeConn) IsMaster(ctx context.Context) (rpc.IsMasterReply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isMasterReply, c.isMasterErr
}

func (c *fakeConn) RunCommand(ctx context.Context, db string, cmd map[string]any, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.replErr != nil {
		return c.replErr
	}
	status, ok := out.(*rpc.ReplSetStatus)
	if !ok {
		return fmt.Errorf("unsupported out type in fake RunCommand")
	}
	*status = c.replStatus
	return nil
}

func (c *fakeConn) Auth(ctx context.Context, db, user, password string, digestPassword bool) error {
	return nil
}

func (c *fakeConn) Insert(ctx context.Context, ns string, docs ...map[string]any) error { return nil }

func (c *fakeConn) Update(ctx context.Context, ns string, query, update map[string]any, upsert, multi bool) error {
	return nil
}

func (c *fakeConn) Remove(ctx context.Context, ns string, query map[string]any, justOne bool) error {
	return nil
}

func (c *fakeConn) Query(ctx context.Context, ns string, query map[string]any, nToReturn, nToSkip int, fields map[string]any, opts rpc.QueryOptions, batchSize int) (rpc.Cursor, error) {
	return nil, fmt.Errorf("not implemented")
}

func (c *fakeConn) FindOne(ctx context.Context, ns string, query, fields map[string]any, opts rpc.QueryOptions) (map[string]any, error) {
	return nil, fmt.Errorf("not implemented")
}

func (c *fakeConn) KillCursor(ctx context.Context, id int64) error { return nil }

func (c *fakeConn) Call(ctx context.Context, out, in *rpc.Message) error {
	return fmt.Errorf("not implemented")
}

func (c *fakeConn) IsFailed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// fakeDialer hands out pre-registered fakeConns keyed by address, and
// can be told to fail specific addresses to simulate unreachable nodes.
type fakeDialer struct {
	mu     sync.Mutex
	conns  map[string]*fakeConn
	failOn map[string]bool
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(map[string]*fakeConn), failOn: make(map[string]bool)}
}

func (d *fakeDialer) register(addr topology.Addr, conn *fakeConn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns[addr.String()] = conn
}

func (d *fakeDialer) failAddr(addr topology.Addr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failOn[addr.String()] = true
}

func (d *fakeDialer) Dial(ctx context.Context, addr topology.Addr) (rpc.Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failOn[addr.String()] {
		return nil, fmt.Errorf("dial %s: refused", addr)
	}
	conn, ok := d.conns[addr.String()]
	if !ok {
		return nil, fmt.Errorf("dial %s: no fake registered", addr)
	}
	return conn, nil
}

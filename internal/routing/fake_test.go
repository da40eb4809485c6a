package routing

import (
	"context"
	"fmt"
	"sync"

	"github.com/devrev/rsmon/internal/rpc"
	"github.com/devrev/rsmon/internal/topology"
)

type fakeConn struct {
	mu sync.Mutex

	isMasterReply rpc.IsMasterReply
	queryErr      error
	authErr       error
	failed        bool
	closed        bool
	authed        []string
}

func (c *fakeConn) Connect(ctx context.Context, addr topology.Addr) error { return nil }

func (c *fakeConn) IsMaster(ctx context.Context) (rpc.IsMasterReply, error) {
	return c.isMasterReply, nil
}

func (c *fakeConn) RunCommand(ctx context.Context, db string, cmd map[string]any, out any) error {
	return nil
}

func (c *fakeConn) Auth(ctx context.Context, db, user, password string, digestPassword bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authErr != nil {
		return c.authErr
	}
	c.authed = append(c.authed, db+"/"+user)
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
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	return &fakeCursor{}, nil
}

func (c *fakeConn) FindOne(ctx context.Context, ns string, query, fields map[string]any, opts rpc.QueryOptions) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	return map[string]any{"ok": true}, nil
}

func (c *fakeConn) KillCursor(ctx context.Context, id int64) error { return nil }

func (c *fakeConn) Call(ctx context.Context, out, in *rpc.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queryErr
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

type fakeCursor struct{}

func (c *fakeCursor) Next(ctx context.Context, out *map[string]any) (bool, error) { return false, nil }
func (c *fakeCursor) Close(ctx context.Context) error                             { return nil }

type fakeDialer struct {
	mu    sync.Mutex
	conns map[string]*fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(map[string]*fakeConn)}
}

func (d *fakeDialer) register(addr topology.Addr, conn *fakeConn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns[addr.String()] = conn
}

func (d *fakeDialer) Dial(ctx context.Context, addr topology.Addr) (rpc.Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	conn, ok := d.conns[addr.String()]
	if !ok {
		return nil, fmt.Errorf("dial %s: no fake registered", addr)
	}
	return conn, nil
}

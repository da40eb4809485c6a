package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/devrev/rsmon/internal/topology"
)

const serviceName = "/rsmon.NodeService/"

// NodeClient is the concrete Connection implementation used by both the
// monitor (for probes) and the client (for routed operations). It dials
// a single node over gRPC and issues every operation as a unary RPC
// riding the "json" codec registered in codec.go.
type NodeClient struct {
	addr   topology.Addr
	conn   *grpc.ClientConn
	failed atomic.Bool
}

// KeepaliveParams configures the client-side gRPC keepalive pinger used
// by every NodeClient dial.
type KeepaliveParams struct {
	Time                time.Duration
	Timeout             time.Duration
	PermitWithoutStream bool
}

// DefaultKeepaliveParams matches the values this codebase's other gRPC
// clients use.
func DefaultKeepaliveParams() KeepaliveParams {
	return KeepaliveParams{
		Time:                30 * time.Second,
		Timeout:             10 * time.Second,
		PermitWithoutStream: true,
	}
}

// NodeDialer implements the Dialer interface by constructing and
// connecting NodeClients. Its ConnectTimeout and Keepalive fields are
// stored but not passed to the NodeClients it dials: every NodeClient
// uses the fixed timeout and DefaultKeepaliveParams of Connect.
type NodeDialer struct {
	ConnectTimeout time.Duration
	Keepalive      KeepaliveParams
}

// NewNodeDialer returns a Dialer using DefaultKeepaliveParams and the
// given connect timeout.
func NewNodeDialer(connectTimeout time.Duration) *NodeDialer {
	return &NodeDialer{ConnectTimeout: connectTimeout, Keepalive: DefaultKeepaliveParams()}
}

// Dial opens a new NodeClient connected to addr.
func (d *NodeDialer) Dial(ctx context.Context, addr topology.Addr) (Connection, error) {
	c := &NodeClient{addr: addr}
	if err := c.Connect(ctx, addr); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect dials addr with a fixed 5-second timeout applied via the
// context (a shorter deadline already on ctx still wins), plaintext
// transport credentials (TLS is a deployment concern outside this core),
// and DefaultKeepaliveParams keepalive pings so idle probe connections
// are detected as failed promptly.
func (c *NodeClient) Connect(ctx context.Context, addr topology.Addr) error {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	kp := DefaultKeepaliveParams()
	conn, err := grpc.DialContext(dialCtx, addr.String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                kp.Time,
			Timeout:             kp.Timeout,
			PermitWithoutStream: kp.PermitWithoutStream,
		}),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
	)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	c.addr = addr
	c.conn = conn
	return nil
}

func (c *NodeClient) invoke(ctx context.Context, method string, req, reply any) error {
	if err := c.conn.Invoke(ctx, serviceName+method, req, reply); err != nil {
		c.failed.Store(true)
		return fmt.Errorf("%s%s: %w", serviceName, method, err)
	}
	return nil
}

// IsMaster issues the isMaster handshake.
func (c *NodeClient) IsMaster(ctx context.Context) (IsMasterReply, error) {
	var resp isMasterResponse
	if err := c.invoke(ctx, "IsMaster", &isMasterRequest{}, &resp); err != nil {
		return IsMasterReply{}, err
	}
	return IsMasterReply{
		IsPrimary: resp.IsPrimary,
		Hosts:     resp.Hosts,
		Passives:  resp.Passives,
		Primary:   resp.Primary,
	}, nil
}

// RunCommand issues an administrative command such as replSetGetStatus.
func (c *NodeClient) RunCommand(ctx context.Context, db string, cmd map[string]any, out any) error {
	var resp runCommandResponse
	if err := c.invoke(ctx, "RunCommand", &runCommandRequest{DB: db, Command: cmd}, &resp); err != nil {
		return err
	}
	return decodeInto(resp.Reply, out)
}

// Auth authenticates against db.
func (c *NodeClient) Auth(ctx context.Context, db, user, password string, digestPassword bool) error {
	var resp authResponse
	req := &authRequest{DB: db, User: user, Password: password, DigestPassword: digestPassword}
	if err := c.invoke(ctx, "Auth", req, &resp); err != nil {
		return err
	}
	if !resp.Ok {
		return fmt.Errorf("auth failed for %s@%s", user, db)
	}
	return nil
}

// Insert inserts one or more documents.
func (c *NodeClient) Insert(ctx context.Context, ns string, docs ...map[string]any) error {
	var resp insertResponse
	return c.invoke(ctx, "Insert", &insertRequest{Namespace: ns, Docs: docs}, &resp)
}

// Update applies query/update with the given upsert/multi semantics.
func (c *NodeClient) Update(ctx context.Context, ns string, query, update map[string]any, upsert, multi bool) error {
	var resp updateResponse
	req := &updateRequest{Namespace: ns, Query: query, Update: update, Upsert: upsert, Multi: multi}
	return c.invoke(ctx, "Update", req, &resp)
}

// Remove deletes documents matching query.
func (c *NodeClient) Remove(ctx context.Context, ns string, query map[string]any, justOne bool) error {
	var resp removeResponse
	return c.invoke(ctx, "Remove", &removeRequest{Namespace: ns, Query: query, JustOne: justOne}, &resp)
}

// nodeCursor pages through a Query response already fetched in full by
// the (simplified) RPC; a real driver would stream batches, which is a
// concern of the wire codec this core deliberately leaves external.
type nodeCursor struct {
	id   int64
	docs []map[string]any
	pos  int
	conn *NodeClient
}

func (cur *nodeCursor) Next(ctx context.Context, out *map[string]any) (bool, error) {
	if cur.pos >= len(cur.docs) {
		return false, nil
	}
	*out = cur.docs[cur.pos]
	cur.pos++
	return true, nil
}

func (cur *nodeCursor) Close(ctx context.Context) error {
	if cur.id == 0 {
		return nil
	}
	return cur.conn.KillCursor(ctx, cur.id)
}

// Query issues a find and returns a Cursor over the results.
func (c *NodeClient) Query(ctx context.Context, ns string, query map[string]any, nToReturn, nToSkip int, fields map[string]any, opts QueryOptions, batchSize int) (Cursor, error) {
	var resp queryResponse
	req := &queryRequest{
		Namespace: ns,
		Query:     query,
		NToReturn: nToReturn,
		NToSkip:   nToSkip,
		Fields:    fields,
		Options:   uint32(opts),
		BatchSize: batchSize,
	}
	if err := c.invoke(ctx, "Query", req, &resp); err != nil {
		return nil, err
	}
	return &nodeCursor{id: resp.CursorID, docs: resp.Documents, conn: c}, nil
}

// FindOne issues a query limited to a single result document.
func (c *NodeClient) FindOne(ctx context.Context, ns string, query, fields map[string]any, opts QueryOptions) (map[string]any, error) {
	var resp findOneResponse
	req := &findOneRequest{Namespace: ns, Query: query, Fields: fields, Options: uint32(opts)}
	if err := c.invoke(ctx, "FindOne", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, nil
	}
	return resp.Document, nil
}

// KillCursor releases a server-side cursor.
func (c *NodeClient) KillCursor(ctx context.Context, id int64) error {
	var resp killCursorResponse
	return c.invoke(ctx, "KillCursor", &killCursorRequest{CursorID: id}, &resp)
}

// Call issues a raw message and decodes the reply header/body into in.
func (c *NodeClient) Call(ctx context.Context, out, in *Message) error {
	var resp callResponse
	req := &callRequest{Opcode: int32(out.Opcode), Options: uint32(out.Options), Body: out.Body}
	if err := c.invoke(ctx, "Call", req, &resp); err != nil {
		return err
	}
	in.Opcode = Opcode(resp.Opcode)
	in.Body = resp.Body
	return nil
}

// IsFailed reports true once a call has failed on this connection or
// the underlying gRPC channel has left a state that permits recovery on
// its own (Ready, Idle, Connecting).
func (c *NodeClient) IsFailed() bool {
	if c.failed.Load() {
		return true
	}
	if c.conn == nil {
		return true
	}
	switch c.conn.GetState() {
	case connectivity.Ready, connectivity.Idle, connectivity.Connecting:
		return false
	default:
		return true
	}
}

// Close tears down the underlying gRPC channel.
func (c *NodeClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// decodeInto re-marshals the generic reply document into whatever
// concrete type the caller supplied (a *map[string]any or a *struct{}
// like ReplSetStatus), the way this package's own JSON codec already
// handles every other message.
func decodeInto(src map[string]any, out any) error {
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("re-encode reply: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode reply into %T: %w", out, err)
	}
	return nil
}

// Package rpc defines the narrow transport interface the monitor and
// client program against, plus one concrete implementation of it backed
// by gRPC. Document encoding, cursor iteration, and process shutdown
// signalling belong to callers of this package, not to it.
package rpc

import (
	"context"

	"github.com/devrev/rsmon/internal/topology"
)

// QueryOptions is a bitfield of query behavior flags.
type QueryOptions uint32

// QueryOptionSecondaryOk opts a query into being served by a healthy
// non-primary member instead of requiring the primary.
const QueryOptionSecondaryOk QueryOptions = 1 << 0

// HasSecondaryOk reports whether the secondary-ok bit is set.
func (o QueryOptions) HasSecondaryOk() bool {
	return o&QueryOptionSecondaryOk != 0
}

// Opcode identifies the kind of operation carried by a raw Message.
type Opcode int32

const (
	OpQuery Opcode = 2004
	OpReply Opcode = 1
)

// Message is the header-plus-body shape the core inspects for raw Call
// routing decisions. Body is opaque to this package.
type Message struct {
	Opcode  Opcode
	Options QueryOptions
	Body    []byte
}

// IsMasterReply is the shape consumed from an isMaster handshake.
// Unknown or wrongly-typed fields in the wire document are ignored;
// these are the only ones the core acts on.
type IsMasterReply struct {
	IsPrimary bool
	Hosts     []string
	Passives  []string
	Primary   string
}

// ReplSetMember is one entry of a replSetGetStatus reply.
type ReplSetMember struct {
	Name   string `json:"name"`
	State  int    `json:"state"`
	Health int    `json:"health"`
}

// Healthy reports whether this member counts as up for routing purposes:
// health == 1 and state is primary (1) or secondary (2).
func (m ReplSetMember) Healthy() bool {
	return m.Health == 1 && (m.State == 1 || m.State == 2)
}

// ReplSetStatus is the shape consumed from a replSetGetStatus command.
type ReplSetStatus struct {
	Members []ReplSetMember `json:"members"`
}

// Cursor iterates the results of a Query call. Advancing and decoding
// documents is a concern of the caller; this package only opens it.
type Cursor interface {
	Next(ctx context.Context, out *map[string]any) (bool, error)
	Close(ctx context.Context) error
}

// Connection is the single-node transport the monitor probes and the
// client routes operations through. Implementations may return an error
// on any I/O failure; the core downgrades the node and retries or falls
// back rather than propagating transport errors unconditionally.
type Connection interface {
	Connect(ctx context.Context, addr topology.Addr) error
	IsMaster(ctx context.Context) (IsMasterReply, error)
	RunCommand(ctx context.Context, db string, cmd map[string]any, out any) error
	Auth(ctx context.Context, db, user, password string, digestPassword bool) error
	Insert(ctx context.Context, ns string, docs ...map[string]any) error
	Update(ctx context.Context, ns string, query, update map[string]any, upsert, multi bool) error
	Remove(ctx context.Context, ns string, query map[string]any, justOne bool) error
	Query(ctx context.Context, ns string, query map[string]any, nToReturn, nToSkip int, fields map[string]any, opts QueryOptions, batchSize int) (Cursor, error)
	FindOne(ctx context.Context, ns string, query, fields map[string]any, opts QueryOptions) (map[string]any, error)
	KillCursor(ctx context.Context, id int64) error
	Call(ctx context.Context, out, in *Message) error
	IsFailed() bool
	Close() error
}

// Dialer opens a new Connection to addr. The monitor and client never
// construct transport implementations directly; they go through a
// Dialer so tests can substitute fakes.
type Dialer interface {
	Dial(ctx context.Context, addr topology.Addr) (Connection, error)
}

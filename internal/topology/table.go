package topology

import (
	"fmt"
	"strings"

	"github.com/devrev/rsmon/internal/rpc"
)

// Node is one known replica-set member: its address, the probe
// connection the monitor owns for it, and its last-observed health.
// A Node owns Conn; closing it is the caller's responsibility when the
// Node is removed or the table is torn down.
type Node struct {
	Addr Addr
	Conn rpc.Connection
	Ok   bool
}

// Table is an ordered directory of the Nodes known for one replica set,
// plus the index of the currently-designated primary. Insertion order is
// the scan order used by PickSecondary's rotation. Table is not safe for
// concurrent use on its own; callers (the Monitor) serialize access with
// their own lock and must never hold that lock across Connection I/O.
type Table struct {
	nodes  []*Node
	master int // -1 means "primary unknown"
}

// NewTable returns an empty table with no known primary.
func NewTable() *Table {
	return &Table{master: -1}
}

// Master returns the index of the current primary, or -1 if unknown.
func (t *Table) Master() int {
	return t.master
}

// SetMaster records which node index is the current primary. Passing -1
// clears it.
func (t *Table) SetMaster(i int) {
	t.master = i
}

// Len returns the number of known nodes.
func (t *Table) Len() int {
	return len(t.nodes)
}

// Node returns the node at index i.
func (t *Table) Node(i int) *Node {
	return t.nodes[i]
}

// Nodes returns the underlying slice in insertion order. Callers must
// not mutate it.
func (t *Table) Nodes() []*Node {
	return t.nodes
}

// Find returns the index of addr, or -1 if it is not known.
func (t *Table) Find(addr Addr) int {
	for i, n := range t.nodes {
		if n.Addr.Equal(addr) {
			return i
		}
	}
	return -1
}

// Add appends a new node. The caller must have already confirmed
// Find(addr) == -1; Add does not itself check for duplicates so that
// callers that already hold the index from a preceding Find don't pay
// for a second scan.
func (t *Table) Add(addr Addr, conn rpc.Connection) *Node {
	n := &Node{Addr: addr, Conn: conn, Ok: true}
	t.nodes = append(t.nodes, n)
	return n
}

// SetHealth mutates the health flag of the node at index i.
func (t *Table) SetHealth(i int, ok bool) {
	t.nodes[i].Ok = ok
}

// ClearPrimaryIf resets master to -1 if addr names the current primary.
// It reports whether it did so.
func (t *Table) ClearPrimaryIf(addr Addr) bool {
	if t.master >= 0 && t.nodes[t.master].Addr.Equal(addr) {
		t.master = -1
		return true
	}
	return false
}

// PickSecondary chooses a start offset from x (typically a random
// number modulo Len()) and scans cyclically for the first node that is
// not the primary and is healthy. If none qualifies it falls back to
// node 0 as a best-effort choice; callers treat that return as
// best-effort and will observe a failure on use if it happens to be the
// primary or itself unhealthy. Preserved from the source design for
// fidelity — see the Open Question in the design notes.
func (t *Table) PickSecondary(x int) (Addr, bool) {
	n := len(t.nodes)
	if n == 0 {
		return Addr{}, false
	}
	start := x % n
	for i := 0; i < n; i++ {
		p := (start + i) % n
		if p == t.master {
			continue
		}
		if t.nodes[p].Ok {
			return t.nodes[p].Addr, true
		}
	}
	return t.nodes[0].Addr, true
}

// ServerAddress renders "<name>/host1:port1,host2:port2,…" in node
// order, matching the driver's own topology string.
func (t *Table) ServerAddress(name string) string {
	parts := make([]string, len(t.nodes))
	for i, n := range t.nodes {
		parts[i] = n.Addr.String()
	}
	return fmt.Sprintf("%s/%s", name, strings.Join(parts, ","))
}

// Close closes every node's owned connection. Called when the table's
// owning Monitor is torn down (in practice, only at process exit, since
// Monitors live for the process lifetime).
func (t *Table) Close() {
	for _, n := range t.nodes {
		if n.Conn != nil {
			_ = n.Conn.Close()
		}
	}
	t.nodes = nil
	t.master = -1
}

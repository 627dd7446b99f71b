package cluster

import (
	"fmt"
	"sync"

	"goring/internal/ring"
)

// Membership is the registry of cluster nodes. It owns one hash ring
// and keeps the ring's node set in lockstep with the descriptor table:
// the invariant this package exists to hold is "ring node ids ==
// registry node ids".
//
// replication factor R is fixed at load time; it never changes at
// runtime (only membership does).
type Membership struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	ring  *ring.Ring
	r     int
}

// NewMembership builds a registry seeded with nodes, backed by a fresh
// ring with vnodes virtual positions per node and replication factor r.
// All seeded nodes start alive.
func NewMembership(nodes []Node, vnodes, r int) *Membership {
	m := &Membership{
		nodes: make(map[string]*Node, len(nodes)),
		ring:  ring.New(vnodes),
		r:     r,
	}
	for i := range nodes {
		n := nodes[i]
		n.IsAlive = true
		m.nodes[n.ID] = &n
		m.ring.AddNode(n.ID)
	}
	return m
}

// ReplicationFactor returns R, fixed at construction.
func (m *Membership) ReplicationFactor() int {
	return m.r
}

// AddNode joins a new node to the cluster, mutating both the
// descriptor table and the ring. Returns an error if the id is already
// present.
func (m *Membership) AddNode(n Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.nodes[n.ID]; exists {
		return fmt.Errorf("node %q already in cluster", n.ID)
	}
	n.IsAlive = true
	m.nodes[n.ID] = &n
	m.ring.AddNode(n.ID)
	return nil
}

// RemoveNode removes a node from both the descriptor table and the
// ring. Returns an error if the id is not present. No key migration is
// performed — keys the removed node held are simply gone from the
// routing picture until an operator acts.
func (m *Membership) RemoveNode(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.nodes[id]; !exists {
		return fmt.Errorf("node %q not in cluster", id)
	}
	delete(m.nodes, id)
	m.ring.RemoveNode(id)
	return nil
}

// MarkAlive flags a node as alive. No-op if the node is unknown.
func (m *Membership) MarkAlive(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nodes[id]; ok {
		n.IsAlive = true
	}
}

// MarkDead flags a node as dead. No-op if the node is unknown. This
// never touches the ring — the ring is the naming authority and
// ignores liveness by design; liveness is only consulted by callers
// before they attempt I/O.
func (m *Membership) MarkDead(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nodes[id]; ok {
		n.IsAlive = false
	}
}

// GetNodeByID returns the node with the given id, if any.
func (m *Membership) GetNodeByID(id string) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// GetAllNodes returns a snapshot of every node in the registry.
func (m *Membership) GetAllNodes() []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, *n)
	}
	return out
}

// GetAliveNodes returns a snapshot of every node currently marked
// alive.
func (m *Membership) GetAliveNodes() []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		if n.IsAlive {
			out = append(out, *n)
		}
	}
	return out
}

// GetOwner returns the primary owner of key via the ring. It ignores
// liveness: the ring is the sole naming authority, so an owner lookup
// always succeeds as long as the ring is non-empty, even if that node
// happens to be marked dead. Callers that are about to attempt I/O
// against the result should consult IsAlive themselves.
func (m *Membership) GetOwner(key string) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.ring.GetNode(key)
	if !ok {
		return Node{}, false
	}
	n, ok := m.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// GetReplicaSet returns the R nodes responsible for key, primary first,
// in deterministic ring-walk order.
func (m *Membership) GetReplicaSet(key string) []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.ring.GetNodes(key, m.r)
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := m.nodes[id]; ok {
			out = append(out, *n)
		}
	}
	return out
}

// GetReplicas returns GetReplicaSet minus the primary (length R-1, or
// fewer if the cluster has fewer than R nodes).
func (m *Membership) GetReplicas(key string) []Node {
	set := m.GetReplicaSet(key)
	if len(set) <= 1 {
		return nil
	}
	return set[1:]
}

// Distribution returns the ring's virtual-node distribution across
// physical nodes. Exposed for the `cluster distribution` CLI
// subcommand and for tests verifying balance.
func (m *Membership) Distribution() map[string]int {
	return m.ring.Distribution()
}

// NodeCount returns the number of physical nodes on the ring.
func (m *Membership) NodeCount() int {
	return m.ring.NodeCount()
}

// Package ring implements the consistent-hash ring: the data structure
// that answers "which node(s) own this key?" for the rest of the
// cluster.
//
// Big idea:
//
// Plain hash(key) % N remaps almost every key when N changes — one node
// joining or leaving shuffles the whole keyspace. Consistent hashing
// fixes that by placing nodes and keys on the same circular space
// (0..2^32) and walking clockwise from a key's position to find its
// owner. Adding or removing a node then only disturbs the keys between
// its neighbors on the ring.
//
// Virtual nodes: a single ring position per physical node gives lumpy
// load (some nodes cover far more of the ring than others by chance).
// Each physical node is instead given V virtual positions, which
// smooths the distribution — this is the same trick Cassandra and
// Dynamo use.
package ring

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// defaultVnodes is used when a ring is constructed with vnodes <= 0.
const defaultVnodes = 150

// Ring is the consistent-hash ring. Safe for concurrent use.
type Ring struct {
	mu     sync.RWMutex
	vnodes int
	ring   map[uint32]string
	sorted []uint32
	nodes  map[string]bool
}

// New creates an empty ring with vnodes virtual positions per physical
// node. vnodes <= 0 falls back to the default of 150.
func New(vnodes int) *Ring {
	if vnodes <= 0 {
		vnodes = defaultVnodes
	}
	return &Ring{
		vnodes: vnodes,
		ring:   make(map[uint32]string),
		nodes:  make(map[string]bool),
	}
}

// AddNode inserts a physical node's V virtual positions and rebuilds
// the sorted index. Idempotent: re-adding an existing node just
// overwrites its virtual positions (a no-op, since they hash the same).
// Virtual-position collisions between distinct node ids are
// astronomically unlikely; when they do happen the later AddNode call
// wins, since it runs last.
func (r *Ring) AddNode(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nodes[nodeID] = true
	for i := 0; i < r.vnodes; i++ {
		pos := r.hash(fmt.Sprintf("%s:%d", nodeID, i))
		r.ring[pos] = nodeID
	}
	r.rebuild()
}

// RemoveNode deletes every virtual position belonging to nodeID and
// rebuilds the sorted index. No-op if the node is not present.
func (r *Ring) RemoveNode(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.nodes[nodeID] {
		return
	}
	delete(r.nodes, nodeID)
	for i := 0; i < r.vnodes; i++ {
		pos := r.hash(fmt.Sprintf("%s:%d", nodeID, i))
		delete(r.ring, pos)
	}
	r.rebuild()
}

// GetNode returns the single physical node owning key. The second
// return value is false iff the ring is empty.
func (r *Ring) GetNode(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.sorted) == 0 {
		return "", false
	}
	idx := r.search(r.hash(key))
	return r.ring[r.sorted[idx]], true
}

// GetNodes returns the min(count, distinct-physical-nodes) nodes
// responsible for key, walking clockwise from key's ring position in
// deterministic order. The first entry is the same node GetNode would
// return.
func (r *Ring) GetNodes(key string, count int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.sorted) == 0 || count <= 0 {
		return nil
	}
	if count > len(r.nodes) {
		count = len(r.nodes)
	}

	idx := r.search(r.hash(key))
	seen := make(map[string]bool, count)
	nodes := make([]string, 0, count)

	for i := 0; i < len(r.sorted) && len(nodes) < count; i++ {
		pos := r.sorted[(idx+i)%len(r.sorted)]
		nodeID := r.ring[pos]
		if !seen[nodeID] {
			seen[nodeID] = true
			nodes = append(nodes, nodeID)
		}
	}
	return nodes
}

// Nodes returns every distinct physical node id on the ring, sorted.
func (r *Ring) Nodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]string, 0, len(r.nodes))
	for id := range r.nodes {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)
	return nodes
}

// NodeCount returns the number of distinct physical nodes (not virtual
// positions).
func (r *Ring) NodeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Distribution returns, for each physical node, the number of ring
// positions (virtual nodes) it occupies. Used to verify invariant 3
// (exactly V positions per node) and to eyeball load balance.
func (r *Ring) Distribution() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dist := make(map[string]int, len(r.nodes))
	for id := range r.nodes {
		dist[id] = 0
	}
	for _, id := range r.ring {
		dist[id]++
	}
	return dist
}

// hash is the ring's hash function: the first 4 bytes (8 hex digits) of
// the key's MD5 sum, read as a big-endian uint32. This exact
// construction is load-bearing for key placement and must not change
// without a full rehash of every deployed ring.
func (r *Ring) hash(s string) uint32 {
	sum := md5.Sum([]byte(s))
	return binary.BigEndian.Uint32(sum[:4])
}

// rebuild recomputes the sorted position index from the ring map. Must
// be called (while holding the write lock) after any AddNode or
// RemoveNode.
func (r *Ring) rebuild() {
	r.sorted = make([]uint32, 0, len(r.ring))
	for pos := range r.ring {
		r.sorted = append(r.sorted, pos)
	}
	slices.Sort(r.sorted)
}

// search finds the index of the first ring position strictly greater
// than pos, wrapping to 0 if pos is greater than every position on the
// ring. "Strictly greater" (not >=) is the tie-break: a position
// exactly equal to a key's hash belongs to the *next* node.
func (r *Ring) search(pos uint32) int {
	idx := sort.Search(len(r.sorted), func(i int) bool {
		return r.sorted[i] > pos
	})
	if idx == len(r.sorted) {
		idx = 0
	}
	return idx
}

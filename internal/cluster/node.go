// Package cluster owns node identity and membership: the registry of
// which nodes exist, their addresses, and their liveness, plus the
// replica-set queries the Request Router and Replication Coordinator
// build on top of the hash ring.
package cluster

// Node is a single cluster member's identity. The registry keys nodes
// by ID alone — Address and IsAlive may change without the node
// becoming "a different node". Comparing two Node values with ==
// compares every field, not just ID.
type Node struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	IsAlive bool   `json:"is_alive"`
}

// Package router implements the Request Router: the per-RPC decision of
// whether this node owns a key (serve locally, replicating mutations)
// or must forward the request to the owner.
package router

import (
	"context"
	"errors"
	"time"

	"goring/internal/cluster"
	"goring/internal/replication"
	"goring/internal/storage"
)

// ErrNoAvailableNodes is returned when the ring is empty or owner
// lookup fails.
var ErrNoAvailableNodes = errors.New("no available nodes")

// ErrRouteFailure is returned when forwarding to the owner fails at the
// transport level.
var ErrRouteFailure = errors.New("route failure")

// ForwardDeadline is the deadline every forwarded inter-node call
// carries.
const ForwardDeadline = 5 * time.Second

// Transport is what the Router needs from the network to forward a
// request to another node's Node RPC Surface.
type Transport interface {
	ForwardPut(ctx context.Context, addr string, req PutRequest) (PutResponse, error)
	ForwardGet(ctx context.Context, addr string, req GetRequest) (GetResponse, error)
	ForwardDelete(ctx context.Context, addr string, req DeleteRequest) (DeleteResponse, error)
}

// Clock abstracts "now" so tests can control timestamps; defaults to
// time.Now().Unix().
type Clock func() int64

func defaultClock() int64 { return time.Now().Unix() }

// Router is the Request Router. One Router runs per node; Self
// identifies which membership entry is "this node".
type Router struct {
	Self        string
	membership  *cluster.Membership
	storage     *storage.Map
	replication *replication.Coordinator
	transport   Transport
	clock       Clock
}

// New builds a Router.
func New(self string, membership *cluster.Membership, store *storage.Map, coordinator *replication.Coordinator, transport Transport) *Router {
	return &Router{
		Self:        self,
		membership:  membership,
		storage:     store,
		replication: coordinator,
		transport:   transport,
		clock:       defaultClock,
	}
}

// PutRequest / PutResponse mirror the client and inter-node wire
// contracts for PUT — the same shapes serve both the client-facing
// entry point and the Forward* handler.
type PutRequest struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type PutResponse struct {
	Success       bool   `json:"success"`
	NodeID        string `json:"node_id"`
	ReplicasCount int    `json:"replicas_count"`
	Message       string `json:"message,omitempty"`
}

type GetRequest struct {
	Key string `json:"key"`
}

type GetResponse struct {
	Found     bool   `json:"found"`
	Value     string `json:"value,omitempty"`
	NodeID    string `json:"node_id"`
	Timestamp int64  `json:"timestamp"`
}

type DeleteRequest struct {
	Key string `json:"key"`
}

type DeleteResponse struct {
	Success       bool   `json:"success"`
	ReplicasCount int    `json:"replicas_count"`
	Message       string `json:"message,omitempty"`
}

type ListKeysResponse struct {
	Keys []string `json:"keys"`
}

// Put routes a client PUT: serve locally and replicate if this node
// owns the key, otherwise forward to the owner.
func (r *Router) Put(ctx context.Context, key, value string) (PutResponse, error) {
	owner, ok := r.membership.GetOwner(key)
	if !ok {
		return PutResponse{}, ErrNoAvailableNodes
	}

	if owner.ID == r.Self {
		return r.putLocal(ctx, key, value), nil
	}
	return r.forwardPut(ctx, owner, key, value)
}

// Get routes a client GET.
func (r *Router) Get(ctx context.Context, key string) (GetResponse, error) {
	owner, ok := r.membership.GetOwner(key)
	if !ok {
		return GetResponse{}, ErrNoAvailableNodes
	}

	if owner.ID == r.Self {
		return r.getLocal(key), nil
	}
	return r.forwardGet(ctx, owner, key)
}

// Delete routes a client DELETE.
func (r *Router) Delete(ctx context.Context, key string) (DeleteResponse, error) {
	owner, ok := r.membership.GetOwner(key)
	if !ok {
		return DeleteResponse{}, ErrNoAvailableNodes
	}

	if owner.ID == r.Self {
		return r.deleteLocal(ctx, key), nil
	}
	return r.forwardDelete(ctx, owner, key)
}

// ListKeys is purely an inspection operation: it returns only keys
// physically stored on this node, without consulting the ring at all.
func (r *Router) ListKeys() ListKeysResponse {
	return ListKeysResponse{Keys: r.storage.List()}
}

// ─── Local path ───────────────────────────────────────────────────────────────

func (r *Router) putLocal(ctx context.Context, key, value string) PutResponse {
	r.storage.Put(key, value)
	acks := r.replication.ReplicatePut(ctx, key, value, r.clock())
	return PutResponse{Success: true, NodeID: r.Self, ReplicasCount: acks + 1}
}

func (r *Router) getLocal(key string) GetResponse {
	value, found := r.storage.Get(key)
	return GetResponse{Found: found, Value: value, NodeID: r.Self, Timestamp: r.clock()}
}

func (r *Router) deleteLocal(ctx context.Context, key string) DeleteResponse {
	deleted := r.storage.Delete(key)
	if !deleted {
		return DeleteResponse{Success: false, ReplicasCount: 0}
	}
	acks := r.replication.ReplicateDelete(ctx, key, r.clock())
	return DeleteResponse{Success: true, ReplicasCount: acks + 1}
}

// ─── Forward path ─────────────────────────────────────────────────────────────
//
// Forward* handlers on the *receiving* side (ApplyForward{Put,Get,Delete}
// below) never re-forward and never replicate: replication runs exactly
// once, at the client-facing entry point on the primary, which on the
// forwarding node IS this Put/Get/Delete call made remotely.

func (r *Router) forwardPut(ctx context.Context, owner cluster.Node, key, value string) (PutResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, ForwardDeadline)
	defer cancel()

	resp, err := r.transport.ForwardPut(ctx, owner.Address, PutRequest{Key: key, Value: value, Timestamp: r.clock()})
	if err != nil {
		return PutResponse{}, ErrRouteFailure
	}
	return resp, nil
}

func (r *Router) forwardGet(ctx context.Context, owner cluster.Node, key string) (GetResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, ForwardDeadline)
	defer cancel()

	resp, err := r.transport.ForwardGet(ctx, owner.Address, GetRequest{Key: key})
	if err != nil {
		return GetResponse{}, ErrRouteFailure
	}
	return resp, nil
}

func (r *Router) forwardDelete(ctx context.Context, owner cluster.Node, key string) (DeleteResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, ForwardDeadline)
	defer cancel()

	resp, err := r.transport.ForwardDelete(ctx, owner.Address, DeleteRequest{Key: key})
	if err != nil {
		return DeleteResponse{}, ErrRouteFailure
	}
	return resp, nil
}

// ─── ApplyForward* — the handlers invoked when THIS node receives a
// forwarded request from a peer's Router.Put/Get/Delete ───────────────────────

// ApplyForwardPut unconditionally treats key as locally owned: it never
// re-forwards and never triggers replication, even if this node no
// longer considers itself the owner (a stale-owner-view edge case,
// accepted deliberately since key migration on membership change is
// out of scope).
func (r *Router) ApplyForwardPut(req PutRequest) PutResponse {
	r.storage.Put(req.Key, req.Value)
	return PutResponse{Success: true, NodeID: r.Self, ReplicasCount: 0}
}

// ApplyForwardGet is the forward-path counterpart for GET.
func (r *Router) ApplyForwardGet(req GetRequest) GetResponse {
	value, found := r.storage.Get(req.Key)
	return GetResponse{Found: found, Value: value, NodeID: r.Self, Timestamp: r.clock()}
}

// ApplyForwardDelete is the forward-path counterpart for DELETE.
func (r *Router) ApplyForwardDelete(req DeleteRequest) DeleteResponse {
	deleted := r.storage.Delete(req.Key)
	return DeleteResponse{Success: deleted, ReplicasCount: 0}
}

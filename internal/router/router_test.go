package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goring/internal/cluster"
	"goring/internal/replication"
	"goring/internal/storage"
)

// noopTransport never succeeds a forward; used where the owner is
// expected to always be "self" so forwarding should never be invoked.
type noopTransport struct{ forwarded bool }

func (n *noopTransport) ForwardPut(ctx context.Context, addr string, req PutRequest) (PutResponse, error) {
	n.forwarded = true
	return PutResponse{}, errors.New("should not be called")
}
func (n *noopTransport) ForwardGet(ctx context.Context, addr string, req GetRequest) (GetResponse, error) {
	n.forwarded = true
	return GetResponse{}, errors.New("should not be called")
}
func (n *noopTransport) ForwardDelete(ctx context.Context, addr string, req DeleteRequest) (DeleteResponse, error) {
	n.forwarded = true
	return DeleteResponse{}, errors.New("should not be called")
}

// scriptedTransport returns canned responses/errors for forwarding
// tests where the owner is a different node.
type scriptedTransport struct {
	putResp    PutResponse
	putErr     error
	getResp    GetResponse
	getErr     error
	deleteResp DeleteResponse
	deleteErr  error
}

func (s *scriptedTransport) ForwardPut(ctx context.Context, addr string, req PutRequest) (PutResponse, error) {
	return s.putResp, s.putErr
}
func (s *scriptedTransport) ForwardGet(ctx context.Context, addr string, req GetRequest) (GetResponse, error) {
	return s.getResp, s.getErr
}
func (s *scriptedTransport) ForwardDelete(ctx context.Context, addr string, req DeleteRequest) (DeleteResponse, error) {
	return s.deleteResp, s.deleteErr
}

// singleNodeSetup returns a Router where "self" owns every key (a
// single-node ring), so Put/Get/Delete always take the local path.
func singleNodeSetup(t *testing.T, transport Transport) (*Router, *storage.Map) {
	t.Helper()
	nodes := []cluster.Node{{ID: "self", Address: "self:9000"}}
	membership := cluster.NewMembership(nodes, 50, 1)
	store := storage.New()
	coord := replication.NewCoordinator("self", membership, store, noReplicationTransport{}, 2)
	return New("self", membership, store, coord, transport), store
}

type noReplicationTransport struct{}

func (noReplicationTransport) Replicate(ctx context.Context, addr string, req replication.Request) (replication.Response, error) {
	return replication.Response{Success: true}, nil
}

func TestPutLocalWhenSelfOwnsKey(t *testing.T) {
	transport := &noopTransport{}
	r, store := singleNodeSetup(t, transport)

	resp, err := r.Put(context.Background(), "k", "v")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "self", resp.NodeID)
	assert.False(t, transport.forwarded)

	v, ok := store.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestGetLocalMiss(t *testing.T) {
	r, _ := singleNodeSetup(t, &noopTransport{})

	resp, err := r.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, resp.Found)
}

func TestDeleteLocalOfMissingKeyReportsFailure(t *testing.T) {
	r, _ := singleNodeSetup(t, &noopTransport{})

	resp, err := r.Delete(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, 0, resp.ReplicasCount)
}

func TestListKeysNeverConsultsRing(t *testing.T) {
	r, store := singleNodeSetup(t, &noopTransport{})
	store.Put("a", "1")
	store.Put("b", "2")

	keys := r.ListKeys().Keys
	assert.ElementsMatch(t, []string{"a", "b"}, keys)
}

func twoNodeRouter(t *testing.T, self string, transport Transport) *Router {
	t.Helper()
	nodes := []cluster.Node{
		{ID: "node1", Address: "node1:8001"},
		{ID: "node2", Address: "node2:8002"},
	}
	membership := cluster.NewMembership(nodes, 100, 2)
	store := storage.New()
	coord := replication.NewCoordinator(self, membership, store, noReplicationTransport{}, 2)
	return New(self, membership, store, coord, transport)
}

func TestPutForwardsWhenNotOwner(t *testing.T) {
	transport := &scriptedTransport{putResp: PutResponse{Success: true, NodeID: "remote", ReplicasCount: 2}}

	// Try both candidate "self" identities; exactly one is NOT the
	// owner of this key and exercises the forward path.
	for _, self := range []string{"node1", "node2"} {
		r := twoNodeRouter(t, self, transport)
		owner, _ := r.membership.GetOwner("probe-key")
		if owner.ID == self {
			continue
		}
		resp, err := r.Put(context.Background(), "probe-key", "v")
		require.NoError(t, err)
		assert.Equal(t, "remote", resp.NodeID)
		return
	}
	t.Fatal("expected exactly one non-owning self identity")
}

func TestForwardFailureMapsToRouteFailure(t *testing.T) {
	transport := &scriptedTransport{putErr: errors.New("connection refused")}

	for _, self := range []string{"node1", "node2"} {
		r := twoNodeRouter(t, self, transport)
		owner, _ := r.membership.GetOwner("probe-key-2")
		if owner.ID == self {
			continue
		}
		_, err := r.Put(context.Background(), "probe-key-2", "v")
		assert.ErrorIs(t, err, ErrRouteFailure)
		return
	}
	t.Fatal("expected exactly one non-owning self identity")
}

func TestApplyForwardPutNeverReplicatesOrReforwards(t *testing.T) {
	r, store := singleNodeSetup(t, &noopTransport{})

	resp := r.ApplyForwardPut(PutRequest{Key: "k", Value: "v"})
	assert.True(t, resp.Success)
	assert.Equal(t, 0, resp.ReplicasCount)

	v, ok := store.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestApplyForwardDeleteReportsWhetherKeyExisted(t *testing.T) {
	r, store := singleNodeSetup(t, &noopTransport{})
	store.Put("present", "x")

	resp := r.ApplyForwardDelete(DeleteRequest{Key: "present"})
	assert.True(t, resp.Success)

	resp = r.ApplyForwardDelete(DeleteRequest{Key: "absent"})
	assert.False(t, resp.Success)
}

package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultsVnodes(t *testing.T) {
	r := New(0)
	r.AddNode("a")
	assert.Equal(t, defaultVnodes, r.Distribution()["a"])
}

func TestGetNodeEmptyRing(t *testing.T) {
	r := New(10)
	_, ok := r.GetNode("anything")
	assert.False(t, ok)
}

func TestGetNodeDeterministic(t *testing.T) {
	r := New(50)
	r.AddNode("node1")
	r.AddNode("node2")
	r.AddNode("node3")

	first, ok := r.GetNode("hello")
	assert.True(t, ok)

	for i := 0; i < 20; i++ {
		again, ok := r.GetNode("hello")
		assert.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestAddNodeExactVnodeCount(t *testing.T) {
	r := New(150)
	r.AddNode("node1")
	r.AddNode("node2")

	dist := r.Distribution()
	assert.Equal(t, 150, dist["node1"])
	assert.Equal(t, 150, dist["node2"])
}

func TestRemoveNodeClearsPositions(t *testing.T) {
	r := New(20)
	r.AddNode("node1")
	r.AddNode("node2")
	r.RemoveNode("node1")

	dist := r.Distribution()
	_, present := dist["node1"]
	assert.False(t, present)
	assert.Equal(t, 20, dist["node2"])
	assert.Equal(t, 1, r.NodeCount())
}

func TestRemoveNodeMissingIsNoop(t *testing.T) {
	r := New(10)
	r.AddNode("node1")
	r.RemoveNode("ghost")
	assert.Equal(t, 1, r.NodeCount())
}

func TestGetNodesReturnsDistinctNodesInWalkOrder(t *testing.T) {
	r := New(100)
	r.AddNode("node1")
	r.AddNode("node2")
	r.AddNode("node3")

	owner, _ := r.GetNode("key-42")
	replicas := r.GetNodes("key-42", 2)

	assert.Len(t, replicas, 2)
	assert.Equal(t, owner, replicas[0])
	assert.NotEqual(t, replicas[0], replicas[1])
}

func TestGetNodesCountExceedsNodeCount(t *testing.T) {
	r := New(50)
	r.AddNode("node1")
	r.AddNode("node2")

	replicas := r.GetNodes("x", 10)
	assert.Len(t, replicas, 2)
}

func TestGetNodesWrapsAroundRing(t *testing.T) {
	r := New(50)
	r.AddNode("solo")

	replicas := r.GetNodes("any-key", 3)
	assert.Equal(t, []string{"solo"}, replicas)
}

func TestHashIsDeterministicAcrossInstances(t *testing.T) {
	r1 := New(10)
	r2 := New(10)
	r1.AddNode("n")
	r2.AddNode("n")

	owner1, _ := r1.GetNode("same-key")
	owner2, _ := r2.GetNode("same-key")
	assert.Equal(t, owner1, owner2)
}

func TestNodesSortedAndDeduplicated(t *testing.T) {
	r := New(5)
	r.AddNode("b")
	r.AddNode("a")
	r.AddNode("b")

	assert.Equal(t, []string{"a", "b"}, r.Nodes())
}

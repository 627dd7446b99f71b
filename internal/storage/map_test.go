package storage

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMapIsEmpty(t *testing.T) {
	m := New()
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.List())
}

func TestPutThenGet(t *testing.T) {
	m := New()
	m.Put("k", "v")

	v, ok := m.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestGetMissingKey(t *testing.T) {
	m := New()
	_, ok := m.Get("missing")
	assert.False(t, ok)
}

func TestPutOverwritesExisting(t *testing.T) {
	m := New()
	m.Put("k", "v1")
	m.Put("k", "v2")

	v, _ := m.Get("k")
	assert.Equal(t, "v2", v)
}

func TestDeleteReportsPriorExistence(t *testing.T) {
	m := New()
	m.Put("k", "v")

	assert.True(t, m.Delete("k"))
	assert.False(t, m.Delete("k"))

	_, ok := m.Get("k")
	assert.False(t, ok)
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	m := New()
	m.Put("k", "v")

	snap := m.Snapshot()
	m.Put("k", "changed")

	assert.Equal(t, "v", snap["k"])
}

func TestConcurrentPutsAreSafe(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Put(fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, m.Len())
}

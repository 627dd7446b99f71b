package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSONAppliesDefaults(t *testing.T) {
	path := writeTemp(t, "cluster.json", `{
		"nodes": [
			{"id": "node1", "host": "localhost", "port": 8001},
			{"id": "node2", "host": "localhost", "port": 8002}
		]
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultReplicationFactor, cfg.Replication.ReplicationFactor)
	assert.Equal(t, defaultVirtualNodes, cfg.ConsistentHashing.VirtualNodes)
	assert.Len(t, cfg.Nodes, 2)
}

func TestLoadYAML(t *testing.T) {
	path := writeTemp(t, "cluster.yaml", `
nodes:
  - id: node1
    host: localhost
    port: 8001
replication:
  replication_factor: 1
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Replication.ReplicationFactor)
	assert.Equal(t, "localhost:8001", cfg.Nodes[0].Address())
}

func TestLoadMissingFileIsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	var cerr *ConfigError
	assert.ErrorAs(t, err, &cerr)
}

func TestLoadRejectsEmptyNodes(t *testing.T) {
	path := writeTemp(t, "cluster.json", `{"nodes": []}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	path := writeTemp(t, "cluster.json", `{
		"nodes": [
			{"id": "node1", "host": "localhost", "port": 8001},
			{"id": "node1", "host": "localhost", "port": 8002}
		]
	}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsReplicationFactorExceedingNodeCount(t *testing.T) {
	path := writeTemp(t, "cluster.json", `{
		"nodes": [{"id": "node1", "host": "localhost", "port": 8001}],
		"replication": {"replication_factor": 5}
	}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingHost(t *testing.T) {
	path := writeTemp(t, "cluster.json", `{
		"nodes": [{"id": "node1", "port": 8001}]
	}`)
	_, err := Load(path)
	assert.Error(t, err)
}

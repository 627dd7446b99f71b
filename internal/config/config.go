// Package config loads the cluster configuration document that seeds a
// node's membership registry at startup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultReplicationFactor and defaultVirtualNodes are applied when a
// configuration document omits them.
const (
	defaultReplicationFactor = 2
	defaultVirtualNodes      = 150
)

// ConfigError wraps a failure to load or validate a cluster
// configuration document. It is always fatal at startup.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error loading %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NodeSpec is one entry in the "nodes" array of a cluster configuration
// document. RedisHost/RedisPort are reserved for the external storage
// implementation and are never interpreted by this module — they are
// only parsed so a document produced alongside a Redis-backed storage
// engine round-trips cleanly.
type NodeSpec struct {
	ID        string `json:"id" yaml:"id"`
	Host      string `json:"host" yaml:"host"`
	Port      int    `json:"port" yaml:"port"`
	RedisHost string `json:"redis_host,omitempty" yaml:"redis_host,omitempty"`
	RedisPort int    `json:"redis_port,omitempty" yaml:"redis_port,omitempty"`
}

// ClusterConfig is the parsed form of a cluster configuration document.
type ClusterConfig struct {
	Nodes []NodeSpec `json:"nodes" yaml:"nodes"`

	Replication struct {
		ReplicationFactor int `json:"replication_factor" yaml:"replication_factor"`
	} `json:"replication" yaml:"replication"`

	ConsistentHashing struct {
		VirtualNodes int `json:"virtual_nodes" yaml:"virtual_nodes"`
	} `json:"consistent_hashing" yaml:"consistent_hashing"`
}

// Load reads and validates a cluster configuration document. JSON is
// the canonical wire format; a .yaml/.yml extension is also accepted
// as a convenience (same shape, different encoding) so an operator can
// hand-author configs in either format.
func Load(path string) (ClusterConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ClusterConfig{}, &ConfigError{Path: path, Err: err}
	}

	var cfg ClusterConfig
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &cfg)
	default:
		err = json.Unmarshal(raw, &cfg)
	}
	if err != nil {
		return ClusterConfig{}, &ConfigError{Path: path, Err: err}
	}

	if err := normalizeAndValidate(&cfg); err != nil {
		return ClusterConfig{}, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// normalizeAndValidate fills in defaults (replication factor, virtual
// node count) and rejects a document missing required fields.
func normalizeAndValidate(cfg *ClusterConfig) error {
	if len(cfg.Nodes) == 0 {
		return fmt.Errorf("config must declare at least one node")
	}

	seen := make(map[string]bool, len(cfg.Nodes))
	for i, n := range cfg.Nodes {
		if n.ID == "" {
			return fmt.Errorf("nodes[%d]: missing id", i)
		}
		if n.Host == "" {
			return fmt.Errorf("nodes[%d] (%s): missing host", i, n.ID)
		}
		if n.Port <= 0 {
			return fmt.Errorf("nodes[%d] (%s): port must be positive", i, n.ID)
		}
		if seen[n.ID] {
			return fmt.Errorf("nodes[%d]: duplicate id %q", i, n.ID)
		}
		seen[n.ID] = true
	}

	if cfg.Replication.ReplicationFactor <= 0 {
		cfg.Replication.ReplicationFactor = defaultReplicationFactor
	}
	if cfg.ConsistentHashing.VirtualNodes <= 0 {
		cfg.ConsistentHashing.VirtualNodes = defaultVirtualNodes
	}
	if cfg.Replication.ReplicationFactor > len(cfg.Nodes) {
		return fmt.Errorf("replication_factor %d exceeds node count %d",
			cfg.Replication.ReplicationFactor, len(cfg.Nodes))
	}
	return nil
}

// Address formats the node's host:port for use as a cluster.Node
// address.
func (n NodeSpec) Address() string {
	return fmt.Sprintf("%s:%d", n.Host, n.Port)
}

// cmd/server is the main entrypoint for a KV store node.
//
// Usage:
//
//	server <port> [node_id]
//
// Ports 8001, 8002, 8003 default to node ids node1, node2, node3
// respectively (the standard 3-node local demo); for any other port an
// omitted node_id falls back to node_<port>. A cluster configuration document seeds the membership
// registry; its path comes from KVSTORE_CONFIG, defaulting to
// ./cluster.json.
//
// Example — 3-node local cluster, one process per terminal:
//
//	server 8001
//	server 8002
//	server 8003
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"goring/internal/api"
	"goring/internal/cluster"
	"goring/internal/config"
	"goring/internal/failuredetect"
	"goring/internal/replication"
	"goring/internal/router"
	"goring/internal/storage"
	"goring/internal/transport"
)

var defaultPortNodeIDs = map[int]string{
	8001: "node1",
	8002: "node2",
	8003: "node3",
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: server <port> [node_id]")
		os.Exit(1)
	}

	port, err := strconv.Atoi(os.Args[1])
	if err != nil || port <= 0 {
		fmt.Fprintf(os.Stderr, "invalid port %q\n", os.Args[1])
		os.Exit(1)
	}

	nodeID := ""
	if len(os.Args) >= 3 {
		nodeID = os.Args[2]
	}
	if nodeID == "" {
		var ok bool
		nodeID, ok = defaultPortNodeIDs[port]
		if !ok {
			nodeID = fmt.Sprintf("node_%d", port)
		}
	}

	configPath := os.Getenv("KVSTORE_CONFIG")
	if configPath == "" {
		configPath = "cluster.json"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	nodes := make([]cluster.Node, 0, len(cfg.Nodes))
	var self *cluster.Node
	for _, ns := range cfg.Nodes {
		n := cluster.Node{ID: ns.ID, Address: ns.Address()}
		nodes = append(nodes, n)
		if ns.ID == nodeID {
			self = &n
		}
	}
	if self == nil {
		log.Fatalf("FATAL: node_id %q not found in %s", nodeID, configPath)
	}

	store := storage.New()
	membership := cluster.NewMembership(nodes, cfg.ConsistentHashing.VirtualNodes, cfg.Replication.ReplicationFactor)
	httpTransport := transport.NewHTTPClient()
	coordinator := replication.NewCoordinator(nodeID, membership, store, httpTransport, 0)
	rtr := router.New(nodeID, membership, store, coordinator, httpTransport)

	monitor := failuredetect.New(0, failuredetect.HTTPHeartbeat(nodeID, nil))
	monitor.OnDead(func(id string) { membership.MarkDead(id) })
	monitor.OnAlive(func(id string) { membership.MarkAlive(id) })

	ctx, stop := context.WithCancel(context.Background())
	monitor.Start(ctx, func() []failuredetect.Peer {
		peers := make([]failuredetect.Peer, 0, len(nodes))
		for _, n := range membership.GetAllNodes() {
			if n.ID == nodeID {
				continue
			}
			peers = append(peers, failuredetect.Peer{ID: n.ID, Address: n.Address})
		}
		return peers
	})

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(api.Logger(), api.Recovery())

	handler := api.NewHandler(nodeID, rtr, coordinator, membership, store)
	handler.Register(engine)

	srv := &http.Server{
		Addr:         self.Address,
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("node %s listening on %s (R=%d, V=%d)",
			nodeID, self.Address, cfg.Replication.ReplicationFactor, cfg.ConsistentHashing.VirtualNodes)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down node", nodeID)
	monitor.Stop()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}

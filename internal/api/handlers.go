// Package api wires the Node RPC Surface onto a Gin router: the
// client-facing service (/kv/*) and the inter-node service
// (/internal/*, /cluster/*).
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"goring/internal/cluster"
	"goring/internal/replication"
	"goring/internal/router"
	"goring/internal/storage"
)

// Handler holds every dependency the RPC surface needs, injected from
// main.
type Handler struct {
	selfID      string
	router      *router.Router
	replication *replication.Coordinator
	membership  *cluster.Membership
	storage     *storage.Map
}

// NewHandler builds a Handler.
func NewHandler(selfID string, r *router.Router, repl *replication.Coordinator, m *cluster.Membership, s *storage.Map) *Handler {
	return &Handler{selfID: selfID, router: r, replication: repl, membership: m, storage: s}
}

// Register mounts every route on engine.
func (h *Handler) Register(engine *gin.Engine) {
	kv := engine.Group("/kv")
	kv.GET("", h.ListKeys)
	kv.GET("/:key", h.Get)
	kv.PUT("/:key", h.Put)
	kv.DELETE("/:key", h.Delete)

	clusterGroup := engine.Group("/cluster")
	clusterGroup.POST("/join", h.JoinCluster)
	clusterGroup.POST("/leave", h.LeaveCluster)
	clusterGroup.GET("/nodes", h.ListNodes)
	clusterGroup.GET("/distribution", h.Distribution)

	internal := engine.Group("/internal")
	internal.POST("/forward/put", h.ForwardPut)
	internal.POST("/forward/get", h.ForwardGet)
	internal.POST("/forward/delete", h.ForwardDelete)
	internal.POST("/replicate", h.Replicate)
	internal.POST("/heartbeat", h.Heartbeat)
	internal.GET("/snapshot", h.Snapshot)

	engine.GET("/health", h.Health)
}

// ─── Client service ───────────────────────────────────────────────────────────

// Put handles PUT /kv/:key. Body: {"value": "<string>"}.
func (h *Handler) Put(c *gin.Context) {
	key := c.Param("key")

	var body struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.router.Put(c.Request.Context(), key, body.Value)
	writeRouterResult(c, resp, err)
}

// Get handles GET /kv/:key.
func (h *Handler) Get(c *gin.Context) {
	key := c.Param("key")

	resp, err := h.router.Get(c.Request.Context(), key)
	if err != nil {
		writeRouteError(c, err)
		return
	}
	if !resp.Found {
		c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Delete handles DELETE /kv/:key.
func (h *Handler) Delete(c *gin.Context) {
	key := c.Param("key")

	resp, err := h.router.Delete(c.Request.Context(), key)
	if err != nil {
		writeRouteError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListKeys handles GET /kv — an inspection operation returning only
// keys physically stored on this node.
func (h *Handler) ListKeys(c *gin.Context) {
	c.JSON(http.StatusOK, h.router.ListKeys())
}

// ─── Inter-node service: forwarding ───────────────────────────────────────────
//
// These handlers unconditionally treat the arriving request as locally
// owned: they never re-forward and never trigger replication.

// ForwardPut handles POST /internal/forward/put.
func (h *Handler) ForwardPut(c *gin.Context) {
	var req router.PutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.router.ApplyForwardPut(req))
}

// ForwardGet handles POST /internal/forward/get.
func (h *Handler) ForwardGet(c *gin.Context) {
	var req router.GetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.router.ApplyForwardGet(req))
}

// ForwardDelete handles POST /internal/forward/delete.
func (h *Handler) ForwardDelete(c *gin.Context) {
	var req router.DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.router.ApplyForwardDelete(req))
}

// ─── Inter-node service: replication ──────────────────────────────────────────

// Replicate handles POST /internal/replicate — the inbound replication
// path.
func (h *Handler) Replicate(c *gin.Context) {
	var req replication.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.replication.ApplyReplicate(req))
}

// ─── Inter-node service: heartbeat / snapshot / join ─────────────────────────

type heartbeatRequest struct {
	NodeID    string `json:"node_id"`
	Timestamp int64  `json:"timestamp"`
}

type heartbeatResponse struct {
	NodeID    string `json:"node_id"`
	Timestamp int64  `json:"timestamp"`
	IsAlive   bool   `json:"is_alive"`
}

// Heartbeat handles POST /internal/heartbeat. It reports this node's
// own liveness; it does not consult or mutate any peer's state.
func (h *Handler) Heartbeat(c *gin.Context) {
	var req heartbeatRequest
	_ = c.ShouldBindJSON(&req) // a missing body is fine; node_id is informational

	c.JSON(http.StatusOK, heartbeatResponse{
		NodeID:    h.selfID,
		Timestamp: time.Now().Unix(),
		IsAlive:   true,
	})
}

type snapshotEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type snapshotResponse struct {
	Success           bool            `json:"success"`
	ProviderNodeID    string          `json:"provider_node_id"`
	TotalKeys         int             `json:"total_keys"`
	SnapshotTimestamp int64           `json:"snapshot_timestamp"`
	Data              []snapshotEntry `json:"data"`
}

// Snapshot handles GET /internal/snapshot. It copies the local storage
// map's contents — no disk persistence, since durability is out of
// scope. Any recovery policy that would consume this snapshot is left
// to the caller; this endpoint only supplies the shape.
func (h *Handler) Snapshot(c *gin.Context) {
	data := h.storage.Snapshot()
	entries := make([]snapshotEntry, 0, len(data))
	for k, v := range data {
		entries = append(entries, snapshotEntry{Key: k, Value: v})
	}

	c.JSON(http.StatusOK, snapshotResponse{
		Success:           true,
		ProviderNodeID:    h.selfID,
		TotalKeys:         len(entries),
		SnapshotTimestamp: time.Now().Unix(),
		Data:              entries,
	})
}

type joinRequest struct {
	NodeID  string `json:"node_id"`
	Address string `json:"address"`
}

type joinResponse struct {
	Success      bool           `json:"success"`
	ClusterNodes []cluster.Node `json:"cluster_nodes"`
}

// JoinCluster handles POST /cluster/join. A node_id is generated if the
// caller omits one, so a fresh peer can join without pre-agreeing on an
// identifier.
func (h *Handler) JoinCluster(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}
	if req.NodeID == "" {
		req.NodeID = "node-" + uuid.NewString()
	}

	if err := h.membership.AddNode(cluster.Node{ID: req.NodeID, Address: req.Address}); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, joinResponse{Success: true, ClusterNodes: h.membership.GetAllNodes()})
}

type leaveRequest struct {
	NodeID string `json:"node_id" binding:"required"`
}

// LeaveCluster handles POST /cluster/leave.
func (h *Handler) LeaveCluster(c *gin.Context) {
	var req leaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.membership.RemoveNode(req.NodeID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "left": req.NodeID})
}

// ListNodes handles GET /cluster/nodes.
func (h *Handler) ListNodes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"nodes": h.membership.GetAllNodes()})
}

// Distribution handles GET /cluster/distribution — exposes the ring's
// virtual-node distribution for operators and the `cluster
// distribution` CLI subcommand.
func (h *Handler) Distribution(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"distribution": h.membership.Distribution()})
}

// Health handles GET /health — a plain status probe reporting this
// node's id and the number of nodes on the ring. The failure detector
// does not use it; its default check POSTs to /internal/heartbeat.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"node":   h.selfID,
		"status": "ok",
		"nodes":  h.membership.NodeCount(),
	})
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func writeRouterResult(c *gin.Context, resp router.PutResponse, err error) {
	if err != nil {
		writeRouteError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func writeRouteError(c *gin.Context, err error) {
	switch err {
	case router.ErrNoAvailableNodes:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case router.ErrRouteFailure:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

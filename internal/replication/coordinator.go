package replication

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"goring/internal/cluster"
	"goring/internal/storage"
)

const (
	defaultWorkers  = 10
	maxAttempts     = 3
	attemptDeadline = 5 * time.Second
	retryBackoff    = 100 * time.Millisecond
)

// Transport is what the Coordinator needs from the network to reach a
// replica: send one Replicate RPC and get back its response or a
// transport-level error. The Coordinator gives each attempt a context
// bounded by attemptDeadline; Replicate must honor that context's
// deadline.
type Transport interface {
	Replicate(ctx context.Context, addr string, req Request) (Response, error)
}

// Coordinator is the Replication Coordinator. It owns an independent
// bounded worker pool for outbound fan-out, separate from whatever
// pool serves inbound RPCs.
type Coordinator struct {
	selfID     string
	membership *cluster.Membership
	storage    *storage.Map
	transport  Transport

	sem chan struct{} // bounds concurrent fan-out tasks
}

// NewCoordinator builds a Coordinator. workers <= 0 uses the default of
// 10.
func NewCoordinator(selfID string, membership *cluster.Membership, store *storage.Map, transport Transport, workers int) *Coordinator {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Coordinator{
		selfID:     selfID,
		membership: membership,
		storage:    store,
		transport:  transport,
		sem:        make(chan struct{}, workers),
	}
}

// ReplicatePut fans a PUT out to every replica of key (the primary
// itself has already applied it locally) and returns how many replicas
// acknowledged before the fan-out join returned. This never blocks the
// client beyond that join, and a partial failure is not an error — it
// just lowers the returned count.
func (c *Coordinator) ReplicatePut(ctx context.Context, key, value string, ts int64) int {
	return c.fanout(ctx, key, Request{
		Key:         key,
		Value:       value,
		Timestamp:   ts,
		PrimaryNode: c.selfID,
		Operation:   OpPut,
	})
}

// ReplicateDelete fans a DELETE out to every replica of key. Same
// shape and semantics as ReplicatePut.
func (c *Coordinator) ReplicateDelete(ctx context.Context, key string, ts int64) int {
	return c.fanout(ctx, key, Request{
		Key:         key,
		Timestamp:   ts,
		PrimaryNode: c.selfID,
		Operation:   OpDelete,
	})
}

// fanout sends req to every replica (excluding self) of key, in
// parallel on the bounded worker pool, and returns the ack count.
func (c *Coordinator) fanout(ctx context.Context, key string, req Request) int {
	replicas := c.membership.GetReplicas(key)
	if len(replicas) == 0 {
		return 0
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		acks    int
		allErrs *multierror.Error
	)

	for _, replica := range replicas {
		wg.Add(1)
		c.sem <- struct{}{} // acquire a worker slot, blocking if the pool is saturated
		go func(n cluster.Node) {
			defer wg.Done()
			defer func() { <-c.sem }()

			ok, err := c.sendWithRetry(ctx, n, req)

			mu.Lock()
			defer mu.Unlock()
			if ok {
				acks++
			}
			if err != nil {
				allErrs = multierror.Append(allErrs, err)
			}
		}(replica)
	}

	wg.Wait()

	if allErrs != nil {
		log.Printf("[replication] %s %q: %d/%d replicas acked; failures: %v",
			req.Operation, key, acks, len(replicas), allErrs)
	}
	return acks
}

// sendWithRetry implements the fan-out task state machine: INIT ->
// CONNECTING -> SENT -> (SUCCESS | TRANSIENT_FAIL -> backoff ->
// CONNECTING | PERMANENT_FAIL), bounded by maxAttempts. Only
// transport-level failures are retried; an application-level
// success=false reply is terminal.
func (c *Coordinator) sendWithRetry(ctx context.Context, node cluster.Node, req Request) (bool, error) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(retryBackoff)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, attemptDeadline)
		resp, err := c.transport.Replicate(attemptCtx, node.Address, req)
		cancel()

		if err != nil {
			lastErr = err
			continue // transient transport failure: retry
		}
		if !resp.Success {
			// Application-level failure is terminal, not retried.
			return false, nil
		}
		return true, nil
	}

	return false, lastErr
}

// ApplyReplicate is the inbound path: handles a Replicate RPC arriving
// from a primary and applies it to the local storage map. PUT writes
// the value; DELETE removes the key unconditionally — a missing key on
// a replica is not an error, since replicas are best-effort copies.
// Dispatch happens exactly once here; there is no second, shadowing
// handler for the same RPC.
func (c *Coordinator) ApplyReplicate(req Request) Response {
	switch req.Operation {
	case OpPut:
		c.storage.Put(req.Key, req.Value)
		return Response{Success: true, ReplicaNodeID: c.selfID}
	case OpDelete:
		c.storage.Delete(req.Key)
		return Response{Success: true, ReplicaNodeID: c.selfID}
	default:
		return Response{
			Success:       false,
			ReplicaNodeID: c.selfID,
			Message:       "unknown replicate operation",
		}
	}
}

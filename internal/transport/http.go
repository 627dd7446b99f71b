// Package transport is the inter-node RPC client: it knows how to reach
// another node's Node RPC Surface over HTTP with a bounded deadline.
// Any request/response framing with deadlines would satisfy the
// router's and coordinator's Transport interfaces; this package is one
// concrete choice, using plain net/http + JSON.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"goring/internal/replication"
	"goring/internal/router"
)

// HTTPClient is the default Transport implementation, satisfying both
// replication.Transport (Replicate) and router.Transport (ForwardPut /
// ForwardGet / ForwardDelete).
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient builds an HTTPClient. The http.Client itself carries no
// timeout — every call derives its deadline from the context it is
// given, since every inter-node call is expected to carry its own
// deadline.
func NewHTTPClient() *HTTPClient {
	return &HTTPClient{client: &http.Client{}}
}

// Replicate sends a Replicate RPC to addr.
func (h *HTTPClient) Replicate(ctx context.Context, addr string, req replication.Request) (replication.Response, error) {
	var resp replication.Response
	err := h.post(ctx, addr, "/internal/replicate", req, &resp)
	return resp, err
}

// ForwardPut sends a ForwardPut RPC to addr.
func (h *HTTPClient) ForwardPut(ctx context.Context, addr string, req router.PutRequest) (router.PutResponse, error) {
	var resp router.PutResponse
	err := h.post(ctx, addr, "/internal/forward/put", req, &resp)
	return resp, err
}

// ForwardGet sends a ForwardGet RPC to addr.
func (h *HTTPClient) ForwardGet(ctx context.Context, addr string, req router.GetRequest) (router.GetResponse, error) {
	var resp router.GetResponse
	err := h.post(ctx, addr, "/internal/forward/get", req, &resp)
	return resp, err
}

// ForwardDelete sends a ForwardDelete RPC to addr.
func (h *HTTPClient) ForwardDelete(ctx context.Context, addr string, req router.DeleteRequest) (router.DeleteResponse, error) {
	var resp router.DeleteResponse
	err := h.post(ctx, addr, "/internal/forward/delete", req, &resp)
	return resp, err
}

// post issues a JSON POST to http://addr+path, decoding the response
// body into out. The caller's context governs the deadline.
func (h *HTTPClient) post(ctx context.Context, addr, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("http://%s%s", addr, path)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request to %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("node %s returned HTTP %d", addr, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// WaitDefault is the standard 5s inter-node deadline, exported as a
// convenience for callers that want it without threading a context
// from further up.
const WaitDefault = 5 * time.Second

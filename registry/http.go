package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/agentrt/core"
)

// DefaultAddress is the registry address used when none is configured.
const DefaultAddress = "localhost:50051"

// HTTPOptions configures an HTTPRegistry.
type HTTPOptions struct {
	Client *http.Client
	// Header is added to every request (for example an authorization token).
	Header http.Header
}

// HTTPRegistry talks to a registry service over JSON/HTTP:
//
//	POST /v1/agents/register    {descriptor}        -> {"lease_id": "..."}
//	POST /v1/leases/renew       {"lease_id": "..."} -> 200
//	POST /v1/agents/unregister  {"agent_id": "..."} -> 200
//
// A 4xx answer to register is a rejection, 404 or 410 on renew means the
// lease expired.
type HTTPRegistry struct {
	baseURL string
	opts    HTTPOptions
}

// NewHTTPRegistry creates a registry client for addr. A bare host:port is
// treated as plain http.
func NewHTTPRegistry(addr string, optFns ...func(o *HTTPOptions)) *HTTPRegistry {
	opts := HTTPOptions{
		Client: &http.Client{Timeout: 30 * time.Second},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if addr == "" {
		addr = DefaultAddress
	}

	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}

	return &HTTPRegistry{baseURL: strings.TrimRight(addr, "/"), opts: opts}
}

// Endpoint returns the base URL requests are sent to.
func (r *HTTPRegistry) Endpoint() string { return r.baseURL }

type registerResponse struct {
	LeaseID string `json:"lease_id"`
}

// Register implements Registry.
func (r *HTTPRegistry) Register(ctx context.Context, desc core.Descriptor) (string, error) {
	status, body, err := r.post(ctx, "/v1/agents/register", desc)
	if err != nil {
		return "", err
	}

	switch {
	case status >= 200 && status < 300:
	case status >= 400 && status < 500 && status != http.StatusRequestTimeout && status != http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: status %d: %s", core.ErrRegistryRejected, status, strings.TrimSpace(string(body)))
	default:
		return "", fmt.Errorf("register: unexpected status %d", status)
	}

	var resp registerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("register: decode response: %w", err)
	}

	return resp.LeaseID, nil
}

// Renew implements Registry.
func (r *HTTPRegistry) Renew(ctx context.Context, leaseID string) error {
	status, _, err := r.post(ctx, "/v1/leases/renew", map[string]string{"lease_id": leaseID})
	if err != nil {
		return err
	}

	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound || status == http.StatusGone:
		return core.ErrLeaseExpired
	default:
		return fmt.Errorf("renew: unexpected status %d", status)
	}
}

// Unregister implements Registry.
func (r *HTTPRegistry) Unregister(ctx context.Context, agentID string) error {
	status, _, err := r.post(ctx, "/v1/agents/unregister", map[string]string{"agent_id": agentID})
	if err != nil {
		return err
	}

	if status < 200 || status >= 300 {
		return fmt.Errorf("unregister: unexpected status %d", status)
	}

	return nil
}

func (r *HTTPRegistry) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	for k, vs := range r.opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := r.opts.Client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, body, nil
}

// Package health polls the messaging service's health endpoint.
package health

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const pollInterval = 200 * time.Millisecond

// Response mirrors the messaging service's /health payload (spec.md §6).
type Response struct {
	SAM      string `json:"sam"`
	Denim    string `json:"denim,omitempty"`
	Database string `json:"database"`
}

// OK applies the healthy predicate from spec.md §6: sam and database must
// both report OK, and denim (if present) must also report OK.
func (r Response) OK() bool {
	if r.SAM != "OK" || r.Database != "OK" {
		return false
	}
	return r.Denim == "" || r.Denim == "OK"
}

// Client polls the messaging service's health endpoint.
type Client struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
}

// New builds a health client for the given address, optionally over TLS.
func New(address string, tlsConfig *tls.Config) *Client {
	scheme := "http"
	transport := http.DefaultTransport
	if tlsConfig != nil {
		scheme = "https"
		transport = &http.Transport{TLSClientConfig: tlsConfig}
	}
	return &Client{
		url:     fmt.Sprintf("%s://%s/health", scheme, address),
		http:    &http.Client{Transport: transport, Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(pollInterval), 1),
	}
}

// Check performs a single health check.
func (c *Client) Check(ctx context.Context) (Response, error) {
	var out Response
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return out, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode health response: %w", err)
	}
	return out, nil
}

// WaitHealthy polls Check every 200ms until the service reports healthy or
// ctx is cancelled.
func (c *Client) WaitHealthy(ctx context.Context) (Response, error) {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, err
		}
		resp, err := c.Check(ctx)
		if err == nil && resp.OK() {
			return resp, nil
		}
	}
}

// Package dispatch is the HTTP client for the central scenario dispatcher:
// health polling, scenario fetch, account-id registration, start-info sync,
// and report upload. Out of scope for the scenario runner's own behavior
// (spec.md §1), but required to run one end to end.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/time/rate"

	"github.com/SAM-Research/test-client/internal/data"
)

const healthPollInterval = 200 * time.Millisecond

// ErrUnauthorized is returned when the dispatcher rejects a request with
// 401, a distinct fatal error per spec.md §6.
var ErrUnauthorized = fmt.Errorf("dispatcher: unauthorized")

// Client is the dispatcher HTTP client. All requests share one cookie jar
// so the dispatcher can track this client's session across calls.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// New builds a dispatcher client against address (host[:port], no scheme).
func New(address string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("build cookie jar: %w", err)
	}
	return &Client{
		baseURL: fmt.Sprintf("http://%s", address),
		http:    &http.Client{Jar: jar, Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(healthPollInterval), 1),
	}, nil
}

// WaitHealthy polls GET /health every 200ms (paced by a rate.Limiter) until
// it sees a 2xx response or the context is cancelled.
func (c *Client) WaitHealthy(ctx context.Context) error {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
		}
	}
}

// GetScenario fetches the scenario description for this client.
func (c *Client) GetScenario(ctx context.Context) (data.ScenarioParams, error) {
	var params data.ScenarioParams
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/client", nil)
	if err != nil {
		return params, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return params, fmt.Errorf("get scenario: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return params, fmt.Errorf("get scenario: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&params); err != nil {
		return params, fmt.Errorf("decode scenario: %w", err)
	}
	return params, nil
}

// PostID registers this client's account id, attaching token as a bearer
// credential (the registration proof from internal/auth).
func (c *Client) PostID(ctx context.Context, accountID, token string) error {
	body, err := json.Marshal(map[string]string{"accountId": accountID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/id", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post id: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post id: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Sync fetches the StartInfo once every client in the scenario has
// registered. A 401 is a distinct fatal error.
func (c *Client) Sync(ctx context.Context) (data.StartInfo, error) {
	var start data.StartInfo
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sync", nil)
	if err != nil {
		return start, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return start, fmt.Errorf("sync: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return start, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return start, fmt.Errorf("sync: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&start); err != nil {
		return start, fmt.Errorf("decode start info: %w", err)
	}
	return start, nil
}

// Upload posts the finished scenario report.
func (c *Client) Upload(ctx context.Context, report data.ClientReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload report: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload report: unexpected status %d", resp.StatusCode)
	}
	return nil
}

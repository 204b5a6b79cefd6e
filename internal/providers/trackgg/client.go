// Package trackgg is the primary bulk name-lookup provider. One request
// resolves many puuids, so it is tried before any per-player source.
package trackgg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const defaultBaseURL = "https://api.trackgg.dev"

var ErrUnavailable = errors.New("bulk provider unavailable this session")

// Result is one resolved player from a bulk lookup.
type Result struct {
	PUUID string `json:"puuid"`
	Name  string `json:"name"`
	Tag   string `json:"tag"`
}

// Client calls the bulk lookup API. A failed health probe at connect time
// marks the provider unavailable for the rest of the session; the probe
// is never retried within a session.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string

	mu        sync.Mutex
	probed    bool
	available bool
}

// New creates a client. An empty apiKey leaves the provider unconfigured.
func New(apiKey string) *Client {
	return &Client{
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
	}
}

// SetBaseURL overrides the API host.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Probe checks the provider once per session. Subsequent calls return the
// recorded outcome without touching the network.
func (c *Client) Probe(ctx context.Context) error {
	c.mu.Lock()
	if c.probed {
		available := c.available
		c.mu.Unlock()
		if !available {
			return ErrUnavailable
		}
		return nil
	}
	c.probed = true
	c.mu.Unlock()

	if !c.Configured() {
		return ErrUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1/status", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bulk provider probe failed: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bulk provider probe returned %d", resp.StatusCode)
	}

	c.mu.Lock()
	c.available = true
	c.mu.Unlock()
	return nil
}

// Available reports whether the session probe succeeded.
func (c *Client) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.probed && c.available
}

// Lookup resolves a batch of puuids in one request. Players the provider
// does not know are simply missing from the results.
func (c *Client) Lookup(ctx context.Context, puuids []string) ([]Result, error) {
	if !c.Available() {
		return nil, ErrUnavailable
	}
	if len(puuids) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(map[string]interface{}{"puuids": puuids})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/players/lookup", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bulk lookup returned %d", resp.StatusCode)
	}

	var parsed struct {
		Results   []Result `json:"results"`
		Found     int      `json:"found"`
		Requested int      `json:"requested"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse bulk lookup: %w", err)
	}

	return parsed.Results, nil
}

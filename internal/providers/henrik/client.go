// Package henrik is the secondary per-player provider. It is rate
// limited upstream, so requests are paced locally and a 429 is surfaced
// as ErrRateLimited for the caller's backoff-and-retry-once policy.
package henrik

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.henrikdev.xyz"

var ErrRateLimited = errors.New("henrik api rate limited")

// Account is a player's resolved account data.
type Account struct {
	Name         string `json:"name"`
	Tag          string `json:"tag"`
	AccountLevel int    `json:"account_level"`
}

// MMR is a player's competitive standing from the provider.
type MMR struct {
	Tier       int `json:"currenttier"`
	RankInTier int `json:"ranking_in_tier"`
}

// Client calls the henrikdev API with local request pacing.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
}

// New creates a client. The free tier allows 30 requests per minute, so
// requests are spaced two seconds apart with a small burst allowance.
func New(apiKey string) *Client {
	return &Client{
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
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

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}

	var envelope struct {
		Status int             `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("parse henrik response: %w", err)
	}
	// The API also reports rate limits inside the body
	if envelope.Status == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if envelope.Status != 0 && envelope.Status != http.StatusOK {
		return nil, fmt.Errorf("henrik api returned status %d", envelope.Status)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("henrik api returned no data")
	}

	return envelope.Data, nil
}

// Account resolves a single player's name, tag and account level.
func (c *Client) Account(ctx context.Context, puuid string) (*Account, error) {
	data, err := c.get(ctx, "/valorant/v1/by-puuid/account/"+puuid)
	if err != nil {
		return nil, err
	}

	var acct Account
	if err := json.Unmarshal(data, &acct); err != nil {
		return nil, fmt.Errorf("parse henrik account: %w", err)
	}
	return &acct, nil
}

// MMR resolves a single player's rank in the given region.
func (c *Client) MMR(ctx context.Context, region, puuid string) (*MMR, error) {
	path := fmt.Sprintf("/valorant/v2/by-puuid/mmr/%s/%s", region, puuid)
	data, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		CurrentData MMR `json:"current_data"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse henrik mmr: %w", err)
	}
	return &parsed.CurrentData, nil
}

// Package hackernews looks up story scores via the Algolia HN search API.
package hackernews

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsdigest/config"
)

// Client queries the Algolia Hacker News index.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient builds a client from configuration.
func NewClient(cfg config.HackerNewsConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
	}
}

// Points returns the highest story score for the given URL. The second
// return value is false when no story links to the URL.
func (c *Client) Points(ctx context.Context, link string) (int, bool, error) {
	q := url.Values{}
	q.Set("query", link)
	q.Set("restrictSearchableAttributes", "url")
	q.Set("tags", "story")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint+"/search?"+q.Encode(), nil)
	if err != nil {
		return 0, false, fmt.Errorf("new request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("hackernews error %s", resp.Status)
	}

	var payload struct {
		Hits []struct {
			URL    string `json:"url"`
			Points int    `json:"points"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, false, fmt.Errorf("decode response: %w", err)
	}

	best := 0
	found := false
	for _, hit := range payload.Hits {
		if !strings.EqualFold(strings.TrimSuffix(hit.URL, "/"), strings.TrimSuffix(link, "/")) {
			continue
		}
		found = true
		if hit.Points > best {
			best = hit.Points
		}
	}
	return best, found, nil
}

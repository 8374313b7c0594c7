// Package mastodon is a minimal read-only client for the public Mastodon API:
// account lookup plus paged status fetches. Only what the connector needs.
package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"newsdigest/config"
)

// Status is one post of the followed account. The API serves ids as strings;
// numerically they are snowflakes, so they order chronologically.
type Status struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NumericID parses the snowflake id. Invalid ids return 0.
func (s Status) NumericID() int64 {
	id, err := strconv.ParseInt(s.ID, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Client talks to one Mastodon instance.
type Client struct {
	baseURL  string
	account  string
	pageSize int
	http     *http.Client
}

// NewClient builds a client from configuration.
func NewClient(cfg config.MastodonConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Client{
		baseURL:  cfg.InstanceURL,
		account:  cfg.Account,
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
	}
}

// InstanceHost returns the hostname of the configured instance, used by the
// extractor to drop self-referential links.
func (c *Client) InstanceHost() string {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

// PageSize reports the page size used for status fetches.
func (c *Client) PageSize() int {
	return c.pageSize
}

// LookupAccount resolves the configured account name to its id.
func (c *Client) LookupAccount(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/accounts/lookup?acct=%s",
		c.baseURL, url.QueryEscape(c.account))

	var account struct {
		ID string `json:"id"`
	}
	if err := c.get(ctx, endpoint, &account); err != nil {
		return "", fmt.Errorf("lookup account %s: %w", c.account, err)
	}
	if account.ID == "" {
		return "", fmt.Errorf("account %s not found", c.account)
	}
	return account.ID, nil
}

// Statuses fetches one page of the account's posts, newest first. sinceID
// and maxID are passed through when non-zero; the API excludes both bounds.
func (c *Client) Statuses(ctx context.Context, accountID string, sinceID, maxID int64) ([]Status, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(c.pageSize))
	query.Set("exclude_reblogs", "true")
	if sinceID > 0 {
		query.Set("since_id", strconv.FormatInt(sinceID, 10))
	}
	if maxID > 0 {
		query.Set("max_id", strconv.FormatInt(maxID, 10))
	}

	endpoint := fmt.Sprintf("%s/api/v1/accounts/%s/statuses?%s",
		c.baseURL, accountID, query.Encode())

	var statuses []Status
	if err := c.get(ctx, endpoint, &statuses); err != nil {
		return nil, fmt.Errorf("fetch statuses: %w", err)
	}
	return statuses, nil
}

func (c *Client) get(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

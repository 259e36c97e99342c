package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client is an HTTP client for the harvester API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Item is a harvested record as returned by the API
type Item struct {
	ID          string                 `json:"id"`
	Owner       string                 `json:"owner"`
	Repo        string                 `json:"repo"`
	Category    string                 `json:"category"`
	UID         string                 `json:"uid"`
	UpdatedOn   time.Time              `json:"updated_on"`
	Fields      map[string]interface{} `json:"fields"`
	HarvestedAt time.Time              `json:"harvested_at"`
}

// AuthorCount holds the item count for one author
type AuthorCount struct {
	Author string `json:"author"`
	Items  int64  `json:"items"`
}

// Summary is an aggregated view of a repository's harvested items
type Summary struct {
	Owner      string           `json:"owner"`
	Repo       string           `json:"repo"`
	Total      int64            `json:"total"`
	ByCategory map[string]int64 `json:"by_category"`
	ByState    map[string]int64 `json:"by_state"`
	TopAuthors []AuthorCount    `json:"top_authors"`
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new API client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetItems retrieves harvested items for a repository
func (c *Client) GetItems(ctx context.Context, owner, repo, category, start, end string) ([]*Item, error) {
	params := url.Values{}
	if category != "" {
		params.Set("category", category)
	}
	if start != "" {
		params.Set("start", start)
	}
	if end != "" {
		params.Set("end", end)
	}

	var resp struct {
		Data []*Item `json:"data"`
	}
	path := fmt.Sprintf("/api/v1/repos/%s/%s/items", owner, repo)
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetSummary retrieves the aggregated summary for a repository
func (c *Client) GetSummary(ctx context.Context, owner, repo, start, end string) (*Summary, error) {
	params := url.Values{}
	if start != "" {
		params.Set("start", start)
	}
	if end != "" {
		params.Set("end", end)
	}

	var resp struct {
		Data *Summary `json:"data"`
	}
	path := fmt.Sprintf("/api/v1/repos/%s/%s/summary", owner, repo)
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// HealthCheck verifies the API server is reachable
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.get(ctx, "/health", nil, nil)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("api error %s: %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("unexpected status %d for %s", resp.StatusCode, path)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

package gitee

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	apperrors "github.com/kurihiro0119/gitee-activity-harvester/internal/errors"
)

const (
	// DefaultAPIURL is the public Gitee API root
	DefaultAPIURL = "https://gitee.com/api/v5"

	// DefaultRefreshTokenURL is the endpoint for the token refresh call
	// issued once at client construction
	DefaultRefreshTokenURL = "https://gitee.com/oauth/token"

	// DefaultPerPage is the page size for list resources
	DefaultPerPage = 100

	// DefaultMaxRetries is the number of retries for transient errors
	DefaultMaxRetries = 5

	// DefaultSleepTime is the initial delay between retries
	DefaultSleepTime = time.Second
)

// retryStatusCodes are the statuses retried on top of plain transport
// errors. 403 is included because the API intermittently answers it for
// requests that succeed on retry.
var retryStatusCodes = map[int]bool{
	403: true,
	500: true,
	502: true,
	503: true,
}

// Config holds the settings for a Gitee API client
type Config struct {
	Owner      string
	Repository string

	// Tokens is the list of API tokens. Only the first token is used;
	// the rest of the list is accepted for config compatibility.
	Tokens []string

	APIURL          string
	RefreshTokenURL string
	PerPage         int
	MaxRetries      int
	SleepTime       time.Duration
}

// Client is an authenticated, retrying HTTP client for the Gitee API.
// It issues sequential blocking requests; it is not safe for concurrent use.
type Client struct {
	owner       string
	repo        string
	apiURL      string
	accessToken string
	perPage     int
	maxRetries  int
	sleepTime   time.Duration
	httpClient  *http.Client
	limiter     *RateLimiter
}

// Page is one raw page payload from a paginated list resource
type Page struct {
	Body   []byte
	Number int
}

// NewClient creates a Gitee API client and refreshes the access token once
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Owner == "" || cfg.Repository == "" {
		return nil, apperrors.NewBadRequestError("owner and repository are required")
	}

	c := &Client{
		owner:      cfg.Owner,
		repo:       cfg.Repository,
		apiURL:     cfg.APIURL,
		perPage:    cfg.PerPage,
		maxRetries: cfg.MaxRetries,
		sleepTime:  cfg.SleepTime,
		httpClient: newHTTPClient(),
		limiter:    NewRateLimiter(),
	}
	if c.apiURL == "" {
		c.apiURL = DefaultAPIURL
	}
	if c.perPage <= 0 || c.perPage > 100 {
		c.perPage = DefaultPerPage
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.sleepTime <= 0 {
		c.sleepTime = DefaultSleepTime
	}

	if len(cfg.Tokens) > 0 && cfg.Tokens[0] != "" {
		refreshURL := cfg.RefreshTokenURL
		if refreshURL == "" {
			refreshURL = DefaultRefreshTokenURL
		}
		c.accessToken = refreshAccessToken(ctx, refreshURL, cfg.Tokens[0])
	}

	return c, nil
}

// newHTTPClient builds an HTTP client with a tuned transport
func newHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: 30 * time.Second, Transport: tr}
}

// refreshAccessToken issues one refresh grant against the token endpoint.
// The original token keeps working when the refresh fails, so a failure is
// logged and the configured token is returned unchanged.
func refreshAccessToken(ctx context.Context, refreshURL, token string) string {
	conf := &oauth2.Config{
		Endpoint: oauth2.Endpoint{TokenURL: refreshURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: token}).Token()
	if err != nil {
		slog.Warn("access token refresh failed, keeping configured token", "error", err)
		return token
	}
	if tok.AccessToken == "" {
		return token
	}
	slog.Info("refreshed the access token for the Gitee API")
	return tok.AccessToken
}

// Owner returns the configured repository owner
func (c *Client) Owner() string { return c.owner }

// Repository returns the configured repository name
func (c *Client) Repository() string { return c.repo }

// get fetches a URL with the given query parameters, appending the access
// token and retrying transient failures with exponential backoff
func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, http.Header, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	// The cursor URL from the server is authoritative for pagination
	// state, but the original query parameters are re-attached on every
	// page and the token is always appended.
	q := u.Query()
	for key, values := range params {
		q[key] = values
	}
	if c.accessToken != "" {
		q.Set("access_token", c.accessToken)
	}
	u.RawQuery = q.Encode()

	delay := c.sleepTime
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(delay):
			}
			if delay < 30*time.Second {
				delay *= 2
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, nil, fmt.Errorf("build request for %s: %w", redactToken(u), err)
		}
		req.Header.Set("Content-Type", "application/json;charset=UTF-8")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request %s: %w", redactToken(u), err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		c.limiter.UpdateFromHeader(resp.Header.Get)

		if resp.StatusCode < 400 {
			if readErr != nil {
				return nil, nil, fmt.Errorf("read response from %s: %w", redactToken(u), readErr)
			}
			return body, resp.Header, nil
		}

		lastErr = apperrors.NewHTTPError(resp.StatusCode, redactToken(u))
		if !retryStatusCodes[resp.StatusCode] {
			return nil, nil, lastErr
		}
	}

	return nil, nil, lastErr
}

// redactToken strips the access token from a URL before it appears in
// errors or logs
func redactToken(u *url.URL) string {
	clean := *u
	q := clean.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
		clean.RawQuery = q.Encode()
	}
	return clean.String()
}

// repoURL builds an API URL under repos/{owner}/{repo}
func (c *Client) repoURL(segments ...string) string {
	u := c.apiURL + "/repos/" + url.PathEscape(c.owner) + "/" + url.PathEscape(c.repo)
	for _, s := range segments {
		u += "/" + url.PathEscape(s)
	}
	return u
}

// FetchItems walks a paginated list resource under the repository,
// yielding one raw page payload at a time. The sequence ends when the
// response carries no "next" link relation.
func (c *Client) FetchItems(ctx context.Context, path string, params url.Values) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		nextURL := c.apiURL + "/repos/" + url.PathEscape(c.owner) + "/" + url.PathEscape(c.repo) + "/" + path
		slog.Debug("fetching paginated items", "url", nextURL)

		page := 0
		for nextURL != "" {
			body, header, err := c.get(ctx, nextURL, params)
			if err != nil {
				yield(Page{}, err)
				return
			}
			page++

			// total_page is only progress information; it is known to
			// disagree with the actual link chain.
			if totalPage := header.Get("total_page"); totalPage != "" {
				slog.Debug("page progress", "page", page, "total_page", totalPage)
			}

			if !yield(Page{Body: body, Number: page}, nil) {
				return
			}
			nextURL = ParseNextLink(header.Get("Link"))
		}
	}
}

// Issues fetches the issue list sorted ascending by update time
func (c *Client) Issues(ctx context.Context, since time.Time) iter.Seq2[Page, error] {
	params := url.Values{}
	params.Set("state", "all")
	params.Set("per_page", strconv.Itoa(c.perPage))
	params.Set("direction", "asc")
	params.Set("sort", "updated")
	if !since.IsZero() {
		params.Set("since", since.Format(time.RFC3339))
	}
	return c.FetchItems(ctx, "issues", params)
}

// Pulls fetches the pull request list sorted ascending by update time
func (c *Client) Pulls(ctx context.Context, since time.Time) iter.Seq2[Page, error] {
	params := url.Values{}
	params.Set("state", "all")
	params.Set("per_page", strconv.Itoa(c.perPage))
	params.Set("direction", "asc")
	params.Set("sort", "updated")
	if !since.IsZero() {
		params.Set("since", since.Format(time.RFC3339))
	}
	return c.FetchItems(ctx, "pulls", params)
}

// IssueComments fetches the comments of one issue
func (c *Client) IssueComments(ctx context.Context, issueNumber string) iter.Seq2[Page, error] {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(c.perPage))
	return c.FetchItems(ctx, "issues/"+url.PathEscape(issueNumber)+"/comments", params)
}

// PullCommits fetches the commits of one pull request
func (c *Client) PullCommits(ctx context.Context, prNumber string) iter.Seq2[Page, error] {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(c.perPage))
	return c.FetchItems(ctx, "pulls/"+url.PathEscape(prNumber)+"/commits", params)
}

// PullReviewComments fetches the review comments of one pull request.
// The endpoint does not support the sort parameter.
func (c *Client) PullReviewComments(ctx context.Context, prNumber string) iter.Seq2[Page, error] {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(c.perPage))
	params.Set("direction", "asc")
	return c.FetchItems(ctx, "pulls/"+url.PathEscape(prNumber)+"/comments", params)
}

// PullActionLogs fetches the action log of one pull request
func (c *Client) PullActionLogs(ctx context.Context, prNumber string) iter.Seq2[Page, error] {
	return c.FetchItems(ctx, "pulls/"+url.PathEscape(prNumber)+"/operate_logs", url.Values{})
}

// Repo fetches the repository metadata
func (c *Client) Repo(ctx context.Context) ([]byte, error) {
	body, _, err := c.get(ctx, c.repoURL(), url.Values{})
	return body, err
}

// RepoReleases fetches the first page of the repository releases
func (c *Client) RepoReleases(ctx context.Context) ([]byte, error) {
	params := url.Values{}
	params.Set("page", "1")
	params.Set("per_page", "100")
	body, _, err := c.get(ctx, c.repoURL("releases"), params)
	return body, err
}

// User fetches a user record by login
func (c *Client) User(ctx context.Context, login string) ([]byte, error) {
	slog.Debug("getting user info", "login", login)
	body, _, err := c.get(ctx, c.apiURL+"/users/"+url.PathEscape(login), url.Values{})
	return body, err
}

// UserOrgs fetches the public organizations of a user
func (c *Client) UserOrgs(ctx context.Context, login string) ([]byte, error) {
	body, _, err := c.get(ctx, c.apiURL+"/users/"+url.PathEscape(login)+"/orgs", url.Values{})
	return body, err
}

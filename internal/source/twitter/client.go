package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Time format accepted by the search endpoint's start_time/end_time.
const timeFormat = "2006-01-02T15:04:05.000Z"

// MaxLookupIDs is the users lookup endpoint's limit of ids per request.
const MaxLookupIDs = 100

// StatusError is returned for non-success HTTP statuses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth retrying: 429 and 5xx.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// ClientConfig holds API client configuration.
type ClientConfig struct {
	SearchURL      string
	UsersURL       string
	BearerToken    string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Extra query parameters appended to every request of an endpoint.
	SearchParams map[string]string
	UsersParams  map[string]string
}

// SearchQuery is one page request of the search endpoint.
type SearchQuery struct {
	Keyword    string
	StartTime  time.Time
	EndTime    time.Time
	MaxResults int
	NextToken  string
}

// Client talks to the search and users endpoints.
type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
	executor   failsafe.Executor[[]byte]
	logger     *slog.Logger
}

// NewClient creates an API client. Requests failing with a network error,
// a timeout, 429 or 5xx are retried with exponential backoff; any other
// non-success status fails immediately.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	logger = logger.With("component", "twitter_client")

	retry := retrypolicy.NewBuilder[[]byte]().
		HandleIf(func(_ []byte, err error) bool {
			return isRetryable(err)
		}).
		WithBackoff(cfg.InitialBackoff, cfg.MaxBackoff).
		WithMaxRetries(cfg.MaxAttempts - 1).
		OnRetry(func(e failsafe.ExecutionEvent[[]byte]) {
			logger.Warn("request failed, retrying",
				"attempt", e.Attempts(),
				"error", e.LastError(),
			)
		}).
		Build()

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		executor:   failsafe.With[[]byte](retry),
		logger:     logger,
	}
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decode response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// Search fetches one page of the recent search endpoint.
func (c *Client) Search(ctx context.Context, q SearchQuery) (*SearchResponse, error) {
	params := url.Values{}
	for k, v := range c.cfg.SearchParams {
		params.Set(k, v)
	}
	params.Set("query", q.Keyword)
	params.Set("start_time", q.StartTime.UTC().Format(timeFormat))
	params.Set("end_time", q.EndTime.UTC().Format(timeFormat))
	params.Set("max_results", strconv.Itoa(q.MaxResults))
	if q.NextToken != "" {
		params.Set("next_token", q.NextToken)
	}

	var resp SearchResponse
	if err := c.getJSON(ctx, c.cfg.SearchURL, params, &resp); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return &resp, nil
}

// LookupUsers fetches up to MaxLookupIDs users by id.
func (c *Client) LookupUsers(ctx context.Context, ids []string) (*UsersResponse, error) {
	if len(ids) > MaxLookupIDs {
		return nil, fmt.Errorf("lookup users: %d ids exceeds limit of %d", len(ids), MaxLookupIDs)
	}

	params := url.Values{}
	for k, v := range c.cfg.UsersParams {
		params.Set(k, v)
	}
	params.Set("ids", strings.Join(ids, ","))

	var resp UsersResponse
	if err := c.getJSON(ctx, c.cfg.UsersURL, params, &resp); err != nil {
		return nil, fmt.Errorf("lookup users: %w", err)
	}
	return &resp, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	u := endpoint + "?" + params.Encode()

	body, err := c.executor.WithContext(ctx).Get(func() ([]byte, error) {
		return c.doRequest(ctx, u)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "TweetFetcher/1.0")
	if c.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	c.logger.Debug("endpoint response", "status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

package searchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is used when no api url is configured.
	DefaultBaseURL = "http://localhost:8000"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 8 << 20
)

// Client talks to the clarify-then-search backend. It never retries; every failure
// is returned to the caller.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		if d > 0 {
			client.httpClient.Timeout = d
		}
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(client *Client) {
		client.userAgent = ua
	}
}

// NewClient validates baseURL and returns a client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, options ...ClientOption) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid api url %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("invalid api url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, errors.Errorf("invalid api url %q: missing host", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  "clarinet",
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized backend url.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// StartSearch submits the query and returns the session id and clarification questions.
func (c *Client) StartSearch(ctx context.Context, req StartRequest) (*StartResponse, error) {
	var resp StartResponse
	status, body, err := c.do(ctx, http.MethodPost, "/start/", nil, req, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Signal != "" || (resp.SessionID == "" && resp.Error != "") {
		return nil, newAPIError("/start/", status, body)
	}
	if resp.SessionID == "" {
		return nil, errors.New("start response is missing session_id")
	}
	return &resp, nil
}

// SubmitAnswers forwards the clarification answers and asks the backend to begin searching.
func (c *Client) SubmitAnswers(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	if req.SessionID == "" {
		return nil, errors.New("submit answers: empty session id")
	}
	if req.SearchMode == "" {
		req.SearchMode = SearchModeQuick
	}
	if req.Answers == nil {
		req.Answers = []Answer{}
	}
	var resp SubmitResponse
	if _, _, err := c.do(ctx, http.MethodPost, "/search/", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetResults fetches the raw results document for a session.
func (c *Client) GetResults(ctx context.Context, sessionID string) (*ResultsResponse, error) {
	if sessionID == "" {
		return nil, errors.New("get results: empty session id")
	}
	q := url.Values{}
	q.Set("session_id", sessionID)
	var resp ResultsResponse
	if _, _, err := c.do(ctx, http.MethodGet, "/results/", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PollResults fetches the results for a session and normalizes their status.
func (c *Client) PollResults(ctx context.Context, sessionID string) (*PollResult, error) {
	resp, err := c.GetResults(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return resp.Normalize(), nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any, out any) (int, []byte, error) {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, nil, errors.Wrap(err, "failed to marshal request body")
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reqBody)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to create request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	log.Debug().Str("method", method).Str("path", path).Msg("sending backend request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "failed to send request to %s", path)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, errors.Wrap(err, "failed to read response body")
	}
	log.Debug().Str("path", path).Int("status", resp.StatusCode).Int("bytes", len(body)).Msg("backend response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, body, newAPIError(path, resp.StatusCode, body)
	}
	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, body, errors.Wrapf(err, "failed to parse %s response", path)
		}
	}
	return resp.StatusCode, body, nil
}

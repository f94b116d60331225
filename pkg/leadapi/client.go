package leadapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// PageSize is the fixed number of properties per search page.
const PageSize = 100

// Default base URL for the lead-management API.
const defaultBaseURL = "https://api.leadvault.io/v1"

// maxBodyExcerpt bounds how much of an upstream body is carried in errors.
const maxBodyExcerpt = 512

// Client defines the lead-management API operations used by the export
// pipeline. All operations act on the single working set scoped to the token.
type Client interface {
	CountLeads(ctx context.Context, token string) (int, error)
	BuildRegion(ctx context.Context, token, zip string) (*BuildResponse, error)
	FetchPage(ctx context.Context, token string, offset int) (*SearchResponse, error)
	DeleteAll(ctx context.Context, token string, count int) error
}

// APIError is returned when the upstream responds with a non-2xx status or an
// error-flagged body.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("leadapi: %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new lead-management API client. The HTTP client carries
// no request timeout: builds and deletes are bounded by the poll budgets of
// the caller instead.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) CountLeads(ctx context.Context, token string) (int, error) {
	var resp CountResponse
	if err := c.post(ctx, "/leads/count", CountRequest{Token: token}, &resp); err != nil {
		return 0, eris.Wrap(err, "leadapi: count leads")
	}
	if !resp.Success {
		return 0, c.flagged("/leads/count", resp.Error)
	}
	if resp.Count < 0 {
		return 0, eris.Errorf("leadapi: count leads: negative count %d", resp.Count)
	}
	return resp.Count, nil
}

func (c *httpClient) BuildRegion(ctx context.Context, token, zip string) (*BuildResponse, error) {
	var resp BuildResponse
	if err := c.post(ctx, "/leads/build", BuildRequest{Token: token, Zip: zip}, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("leadapi: build region %s", zip))
	}
	if !resp.Success {
		return nil, c.flagged("/leads/build", resp.Error)
	}
	return &resp, nil
}

func (c *httpClient) FetchPage(ctx context.Context, token string, offset int) (*SearchResponse, error) {
	var resp SearchResponse
	req := SearchRequest{Token: token, Limit: PageSize, Offset: offset}
	if err := c.post(ctx, "/leads/search", req, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("leadapi: fetch page at offset %d", offset))
	}
	if !resp.Success {
		return nil, c.flagged("/leads/search", resp.Error)
	}
	return &resp, nil
}

func (c *httpClient) DeleteAll(ctx context.Context, token string, count int) error {
	var resp DeleteResponse
	if err := c.post(ctx, "/leads/delete", DeleteRequest{Token: token, Count: count}, &resp); err != nil {
		return eris.Wrap(err, "leadapi: delete all")
	}
	if !resp.Success {
		return c.flagged("/leads/delete", resp.Error)
	}
	return nil
}

// flagged builds the APIError for a 2xx response whose body carries the
// error/invalid marker.
func (c *httpClient) flagged(endpoint, msg string) error {
	if msg == "" {
		msg = "upstream flagged request as unsuccessful"
	}
	return &APIError{Endpoint: endpoint, StatusCode: http.StatusOK, Body: msg}
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Body:       excerpt(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}

func excerpt(data []byte) string {
	if len(data) > maxBodyExcerpt {
		data = data[:maxBodyExcerpt]
	}
	return string(data)
}

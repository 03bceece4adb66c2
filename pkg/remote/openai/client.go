// Package openai implements remote.Client against the OpenAI Assistants v2
// HTTP API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nstogner/labassist/pkg/domain"
	"github.com/nstogner/labassist/pkg/remote"
)

// DefaultBaseURL is the public OpenAI API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// pageLimit is the page size requested from list endpoints.
const pageLimit = 100

// Client talks to the OpenAI API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Verify interface compliance.
var _ remote.Client = (*Client)(nil)

// Options configures a Client.
type Options struct {
	APIKey       string
	Organization string
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// HTTPClient supplies the underlying transport. Its Transport is wrapped
	// to add authentication headers and trace logging.
	HTTPClient *http.Client
}

// New creates a Client. The API key is required.
func New(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, &domain.ConfigError{Key: "OPENAI_API_KEY", Reason: "not set"}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	base := http.DefaultTransport
	timeout := time.Duration(0)
	if opts.HTTPClient != nil {
		if opts.HTTPClient.Transport != nil {
			base = opts.HTTPClient.Transport
		}
		timeout = opts.HTTPClient.Timeout
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &loggingTransport{
				base:         base,
				apiKey:       opts.APIKey,
				organization: opts.Organization,
			},
		},
	}, nil
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("openai: HTTP %d: %s: %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("openai: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether the resource did not exist.
func (e *APIError) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

// Is makes a 404 match domain.ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == domain.ErrNotFound && e.IsNotFound()
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// send performs a request and returns the response when the status is 2xx.
// The caller owns the response body.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, streaming bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return resp, nil
}

// doJSON sends in (if non-nil) as a JSON body and decodes the response into
// out (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	resp, err := c.send(ctx, method, path, query, body, contentType, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decodeJSON(resp.Body, out)
}

func decodeJSON(r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// readAPIError parses {"error":{"type","code","message"}}; anything else is
// reported verbatim.
func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var wireError struct {
		Error struct {
			Type    string `json:"type"`
			Code    any    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Error.Message != "" {
		code := ""
		if wireError.Error.Code != nil {
			code = fmt.Sprint(wireError.Error.Code)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Type:       wireError.Error.Type,
			Code:       code,
			Message:    wireError.Error.Message,
		}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}

// listPage is the envelope of every paginated list endpoint.
type listPage[T any] struct {
	Data    []T    `json:"data"`
	HasMore bool   `json:"has_more"`
	LastID  string `json:"last_id"`
}

// listAll follows the cursor until the listing is exhausted. idOf extracts
// the cursor from an item when the page does not carry last_id.
func listAll[T any](ctx context.Context, c *Client, path string, extra url.Values, idOf func(T) string) ([]T, error) {
	var all []T
	after := ""
	for {
		query := url.Values{}
		for k, v := range extra {
			query[k] = v
		}
		query.Set("limit", fmt.Sprint(pageLimit))
		if after != "" {
			query.Set("after", after)
		}

		var page listPage[T]
		if err := c.doJSON(ctx, http.MethodGet, path, query, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		slog.Debug("Listed page", "path", path, "count", len(page.Data), "hasMore", page.HasMore)

		if !page.HasMore || len(page.Data) == 0 {
			return all, nil
		}
		next := page.LastID
		if next == "" {
			next = idOf(page.Data[len(page.Data)-1])
		}
		if next == after {
			return nil, fmt.Errorf("listing %s: cursor did not advance", path)
		}
		after = next
	}
}

func remoteErr(op string, kind domain.ResourceKind, id string, err error) error {
	return &domain.RemoteError{Op: op, Kind: kind, ID: id, Err: err}
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

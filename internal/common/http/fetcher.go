package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// DefaultMaxBodySize bounds how much of a response body is read into memory.
const DefaultMaxBodySize int64 = 32 << 20

// Response is a completed request with a 2xx status
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// UpstreamError describes a failed request. StatusCode is zero when no
// response was received (DNS, refused connection, timeout).
type UpstreamError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Cause      error
}

func (e *UpstreamError) Error() string {
	if e.HasResponse() {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Cause)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// HasResponse reports whether the server answered at all
func (e *UpstreamError) HasResponse() bool {
	return e.StatusCode != 0
}

// IsServerError reports a 5xx response
func (e *UpstreamError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode <= 599
}

// IsRateLimited reports a 429 response
func (e *UpstreamError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsClientError reports a 4xx response other than 429
func (e *UpstreamError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode <= 499 && !e.IsRateLimited()
}

// IsConnectionRefused reports that the remote host actively refused the connection
func (e *UpstreamError) IsConnectionRefused() bool {
	return !e.HasResponse() && errors.Is(e.Cause, syscall.ECONNREFUSED)
}

// AsUpstream extracts an *UpstreamError from err's chain
func AsUpstream(err error) (*UpstreamError, bool) {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream, true
	}
	return nil, false
}

// IsConnectionRefused is a convenience wrapper over AsUpstream
func IsConnectionRefused(err error) bool {
	if upstream, ok := AsUpstream(err); ok {
		return upstream.IsConnectionRefused()
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}

// Fetcher performs single-attempt requests with a fixed identity
type Fetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
}

// NewFetcher wraps client. userAgent is sent on every request when non-empty.
func NewFetcher(client *http.Client, userAgent string) *Fetcher {
	if client == nil {
		client = NewHTTPClient()
	}
	return &Fetcher{
		client:      client,
		userAgent:   userAgent,
		maxBodySize: DefaultMaxBodySize,
	}
}

// Get performs a GET request
func (f *Fetcher) Get(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	return f.do(ctx, http.MethodGet, rawURL, nil, headers)
}

// PostForm performs a form-encoded POST request
func (f *Fetcher) PostForm(ctx context.Context, rawURL string, form url.Values) (*Response, error) {
	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	return f.do(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()), headers)
}

func (f *Fetcher) do(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) (*Response, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, &UpstreamError{Method: method, URL: rawURL, Cause: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Method: method, URL: rawURL, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, &UpstreamError{Method: method, URL: rawURL, StatusCode: resp.StatusCode, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(data)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &UpstreamError{
			Method:     method,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Body:       snippet,
			Cause:      fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
		Duration:   time.Since(start),
	}, nil
}

// Package orthanc is a minimal client for the REST API of an Orthanc-style
// imaging archive. The ingestion pipeline only needs per-instance metadata
// and a system probe; both are plain GETs with HTTP Basic auth bounded by a
// fixed timeout.
package orthanc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rispacs/ris/internal/platform/dicom"
)

// ErrTimeout marks a metadata request that did not complete within the
// configured deadline. Callers distinguish it from other fetch failures with
// errors.Is.
var ErrTimeout = errors.New("archive request timed out")

// FetchError is any non-timeout failure talking to the archive: transport
// errors, non-2xx responses, or undecodable bodies.
type FetchError struct {
	URL        string
	StatusCode int // zero when the request never produced a response
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("archive returned status %d for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("archive request %s failed: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client talks to one archive instance.
type Client struct {
	baseURL    string
	username   string
	password   string
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(baseURL, username, password string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 7 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		timeout:  timeout,
		// The context deadline below governs the overall request; the
		// transport gets no separate timeout of its own.
		httpClient: &http.Client{},
	}
}

// NewClientWithHTTPClient allows injecting an instrumented or test transport.
func NewClientWithHTTPClient(baseURL, username, password string, timeout time.Duration, hc *http.Client) *Client {
	c := NewClient(baseURL, username, password, timeout)
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// InstanceTags fetches the simplified tag document for one instance. There
// are no retries; a failed fetch fails the caller's job.
func (c *Client) InstanceTags(ctx context.Context, instanceID string) (dicom.Tags, error) {
	if instanceID == "" {
		return nil, fmt.Errorf("instance id is required")
	}

	var tags dicom.Tags
	targetURL := fmt.Sprintf("%s/instances/%s/simplified-tags", c.baseURL, url.PathEscape(instanceID))
	if err := c.getJSON(ctx, targetURL, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// System fetches the archive's system information document. Used by the
// diagnostic endpoint to verify archive reachability.
func (c *Client) System(ctx context.Context) (map[string]any, error) {
	var info map[string]any
	if err := c.getJSON(ctx, c.baseURL+"/system", &info); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Client) getJSON(ctx context.Context, targetURL string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return &FetchError{URL: targetURL, Err: err}
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w after %s: %s", ErrTimeout, c.timeout, targetURL)
		}
		return &FetchError{URL: targetURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &FetchError{
			URL:        targetURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("response body: %s", strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{URL: targetURL, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

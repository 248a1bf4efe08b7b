// Package client talks to a running ytconvert server.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"ytconvert/internal/media"
)

// APIError is a failure response from the server.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Download is an in-flight file response. The caller must close Body.
type Download struct {
	Filename    string
	ContentType string
	// Size is -1 when the server sent no Content-Length.
	Size int64
	Body io.ReadCloser
}

type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client for the server at baseURL. A nil httpClient means
// http.DefaultClient.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server address %q: scheme and host required", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: u, http: httpClient}, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, q), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeFailure(resp)
	}
	return resp, nil
}

func decodeFailure(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}
	var failure struct {
		Message string `json:"message"`
		URL     string `json:"url"`
	}
	if json.Unmarshal(body, &failure) == nil && failure.Message != "" {
		apiErr.Message = failure.Message
		apiErr.URL = failure.URL
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// Metadata fetches the display metadata for videoURL.
func (c *Client) Metadata(ctx context.Context, videoURL string) (media.Metadata, error) {
	resp, err := c.get(ctx, "/metadata", url.Values{"url": {videoURL}})
	if err != nil {
		return media.Metadata{}, err
	}
	defer resp.Body.Close()

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		media.Metadata
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return media.Metadata{}, fmt.Errorf("decode metadata response: %w", err)
	}
	if !body.Success {
		return media.Metadata{}, &APIError{StatusCode: resp.StatusCode, Message: body.Message, URL: videoURL}
	}
	return body.Metadata, nil
}

// Download requests videoURL converted to format and returns the open response.
func (c *Client) Download(ctx context.Context, videoURL string, format media.Format) (*Download, error) {
	q := url.Values{"url": {videoURL}}
	if format != "" {
		q.Set("format", format.String())
	}
	resp, err := c.get(ctx, "/download-single", q)
	if err != nil {
		return nil, err
	}
	return &Download{
		Filename:    attachmentName(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
		Body:        resp.Body,
	}, nil
}

// attachmentName extracts the filename from a Content-Disposition header.
// mime decodes filename* and lets it win over the plain form.
func attachmentName(header string) string {
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

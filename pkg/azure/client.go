// Package azure talks to the Azure Computer Vision v3.2 REST API.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/menta2k/vision-analyzer/pkg/apperror"
	"github.com/menta2k/vision-analyzer/pkg/types"
)

const (
	apiPath               = "/vision/v3.2"
	subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"
)

type Client struct {
	baseURL    string
	key        string
	timeout    time.Duration
	httpClient *http.Client
}

// errorResponse is the body the service returns on non-success status
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every request; zero leaves requests unbounded
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func NewClient(endpoint, key string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, apperror.Configuration("azure client", fmt.Errorf("invalid endpoint: %v", err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, apperror.Configuration("azure client", fmt.Errorf("endpoint %q must be an http(s) URL", endpoint))
	}
	if key == "" {
		return nil, apperror.Configuration("azure client", fmt.Errorf("subscription key is empty"))
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(u.String(), "/"),
		key:        key,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Analyze calls the analyze operation with the requested visual features
func (c *Client) Analyze(ctx context.Context, image []byte, features []types.Feature) (*types.AnalysisResult, error) {
	names := make([]string, 0, len(features))
	for _, f := range features {
		names = append(names, string(f))
	}
	query := url.Values{}
	query.Set("visualFeatures", strings.Join(names, ","))

	body, err := c.sendRequest(ctx, "analyze image", "/analyze", query, image)
	if err != nil {
		return nil, err
	}

	var result types.AnalysisResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperror.Service("analyze image", 0, fmt.Errorf("failed to parse response: %w", err))
	}
	return &result, nil
}

// Thumbnail calls the generateThumbnail operation and returns the image bytes
func (c *Client) Thumbnail(ctx context.Context, width, height int, image []byte, smartCrop bool) ([]byte, error) {
	query := url.Values{}
	query.Set("width", strconv.Itoa(width))
	query.Set("height", strconv.Itoa(height))
	query.Set("smartCropping", strconv.FormatBool(smartCrop))

	return c.sendRequest(ctx, "generate thumbnail", "/generateThumbnail", query, image)
}

func (c *Client) sendRequest(ctx context.Context, op, endpoint string, query url.Values, image []byte) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL + apiPath + endpoint + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(image))
	if err != nil {
		return nil, apperror.Service(op, 0, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(subscriptionKeyHeader, c.key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Service(op, 0, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Service(op, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperror.Service(op, resp.StatusCode, statusError(resp.StatusCode, body))
	}

	return body, nil
}

func statusError(status int, body []byte) error {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return fmt.Errorf("server returned status %d (%s): %s", status, e.Error.Code, e.Error.Message)
	}
	return fmt.Errorf("server returned status %d: %s", status, strings.TrimSpace(string(body)))
}

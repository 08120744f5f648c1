package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/vision-analyzer/pkg/apperror"
	"github.com/menta2k/vision-analyzer/pkg/cropper"
	"github.com/menta2k/vision-analyzer/pkg/detection"
	"github.com/menta2k/vision-analyzer/pkg/processing"
	"github.com/menta2k/vision-analyzer/pkg/types"
)

// Client wraps the Ollama API client. Analysis is done by a vision model;
// thumbnails are cropped locally since Ollama has no imaging endpoint.
type Client struct {
	client    *api.Client
	model     string
	timeout   time.Duration
	cropper   *cropper.SmartCropper
	processor *processing.Processor
}

// bearerTransport adds the API key for Ollama servers behind an auth proxy
type bearerTransport struct {
	key  string
	base http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.key)
	return t.base.RoundTrip(req)
}

// NewClient creates a new Ollama client
func NewClient(ollamaURL, key, model string, timeout time.Duration) (*Client, error) {
	// Parse the provided URL
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, apperror.Configuration("ollama client", fmt.Errorf("invalid URL: %v", err))
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, apperror.Configuration("ollama client", fmt.Errorf("invalid URL: %q", ollamaURL))
	}
	if model == "" {
		return nil, apperror.Configuration("ollama client", fmt.Errorf("model name is empty"))
	}

	// Create base URL from the provided URL (removing path like /api/chat)
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	httpClient := http.DefaultClient
	if key != "" {
		httpClient = &http.Client{Transport: &bearerTransport{key: key, base: http.DefaultTransport}}
	}

	return &Client{
		client:    api.NewClient(baseURL, httpClient),
		model:     model,
		timeout:   timeout,
		cropper:   cropper.New(),
		processor: processing.NewProcessor(),
	}, nil
}

// Analyze asks the model for the requested features and decodes its JSON answer
func (c *Client) Analyze(ctx context.Context, image []byte, features []types.Feature) (*types.AnalysisResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// Bounding boxes must be in pixels, so tell the model the size
	img, err := c.processor.DecodeImage(image)
	if err != nil {
		return nil, apperror.ImageProcessing("analyze image", err)
	}
	b := img.Bounds()

	streamFalse := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: detection.BuildPrompt(features, b.Dx(), b.Dy()),
				Images:  []api.ImageData{api.ImageData(image)},
			},
		},
		Stream:  &streamFalse,
		Format:  json.RawMessage(`"json"`),
		Options: map[string]any{"temperature": 0.2},
	}

	var responseContent string
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent += resp.Message.Content
		return nil
	})
	if err != nil {
		return nil, apperror.Service("analyze image", statusCode(err), fmt.Errorf("ollama chat error: %w", err))
	}

	if strings.TrimSpace(responseContent) == "" {
		return nil, apperror.Service("analyze image", 0, fmt.Errorf("empty response from ollama"))
	}

	result, err := detection.ParseResult(responseContent)
	if err != nil {
		return nil, apperror.Service("analyze image", 0, err)
	}
	detection.Normalize(result, b.Dx(), b.Dy())
	return result, nil
}

// Thumbnail crops locally and returns PNG bytes
func (c *Client) Thumbnail(ctx context.Context, width, height int, image []byte, smartCrop bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.Service("generate thumbnail", 0, err)
	}

	img, err := c.processor.DecodeImage(image)
	if err != nil {
		return nil, apperror.ImageProcessing("generate thumbnail", err)
	}

	result, err := c.cropper.Thumbnail(img, width, height, smartCrop)
	if err != nil {
		return nil, apperror.ImageProcessing("generate thumbnail", err)
	}

	data, err := c.processor.EncodePNG(result.Image)
	if err != nil {
		return nil, apperror.ImageProcessing("encode thumbnail", err)
	}
	return data, nil
}

func statusCode(err error) int {
	var se api.StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

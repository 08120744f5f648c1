// Package llamacpp analyzes images with a vision model served by llama.cpp
// through its OpenAI-compatible chat completions endpoint.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/menta2k/vision-analyzer/pkg/apperror"
	"github.com/menta2k/vision-analyzer/pkg/cropper"
	"github.com/menta2k/vision-analyzer/pkg/detection"
	"github.com/menta2k/vision-analyzer/pkg/processing"
	"github.com/menta2k/vision-analyzer/pkg/types"
)

const chatPath = "/v1/chat/completions"

type Client struct {
	baseURL    string
	key        string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	cropper    *cropper.SmartCropper
	processor  *processing.Processor
}

// OpenAI-compatible message format
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []ContentPart
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// OpenAI-compatible chat completion request
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

// OpenAI-compatible chat completion response
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewClient creates a client for the llama.cpp server at serverURL. A non-empty
// key is sent as a bearer token (llama-server --api-key).
func NewClient(serverURL, key, model string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperror.Configuration("llama.cpp client", fmt.Errorf("invalid URL: %q", serverURL))
	}

	return &Client{
		baseURL:    u.Scheme + "://" + u.Host,
		key:        key,
		model:      model,
		timeout:    timeout,
		httpClient: &http.Client{},
		cropper:    cropper.New(),
		processor:  processing.NewProcessor(),
	}, nil
}

// Analyze prompts the model for the requested features and decodes its JSON answer
func (c *Client) Analyze(ctx context.Context, image []byte, features []types.Feature) (*types.AnalysisResult, error) {
	img, err := c.processor.DecodeImage(image)
	if err != nil {
		return nil, apperror.ImageProcessing("analyze image", err)
	}
	b := img.Bounds()

	req := ChatCompletionRequest{
		Model: c.model,
		Messages: []Message{
			{
				Role: "user",
				Content: []ContentPart{
					{Type: "text", Text: detection.BuildPrompt(features, b.Dx(), b.Dy())},
					{Type: "image_url", ImageURL: &ImageURL{URL: dataURL(image)}},
				},
			},
		},
		Temperature: 0.2,
		MaxTokens:   4096,
		Stream:      false,
	}

	respBody, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, apperror.Service("analyze image", 0, fmt.Errorf("failed to parse response: %w", err))
	}
	if len(resp.Choices) == 0 {
		return nil, apperror.Service("analyze image", 0, fmt.Errorf("no choices in response"))
	}

	responseText := messageText(resp.Choices[0].Message)
	if responseText == "" {
		return nil, apperror.Service("analyze image", 0, fmt.Errorf("empty response from llama.cpp server"))
	}

	result, err := detection.ParseResult(responseText)
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

func (c *Client) sendRequest(ctx context.Context, payload any) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, apperror.Service("analyze image", 0, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(jsonData))
	if err != nil {
		return nil, apperror.Service("analyze image", 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Service("analyze image", 0, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Service("analyze image", resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		var e errorResponse
		if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
			msg = e.Error.Message
		}
		return nil, apperror.Service("analyze image", resp.StatusCode, fmt.Errorf("server returned status %d: %s", resp.StatusCode, msg))
	}

	return body, nil
}

// messageText extracts the reply text; content may be a string or a list of parts
func messageText(m Message) string {
	switch content := m.Content.(type) {
	case string:
		return content
	case []any:
		for _, item := range content {
			if partMap, ok := item.(map[string]any); ok {
				if text, ok := partMap["text"].(string); ok && text != "" {
					return text
				}
			}
		}
	}
	return ""
}

func dataURL(image []byte) string {
	mime := http.DetectContentType(image)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}

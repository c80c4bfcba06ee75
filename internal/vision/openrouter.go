// Package vision is the OpenRouter chat-completion client used for image OCR.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mseiller/test-buddy-extract/internal/extract"
)

const DefaultAPIURL = "https://openrouter.ai/api/v1/chat/completions"

// ocrSystemPrompt is the fixed system instruction contract for OCR. The model
// must return the transcription only, with no commentary.
const ocrSystemPrompt = `You are an OCR assistant. Extract all text from the image exactly as it appears. Preserve the structure: keep tables as tables, keep columns aligned, keep line breaks. Do not add commentary, descriptions, or explanations. Return only the extracted text.`

const ocrUserInstruction = "Extract all text from this image."

// Client issues one blocking chat-completion round trip per OCR request. No
// internal retry: the caller re-invokes the whole request to retry.
type Client struct {
	APIKey      string
	Model       string
	APIURL      string
	MaxTokens   int
	Temperature float64
	HTTPClient  *http.Client
}

func NewClient(apiKey, model string, maxTokens int, temperature float64, timeout time.Duration) *Client {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{
		APIKey:      apiKey,
		Model:       model,
		APIURL:      DefaultAPIURL,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		HTTPClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	} `json:"error,omitempty"`
}

// ExtractText sends an image data URL to the vision model and returns the
// transcribed text, trimmed. The credential is checked before any network
// call is made.
func (c *Client) ExtractText(ctx context.Context, imageDataURL string) (string, *extract.Error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return "", extract.NewError(extract.KindConfigurationMissing,
			"OCR is not configured on this server.")
	}

	body := map[string]any{
		"model": c.Model,
		"messages": []map[string]any{
			{
				"role":    "system",
				"content": ocrSystemPrompt,
			},
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": ocrUserInstruction},
					{"type": "image_url", "image_url": map[string]any{"url": imageDataURL}},
				},
			},
		},
		"max_tokens":  c.MaxTokens,
		"temperature": c.Temperature,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", upstreamError(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL, bytes.NewReader(payload))
	if err != nil {
		return "", upstreamError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", upstreamError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", upstreamError(fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Upstream error bodies never reach the caller verbatim.
		return "", upstreamError(fmt.Errorf("openrouter HTTP %d: %.300s", resp.StatusCode, raw))
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return "", upstreamError(fmt.Errorf("decode response: %w", err))
	}
	// OpenRouter can return 200 with an inline error object.
	if completion.Error != nil && completion.Error.Message != "" {
		return "", upstreamError(fmt.Errorf("openrouter: %s", completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return "", upstreamError(fmt.Errorf("empty choices in response"))
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func upstreamError(err error) *extract.Error {
	e := extract.NewError(extract.KindUpstreamUnavailable,
		"The text recognition service is temporarily unavailable. Please try again.")
	e.Original = err.Error()
	return e
}

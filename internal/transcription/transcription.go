// Package transcription implements a Groq/OpenAI Whisper-compatible
// audio transcription client, grounded on
// original_source/src/transcription.py.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

var endpoints = map[string]string{
	"groq":   "https://api.groq.com/openai/v1/audio/transcriptions",
	"openai": "https://api.openai.com/v1/audio/transcriptions",
}

// Client is a configured transcription backend.
type Client struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	timeout  time.Duration
}

// New builds a Client. provider selects the default endpoint unless
// baseURL overrides it.
func New(provider, model, apiKey, baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		var ok bool
		baseURL, ok = endpoints[provider]
		if !ok {
			return nil, fmt.Errorf("transcription: unknown provider %q", provider)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{provider: provider, model: model, apiKey: apiKey, baseURL: baseURL, timeout: timeout}, nil
}

// IsConfigured reports whether a Client was successfully built with an
// API key, for callers that want to treat transcription as optional.
func (c *Client) IsConfigured() bool { return c != nil && c.apiKey != "" }

// Transcribe uploads audioBytes (named filename, of the given MIME
// type) and returns the transcribed text.
func (c *Client) Transcribe(ctx context.Context, audioBytes []byte, filename, mimeType string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audioBytes); err != nil {
		return "", err
	}
	if c.model != "" {
		_ = writer.WriteField("model", c.model)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("transcription: %s returned HTTP %d: %s", c.provider, resp.StatusCode, string(respBody))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("transcription: decoding response: %w", err)
	}
	return result.Text, nil
}

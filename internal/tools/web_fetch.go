package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

// maxFetchLength caps the text returned from one web_fetch call,
// grounded on original_source/src/tools/web.py's 15000-character trim.
const maxFetchLength = 15_000

// WebFetchTool fetches a URL and extracts readable content, grounded
// on original_source/src/tools/web.py's web_fetch. HTML extraction
// uses go-readability in place of the source's markdownify: both
// reduce a page to its main article content, but readability also
// strips boilerplate (nav/ads/footers) by structural analysis rather
// than a fixed tag denylist.
type WebFetchTool struct {
	timeout time.Duration
}

func NewWebFetchTool(timeout time.Duration) *WebFetchTool {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebFetchTool{timeout: timeout}
}

func (t *WebFetchTool) Name() string { return "web_fetch" }

func (t *WebFetchTool) Description() string {
	return "Fetch a URL and return its content as clean text."
}

func (t *WebFetchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "description": "HTTP or HTTPS URL to fetch."},
		},
		"required": []string{"url"},
	}
}

func (t *WebFetchTool) Execute(ctx context.Context, args map[string]any) *Result {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return ErrorResult("url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return NewResult(fmt.Sprintf("Error fetching %s: invalid URL", rawURL))
	}

	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return NewResult(fmt.Sprintf("Error fetching %s: %v", rawURL, err))
	}
	req.Header.Set("User-Agent", "parrotgate/0.1")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return NewResult(fmt.Sprintf("Error fetching %s: %v", rawURL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return NewResult(fmt.Sprintf("Error fetching %s: HTTP %d", rawURL, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return NewResult(fmt.Sprintf("Error fetching %s: %v", rawURL, err))
	}

	contentType := resp.Header.Get("Content-Type")
	var text string
	if strings.Contains(contentType, "html") {
		article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
		if err != nil {
			text = string(body)
		} else {
			text = strings.TrimSpace(article.TextContent)
		}
	} else {
		text = string(body)
	}

	if len(text) > maxFetchLength {
		text = text[:maxFetchLength] + "\n\n... (truncated)"
	}
	return NewResult(text)
}

package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestWebFetchToolRequiresURL(t *testing.T) {
	tool := NewWebFetchTool(0)
	res := tool.Execute(context.Background(), map[string]any{})
	if !res.IsError {
		t.Fatalf("expected error for missing url")
	}
}

func TestWebFetchToolRejectsNonHTTPScheme(t *testing.T) {
	tool := NewWebFetchTool(0)
	res := tool.Execute(context.Background(), map[string]any{"url": "ftp://example.com/x"})
	if !strings.Contains(res.ForLLM, "Error fetching") {
		t.Fatalf("unexpected result: %q", res.ForLLM)
	}
}

func TestWebFetchToolExtractsPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("hello plain text"))
	}))
	defer srv.Close()

	tool := NewWebFetchTool(5 * time.Second)
	res := tool.Execute(context.Background(), map[string]any{"url": srv.URL})
	if res.ForLLM != "hello plain text" {
		t.Fatalf("ForLLM = %q", res.ForLLM)
	}
}

func TestWebFetchToolExtractsHTMLArticle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>T</title></head><body><nav>menu</nav><article><h1>Headline</h1><p>The article body text that is long enough to be recognized as the main content of the page by a readability heuristic extractor.</p></article></body></html>`))
	}))
	defer srv.Close()

	tool := NewWebFetchTool(5 * time.Second)
	res := tool.Execute(context.Background(), map[string]any{"url": srv.URL})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if !strings.Contains(res.ForLLM, "article body text") {
		t.Fatalf("expected extracted article text, got: %q", res.ForLLM)
	}
}

func TestWebFetchToolReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tool := NewWebFetchTool(5 * time.Second)
	res := tool.Execute(context.Background(), map[string]any{"url": srv.URL})
	if !strings.Contains(res.ForLLM, "404") {
		t.Fatalf("expected HTTP 404 in result, got: %q", res.ForLLM)
	}
}

func TestWebFetchToolTruncatesLongContent(t *testing.T) {
	long := strings.Repeat("a", maxFetchLength+500)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(long))
	}))
	defer srv.Close()

	tool := NewWebFetchTool(5 * time.Second)
	res := tool.Execute(context.Background(), map[string]any{"url": srv.URL})
	if !strings.HasSuffix(res.ForLLM, "... (truncated)") {
		t.Fatalf("expected truncation suffix")
	}
}

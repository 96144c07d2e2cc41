package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIProviderChatSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer auth header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hi there"}}],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai", "key", srv.URL, "gpt-4o-mini")
	resp, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleHuman, Content: "hello"}}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "hi there" {
		t.Fatalf("content = %q", resp.Message.Content)
	}
	if resp.Usage.TotalTokens != 3 {
		t.Fatalf("usage = %+v", resp.Usage)
	}
}

func TestOpenAIProviderChatToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"","tool_calls":[{"id":"1","function":{"name":"lookup","arguments":"{}"}}]}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai", "key", srv.URL, "gpt-4o-mini")
	resp, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleHuman, Content: "use a tool"}}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(resp.Message.ToolCalls) != 1 || resp.Message.ToolCalls[0].Name != "lookup" {
		t.Fatalf("unexpected tool calls: %+v", resp.Message.ToolCalls)
	}
}

func TestOpenAIProviderChatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai", "key", srv.URL, "gpt-4o-mini")
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleHuman, Content: "x"}}})
	if err == nil {
		t.Fatalf("expected an error on HTTP 500")
	}
}

func TestOpenAIProviderChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai", "key", srv.URL, "gpt-4o-mini")
	chunks, err := p.ChatStream(context.Background(), ChatRequest{Messages: []Message{{Role: RoleHuman, Content: "hi"}}})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}

	var builder strings.Builder
	done := false
	for chunk := range chunks {
		if chunk.Done {
			done = true
			continue
		}
		builder.WriteString(chunk.Delta)
	}
	if !done {
		t.Fatalf("expected a terminal Done chunk")
	}
	if builder.String() != "Hello" {
		t.Fatalf("assembled content = %q", builder.String())
	}
}

func TestOpenAIProviderResolveModelFallsBackToDefault(t *testing.T) {
	p := NewOpenAIProvider("openai", "key", "", "gpt-default")
	if got := p.resolveModel(""); got != "gpt-default" {
		t.Fatalf("resolveModel(\"\") = %q", got)
	}
	if got := p.resolveModel("gpt-explicit"); got != "gpt-explicit" {
		t.Fatalf("resolveModel(explicit) = %q", got)
	}
}

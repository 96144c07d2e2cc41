package transcription

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTranscribeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key123" {
			t.Errorf("missing/incorrect auth header: %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "hello world"}`))
	}))
	defer srv.Close()

	c, err := New("groq", "whisper-large-v3", "key123", srv.URL, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	text, err := c.Transcribe(context.Background(), []byte("fake-audio-bytes"), "voice.ogg", "audio/ogg")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("text = %q, want 'hello world'", text)
	}
}

func TestTranscribeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "invalid key"}`))
	}))
	defer srv.Close()

	c, _ := New("groq", "m", "bad", srv.URL, time.Second)
	if _, err := c.Transcribe(context.Background(), []byte("x"), "v.ogg", "audio/ogg"); err == nil {
		t.Fatalf("expected an error on non-2xx response")
	}
}

func TestNewUnknownProviderRequiresBaseURL(t *testing.T) {
	if _, err := New("mystery", "m", "k", "", time.Second); err == nil {
		t.Fatalf("expected error for unknown provider without an explicit base URL")
	}
}

func TestIsConfigured(t *testing.T) {
	var c *Client
	if c.IsConfigured() {
		t.Fatalf("nil client should not be configured")
	}
	c, _ = New("groq", "m", "", "", time.Second)
	if c.IsConfigured() {
		t.Fatalf("client with empty api key should not be configured")
	}
	c, _ = New("groq", "m", "k", "", time.Second)
	if !c.IsConfigured() {
		t.Fatalf("client with api key should be configured")
	}
}

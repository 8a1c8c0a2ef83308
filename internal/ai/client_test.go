package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHasUsableKey(t *testing.T) {
	cases := map[string]bool{
		"":                   false,
		"your_openai_key":    false,
		"sk-PLACEHOLDER-123": false,
		"sk-XXXX":            false,
		"sk-live-abc":        true,
	}
	for key, want := range cases {
		if got := HasUsableKey(key); got != want {
			t.Errorf("HasUsableKey(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestClient_Complete(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Спасибо!  "}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", "", time.Second)
	out, err := c.Complete(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}, MaxTokens: 300, Temperature: 0.7})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "Спасибо!" {
		t.Errorf("content: got %q", out)
	}
	if got.Model != DefaultModel || got.MaxTokens != 300 {
		t.Errorf("request: %+v", got)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, ErrQuotaExceeded},
		{http.StatusForbidden, `{"error":{"code":"insufficient_quota","message":"no credit"}}`, ErrQuotaExceeded},
		{http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, ErrUnauthorized},
		{http.StatusBadGateway, `oops`, ErrUpstreamStatus},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		c := NewClient(srv.URL, "sk-test", "", time.Second)
		_, err := c.Complete(context.Background(), ChatRequest{})
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
		srv.Close()
	}
}

func TestClient_NoKeyMakesNoRequest(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "your_key_here", "", time.Second)
	if _, err := c.Complete(context.Background(), ChatRequest{}); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey, got %v", err)
	}
	if err := c.SetModel("gpt-2"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel, got %v", err)
	}
	if err := c.SetModel("gpt-4"); err != nil || c.Model() != "gpt-4" {
		t.Errorf("SetModel gpt-4: %v, model %s", err, c.Model())
	}
}

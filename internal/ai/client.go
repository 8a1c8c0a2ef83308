// Package ai generates review answers with an OpenAI-compatible chat API and
// degrades to fixed templates when the API cannot be used.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-3.5-turbo"
)

// SupportedModels can be selected at runtime.
var SupportedModels = []string{"gpt-3.5-turbo", "gpt-4", "gpt-4-turbo"}

var (
	ErrNoKey          = errors.New("openai api key not configured")
	ErrQuotaExceeded  = errors.New("openai quota exceeded")
	ErrUnauthorized   = errors.New("openai api key rejected")
	ErrUnknownModel   = errors.New("unsupported model")
	ErrEmptyChoice    = errors.New("openai returned no content")
	ErrUpstreamStatus = errors.New("openai returned an error status")
)

var placeholderPrefixes = []string{"your_", "sk-placeholder", "sk-xxxx"}

// HasUsableKey reports whether key is set and is not an obvious placeholder.
func HasUsableKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	for _, p := range placeholderPrefixes {
		if strings.HasPrefix(key, p) {
			return false
		}
	}
	return true
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is one chat completion call; Model is filled by the client.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// Completer is what the generator needs from a chat API.
type Completer interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
	HasKey() bool
	Model() string
}

// Client calls POST {base}/chat/completions. Key and model can change at runtime.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration

	mu     sync.RWMutex
	apiKey string
	model  string
}

func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
	}
}

var _ Completer = (*Client)(nil)

func (c *Client) HasKey() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return HasUsableKey(c.apiKey)
}

// KeySet reports whether any key, placeholder or not, is configured.
func (c *Client) KeySet() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey != ""
}

func (c *Client) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = strings.TrimSpace(key)
}

func (c *Client) SetModel(model string) error {
	if !slices.Contains(SupportedModels, model) {
		return fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
	return nil
}

func (c *Client) Timeout() time.Duration { return c.timeout }

// Complete sends one chat completion and returns the trimmed content of the first choice.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (string, error) {
	c.mu.RLock()
	key, model := c.apiKey, c.model
	c.mu.RUnlock()
	if !HasUsableKey(key) {
		return "", ErrNoKey
	}
	req.Model = model

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read openai response: %w", err)
	}
	if err := classifyStatus(resp.StatusCode, raw); err != nil {
		return "", err
	}
	content := strings.TrimSpace(gjson.GetBytes(raw, "choices.0.message.content").String())
	if content == "" {
		return "", ErrEmptyChoice
	}
	return content, nil
}

// classifyStatus maps an error answer to ErrQuotaExceeded, ErrUnauthorized or ErrUpstreamStatus.
func classifyStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	code := strings.ToLower(gjson.GetBytes(body, "error.code").String() + " " + gjson.GetBytes(body, "error.type").String())
	msg := gjson.GetBytes(body, "error.message").String()
	if msg == "" {
		msg = string(body)
	}
	lower := strings.ToLower(string(body))
	switch {
	case status == http.StatusTooManyRequests,
		strings.Contains(code, "insufficient_quota"), strings.Contains(lower, "insufficient_quota"),
		strings.Contains(lower, "rate_limit"):
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, msg)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	}
	return fmt.Errorf("%w %d: %s", ErrUpstreamStatus, status, msg)
}

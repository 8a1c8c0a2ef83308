// Package ozon is a thin client for the review endpoints of the Ozon Seller API.
package ozon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://api-seller.ozon.ru"

	minPageSize = 20
	maxPageSize = 100

	// statusNew selects reviews the seller has not processed yet.
	statusNew = 1
)

var listPaths = []string{"/v1/review/list", "/v2/review/list"}

const commentPath = "/v2/review/comment/create"

// ErrUpstream is matched by every non-2xx answer from Ozon.
var ErrUpstream = errors.New("ozon upstream error")

// ErrNoCredentials is returned before any request when Client-Id or Api-Key is empty.
var ErrNoCredentials = errors.New("ozon credentials are not configured")

// UpstreamError carries the HTTP status Ozon answered with.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ozon returned %d: %s", e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// Client talks to the Seller API. Credentials can be swapped at runtime from the settings endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger

	mu       sync.RWMutex
	clientID string
	apiKey   string
}

func NewClient(baseURL, clientID, apiKey string, log *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
		clientID:   strings.TrimSpace(clientID),
		apiKey:     strings.TrimSpace(apiKey),
	}
}

func (c *Client) SetCredentials(clientID, apiKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientID = strings.TrimSpace(clientID)
	c.apiKey = strings.TrimSpace(apiKey)
}

func (c *Client) credentials() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientID, c.apiKey
}

// Configured reports whether both credentials are set.
func (c *Client) Configured() bool {
	id, key := c.credentials()
	return id != "" && key != ""
}

// Review is one marketplace review with the payload aliases already resolved.
type Review struct {
	ExternalID   string
	ProductID    string
	ProductName  string
	CustomerName string
	Rating       int
	Text         string
	Answered     bool
}

// Page is one page of ListReviews. Skipped counts payload entries without an id.
type Page struct {
	Reviews []Review
	Total   int
	Skipped int
}

type listRequest struct {
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
	Filter listFilter `json:"filter"`
}

type listFilter struct {
	Statuses []int `json:"statuses"`
}

// ListReviews fetches a page of new reviews. The v1 endpoint is tried first; only a 404 moves on to v2.
func (c *Client) ListReviews(ctx context.Context, limit, offset int) (*Page, error) {
	body := listRequest{
		Limit:  max(minPageSize, min(limit, maxPageSize)),
		Offset: max(offset, 0),
		Filter: listFilter{Statuses: []int{statusNew}},
	}

	var lastErr error
	for _, path := range listPaths {
		raw, err := c.post(ctx, path, body)
		if err == nil {
			return parsePage(raw), nil
		}
		var upErr *UpstreamError
		if !errors.As(err, &upErr) || upErr.StatusCode != http.StatusNotFound {
			return nil, err
		}
		lastErr = err
		c.log.Warn("ozon review list endpoint not found, trying next", "path", path)
	}
	return nil, lastErr
}

// CreateComment posts text as the seller's answer to a review and returns the comment id when Ozon reports one.
func (c *Client) CreateComment(ctx context.Context, reviewID, text string) (string, error) {
	raw, err := c.post(ctx, commentPath, map[string]string{"review_id": reviewID, "text": text})
	if err != nil {
		return "", err
	}
	for _, path := range []string{"comment_id", "id", "result.comment_id", "result.id"} {
		if v := gjson.GetBytes(raw, path); v.Exists() {
			return v.String(), nil
		}
	}
	return "", nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	clientID, apiKey := c.credentials()
	if clientID == "" || apiKey == "" {
		return nil, ErrNoCredentials
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-Id", clientID)
	req.Header.Set("Api-Key", apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ozon %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read ozon response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 200)}
	}
	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

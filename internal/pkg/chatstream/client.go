package chatstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/unifiedui/community-gateway/internal/domain/models"
)

const (
	// DefaultStreamPath is the gateway's streaming chat endpoint.
	DefaultStreamPath = "/api/v1/chat/stream"
	// DefaultPredictPath is the gateway's non-streaming chat endpoint.
	DefaultPredictPath = "/api/v1/chat"

	maxErrorBody = 4096
)

// StatusError is returned when the chat endpoint rejects a request.
type StatusError struct {
	StatusCode int
	Body       string
	Location   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat request rejected: status=%d body=%s", e.StatusCode, e.Body)
}

// Message is the text reported to OnError.
func (e *StatusError) Message() string {
	switch {
	case e.StatusCode == http.StatusUnauthorized,
		e.StatusCode >= 300 && e.StatusCode < 400:
		return "sign in required"
	case e.StatusCode == http.StatusTooManyRequests:
		return "too many requests, try again shortly"
	}
	if e.Body != "" {
		return fmt.Sprintf("request rejected (%d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("request rejected (%d)", e.StatusCode)
}

// ClientConfig holds the configuration for a chat endpoint client.
type ClientConfig struct {
	BaseURL     string
	StreamPath  string
	PredictPath string
	// Header is added to every request, e.g. an Authorization header.
	Header  http.Header
	Cookies []*http.Cookie
	// Timeout bounds Predict only; streams are bounded by their context.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to a chat endpoint that answers with JSON or an SSE stream.
type Client struct {
	baseURL     string
	streamPath  string
	predictPath string
	header      http.Header
	cookies     []*http.Cookie
	timeout     time.Duration
	httpClient  *http.Client
}

// NewClient creates a new chat client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			// A redirect means the gate wants a sign-in; surface it instead of following.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	c := &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		streamPath:  cfg.StreamPath,
		predictPath: cfg.PredictPath,
		header:      cfg.Header,
		cookies:     cfg.Cookies,
		timeout:     cfg.Timeout,
		httpClient:  httpClient,
	}
	if c.streamPath == "" {
		c.streamPath = DefaultStreamPath
	}
	if c.predictPath == "" {
		c.predictPath = DefaultPredictPath
	}
	if c.timeout == 0 {
		c.timeout = 60 * time.Second
	}
	return c, nil
}

// Open posts req to the stream endpoint and returns its event source.
func (c *Client) Open(ctx context.Context, req *models.ChatRequest) (Source, error) {
	body := *req
	body.Streaming = true

	httpReq, err := c.newRequest(ctx, c.streamPath, &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return NewSSESource(resp.Body), nil
}

// Predict posts req to the non-streaming endpoint.
func (c *Client) Predict(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := *req
	body.Streaming = false

	httpReq, err := c.newRequest(ctx, c.predictPath, &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp)
	}

	var out models.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

func (c *Client) newRequest(ctx context.Context, path string, body *models.ChatRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, values := range c.header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}
	return req, nil
}

func statusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		Location:   resp.Header.Get("Location"),
	}
}

package appclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yusari/worktimer/internal/api"
)

const defaultUnaryTimeout = 10 * time.Second

// Client talks to the daemon over its unix socket.
type Client struct {
	baseURL      string
	client       *http.Client
	unaryTimeout time.Duration
}

func New(socketPath string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
	return NewWithClient("http://unix", &http.Client{Transport: transport})
}

func NewWithClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{}
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       client,
		unaryTimeout: defaultUnaryTimeout,
	}
}

type RequestError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var resp api.HealthResponse
	err := c.do(ctx, http.MethodGet, "/v1/health", nil, &resp)
	return resp, err
}

func (c *Client) Attach(ctx context.Context, documentKey string) (api.SessionEnvelope, error) {
	var resp api.SessionEnvelope
	err := c.do(ctx, http.MethodPost, "/v1/sessions", api.AttachRequest{DocumentKey: documentKey}, &resp)
	return resp, err
}

func (c *Client) GetSession(ctx context.Context, documentKey string) (api.SessionEnvelope, error) {
	var resp api.SessionEnvelope
	err := c.do(ctx, http.MethodGet, sessionPath(documentKey, ""), nil, &resp)
	return resp, err
}

func (c *Client) Activity(ctx context.Context, documentKey string) (api.SessionEnvelope, error) {
	var resp api.SessionEnvelope
	err := c.do(ctx, http.MethodPost, sessionPath(documentKey, "activity"), nil, &resp)
	return resp, err
}

func (c *Client) Focus(ctx context.Context, documentKey string, hasFocus bool) (api.SessionEnvelope, error) {
	var resp api.SessionEnvelope
	err := c.do(ctx, http.MethodPost, sessionPath(documentKey, "focus"), api.FocusRequest{HasFocus: hasFocus}, &resp)
	return resp, err
}

func (c *Client) Respond(ctx context.Context, documentKey, requestID string, wasThinking bool) (api.SessionEnvelope, error) {
	var resp api.SessionEnvelope
	err := c.do(ctx, http.MethodPost, sessionPath(documentKey, "respond"), api.RespondRequest{
		RequestID:   requestID,
		WasThinking: wasThinking,
	}, &resp)
	return resp, err
}

func (c *Client) Undo(ctx context.Context, documentKey string) (api.UndoResponse, error) {
	var resp api.UndoResponse
	err := c.do(ctx, http.MethodPost, sessionPath(documentKey, "undo"), nil, &resp)
	return resp, err
}

func (c *Client) Start(ctx context.Context, documentKey string) (api.SessionEnvelope, error) {
	var resp api.SessionEnvelope
	err := c.do(ctx, http.MethodPost, sessionPath(documentKey, "start"), nil, &resp)
	return resp, err
}

func (c *Client) Stop(ctx context.Context, documentKey string) (api.SessionEnvelope, error) {
	var resp api.SessionEnvelope
	err := c.do(ctx, http.MethodPost, sessionPath(documentKey, "stop"), nil, &resp)
	return resp, err
}

func (c *Client) Reset(ctx context.Context, documentKey string) (api.SessionEnvelope, error) {
	var resp api.SessionEnvelope
	err := c.do(ctx, http.MethodPost, sessionPath(documentKey, "reset"), nil, &resp)
	return resp, err
}

func (c *Client) Stats(ctx context.Context) (api.StatsResponse, error) {
	var resp api.StatsResponse
	err := c.do(ctx, http.MethodGet, "/v1/stats", nil, &resp)
	return resp, err
}

func (c *Client) GetSettings(ctx context.Context) (api.SettingsResponse, error) {
	var resp api.SettingsResponse
	err := c.do(ctx, http.MethodGet, "/v1/settings", nil, &resp)
	return resp, err
}

func (c *Client) PatchSettings(ctx context.Context, patch api.SettingsPatch) (api.SettingsResponse, error) {
	var resp api.SettingsResponse
	err := c.do(ctx, http.MethodPatch, "/v1/settings", patch, &resp)
	return resp, err
}

func (c *Client) Events(ctx context.Context) (api.EventsEnvelope, error) {
	var resp api.EventsEnvelope
	err := c.do(ctx, http.MethodGet, "/v1/events", nil, &resp)
	return resp, err
}

func sessionPath(documentKey, action string) string {
	path := "/v1/sessions/" + url.PathEscape(documentKey)
	if action != "" {
		path += "/" + action
	}
	return path
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.unaryTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Code != "" {
			return &RequestError{
				StatusCode: resp.StatusCode,
				Code:       apiErr.Error.Code,
				Message:    apiErr.Error.Message,
			}
		}
		return &RequestError{StatusCode: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

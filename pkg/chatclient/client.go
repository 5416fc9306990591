package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"chatsync/pkg/logger"
	"chatsync/pkg/models"
)

const defaultTimeout = 30 * time.Second

// Client talks to the remote chat service. It owns transport concerns only;
// retry and staleness policy belong to the dispatch/reconciliation layers.
type Client struct {
	base    string
	http    *fasthttp.Client
	timeout time.Duration

	// onAuthExpired fires when an authenticated call comes back 401, the
	// process-wide auth-expired broadcast.
	onAuthExpired func()
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAuthExpiredHook installs the callback fired on 401 from an
// authenticated call.
func WithAuthExpiredHook(fn func()) Option {
	return func(c *Client) { c.onAuthExpired = fn }
}

// New builds a chat service client for the given base URL.
func New(base string, opts ...Option) *Client {
	c := &Client{
		base:    strings.TrimRight(base, "/"),
		http:    &fasthttp.Client{Name: "chatsync"},
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Send posts a chat message and returns the backend reply.
func (c *Client) Send(ctx context.Context, sr models.SendRequest, token string) (*models.ChatReply, error) {
	body, err := json.Marshal(sr)
	if err != nil {
		return nil, fmt.Errorf("marshal send request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.base + "/chat")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if sr.SessionID != "" {
		req.Header.Set("X-Session-Id", sr.SessionID)
	}
	if token != "" {
		req.Header.Set("X-User-Token", token)
	}
	req.SetBody(body)

	if err := c.do(ctx, req, resp); err != nil {
		return nil, err
	}
	if err := c.checkStatus(resp, token != ""); err != nil {
		return nil, err
	}

	var out models.ChatReply
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &APIError{Status: resp.StatusCode(), Message: "malformed reply body"}
	}
	return &out, nil
}

// History fetches up to limit messages for a session. Authenticated callers
// pass a bearer token; guests are identified by the session header.
func (c *Client) History(ctx context.Context, sessionID string, limit int, token string) ([]models.Message, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := c.base + "/chat/history?session_id=" + sessionID
	if limit > 0 {
		uri += "&limit=" + strconv.Itoa(limit)
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Set("X-Session-Id", sessionID)
	}

	if err := c.do(ctx, req, resp); err != nil {
		return nil, err
	}
	if err := c.checkStatus(resp, token != ""); err != nil {
		return nil, err
	}

	var out models.HistoryResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &APIError{Status: resp.StatusCode(), Message: "malformed history body"}
	}
	return out.Messages, nil
}

// do runs the request honoring a context deadline when one is set; otherwise
// the client's default timeout applies.
func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if until := time.Until(dl); until < timeout {
			timeout = until
		}
	}
	if err := ctx.Err(); err != nil {
		return &APIError{Message: err.Error()}
	}
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		logger.Warn("chat_request_failed", "uri", string(req.URI().FullURI()), "error", err)
		return &APIError{Message: err.Error()}
	}
	return nil
}

// checkStatus maps non-2xx responses to APIError and fires the auth-expired
// broadcast on authenticated 401s.
func (c *Client) checkStatus(resp *fasthttp.Response, authenticated bool) error {
	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}
	msg := errorMessage(resp.Body())
	if code == fasthttp.StatusUnauthorized && authenticated && c.onAuthExpired != nil {
		logger.Warn("auth_expired_broadcast", "status", code)
		c.onAuthExpired()
	}
	return &APIError{Status: code, Message: msg}
}

// errorMessage pulls a human-readable message out of an error body.
func errorMessage(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		for _, m := range []string{e.Error, e.Message, e.Detail} {
			if m != "" {
				return m
			}
		}
	}
	return "request failed"
}

package bakalari

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client makes authenticated requests to the school API for one student
// account. A 401 response triggers a token refresh (with login fallback) and
// a single retry; the retry happens at most once per request by construction.
type Client struct {
	baseURL string
	http    *http.Client
	auth    *Auth
	logger  *slog.Logger
}

// Options tunes a Client.
type Options struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewClient creates a Client for one account.
func NewClient(baseURL, username, password string, opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	httpClient := &http.Client{Timeout: opts.Timeout}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		auth:    NewAuth(baseURL, username, password, httpClient, opts.Logger),
		logger:  opts.Logger,
	}
}

// Auth exposes the token lifecycle, mainly for status reporting.
func (c *Client) Auth() *Auth { return c.auth }

// Login authenticates the account.
func (c *Client) Login(ctx context.Context) error {
	return c.auth.Login(ctx)
}

type requestSpec struct {
	method string
	path   string
	query  url.Values
	form   url.Values
	json   any
}

// do runs a request with at most two attempts. The loop shape guarantees a
// single auth retry no matter what the server keeps answering.
func (c *Client) do(ctx context.Context, spec requestSpec) (json.RawMessage, error) {
	token, err := c.validToken(ctx)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		body, status, err := c.send(ctx, spec, token)
		if err != nil {
			return nil, err
		}
		if status != http.StatusUnauthorized {
			return c.finish(spec, body, status)
		}
		if attempt > 0 {
			break
		}

		c.logger.Debug("got 401, refreshing token and retrying",
			slog.String("path", spec.path))
		if err := c.auth.Refresh(ctx); err != nil {
			if !errors.Is(err, ErrRefreshExpired) {
				return nil, err
			}
			if err := c.auth.Login(ctx); err != nil {
				return nil, err
			}
		}
		token, err = c.validToken(ctx)
		if err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: request to %s rejected after retry", ErrAuthenticationFailed, spec.path)
}

// validToken fetches a usable access token, logging in again when the
// refresh token has expired.
func (c *Client) validToken(ctx context.Context) (string, error) {
	token, err := c.auth.ValidToken(ctx)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, ErrRefreshExpired) {
		return "", err
	}
	c.logger.Info("refresh token expired, logging in again")
	if err := c.auth.Login(ctx); err != nil {
		return "", err
	}
	return c.auth.ValidToken(ctx)
}

func (c *Client) send(ctx context.Context, spec requestSpec, token string) ([]byte, int, error) {
	u := c.baseURL + spec.path
	if len(spec.query) > 0 {
		u += "?" + spec.query.Encode()
	}

	var reqBody io.Reader
	contentType := ""
	switch {
	case spec.json != nil:
		encoded, err := json.Marshal(spec.json)
		if err != nil {
			return nil, 0, &APIError{Method: spec.method, Path: spec.path, Body: err.Error()}
		}
		reqBody = bytes.NewReader(encoded)
		contentType = "application/json"
	case spec.form != nil:
		reqBody = strings.NewReader(spec.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, spec.method, u, reqBody)
	if err != nil {
		return nil, 0, &APIError{Method: spec.method, Path: spec.path, Body: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug("api request", slog.String("method", spec.method), slog.String("path", spec.path))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, &APIError{Method: spec.method, Path: spec.path, Body: "network error: " + err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &APIError{Method: spec.method, Path: spec.path, Body: "read body: " + err.Error()}
	}
	return body, resp.StatusCode, nil
}

func (c *Client) finish(spec requestSpec, body []byte, status int) (json.RawMessage, error) {
	switch {
	case status == http.StatusOK:
		return json.RawMessage(body), nil
	case status == http.StatusNoContent:
		return json.RawMessage("{}"), nil
	case status == http.StatusMethodNotAllowed:
		return nil, &APIError{
			Status: status, Method: spec.method, Path: spec.path,
			Body: "method not allowed",
		}
	default:
		text := string(body)
		if len(text) > 500 {
			text = text[:500]
		}
		c.logger.Error("api error",
			slog.String("method", spec.method),
			slog.String("path", spec.path),
			slog.Int("status", status))
		return nil, &APIError{Status: status, Method: spec.method, Path: spec.path, Body: text}
	}
}

// Get issues an authenticated GET.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, requestSpec{method: http.MethodGet, path: path, query: query})
}

// Post issues an authenticated POST. Pass a form, a JSON payload, or neither
// for a body-less POST, which some endpoints require.
func (c *Client) Post(ctx context.Context, path string, form url.Values, jsonBody any) (json.RawMessage, error) {
	return c.do(ctx, requestSpec{method: http.MethodPost, path: path, form: form, json: jsonBody})
}

// Put issues an authenticated PUT with a form body.
func (c *Client) Put(ctx context.Context, path string, form url.Values) (json.RawMessage, error) {
	return c.do(ctx, requestSpec{method: http.MethodPut, path: path, form: form})
}

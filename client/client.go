// Package client talks to the opencanvas HTTP API on behalf of a reader or
// a writing session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"opencanvas-service/apperror"
	"opencanvas-service/feed"
	"opencanvas-service/model"
)

// Client is a small JSON client for the public API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client. baseURL should have no trailing path, e.g.
// "http://localhost:8080".
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// envelope holds the fields every response shares.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// FeedPage fetches one page of an anonymous feed. An empty cursor starts
// from the top.
func (c *Client) FeedPage(ctx context.Context, kind feed.Kind, cursor string, limit int) (*model.FeedResponse, error) {
	body := model.FeedRequest{Limit: &limit}
	if cursor != "" {
		body.Cursor = &cursor
	}

	var out model.FeedResponse
	if err := c.do(ctx, http.MethodPost, "/feed/"+string(kind)+"/anonymous-user", "", body, &out); err != nil {
		return nil, err
	}
	if out.Posts == nil {
		out.Posts = []model.PublicPost{}
	}
	return &out, nil
}

// NewPostID reserves the id of a post that will be written later.
func (c *Client) NewPostID(ctx context.Context, token string) (string, error) {
	var out struct {
		NewPostID string `json:"newPostId"`
	}
	if err := c.do(ctx, http.MethodPost, "/newpost/written/getId", token, nil, &out); err != nil {
		return "", err
	}
	if out.NewPostID == "" {
		return "", errors.New("new post id: missing id in response")
	}
	return out.NewPostID, nil
}

// SavePost creates or updates a written post and returns its id.
func (c *Client) SavePost(ctx context.Context, token string, req model.SavePostRequest) (string, error) {
	var out struct {
		PostID string `json:"postId"`
	}
	if err := c.do(ctx, http.MethodPost, "/savepost/written", token, req, &out); err != nil {
		return "", err
	}
	return out.PostID, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperror.Transient(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperror.Transient(err, "%s %s: read body", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, raw)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	if !env.Success {
		return fmt.Errorf("%s %s: %s", method, path, env.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func statusError(status int, raw []byte) error {
	var env envelope
	_ = json.Unmarshal(raw, &env)
	msg := env.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status >= 500:
		return apperror.Transient(fmt.Errorf("status %d", status), "%s", msg)
	case status == http.StatusBadRequest:
		return apperror.Validation("%s", msg)
	case status == http.StatusNotFound:
		return apperror.NotFound("%s", msg)
	case status == http.StatusUnauthorized:
		return apperror.Unauthenticated("%s", msg)
	case status == http.StatusForbidden:
		return apperror.Forbidden("%s", msg)
	case status == http.StatusTooManyRequests:
		return apperror.Transient(fmt.Errorf("status %d", status), "%s", msg)
	}
	return fmt.Errorf("unexpected status %d: %s", status, msg)
}

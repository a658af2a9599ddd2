package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Client reads the catalog from a remote lab back end exposing
// GET /tests and GET /tests/groups.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type ClientOption func(*Client)

// WithBearerToken sends an Authorization header on every request.
func WithBearerToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListTests(ctx context.Context) ([]*Test, error) {
	var tests []*Test
	if err := c.getList(ctx, "/tests", &tests); err != nil {
		return nil, err
	}
	return tests, nil
}

func (c *Client) ListGroups(ctx context.Context) ([]*Group, error) {
	var groups []*Group
	if err := c.getList(ctx, "/tests/groups", &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// Snapshot fetches tests and groups in parallel; both must succeed.
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	var tests []*Test
	var groups []*Group

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tests, err = c.ListTests(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		groups, err = c.ListGroups(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewSnapshot(tests, groups), nil
}

// getList decodes either a bare JSON array or an envelope of the form
// {"data": [...]}.
func (c *Client) getList(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		body = env.Data
	}
	if len(body) == 0 || string(body) == "null" {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

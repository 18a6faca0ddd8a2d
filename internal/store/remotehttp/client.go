// Package remotehttp talks to the central session service. It is the only
// implementation of domain.RemoteSessionStore; everything the syncer pushes
// or pulls goes through this client.
package remotehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/votalab/sonda/internal/domain"
)

type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ domain.RemoteSessionStore = (*Client)(nil)

func (c *Client) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	var s domain.Session
	err := c.do(ctx, http.MethodGet, "/v1/sessions/"+id.String(), nil, &s)
	if err != nil {
		return nil, fmt.Errorf("remotehttp.Client.Get: %w", err)
	}
	return &s, nil
}

func (c *Client) Put(ctx context.Context, s *domain.Session) (int64, error) {
	var resp struct {
		Version int64 `json:"version"`
	}
	err := c.do(ctx, http.MethodPut, "/v1/sessions/"+s.ID.String(), s, &resp)
	if err != nil {
		return 0, fmt.Errorf("remotehttp.Client.Put: %w", err)
	}
	return resp.Version, nil
}

func (c *Client) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) (*domain.SessionPage, error) {
	q := url.Values{}
	if ownerID != uuid.Nil {
		q.Set("owner_id", ownerID.String())
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/v1/sessions"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}

	var page domain.SessionPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, fmt.Errorf("remotehttp.Client.List: %w", err)
	}
	return &page, nil
}

func (c *Client) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.do(ctx, http.MethodDelete, "/v1/sessions/"+id.String(), nil, nil); err != nil {
		return fmt.Errorf("remotehttp.Client.Delete: %w", err)
	}
	return nil
}

func (c *Client) BulkMigrate(ctx context.Context, sessions []*domain.Session) ([]domain.MigrateResult, error) {
	req := struct {
		Sessions []*domain.Session `json:"sessions"`
	}{Sessions: sessions}
	var resp struct {
		Results []domain.MigrateResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/migrate", req, &resp); err != nil {
		return nil, fmt.Errorf("remotehttp.Client.BulkMigrate: %w", err)
	}
	return resp.Results, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, domain.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

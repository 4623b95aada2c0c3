// Package device talks to the device-management API: the site directory,
// station listings and OCPP configuration reads and writes.
package device

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

	"golang.org/x/time/rate"

	"pricecheck/pkg/model"
)

var ErrUnauthorized = errors.New("credential rejected or expired")

// TokenSource supplies the current bearer token.
type TokenSource interface {
	Token() string
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Tokens  TokenSource
	Limiter *rate.Limiter
	// OnUnauthorized, when set, is called once before retrying a directory
	// fetch rejected for an expired credential.
	OnUnauthorized func(ctx context.Context) error
	Log            *slog.Logger
}

// NewClient builds a client; rps <= 0 disables pacing, timeout 0 means none.
func NewClient(baseURL string, tokens TokenSource, rps float64, timeout time.Duration) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Tokens:  tokens,
		Limiter: rate.NewLimiter(limit, 1),
		Log:     slog.Default(),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return 0, nil, err
		}
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Tokens != nil {
		if tok := c.Tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return resp.StatusCode, data, nil
}

func expired(status int, body []byte) bool {
	return status == http.StatusUnauthorized || bytes.Contains(bytes.ToLower(body), []byte("expired"))
}

// ListDirectory fetches the full site directory. An expired credential
// triggers OnUnauthorized and a single retry.
func (c *Client) ListDirectory(ctx context.Context) ([]model.SiteDirectoryEntry, error) {
	const path = "/asset-mgmt/api/site?barebones=true"
	status, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch site directory: %w", err)
	}
	if expired(status, body) {
		if c.OnUnauthorized == nil {
			return nil, fmt.Errorf("fetch site directory: %w", ErrUnauthorized)
		}
		c.logger().Warn("credential expired, renewing")
		if err := c.OnUnauthorized(ctx); err != nil {
			return nil, fmt.Errorf("renew credential: %w", err)
		}
		status, body, err = c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch site directory: %w", err)
		}
		if expired(status, body) {
			return nil, fmt.Errorf("fetch site directory: %w", ErrUnauthorized)
		}
	}
	if status/100 != 2 {
		return nil, fmt.Errorf("fetch site directory: http %d", status)
	}
	return decodeDirectory(body)
}

func decodeDirectory(body []byte) ([]model.SiteDirectoryEntry, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse site directory: %w", err)
	}
	var rows []any
	switch v := doc.(type) {
	case []any:
		rows = v
	case map[string]any:
		rows = []any{v}
	default:
		return nil, errors.New("parse site directory: unexpected document")
	}
	out := make([]model.SiteDirectoryEntry, 0, len(rows))
	for _, r := range rows {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, model.SiteDirectoryEntry{
			ID:     stringify(m["id"]),
			Name:   stringify(m["name"]),
			Level1: stringify(m["acn_id"]),
			Level2: stringify(m["acc_id"]),
		})
	}
	return out, nil
}

// ListStations lists the stations of one level-1/level-2 pair in server order.
func (c *Client) ListStations(ctx context.Context, level1, level2 string) ([]Station, error) {
	path := "/session-manager/stations/dashboard/acn/" + url.PathEscape(level1) + "?acc=" + url.QueryEscape(level2)
	status, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("list stations %s-%s: %w", level1, level2, err)
	}
	if status == http.StatusUnauthorized {
		return nil, fmt.Errorf("list stations %s-%s: %w", level1, level2, ErrUnauthorized)
	}
	if status/100 != 2 {
		return nil, fmt.Errorf("list stations %s-%s: http %d", level1, level2, status)
	}
	return decodeStations(body)
}

// ReadConfig requests one configuration key from a station.
func (c *Client) ReadConfig(ctx context.Context, pfid, key string) (Reply, error) {
	return c.command(ctx, "/edge-device-manager/ocppCommands/get_configuration/"+url.PathEscape(pfid),
		map[string]any{"key": []string{key}})
}

// WriteConfig changes one configuration key on a station.
func (c *Client) WriteConfig(ctx context.Context, pfid, key, value string) (Reply, error) {
	return c.command(ctx, "/edge-device-manager/ocppCommands/change_configuration/"+url.PathEscape(pfid),
		map[string]string{"key": key, "value": value})
}

func (c *Client) command(ctx context.Context, path string, body any) (Reply, error) {
	status, data, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return Reply{}, err
	}
	reply, perr := ParseReply(data)
	if perr != nil {
		if status/100 != 2 {
			return reply, fmt.Errorf("http %d", status)
		}
		return reply, perr
	}
	return reply, nil
}

func (c *Client) logger() *slog.Logger {
	if c.Log == nil {
		return slog.Default()
	}
	return c.Log
}

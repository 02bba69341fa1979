// Package disneyapi is a client for the public Disney character API.
package disneyapi

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
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/tinytelemetry/cardeck/internal/model"
)

const catalogKey = "catalog"

// ErrStatus is wrapped by errors for non-200 responses.
var ErrStatus = errors.New("unexpected status")

// Options configures a Client.
type Options struct {
	BaseURL  string
	PageSize int           // 0 leaves the service default
	CacheTTL time.Duration // 0 disables the catalog cache
	Logger   *slog.Logger
}

// Client implements model.CharacterService over HTTP. Concurrent catalog
// requests share one upstream call.
type Client struct {
	httpClient *http.Client
	baseURL    string
	pageSize   int
	logger     *slog.Logger

	group singleflight.Group
	cache *expirable.LRU[string, []model.CharacterRecord]
}

var _ model.CharacterService = (*Client)(nil)

func NewClient(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if opts.BaseURL == "" {
		opts.BaseURL = model.DefaultBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		pageSize:   opts.PageSize,
		logger:     opts.Logger,
	}
	if opts.CacheTTL > 0 {
		c.cache = expirable.NewLRU[string, []model.CharacterRecord](1, nil, opts.CacheTTL)
	}
	return c
}

// characterPage mirrors the service envelope. Data is an array, except that
// the service collapses a single result into a bare object.
type characterPage struct {
	Info struct {
		Count      int    `json:"count"`
		TotalPages int    `json:"totalPages"`
		NextPage   string `json:"nextPage"`
	} `json:"info"`
	Data json.RawMessage `json:"data"`
}

// GetAllCharacters returns the catalog. Callers must not modify the slice.
func (c *Client) GetAllCharacters(ctx context.Context) ([]model.CharacterRecord, error) {
	if c.cache != nil {
		if records, ok := c.cache.Get(catalogKey); ok {
			return records, nil
		}
	}

	ch := c.group.DoChan(catalogKey, func() (any, error) {
		// Detached from any single caller; each waiter honors its own ctx below.
		fetchCtx := context.WithoutCancel(ctx)
		records, err := c.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			c.cache.Add(catalogKey, records)
		}
		return records, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.DebugContext(ctx, "catalog request shared")
		}
		return res.Val.([]model.CharacterRecord), nil
	}
}

func (c *Client) fetch(ctx context.Context) ([]model.CharacterRecord, error) {
	u := c.baseURL + "/character"
	if c.pageSize > 0 {
		u += "?" + url.Values{"pageSize": {strconv.Itoa(c.pageSize)}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, truncate(body, 200))
	}

	records, err := decodePage(body)
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "catalog fetched", "records", len(records), "elapsed", time.Since(start))
	return records, nil
}

func decodePage(body []byte) ([]model.CharacterRecord, error) {
	var page characterPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	data := bytes.TrimSpace(page.Data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return nil, nil
	case data[0] == '{':
		var one model.CharacterRecord
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("decode character: %w", err)
		}
		return []model.CharacterRecord{one}, nil
	default:
		var many []model.CharacterRecord
		if err := json.Unmarshal(data, &many); err != nil {
			return nil, fmt.Errorf("decode characters: %w", err)
		}
		return many, nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

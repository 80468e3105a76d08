// Package scrapbox provides the wiki source adapter backed by the Scrapbox
// page listing API.
package scrapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/otomatty/saedgewell-sample-sub003/internal/port/source"
)

const (
	// SourceName is the registry name for this adapter.
	SourceName = "wiki"

	// DefaultBaseURL is the production Scrapbox API endpoint.
	DefaultBaseURL = "https://scrapbox.io/api"

	// DefaultPageSize is the number of pages requested per listing call.
	DefaultPageSize = 50

	// CredCookie is the credentials key holding the connect.sid session
	// cookie value, required for private projects.
	CredCookie = "cookie"
)

func init() {
	source.Register(SourceName, func(cfg source.Config) (source.Source, error) {
		return NewClient(cfg), nil
	})
}

// Client lists pages of a Scrapbox project.
type Client struct {
	baseURL    string
	cookie     string
	pageSize   int
	httpClient *http.Client
}

// NewClient creates a Scrapbox client from a source config.
func NewClient(cfg source.Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		cookie:   cfg.Credentials[CredCookie],
		pageSize: pageSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name implements source.Source.
func (c *Client) Name() string { return SourceName }

type pageListResponse struct {
	ProjectName string      `json:"projectName"`
	Count       int         `json:"count"`
	Pages       []pageEntry `json:"pages"`
}

type pageEntry struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Descriptions []string `json:"descriptions"`
	User         struct {
		DisplayName string `json:"displayName"`
	} `json:"user"`
	Pin    int64 `json:"pin"`
	Views  int64 `json:"views"`
	Linked int64 `json:"linked"`
	Updated int64 `json:"updated"` // epoch seconds
}

// ListItems implements source.Source. The page token is the numeric skip
// offset of the next page.
func (c *Client) ListItems(ctx context.Context, sourceRef, pageToken string) (*source.Page, error) {
	skip := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("list pages: invalid page token %q", pageToken)
		}
		skip = n
	}

	endpoint := fmt.Sprintf("%s/pages/%s?skip=%d&limit=%d",
		c.baseURL, url.PathEscape(sourceRef), skip, c.pageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", "connect.sid="+c.cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &source.UpstreamError{Op: "list pages", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &source.UpstreamError{
			Op:         "list pages",
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	var parsed pageListResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("list pages: decode response: %w", err)
	}

	items := make([]source.RemoteItem, 0, len(parsed.Pages))
	for _, p := range parsed.Pages {
		items = append(items, source.RemoteItem{
			ID:        p.ID,
			Title:     p.Title,
			Author:    p.User.DisplayName,
			Excerpt:   strings.Join(p.Descriptions, "\n"),
			Views:     p.Views,
			Linked:    p.Linked,
			Pinned:    p.Pin > 0,
			UpdatedAt: time.Unix(p.Updated, 0).UTC(),
		})
	}

	next := ""
	if len(parsed.Pages) > 0 && skip+len(parsed.Pages) < parsed.Count {
		next = strconv.Itoa(skip + len(parsed.Pages))
	}

	return &source.Page{
		Items:          items,
		NextToken:      next,
		EstimatedTotal: parsed.Count,
	}, nil
}

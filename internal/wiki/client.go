// Package wiki loads pages from a MediaWiki action API or from a local fixture.
package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"influencemap/internal/graph"
)

const (
	defaultUserAgent   = "influencemap/1.0 (concept graph crawler)"
	defaultTimeout     = 30 * time.Second
	defaultRatePerSec  = 5.0
	maxLinkPages       = 500
	breakerMaxFailures = 5
)

// Options configures a Client.
type Options struct {
	// Endpoint overrides the api.php URL derived from Language.
	Endpoint          string
	Language          string
	UserAgent         string
	RequestsPerSecond float64
	Timeout           time.Duration
	HTTPClient        *http.Client
	Logger            *zap.Logger
}

// Client implements graph.Loader against the MediaWiki action API.
type Client struct {
	http      *http.Client
	endpoint  string
	userAgent string
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	logger    *zap.Logger
}

type apiPage struct {
	Title   string `json:"title"`
	Missing bool   `json:"missing"`
	Invalid bool   `json:"invalid"`
	Extract string `json:"extract"`
	Links   []struct {
		NS    int    `json:"ns"`
		Title string `json:"title"`
	} `json:"links"`
}

type apiRename struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type apiResponse struct {
	Continue map[string]string `json:"continue"`
	Query    struct {
		Normalized []apiRename `json:"normalized"`
		Redirects  []apiRename `json:"redirects"`
		Pages      []apiPage   `json:"pages"`
	} `json:"query"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// NewClient builds a MediaWiki client.
func NewClient(opts Options) *Client {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		lang := opts.Language
		if lang == "" {
			lang = "en"
		}
		endpoint = fmt.Sprintf("https://%s.wikipedia.org/w/api.php", lang)
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRatePerSec
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		http:      hc,
		endpoint:  endpoint,
		userAgent: ua,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		logger:    logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "mediawiki",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !graph.IsTransient(err)
		},
	})
	return c
}

// Exists reports whether title names an existing page.
func (c *Client) Exists(ctx context.Context, title string) (bool, error) {
	page, err := c.page(ctx, title)
	if errors.Is(err, graph.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return page != nil, nil
}

// Lookup returns the canonical title and plain-text lead section of title.
// The API normalizes the title and follows redirects before answering.
func (c *Client) Lookup(ctx context.Context, title string) (graph.PageInfo, error) {
	page, err := c.page(ctx, title)
	if err != nil {
		return graph.PageInfo{}, err
	}
	return graph.PageInfo{Title: page.Title, Summary: strings.TrimSpace(page.Extract)}, nil
}

func (c *Client) page(ctx context.Context, title string) (*apiPage, error) {
	params := url.Values{
		"prop":        {"extracts|info"},
		"exintro":     {"1"},
		"explaintext": {"1"},
		"redirects":   {"1"},
		"titles":      {title},
	}
	resp, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Query.Pages) == 0 {
		return nil, fmt.Errorf("%q: empty query result: %w", title, graph.ErrTransientFetch)
	}
	p := resp.Query.Pages[0]
	if p.Missing || p.Invalid {
		return nil, fmt.Errorf("%q: %w", title, graph.ErrNotFound)
	}
	for _, r := range append(resp.Query.Normalized, resp.Query.Redirects...) {
		c.logger.Debug("title renamed", zap.String("from", r.From), zap.String("to", r.To))
	}
	if p.Title == "" {
		p.Title = title
	}
	return &p, nil
}

// Links returns every title linked from title, following plcontinue
// pagination. A failure on any page of results fails the whole call so a
// partial link set is never cached.
func (c *Client) Links(ctx context.Context, title string) ([]string, error) {
	params := url.Values{
		"prop":      {"links"},
		"pllimit":   {"max"},
		"redirects": {"1"},
		"titles":    {title},
	}

	var links []string
	for i := 0; i < maxLinkPages; i++ {
		resp, err := c.query(ctx, params)
		if err != nil {
			return nil, err
		}
		for _, p := range resp.Query.Pages {
			if p.Missing || p.Invalid {
				return nil, fmt.Errorf("%q: %w", title, graph.ErrNotFound)
			}
			for _, l := range p.Links {
				links = append(links, l.Title)
			}
		}
		next, ok := resp.Continue["plcontinue"]
		if !ok {
			return links, nil
		}
		params.Set("plcontinue", next)
		if cont, ok := resp.Continue["continue"]; ok {
			params.Set("continue", cont)
		}
	}
	c.logger.Warn("link pagination limit reached", zap.String("title", title), zap.Int("links", len(links)))
	return links, nil
}

func (c *Client) query(ctx context.Context, params url.Values) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	out, err := c.breaker.Execute(func() (any, error) {
		return c.do(ctx, params)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("mediawiki unavailable: %v: %w", err, graph.ErrTransientFetch)
	}
	if err != nil {
		return nil, err
	}
	return out.(*apiResponse), nil
}

func (c *Client) do(ctx context.Context, params url.Values) (*apiResponse, error) {
	q := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
	}
	for k, v := range params {
		q[k] = v
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("mediawiki request failed: %v: %w", err, graph.ErrTransientFetch)
	}
	data, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("mediawiki response interrupted: %v: %w", readErr, graph.ErrTransientFetch)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("mediawiki request failed (%d): %w", resp.StatusCode, graph.ErrTransientFetch)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mediawiki request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed apiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("malformed mediawiki response: %v: %w", err, graph.ErrTransientFetch)
	}
	if parsed.Error != nil {
		switch parsed.Error.Code {
		case "ratelimited", "maxlag", "readonly":
			return nil, fmt.Errorf("mediawiki %s: %s: %w", parsed.Error.Code, parsed.Error.Info, graph.ErrTransientFetch)
		default:
			return nil, fmt.Errorf("mediawiki %s: %s", parsed.Error.Code, parsed.Error.Info)
		}
	}
	return &parsed, nil
}

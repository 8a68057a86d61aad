package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lysyi3m/intel-comb/app/event"
)

var _ Fetcher = (*Client)(nil)

// Client fetches source pages, dispatching by source kind. One shared
// resty client with retries backs every kind.
type Client struct {
	http     *resty.Client
	telegram *TelegramFetcher
	rss      *RSSFetcher
	web      *WebFetcher
}

func NewClient(userAgent string, timeout time.Duration) *Client {
	httpClient := resty.New().
		SetHeader("User-Agent", userAgent).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second)

	return &Client{
		http:     httpClient,
		telegram: NewTelegramFetcher(httpClient),
		rss:      NewRSSFetcher(timeout, userAgent),
		web:      NewWebFetcher(httpClient),
	}
}

// FetchPage fetches one page of source history, choosing the fetcher by
// the URL's detected kind.
func (c *Client) FetchPage(ctx context.Context, url, cursor string) (*Page, error) {
	switch event.DetectSourceKind(url) {
	case event.SourceKindTelegram:
		return c.telegram.FetchPage(ctx, url, cursor)
	case event.SourceKindRSS:
		return c.rss.FetchPage(ctx, url, cursor)
	default:
		return c.web.FetchPage(ctx, url, cursor)
	}
}

// fetchBody GETs a URL and applies the shared sanity guards: non-2xx
// statuses, bot-protection interstitials and suspiciously short bodies
// all count as fetch failures.
func fetchBody(ctx context.Context, client *resty.Client, url string) (string, error) {
	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", &Error{URL: url, Err: err}
	}
	if !resp.IsSuccess() {
		return "", &Error{URL: url, Err: fmt.Errorf("HTTP %d", resp.StatusCode())}
	}

	body := resp.String()
	if len(body) < 50 {
		return "", &Error{URL: url, Err: fmt.Errorf("content too short (%d bytes)", len(body))}
	}
	if strings.Contains(body, "challenge-form") || strings.Contains(body, "Cloudflare") {
		return "", &Error{URL: url, Err: fmt.Errorf("bot protection detected")}
	}

	return body, nil
}

// sourceName derives a short display name from the last URL path
// segment.
func sourceName(url string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(url), "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if idx := strings.Index(trimmed, "?"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if trimmed == "" {
		return "IntelSource"
	}
	return trimmed
}

package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	readability "github.com/go-shiori/go-readability"

	"github.com/lysyi3m/intel-comb/app/event"
)

const webContentLimit = 15000

// WebFetcher downloads an arbitrary news page and extracts its readable
// article text. Like feeds, a web page is a single-page source.
type WebFetcher struct {
	client *resty.Client
}

func NewWebFetcher(client *resty.Client) *WebFetcher {
	return &WebFetcher{client: client}
}

func (f *WebFetcher) FetchPage(ctx context.Context, pageURL, _ string) (*Page, error) {
	body, err := fetchBody(ctx, f.client, pageURL)
	if err != nil {
		return nil, err
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, &Error{URL: pageURL, Err: fmt.Errorf("invalid url: %w", err)}
	}

	article, err := readability.FromReader(strings.NewReader(body), parsedURL)
	if err != nil {
		return nil, &Error{URL: pageURL, Err: fmt.Errorf("extract article: %w", err)}
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return nil, &Error{URL: pageURL, Err: fmt.Errorf("no readable content")}
	}
	if len(text) > webContentLimit {
		text = truncateAtRune(text, webContentLimit)
	}

	name := article.Title
	if name == "" {
		name = sourceName(pageURL)
	}

	return &Page{
		RawContent:   fmt.Sprintf("SOURCE: %s\n\n%s", pageURL, text),
		SourceName:   name,
		MessageCount: 1,
		Kind:         event.SourceKindWeb,
	}, nil
}

// truncateAtRune cuts s to at most limit bytes without splitting a
// multi-byte rune at the cut point.
func truncateAtRune(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

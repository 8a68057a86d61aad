package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/intel-comb/app/event"
)

const rssItemLimit = 50

// RSSFetcher pulls the current feed contents. Feeds expose no history
// pagination, so every fetch is a single page and NextCursor stays
// empty.
type RSSFetcher struct {
	parser *gofeed.Parser
}

func NewRSSFetcher(timeout time.Duration, userAgent string) *RSSFetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &RSSFetcher{parser: parser}
}

func (f *RSSFetcher) FetchPage(ctx context.Context, url, _ string) (*Page, error) {
	feed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, &Error{URL: url, Err: fmt.Errorf("parse feed: %w", err)}
	}
	name := feed.Title
	if name == "" {
		name = sourceName(url)
	}
	if len(feed.Items) == 0 {
		// An empty feed is exhausted history, not a fetch failure.
		return &Page{SourceName: name, Kind: event.SourceKindRSS}, nil
	}

	items := feed.Items
	if len(items) > rssItemLimit {
		items = items[:rssItemLimit]
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		date := item.Published
		if item.PublishedParsed != nil {
			date = item.PublishedParsed.UTC().Format("2006-01-02")
		}
		body := item.Description
		if body == "" {
			body = item.Content
		}
		lines = append(lines, fmt.Sprintf("ID: %s | DATE: %s | MSG: %s",
			coalesce(item.GUID, item.Link), date,
			strings.TrimSpace(item.Title+" - "+stripTags(body))))
	}

	return &Page{
		RawContent:   fmt.Sprintf("SOURCE: %s\n\n%s", url, strings.Join(lines, "\n")),
		SourceName:   name,
		MessageCount: len(lines),
		Kind:         event.SourceKindRSS,
	}, nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// stripTags drops HTML markup from feed descriptions, keeping the text
// between tags.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

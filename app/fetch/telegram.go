package fetch

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/lysyi3m/intel-comb/app/event"
)

// TelegramFetcher scrapes public channel history through the t.me/s/
// preview pages. Pagination walks backwards with ?before=<message id>,
// and the cursor carries "<sourceName>/<minID>" between pages.
type TelegramFetcher struct {
	client *resty.Client
}

func NewTelegramFetcher(client *resty.Client) *TelegramFetcher {
	return &TelegramFetcher{client: client}
}

func (f *TelegramFetcher) FetchPage(ctx context.Context, url, cursor string) (*Page, error) {
	pageURL := previewURL(url)

	name := sourceName(pageURL)
	if beforeID := cursorMinID(cursor); beforeID != "" {
		sep := "?"
		if strings.Contains(pageURL, "?") {
			sep = "&"
		}
		pageURL = pageURL + sep + "before=" + beforeID
	}

	body, err := fetchBody(ctx, f.client, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, &Error{URL: url, Err: fmt.Errorf("parse channel page: %w", err)}
	}

	var lines []string
	minID := 0
	doc.Find(".tgme_widget_message").Each(func(_ int, msg *goquery.Selection) {
		text := strings.TrimSpace(msg.Find(".tgme_widget_message_text").Text())
		if text == "" {
			return
		}

		date, _ := msg.Find("time[datetime]").Attr("datetime")
		id := 0
		if post, ok := msg.Attr("data-post"); ok {
			if idx := strings.LastIndex(post, "/"); idx >= 0 {
				id, _ = strconv.Atoi(post[idx+1:])
			}
		}
		if id > 0 && (minID == 0 || id < minID) {
			minID = id
		}

		lines = append(lines, fmt.Sprintf("ID: %d | DATE: %s | MSG: %s", id, date, text))
	})

	if len(lines) == 0 {
		// Paging past the oldest message yields an empty preview page.
		// That is the natural end of history, not a fetch failure.
		return &Page{SourceName: name, Kind: event.SourceKindTelegram}, nil
	}

	page := &Page{
		RawContent:   fmt.Sprintf("SOURCE: %s\n\n%s", url, strings.Join(lines, "\n")),
		SourceName:   name,
		MessageCount: len(lines),
		Kind:         event.SourceKindTelegram,
	}
	if minID > 0 {
		page.NextCursor = fmt.Sprintf("%s/%d", name, minID)
	}
	return page, nil
}

// previewURL rewrites a channel URL to its scrapeable t.me/s/ form.
func previewURL(url string) string {
	if strings.Contains(url, "t.me/s/") {
		return url
	}
	return strings.Replace(url, "t.me/", "t.me/s/", 1)
}

// cursorMinID extracts the oldest seen message id from a
// "<sourceName>/<minID>" cursor. Bare numeric cursors are accepted too.
func cursorMinID(cursor string) string {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return ""
	}
	if idx := strings.LastIndex(cursor, "/"); idx >= 0 {
		cursor = cursor[idx+1:]
	}
	if _, err := strconv.Atoi(cursor); err != nil {
		return ""
	}
	return cursor
}

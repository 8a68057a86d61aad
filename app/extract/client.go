package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lysyi3m/intel-comb/app/event"
)

// Client talks to the external analysis service that turns raw source
// text into structured event records.
type Client struct {
	http *resty.Client
}

type extractRequest struct {
	Content string `json:"content"`
	Kind    string `json:"kind"`
	Region  string `json:"region"`
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		httpClient.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &Client{http: httpClient}
}

// Extract submits one page of raw source content and returns the event
// records the service identified. The source URL is read back out of
// the content's SOURCE header and stamped on every record.
func (c *Client) Extract(ctx context.Context, content, kind, region string) ([]event.Record, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(extractRequest{Content: content, Kind: kind, Region: region}).
		Post("/v1/extract")
	if err != nil {
		if IsRateLimit(err) {
			return nil, &RateLimitError{Err: err}
		}
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	if resp.StatusCode() == 429 {
		return nil, &RateLimitError{Err: fmt.Errorf("HTTP 429")}
	}
	if !resp.IsSuccess() {
		err := fmt.Errorf("extraction service returned HTTP %d: %s", resp.StatusCode(), resp.String())
		if IsRateLimit(err) {
			return nil, &RateLimitError{Err: err}
		}
		return nil, err
	}

	records, err := decodeRecords(resp.String())
	if err != nil {
		return nil, err
	}

	sourceURL := contentSourceURL(content)
	for i := range records {
		if records[i].OriginURL == "" {
			records[i].OriginURL = sourceURL
		}
	}
	return records, nil
}

// decodeRecords parses the service response, repairing truncated or
// fenced JSON before giving up.
func decodeRecords(body string) ([]event.Record, error) {
	repaired := repairJSON(body)

	var records []event.Record
	if err := json.Unmarshal([]byte(repaired), &records); err == nil {
		return records, nil
	}

	// Some responses wrap the array in an envelope object.
	var envelope struct {
		Events []event.Record `json:"events"`
	}
	if err := json.Unmarshal([]byte(repaired), &envelope); err == nil && envelope.Events != nil {
		return envelope.Events, nil
	}

	return nil, fmt.Errorf("unparseable extraction response: %.120s", body)
}

// contentSourceURL reads the URL out of the "SOURCE: <url>" header
// prepended to every fetched page.
func contentSourceURL(content string) string {
	const prefix = "SOURCE: "
	if !strings.HasPrefix(content, prefix) {
		return ""
	}
	line := content[len(prefix):]
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}

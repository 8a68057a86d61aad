package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(serverURL string) *Client {
	return NewClient(serverURL, "test-key", 5*time.Second)
}

func TestExtract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/extract" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["kind"] != "telegram" {
			t.Errorf("kind not forwarded, got %q", req["kind"])
		}
		w.Write([]byte(`[{"title": "Drone strike", "locationName": "Abadan", "lat": 30.3, "lng": 48.3}]`))
	}))
	defer server.Close()

	records, err := newTestClient(server.URL).Extract(context.Background(),
		"SOURCE: https://t.me/intelwire\n\nID: 1 | DATE: 2026-08-20 | MSG: strike", "telegram", "Middle East")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Title != "Drone strike" {
		t.Errorf("unexpected title %q", records[0].Title)
	}
	if records[0].OriginURL != "https://t.me/intelwire" {
		t.Errorf("origin url not stamped from content header, got %q", records[0].OriginURL)
	}
}

func TestExtractEnvelopeResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"events": [{"title": "A"}, {"title": "B"}]}`))
	}))
	defer server.Close()

	records, err := newTestClient(server.URL).Extract(context.Background(), "SOURCE: x\n\ntext", "web", "")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records from envelope, got %d", len(records))
	}
}

func TestExtractRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Extract(context.Background(), "content", "web", "")
	if err == nil {
		t.Fatal("expected error")
	}
	var rateLimited *RateLimitError
	if !errors.As(err, &rateLimited) {
		t.Errorf("expected RateLimitError, got %T: %v", err, err)
	}
}

func TestEstimateCrowd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/crowd" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"minEstimate": 500, "maxEstimate": 1100, "confidence": "high",
			"crowdType": "protest", "locationName": "Azadi Square", "lat": 35.7, "lng": 51.3,
			"description": "Dense crowd filling the square.", "hazards": ["tear gas"]}`))
	}))
	defer server.Close()

	estimate, err := newTestClient(server.URL).EstimateCrowd(context.Background(), "aW1n", "image/jpeg", "")
	if err != nil {
		t.Fatalf("EstimateCrowd() error: %v", err)
	}
	if estimate.MaxEstimate != 1100 {
		t.Errorf("unexpected estimate: %+v", estimate)
	}
}

func TestIsRateLimit(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{fmt.Errorf("HTTP 429"), true},
		{fmt.Errorf("quota exceeded for requests"), true},
		{fmt.Errorf("RESOURCE_EXHAUSTED"), true},
		{fmt.Errorf("connection refused"), false},
		{&RateLimitError{Err: fmt.Errorf("x")}, true},
	}
	for _, tt := range tests {
		if got := IsRateLimit(tt.err); got != tt.expected {
			t.Errorf("IsRateLimit(%v) = %v, expected %v", tt.err, got, tt.expected)
		}
	}
}

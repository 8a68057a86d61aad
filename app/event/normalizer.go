package event

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultTitle        = "Unknown Event"
	defaultLocationName = "Unknown"

	// DefaultReliabilityScore is assigned when the extraction service
	// omits a score. Matches the trust level given to auto-extracted
	// records at ingestion.
	DefaultReliabilityScore = 7

	// MaxReliabilityScore is the analyst-confirmed trust ceiling.
	MaxReliabilityScore = 10
)

// Normalize coerces a loosely-typed extracted record into a fully
// defaulted Event and eagerly assigns a fresh identifier. Malformed
// fields are silently defaulted rather than rejected: partial
// intelligence is better than a dropped event. The assigned identifier
// is discarded later if the candidate merges into an existing event.
func Normalize(r Record) Event {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = uuid.NewString()
	}

	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = defaultTitle
	}

	location := strings.TrimSpace(r.LocationName)
	if location == "" {
		location = defaultLocationName
	}

	date := strings.TrimSpace(r.Date)
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	score := coerceInt(r.ReliabilityScore)
	if score <= 0 {
		score = DefaultReliabilityScore
	}
	if score > MaxReliabilityScore {
		score = MaxReliabilityScore
	}

	return Event{
		ID:               id,
		Title:            title,
		Summary:          r.Summary,
		Category:         ParseCategory(strings.TrimSpace(r.Category)),
		Date:             date,
		LocationName:     location,
		Lat:              coerceFloat(r.Lat),
		Lng:              coerceFloat(r.Lng),
		ExternalSourceID: strings.TrimSpace(r.ExternalSourceID),
		OriginURL:        strings.TrimSpace(r.OriginURL),
		CrowdCount:       coerceCount(r.CrowdCount),
		CivilianCasualties: Casualties{
			Dead:     coerceCount(r.CivilianCasualties["dead"]),
			Injured:  coerceCount(r.CivilianCasualties["injured"]),
			Detained: coerceCount(r.CivilianCasualties["detained"]),
		},
		SecurityCasualties: SecurityCasualties{
			Dead:    coerceCount(r.SecurityCasualties["dead"]),
			Injured: coerceCount(r.SecurityCasualties["injured"]),
		},
		ReliabilityScore:  score,
		ReliabilityReason: r.ReliabilityReason,
		IsCrowdDerived:    r.IsCrowdDerived,
		IsManualOrigin:    r.IsManualOrigin,
	}
}

func coerceFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func coerceInt(v any) int {
	return int(math.Round(coerceFloat(v)))
}

// coerceCount coerces to a non-negative integer; negative or malformed
// values collapse to zero ("no data").
func coerceCount(v any) int {
	n := coerceInt(v)
	if n < 0 {
		return 0
	}
	return n
}

package event

import "strings"

// Category classifies an archived incident. Values match the persisted
// JSON representation and are fixed at first insertion.
type Category string

const (
	CategoryMilitary    Category = "Military"
	CategoryPolitical   Category = "Political"
	CategoryCyber       Category = "Cyber"
	CategoryTerrorism   Category = "Terrorism"
	CategoryCivilUnrest Category = "Civil Unrest"
	CategoryOther       Category = "Other"
)

// ParseCategory maps a free-form category string to a known Category,
// falling back to CategoryOther for anything unrecognized.
func ParseCategory(s string) Category {
	switch Category(s) {
	case CategoryMilitary, CategoryPolitical, CategoryCyber,
		CategoryTerrorism, CategoryCivilUnrest, CategoryOther:
		return Category(s)
	default:
		return CategoryOther
	}
}

// SourceKind identifies the kind of origin a candidate was derived from.
type SourceKind string

const (
	SourceKindTelegram SourceKind = "telegram"
	SourceKindRSS      SourceKind = "rss"
	SourceKindWeb      SourceKind = "web"
	SourceKindManual   SourceKind = "manual"
)

// DetectSourceKind guesses the source kind from a URL. Telegram
// channels are recognized by host; feed-looking paths map to rss;
// anything else is treated as a plain web page.
func DetectSourceKind(url string) SourceKind {
	switch {
	case strings.Contains(url, "t.me/"):
		return SourceKindTelegram
	case strings.Contains(url, "/feed") || strings.Contains(url, "/rss") ||
		strings.HasSuffix(url, ".xml") || strings.HasSuffix(url, ".atom"):
		return SourceKindRSS
	default:
		return SourceKindWeb
	}
}

// Casualties holds civilian casualty counts. Each sub-field is
// monotonically non-decreasing across merges.
type Casualties struct {
	Dead     int `json:"dead"`
	Injured  int `json:"injured"`
	Detained int `json:"detained"`
}

// SecurityCasualties holds security-forces casualty counts.
type SecurityCasualties struct {
	Dead    int `json:"dead"`
	Injured int `json:"injured"`
}

// Event is an archived, geolocated incident. The JSON tags define the
// persisted archive format and must round-trip losslessly through
// export/import.
type Event struct {
	ID                 string             `json:"id"`
	Title              string             `json:"title"`
	Summary            string             `json:"summary"`
	Category           Category           `json:"category"`
	Date               string             `json:"date"` // calendar day, YYYY-MM-DD
	LocationName       string             `json:"locationName"`
	Lat                float64            `json:"lat"`
	Lng                float64            `json:"lng"`
	ExternalSourceID   string             `json:"sourceId,omitempty"`
	OriginURL          string             `json:"sourceUrl,omitempty"`
	CrowdCount         int                `json:"crowdCount,omitempty"`
	CivilianCasualties Casualties         `json:"casualties"`
	SecurityCasualties SecurityCasualties `json:"securityCasualties"`
	ReliabilityScore   int                `json:"reliabilityScore,omitempty"`
	ReliabilityReason  string             `json:"reliabilityReason,omitempty"`
	IsCrowdDerived     bool               `json:"isCrowdDerived,omitempty"`
	IsManualOrigin     bool               `json:"isManualOrigin,omitempty"`
}

// HasCrowdData reports whether the event carries a crowd estimate.
// A zero count means "no crowd data", not an observed empty crowd.
func (e *Event) HasCrowdData() bool {
	return e.CrowdCount > 0
}

// Record is the loosely-typed candidate shape produced by the external
// extraction service. Numeric fields are declared as any because the
// upstream model emits numbers, numeric strings or nothing at all;
// Normalize coerces them.
type Record struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Summary            string         `json:"summary"`
	Category           string         `json:"category"`
	Date               string         `json:"date"`
	LocationName       string         `json:"locationName"`
	Lat                any            `json:"lat"`
	Lng                any            `json:"lng"`
	ExternalSourceID   string         `json:"sourceId"`
	OriginURL          string         `json:"sourceUrl"`
	CrowdCount         any            `json:"crowdCount"`
	CivilianCasualties map[string]any `json:"casualties"`
	SecurityCasualties map[string]any `json:"securityCasualties"`
	ReliabilityScore   any            `json:"reliabilityScore"`
	ReliabilityReason  string         `json:"reliabilityReason"`
	IsCrowdDerived     bool           `json:"isCrowdDerived"`
	IsManualOrigin     bool           `json:"isManualOrigin"`
}

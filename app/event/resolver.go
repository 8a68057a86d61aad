package event

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Spatial proximity thresholds in degrees. The tight threshold is
// roughly 200m; the loose threshold (manual submissions only) roughly
// 5km.
const (
	tightProximityDeg = 0.002
	looseProximityDeg = 0.05
)

// Resolver decides whether a candidate refers to an already-archived
// event. The match test is a short-circuiting cascade; the first
// archived event in iteration order that passes any tier wins. There is
// no cross-event scoring: extraction is re-run over overlapping source
// content on every sync cycle, so the cascade deliberately favors
// merging over duplicating.
type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the index of the best-matching archived event, or -1
// when the candidate should become a new entry. originURL is the source
// attribution of the current batch; when empty, external-source-id
// matches are accepted across sources.
func (r *Resolver) Resolve(events []Event, candidate Event, originURL string) int {
	for i := range events {
		if r.matches(&events[i], &candidate, originURL) {
			return i
		}
	}
	return -1
}

func (r *Resolver) matches(existing, candidate *Event, originURL string) bool {
	// Tier 1: identifier equality. Only relevant when re-processing
	// already-archived data, e.g. import of an exported archive.
	if existing.ID == candidate.ID {
		return true
	}

	// Tier 2: external-source-id equality. Guarded against the same
	// externally-assigned id colliding across unrelated sources: the
	// ids only match when the batch is source-agnostic, both events
	// share an origin, or either has no origin recorded.
	if existing.ExternalSourceID != "" && candidate.ExternalSourceID != "" &&
		existing.ExternalSourceID == candidate.ExternalSourceID {
		if originURL == "" || existing.OriginURL == "" || candidate.OriginURL == "" ||
			existing.OriginURL == candidate.OriginURL {
			return true
		}
	}

	// Temporal precision is day-level; differing calendar days cannot
	// match via any heuristic tier.
	if existing.Date != candidate.Date {
		return false
	}

	// Tier 3a: exact textual match.
	if existing.Title == candidate.Title && existing.LocationName == candidate.LocationName {
		return true
	}

	// Tier 3b: spatial proximity.
	latDiff := math.Abs(existing.Lat - candidate.Lat)
	lngDiff := math.Abs(existing.Lng - candidate.Lng)
	if latDiff < tightProximityDeg && lngDiff < tightProximityDeg {
		return true
	}
	// Manual submissions are presumed corrections of an approximate
	// auto-extracted position for the same category of incident, so a
	// looser radius applies.
	if candidate.IsManualOrigin &&
		latDiff < looseProximityDeg && lngDiff < looseProximityDeg &&
		existing.Category == candidate.Category {
		return true
	}

	// Tier 3c: fuzzy textual match. Locations contain each other and
	// normalized titles contain each other. Short location names can
	// false-positive here ("Iran" is inside "Northern Iran border");
	// that looseness is intentional given the non-destructive merge.
	el := strings.TrimSpace(existing.LocationName)
	cl := strings.TrimSpace(candidate.LocationName)
	if strings.Contains(el, cl) || strings.Contains(cl, el) {
		et := NormalizeTitle(existing.Title)
		ct := NormalizeTitle(candidate.Title)
		if strings.Contains(et, ct) || strings.Contains(ct, et) {
			return true
		}
	}

	return false
}

// titleRunes covers lowercase latin alphanumerics plus the Arabic
// Unicode block (U+0600-U+06FF) used by Farsi source material.
var titleRunes = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0030, Hi: 0x0039, Stride: 1}, // 0-9
		{Lo: 0x005f, Hi: 0x005f, Stride: 1}, // _
		{Lo: 0x0061, Hi: 0x007a, Stride: 1}, // a-z
		{Lo: 0x0600, Hi: 0x06ff, Stride: 1}, // Arabic / Farsi
	},
	LatinOffset: 3,
}

var titleTransformer = runes.Remove(runes.NotIn(titleRunes))

// NormalizeTitle lowercases a title and strips every rune outside the
// latin alphanumeric and Farsi/Arabic ranges, so re-extracted titles
// with divergent punctuation or spacing still compare equal.
func NormalizeTitle(s string) string {
	lowered := strings.ToLower(s)
	out, _, err := transform.String(titleTransformer, lowered)
	if err != nil {
		return lowered
	}
	return out
}

package event

import "strings"

// CrowdTitlePrefix marks auto-generated crowd-count placeholder titles.
// Such a title never overwrites a richer extracted title during merge.
const CrowdTitlePrefix = "Crowd:"

const reasonSeparator = " | "

// Merge reconciles an incoming candidate into an existing archived
// event. It is a pure, total function: every field is resolved in one
// pass by a named strategy and no combination of inputs fails.
//
// A "manual crowd override" (a candidate that is both crowd-derived
// and operator-submitted) is treated as ground truth for position,
// crowd count and trust. Identity fields (id, date, category) are never
// altered.
func Merge(existing, incoming Event) Event {
	override := incoming.IsCrowdDerived && incoming.IsManualOrigin

	merged := existing
	merged.ExternalSourceID = fillIfEmpty(existing.ExternalSourceID, incoming.ExternalSourceID)

	if override {
		merged.Lat = incoming.Lat
		merged.Lng = incoming.Lng
		merged.LocationName = incoming.LocationName
		merged.CrowdCount = incoming.CrowdCount
		merged.ReliabilityScore = MaxReliabilityScore
		merged.ReliabilityReason = "VALIDATED by Analyst: " + incoming.Summary
		merged.Title = incoming.Title
		merged.Summary = incoming.Summary
	} else {
		// Auto-extracted positions are not allowed to drift on every
		// re-sync; spatial fields stay put.
		merged.CrowdCount = maxInt(existing.CrowdCount, incoming.CrowdCount)
		merged.ReliabilityScore = maxInt(existing.ReliabilityScore, incoming.ReliabilityScore)
		merged.ReliabilityReason = concatIfDifferent(existing.ReliabilityReason, incoming.ReliabilityReason)
		merged.Title = preferNonCrowdTitle(existing.Title, incoming.Title)
		merged.Summary = longerOf(existing.Summary, incoming.Summary)
	}

	merged.CivilianCasualties = Casualties{
		Dead:     maxInt(existing.CivilianCasualties.Dead, incoming.CivilianCasualties.Dead),
		Injured:  maxInt(existing.CivilianCasualties.Injured, incoming.CivilianCasualties.Injured),
		Detained: maxInt(existing.CivilianCasualties.Detained, incoming.CivilianCasualties.Detained),
	}
	merged.SecurityCasualties = SecurityCasualties{
		Dead:    maxInt(existing.SecurityCasualties.Dead, incoming.SecurityCasualties.Dead),
		Injured: maxInt(existing.SecurityCasualties.Injured, incoming.SecurityCasualties.Injured),
	}

	// Once an event is known to have crowd evidence, that is never lost.
	merged.IsCrowdDerived = existing.IsCrowdDerived || incoming.IsCrowdDerived

	return merged
}

func fillIfEmpty(current, next string) string {
	if current != "" {
		return current
	}
	return next
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func longerOf(a, b string) string {
	if len(b) > len(a) {
		return b
	}
	return a
}

// concatIfDifferent joins two reason strings with a separator,
// stripping the accidental leading separator when the first is empty.
func concatIfDifferent(a, b string) string {
	if a == b {
		return a
	}
	return strings.TrimPrefix(a+reasonSeparator+b, reasonSeparator)
}

// preferNonCrowdTitle keeps the incoming title except when it is a
// crowd-count placeholder and the existing title is not.
func preferNonCrowdTitle(existing, incoming string) string {
	if strings.HasPrefix(incoming, CrowdTitlePrefix) && !strings.HasPrefix(existing, CrowdTitlePrefix) {
		return existing
	}
	return incoming
}

// Package policy holds the pure ranking and visibility rules applied to
// pipeline candidates before they are persisted as suggestions.
package policy

import "github.com/contentpulse/backend/internal/domain"

// Per-category rank constants. Categories do not overlap so cross-category
// ordering stays stable regardless of insertion order.
var rankBases = map[domain.SourceType]float64{
	domain.SourceTrendingTopic: 100,
	domain.SourceKeywordG1:     80,
	domain.SourceKeywordG2:     70,
	domain.SourceMediumTag:     60,
}

const rankStep = 1.0

// Placement is the rank and visibility assigned to one candidate.
type Placement struct {
	Rank       float64
	Visibility domain.Visibility
}

// Assign maps a candidate's position within a same-source batch to its rank
// and visibility tier. Deterministic and side-effect free.
//
// Rank decreases strictly with position. Guest visibility applies only to
// trend-sourced items ahead of the cutoff; meme and slop concepts are always
// subscriber-only.
func Assign(sourceType domain.SourceType, kind domain.SuggestionKind, position, visibilityCutoff int) Placement {
	base, ok := rankBases[sourceType]
	if !ok {
		base = 50
	}

	placement := Placement{
		Rank:       base - float64(position)*rankStep,
		Visibility: domain.VisibilitySubscriber,
	}

	if kind == domain.KindMemeConcept || kind == domain.KindSlopConcept {
		return placement
	}
	if sourceType == domain.SourceTrendingTopic && position < visibilityCutoff {
		placement.Visibility = domain.VisibilityGuest
	}
	return placement
}

// Package matcher ranks open fee expectations against an unmatched bank
// transaction and decides between auto-matching, suggesting, and giving up.
//
// Auto-matching requires a uniquely high-confidence candidate: at or above
// the auto-confirm threshold with no runner-up inside the ambiguity margin.
// Everything else is returned as a ranked suggestion list, including
// subset-sum combinations of 2–3 fees for collective payments.
//
// Ranking is deterministic: confidence descending, then earlier due date,
// then child last name, then fee ID.
package matcher

import (
	"sort"
	"strings"

	"github.com/kitaverein/recon-backend/internal/domain/scorer"
	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

// Matcher matches transactions with fee expectations
type Matcher struct {
	config Config
	scorer *scorer.Scorer
}

// NewMatcher creates a new matcher with the given config and scorer
func NewMatcher(config Config, sc *scorer.Scorer) *Matcher {
	return &Matcher{config: config, scorer: sc}
}

// Match scores the transaction against all open fees and classifies the
// outcome. Pure: the caller applies auto-matches and persists suggestions.
func (m *Matcher) Match(tx *storage.BankTransaction, openFees []*storage.FeeExpectation, ctx scorer.Context) Outcome {
	var candidates []Candidate
	for _, fee := range openFees {
		if fee.RemainingCents() == 0 {
			continue
		}
		confidence, reason := m.scorer.Score(tx, fee, ctx)
		if confidence < m.config.SuggestionFloor {
			continue
		}
		candidates = append(candidates, Candidate{Fee: fee, Confidence: confidence, Reason: reason})
	}

	sortCandidates(candidates)

	combined := m.findCombined(tx, candidates)

	if auto := m.autoCandidate(candidates); auto != nil {
		return Outcome{Kind: OutcomeAutoMatched, Auto: auto}
	}

	suggestions := make([]Suggestion, 0, len(candidates)+len(combined))
	for _, c := range candidates {
		suggestions = append(suggestions, Suggestion{
			Fees:       []*storage.FeeExpectation{c.Fee},
			Confidence: c.Confidence,
			Reason:     c.Reason,
		})
	}
	suggestions = append(suggestions, combined...)
	sortSuggestions(suggestions)

	if len(suggestions) == 0 {
		return Outcome{Kind: OutcomeUnmatchable}
	}

	return Outcome{Kind: OutcomeSuggested, Suggestions: suggestions}
}

// autoCandidate returns the top candidate when it alone clears the
// auto-confirm threshold and no runner-up is within the ambiguity margin.
func (m *Matcher) autoCandidate(candidates []Candidate) *Candidate {
	if len(candidates) == 0 {
		return nil
	}

	top := candidates[0]
	if top.Confidence < m.config.AutoConfirmThreshold {
		return nil
	}

	if len(candidates) > 1 {
		second := candidates[1]
		if top.Confidence-second.Confidence < m.config.AmbiguityMargin {
			// Genuine ambiguity, a human decides
			return nil
		}
	}

	return &top
}

// sortCandidates orders candidates deterministically: confidence desc,
// due date asc, child last name asc, fee ID asc.
func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if !a.Fee.DueOn.Equal(b.Fee.DueOn) {
			return a.Fee.DueOn.Before(b.Fee.DueOn)
		}
		if la, lb := lastName(a.Fee.ChildName), lastName(b.Fee.ChildName); la != lb {
			return la < lb
		}
		return a.Fee.ID < b.Fee.ID
	})
}

// sortSuggestions applies the same ordering to suggestions, keyed on each
// suggestion's first fee.
func sortSuggestions(suggestions []Suggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		fa, fb := a.Fees[0], b.Fees[0]
		if !fa.DueOn.Equal(fb.DueOn) {
			return fa.DueOn.Before(fb.DueOn)
		}
		if la, lb := lastName(fa.ChildName), lastName(fb.ChildName); la != lb {
			return la < lb
		}
		return fa.ID < fb.ID
	})
}

func lastName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

package matcher

import (
	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

// findCombined searches for collective payments: subsets of 2 to
// SubsetMaxSize candidate fees whose remaining amounts sum to the
// transaction amount within SubsetToleranceCents.
//
// The pool is capped at the top SubsetCandidatePool candidates by
// individual score, and only candidates with payer-derived evidence
// participate, which keeps the search bounded and tied to one payer.
func (m *Matcher) findCombined(tx *storage.BankTransaction, candidates []Candidate) []Suggestion {
	var pool []Candidate
	for _, c := range candidates {
		if c.Reason == storage.ReasonManual {
			continue // no payer evidence, not part of a collective payment
		}
		pool = append(pool, c)
		if len(pool) == m.config.SubsetCandidatePool {
			break
		}
	}
	if len(pool) < 2 {
		return nil
	}

	var suggestions []Suggestion
	maxSize := m.config.SubsetMaxSize
	if maxSize > len(pool) {
		maxSize = len(pool)
	}

	var indices []int
	var search func(start int)
	search = func(start int) {
		if len(indices) >= 2 {
			if suggestion, ok := m.subsetSuggestion(tx, pool, indices); ok {
				suggestions = append(suggestions, suggestion)
			}
		}
		if len(indices) == maxSize {
			return
		}
		for i := start; i < len(pool); i++ {
			indices = append(indices, i)
			search(i + 1)
			indices = indices[:len(indices)-1]
		}
	}
	search(0)

	sortSuggestions(suggestions)
	if len(suggestions) > m.config.MaxCombined {
		suggestions = suggestions[:m.config.MaxCombined]
	}

	return suggestions
}

// subsetSuggestion checks one subset's sum against the transaction amount
// and derives the combined confidence from sum exactness and the average
// constituent score.
func (m *Matcher) subsetSuggestion(tx *storage.BankTransaction, pool []Candidate, indices []int) (Suggestion, bool) {
	var sum int64
	var scoreSum float64
	fees := make([]*storage.FeeExpectation, 0, len(indices))

	for _, idx := range indices {
		sum += pool[idx].Fee.RemainingCents()
		scoreSum += pool[idx].Confidence
		fees = append(fees, pool[idx].Fee)
	}

	gap := sum - tx.AmountCents
	if gap < 0 {
		gap = -gap
	}
	if gap > m.config.SubsetToleranceCents {
		return Suggestion{}, false
	}

	// Exact subset sums are strong evidence on their own; the constituents'
	// individual scores sharpen or soften that. An exact-sum combination
	// outranks its constituents taken singly, which cannot explain the
	// full amount.
	exactness := 1.0 - float64(gap)/float64(m.config.SubsetToleranceCents+1)
	avgScore := scoreSum / float64(len(indices))
	confidence := 0.45*exactness + 0.55*avgScore
	if confidence > 0.99 {
		confidence = 0.99
	}

	return Suggestion{
		Fees:       fees,
		Confidence: confidence,
		Reason:     storage.ReasonCombined,
	}, true
}

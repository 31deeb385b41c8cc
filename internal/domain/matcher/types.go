package matcher

import (
	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

// Config holds matcher thresholds
type Config struct {
	AutoConfirmThreshold float64 // Minimum confidence for auto-applying a match (default: 0.80)
	AmbiguityMargin      float64 // A runner-up within this margin blocks auto-matching (default: 0.05)
	SuggestionFloor      float64 // Candidates below this are dropped entirely (default: 0.10)
	SubsetMaxSize        int     // Max fees per collective-payment subset (default: 3)
	SubsetCandidatePool  int     // Subset search pool, top-N by individual score (default: 12)
	SubsetToleranceCents int64   // Allowed gap between subset sum and amount (default: 1)
	MaxCombined          int     // Max combined suggestions returned (default: 5)
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		AutoConfirmThreshold: 0.80,
		AmbiguityMargin:      0.05,
		SuggestionFloor:      0.10,
		SubsetMaxSize:        3,
		SubsetCandidatePool:  12,
		SubsetToleranceCents: 1,
		MaxCombined:          5,
	}
}

// OutcomeKind classifies a match outcome
type OutcomeKind string

const (
	OutcomeAutoMatched OutcomeKind = "auto_matched"
	OutcomeSuggested   OutcomeKind = "suggested"
	OutcomeUnmatchable OutcomeKind = "unmatchable"
)

// Candidate is one scored (fee, transaction) pairing
type Candidate struct {
	Fee        *storage.FeeExpectation
	Confidence float64
	Reason     storage.MatchReason
}

// Suggestion is a ranked match proposal: a single fee, or a set of fees
// whose amounts together cover the transaction (collective payment).
type Suggestion struct {
	Fees       []*storage.FeeExpectation
	Confidence float64
	Reason     storage.MatchReason
}

// Outcome is the result of matching one transaction
type Outcome struct {
	Kind        OutcomeKind
	Auto        *Candidate   // set when Kind == OutcomeAutoMatched
	Suggestions []Suggestion // set when Kind == OutcomeSuggested
}

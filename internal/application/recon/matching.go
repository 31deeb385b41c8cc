package recon

import (
	"errors"

	"github.com/kitaverein/recon-backend/internal/domain/matcher"
	"github.com/kitaverein/recon-backend/internal/domain/scorer"
	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

// SuggestedMatch is one ranked proposal for a transaction, covering one fee
// or a subset of fees that together add up to the amount
type SuggestedMatch struct {
	ExpectationIDs []int64             `json:"expectation_ids"`
	ChildNames     []string            `json:"child_names"`
	AmountCents    int64               `json:"amount_cents"`
	Confidence     float64             `json:"confidence"`
	Reason         storage.MatchReason `json:"reason"`
}

// SuggestionReport carries the open suggestions of one unmatched transaction
type SuggestionReport struct {
	TransactionID int64            `json:"transaction_id"`
	PayerName     string           `json:"payer_name"`
	AmountCents   int64            `json:"amount_cents"`
	Candidates    []SuggestedMatch `json:"candidates"`
}

// matchOne runs the matcher for a single transaction and applies an
// auto-match when there is one. Returns how many allocations the auto-match
// created, or the suggestion report when nothing was applied.
//
// A conflict from the allocation (another admin got there first) is not an
// error: the transaction is simply no longer ours to match.
func (s *Service) matchOne(tx *storage.BankTransaction, openFees []*storage.FeeExpectation, ctx scorer.Context) (created int, report *SuggestionReport, err error) {
	outcome := s.matcher.Match(tx, openFees, ctx)

	switch outcome.Kind {
	case matcher.OutcomeAutoMatched:
		created, err := s.applyAutoMatch(tx, outcome.Auto)
		if err != nil {
			if errors.Is(err, storage.ErrConflict) {
				s.logger.Info("auto-match lost to a concurrent allocation", "transaction_id", tx.ID)
				return 0, nil, nil
			}
			return 0, nil, err
		}
		return created, nil, nil

	case matcher.OutcomeSuggested:
		return 0, &SuggestionReport{
			TransactionID: tx.ID,
			PayerName:     tx.PayerName,
			AmountCents:   tx.AmountCents,
			Candidates:    suggestionCandidates(outcome.Suggestions),
		}, nil

	default:
		return 0, nil, nil
	}
}

// applyAutoMatch allocates the winning candidate: the smaller of the fee's
// and the transaction's remaining amount. An overpaying transaction keeps
// its surplus unallocated and is flagged by the anomaly pass. Returns the
// number of allocations created.
func (s *Service) applyAutoMatch(tx *storage.BankTransaction, auto *matcher.Candidate) (int, error) {
	amount := auto.Fee.RemainingCents()
	if tx.RemainingCents() < amount {
		amount = tx.RemainingCents()
	}
	if amount == 0 {
		return 0, nil
	}

	unlock := s.lockTransaction(tx.ID)
	defer unlock()

	result, err := s.repo.Allocate(tx.ID, []storage.AllocationSplit{
		{ExpectationID: auto.Fee.ID, AmountCents: amount},
	}, auto.Reason, false)
	if err != nil {
		return 0, err
	}

	// The candidate points into the caller's open-fee list; updating it here
	// keeps the rest of the batch from re-matching the same fee.
	auto.Fee.MatchedCents += amount
	auto.Fee.Paid = auto.Fee.MatchedCents >= auto.Fee.AmountCents

	s.logger.Info("auto-matched",
		"transaction_id", tx.ID,
		"expectation_id", auto.Fee.ID,
		"amount_cents", amount,
		"confidence", auto.Confidence,
		"reason", auto.Reason)

	s.afterAllocation(result)
	return result.Created, nil
}

// SuggestionsForTransaction recomputes the ranked suggestions of one
// transaction on demand, without applying anything.
func (s *Service) SuggestionsForTransaction(txID int64) (*SuggestionReport, error) {
	tx, err := s.repo.GetTransaction(txID)
	if err != nil {
		return nil, err
	}
	if tx.Ignored {
		return nil, NewValidationError("transaction is ignored")
	}
	if tx.RemainingCents() == 0 {
		return &SuggestionReport{TransactionID: tx.ID, PayerName: tx.PayerName, AmountCents: tx.AmountCents}, nil
	}

	openFees, err := s.repo.ListOpenExpectations()
	if err != nil {
		return nil, err
	}
	ctx, err := s.scoringContext()
	if err != nil {
		return nil, err
	}

	outcome := s.matcher.Match(tx, openFees, ctx)
	report := &SuggestionReport{
		TransactionID: tx.ID,
		PayerName:     tx.PayerName,
		AmountCents:   tx.AmountCents,
	}

	var suggestions []matcher.Suggestion
	switch outcome.Kind {
	case matcher.OutcomeAutoMatched:
		// On-demand listing never applies; show the winner as the top suggestion
		suggestions = []matcher.Suggestion{{
			Fees:       []*storage.FeeExpectation{outcome.Auto.Fee},
			Confidence: outcome.Auto.Confidence,
			Reason:     outcome.Auto.Reason,
		}}
	case matcher.OutcomeSuggested:
		suggestions = outcome.Suggestions
	}

	report.Candidates = suggestionCandidates(suggestions)
	return report, nil
}

// SuggestionsForChild lists, per unmatched transaction, the suggestions that
// involve the child's open fees and clear the auto-confirm threshold. Staff
// use it to settle one family's backlog in one sitting; nothing is applied.
func (s *Service) SuggestionsForChild(childID int64) ([]SuggestionReport, error) {
	unmatched, err := s.repo.ListUnmatched()
	if err != nil {
		return nil, err
	}
	openFees, err := s.repo.ListOpenExpectations()
	if err != nil {
		return nil, err
	}
	ctx, err := s.scoringContext()
	if err != nil {
		return nil, err
	}

	var reports []SuggestionReport
	for _, tx := range unmatched {
		if tx.RemainingCents() == 0 {
			continue
		}

		outcome := s.matcher.Match(tx, openFees, ctx)
		var suggestions []matcher.Suggestion
		switch outcome.Kind {
		case matcher.OutcomeAutoMatched:
			suggestions = []matcher.Suggestion{{
				Fees:       []*storage.FeeExpectation{outcome.Auto.Fee},
				Confidence: outcome.Auto.Confidence,
				Reason:     outcome.Auto.Reason,
			}}
		case matcher.OutcomeSuggested:
			suggestions = outcome.Suggestions
		default:
			continue
		}

		var kept []matcher.Suggestion
		for _, suggestion := range suggestions {
			if suggestion.Confidence < s.autoConfirmThreshold {
				continue
			}
			if !involvesChild(suggestion, childID) {
				continue
			}
			kept = append(kept, suggestion)
		}
		if len(kept) == 0 {
			continue
		}

		reports = append(reports, SuggestionReport{
			TransactionID: tx.ID,
			PayerName:     tx.PayerName,
			AmountCents:   tx.AmountCents,
			Candidates:    suggestionCandidates(kept),
		})
	}

	return reports, nil
}

func involvesChild(suggestion matcher.Suggestion, childID int64) bool {
	for _, fee := range suggestion.Fees {
		if fee.ChildID == childID {
			return true
		}
	}
	return false
}

// suggestionCandidates flattens matcher suggestions into the API-facing shape
func suggestionCandidates(suggestions []matcher.Suggestion) []SuggestedMatch {
	candidates := make([]SuggestedMatch, 0, len(suggestions))
	for _, suggestion := range suggestions {
		candidate := SuggestedMatch{
			Confidence: suggestion.Confidence,
			Reason:     suggestion.Reason,
		}
		for _, fee := range suggestion.Fees {
			candidate.ExpectationIDs = append(candidate.ExpectationIDs, fee.ID)
			candidate.ChildNames = append(candidate.ChildNames, fee.ChildName)
			candidate.AmountCents += fee.RemainingCents()
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}

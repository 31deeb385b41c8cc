package recon

import (
	"fmt"

	"github.com/kitaverein/recon-backend/internal/domain/scorer"
	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

// ConfirmPair is one (transaction, fee) pairing submitted for confirmation
type ConfirmPair struct {
	TransactionID int64 `json:"transaction_id"`
	ExpectationID int64 `json:"expectation_id"`
}

// ConfirmFailure records why one pair of a confirmation batch was rejected
type ConfirmFailure struct {
	Pair  ConfirmPair `json:"pair"`
	Error string      `json:"error"`
}

// ConfirmReport summarizes a confirmation batch. Failures never abort the
// batch; every pair is attempted.
type ConfirmReport struct {
	Confirmed      int              `json:"confirmed"`
	AlreadyMatched int              `json:"already_matched"`
	Failed         []ConfirmFailure `json:"failed,omitempty"`
}

// Allocate splits a transaction's amount across fee expectations.
// Pairs that already exist are skipped, so repeating a confirmation is a
// no-op rather than an error.
func (s *Service) Allocate(txID int64, splits []storage.AllocationSplit, matchedBy storage.MatchReason, allowOverpayment bool) (*storage.AllocationResult, error) {
	if len(splits) == 0 {
		return nil, NewValidationError("at least one split is required")
	}
	for _, split := range splits {
		if split.ExpectationID <= 0 {
			return nil, NewValidationError("split expectation_id must be positive")
		}
		if split.AmountCents <= 0 {
			return nil, NewValidationError("split amount_cents must be positive")
		}
	}

	unlock := s.lockTransaction(txID)
	defer unlock()

	result, err := s.repo.Allocate(txID, splits, matchedBy, allowOverpayment)
	if err != nil {
		return nil, err
	}

	s.afterAllocation(result)
	return result, nil
}

// ConfirmMatches applies a batch of suggested pairings. Each pair allocates
// the smaller of the transaction's and the fee's remaining amount, with the
// reason re-derived from the current evidence.
func (s *Service) ConfirmMatches(pairs []ConfirmPair) (*ConfirmReport, error) {
	if len(pairs) == 0 {
		return nil, NewValidationError("at least one pair is required")
	}

	ctx, err := s.scoringContext()
	if err != nil {
		return nil, err
	}

	report := &ConfirmReport{}
	for _, pair := range pairs {
		confirmed, already, err := s.confirmOne(pair, ctx, false)
		if err != nil {
			report.Failed = append(report.Failed, ConfirmFailure{Pair: pair, Error: err.Error()})
			s.logger.Warn("confirm failed",
				"transaction_id", pair.TransactionID,
				"expectation_id", pair.ExpectationID,
				"error", err)
			continue
		}
		if confirmed {
			report.Confirmed++
		}
		if already {
			report.AlreadyMatched++
		}
	}

	return report, nil
}

// ManualMatch binds one transaction to one fee on an admin's say-so, for the
// smaller of the two remaining amounts. Re-submitting an existing pair is a
// no-op, like re-confirming.
func (s *Service) ManualMatch(txID, expectationID int64) (*ConfirmReport, error) {
	pair := ConfirmPair{TransactionID: txID, ExpectationID: expectationID}
	confirmed, already, err := s.confirmOne(pair, scorer.Context{}, true)
	if err != nil {
		return nil, err
	}

	report := &ConfirmReport{}
	if confirmed {
		report.Confirmed = 1
	}
	if already {
		report.AlreadyMatched = 1
	}
	return report, nil
}

func (s *Service) confirmOne(pair ConfirmPair, ctx scorer.Context, manual bool) (confirmed, already bool, err error) {
	unlock := s.lockTransaction(pair.TransactionID)
	defer unlock()

	tx, err := s.repo.GetTransaction(pair.TransactionID)
	if err != nil {
		return false, false, err
	}
	fee, err := s.repo.GetExpectation(pair.ExpectationID)
	if err != nil {
		return false, false, err
	}

	amount := tx.RemainingCents()
	if fee.RemainingCents() < amount {
		amount = fee.RemainingCents()
	}

	if amount == 0 {
		// Nothing left on either side. A pre-existing pair makes this an
		// idempotent re-confirmation, anything else is a conflict.
		allocations, err := s.repo.ListAllocations(pair.TransactionID)
		if err != nil {
			return false, false, err
		}
		for _, alloc := range allocations {
			if alloc.ExpectationID == pair.ExpectationID {
				return false, true, nil
			}
		}
		return false, false, fmt.Errorf(
			"transaction %d and fee %d have no remaining amounts: %w",
			pair.TransactionID, pair.ExpectationID, storage.ErrConflict,
		)
	}

	// Record the strongest current evidence as the reason; manual when the
	// pairing is the admin's own decision or the human is the only evidence.
	reason := storage.ReasonManual
	if !manual {
		_, reason = s.scorer.Score(tx, fee, ctx)
	}

	result, err := s.repo.Allocate(pair.TransactionID, []storage.AllocationSplit{
		{ExpectationID: pair.ExpectationID, AmountCents: amount},
	}, reason, false)
	if err != nil {
		return false, false, err
	}

	s.afterAllocation(result)
	return result.Created > 0, result.AlreadyExisted > 0, nil
}

// Unmatch reverses all allocations of a transaction, returning it to the
// unmatched pool. With deleteTransaction the row is removed entirely, for
// statement lines that were imported in error.
func (s *Service) Unmatch(txID int64, deleteTransaction bool) (*storage.UnmatchResult, error) {
	unlock := s.lockTransaction(txID)
	defer unlock()

	result, err := s.repo.Unmatch(txID, deleteTransaction)
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction unmatched",
		"transaction_id", txID,
		"allocations_removed", result.AllocationsRemoved,
		"deleted", result.TransactionDeleted)
	return result, nil
}

// afterAllocation runs the post-allocation side effects: trust learning,
// batch counters, and the anomaly pass. None of them may fail the allocation
// itself; problems are logged and the allocation stands.
func (s *Service) afterAllocation(result *storage.AllocationResult) {
	if result.Created == 0 {
		return
	}
	tx := result.Transaction

	hadTrust := false
	if tx.PayerIBAN != "" {
		var err error
		hadTrust, err = s.repo.HasTrustHistory(tx.PayerIBAN)
		if err != nil {
			s.logger.Warn("trust lookup failed", "iban", tx.PayerIBAN, "error", err)
		}

		for _, allocated := range result.Fees {
			if err := s.repo.UpsertTrust(tx.PayerIBAN, allocated.Fee.ChildID, tx.PayerName); err != nil {
				// Blacklisted IBANs cannot become trusted; the match stands anyway
				s.logger.Debug("trust entry not recorded",
					"iban", tx.PayerIBAN,
					"child_id", allocated.Fee.ChildID,
					"error", err)
			}
		}
	}

	var createdSum int64
	for _, allocated := range result.Fees {
		createdSum += allocated.AllocatedCents
	}
	priorAllocated := tx.AllocatedCents - createdSum
	if priorAllocated < tx.AmountCents && tx.AllocatedCents >= tx.AmountCents && tx.BatchID != "" {
		if err := s.repo.IncrementBatchMatched(tx.BatchID, 1); err != nil {
			s.logger.Warn("batch counter update failed", "batch_id", tx.BatchID, "error", err)
		}
	}

	s.detectAfterAllocation(result, hadTrust)
}

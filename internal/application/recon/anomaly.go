package recon

import (
	"fmt"
	"time"

	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

// reminderDueDays is how long after raising a reminder fee its payment is due.
const reminderDueDays = 14

// detectAfterAllocation raises warnings for the fees an allocation touched.
// Warnings are advisory: they never block or undo the allocation, and an
// open warning for the same cause is not duplicated.
func (s *Service) detectAfterAllocation(result *storage.AllocationResult, hadTrust bool) {
	tx := result.Transaction

	if tx.PayerIBAN == "" || !hadTrust {
		// First payment from this IBAN (or no IBAN at all); worth a look
		// even though the match itself was convincing enough to land.
		s.raiseWarning(&storage.TransactionWarning{
			TransactionID: &tx.ID,
			Type:          storage.WarnUnknownIBAN,
			Message:       fmt.Sprintf("payment from previously unseen account of %q", tx.PayerName),
		})
	}

	for _, allocated := range result.Fees {
		fee := allocated.Fee
		feeID := fee.ID
		childID := fee.ChildID

		if allocated.WasPaidBefore {
			s.raiseWarning(&storage.TransactionWarning{
				TransactionID: &tx.ID,
				ExpectationID: &feeID,
				ChildID:       &childID,
				Type:          storage.WarnDuplicatePayment,
				Message:       fmt.Sprintf("fee %d was already fully paid before this payment", fee.ID),
			})
		}

		if fee.MatchedCents > fee.AmountCents {
			s.raiseWarning(&storage.TransactionWarning{
				TransactionID: &tx.ID,
				ExpectationID: &feeID,
				ChildID:       &childID,
				Type:          storage.WarnAmountMismatch,
				Message: fmt.Sprintf("fee %d is overpaid by %d cents",
					fee.ID, fee.MatchedCents-fee.AmountCents),
			})
		}

		// The mirror case: the payment is used up but the fee stays short.
		// A deliberate partial allocation (transaction remainder left for
		// other fees) is not flagged.
		if !fee.Paid && tx.RemainingCents() == 0 {
			s.raiseWarning(&storage.TransactionWarning{
				TransactionID: &tx.ID,
				ExpectationID: &feeID,
				ChildID:       &childID,
				Type:          storage.WarnAmountMismatch,
				Message: fmt.Sprintf("fee %d is still short %d cents after the payment",
					fee.ID, fee.AmountCents-fee.MatchedCents),
			})
		}

		if tx.BookedOn.After(fee.DueOn) {
			s.raiseWarning(&storage.TransactionWarning{
				TransactionID: &tx.ID,
				ExpectationID: &feeID,
				ChildID:       &childID,
				Type:          storage.WarnLatePayment,
				Message: fmt.Sprintf("payment booked %s, fee %d was due %s",
					tx.BookedOn.Format("2006-01-02"), fee.ID, fee.DueOn.Format("2006-01-02")),
			})
		}
	}

	// A leftover remainder after all requested fees are covered means the
	// payer sent more than was owed.
	if tx.RemainingCents() > 0 && allFeesPaid(result.Fees) {
		s.raiseWarning(&storage.TransactionWarning{
			TransactionID: &tx.ID,
			Type:          storage.WarnAmountMismatch,
			Message: fmt.Sprintf("payment exceeds the matched fees by %d cents",
				tx.RemainingCents()),
		})
	}
}

// detectDuplicateAtImport flags freshly imported transactions that repeat the
// amount and account of a recent one.
func (s *Service) detectDuplicateAtImport(tx *storage.BankTransaction) {
	if tx.PayerIBAN == "" {
		return
	}

	twins, err := s.repo.FindDuplicateCandidates(tx.PayerIBAN, tx.AmountCents, tx.BookedOn, s.duplicateWindowDays, tx.ID)
	if err != nil {
		s.logger.Warn("duplicate scan failed", "transaction_id", tx.ID, "error", err)
		return
	}
	if len(twins) == 0 {
		return
	}

	s.raiseWarning(&storage.TransactionWarning{
		TransactionID: &tx.ID,
		Type:          storage.WarnDuplicatePayment,
		Message: fmt.Sprintf("same amount from the same account as transaction %d within %d days",
			twins[0].ID, s.duplicateWindowDays),
	})
}

func allFeesPaid(fees []storage.AllocatedFee) bool {
	for _, allocated := range fees {
		if !allocated.Fee.Paid {
			return false
		}
	}
	return len(fees) > 0
}

// raiseWarning persists a warning unless an open one for the same cause
// already exists. Failures are logged, never propagated.
func (s *Service) raiseWarning(w *storage.TransactionWarning) {
	created, err := s.repo.CreateWarningIfAbsent(w)
	if err != nil {
		s.logger.Warn("warning not recorded", "type", w.Type, "error", err)
		return
	}
	if created {
		s.logger.Info("warning raised", "type", w.Type, "message", w.Message)
	}
}

// ListWarnings returns warnings, optionally filtered by status
func (s *Service) ListWarnings(status storage.WarningStatus) ([]*storage.TransactionWarning, error) {
	return s.repo.ListWarnings(status)
}

// DismissWarning closes a warning as noise, with an optional note
func (s *Service) DismissWarning(id, note string) error {
	return s.repo.SetWarningStatus(id, storage.WarningDismissed, note)
}

// ResolveWarning closes a warning as handled. Resolving a late-payment
// warning additionally raises a reminder fee against the child, due two
// weeks out, linked back to the original fee.
func (s *Service) ResolveWarning(id, note string) (*storage.FeeExpectation, error) {
	warning, err := s.repo.GetWarning(id)
	if err != nil {
		return nil, err
	}
	if warning.Status != storage.WarningOpen {
		return nil, fmt.Errorf("warning %s is not open: %w", id, storage.ErrConflict)
	}

	var reminder *storage.FeeExpectation
	if warning.Type == storage.WarnLatePayment && warning.ExpectationID != nil {
		reminder, err = s.raiseReminderFee(*warning.ExpectationID)
		if err != nil {
			return nil, err
		}
	}

	if err := s.repo.SetWarningStatus(id, storage.WarningResolved, note); err != nil {
		return nil, err
	}

	return reminder, nil
}

// raiseReminderFee creates the fixed reminder fee for a late-paid expectation
func (s *Service) raiseReminderFee(expectationID int64) (*storage.FeeExpectation, error) {
	original, err := s.repo.GetExpectation(expectationID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	month := int(now.Month())
	reminder := &storage.FeeExpectation{
		ChildID:      original.ChildID,
		ChildName:    original.ChildName,
		ParentName:   original.ParentName,
		MemberNumber: original.MemberNumber,
		FeeType:      storage.FeeReminder,
		Year:         now.Year(),
		Month:        &month,
		AmountCents:  s.reminderFeeCents,
		DueOn:        now.AddDate(0, 0, reminderDueDays),
		ReminderFor:  &original.ID,
	}

	id, err := s.repo.InsertExpectation(reminder)
	if err != nil {
		return nil, err
	}
	reminder.ID = id

	s.logger.Info("reminder fee raised",
		"child_id", original.ChildID,
		"original_fee", original.ID,
		"amount_cents", s.reminderFeeCents)
	return reminder, nil
}

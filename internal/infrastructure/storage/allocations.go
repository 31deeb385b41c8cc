package storage

import (
	"database/sql"
	"fmt"
)

// Allocate binds parts of a transaction's amount to fee expectations.
// The whole operation runs in one database transaction: the allocated sum is
// re-read inside it, so a racer that already consumed the remainder makes
// this call fail with ErrConflict instead of over-allocating.
func (s *Store) Allocate(txID int64, splits []AllocationSplit, matchedBy MatchReason, allowOverpayment bool) (*AllocationResult, error) {
	if len(splits) == 0 {
		return nil, fmt.Errorf("no splits given: %w", ErrInvalid)
	}
	seen := make(map[int64]bool, len(splits))
	for _, split := range splits {
		if split.AmountCents <= 0 {
			return nil, fmt.Errorf("split amount must be positive: %w", ErrInvalid)
		}
		if seen[split.ExpectationID] {
			return nil, fmt.Errorf("duplicate fee %d in splits: %w", split.ExpectationID, ErrInvalid)
		}
		seen[split.ExpectationID] = true
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = dbTx.Rollback() }()

	bankTx, err := getTransactionTx(dbTx, txID)
	if err != nil {
		return nil, err
	}
	if bankTx.Ignored {
		return nil, fmt.Errorf("transaction %d is ignored: %w", txID, ErrInvalid)
	}

	// Idempotent confirm: pairs that already exist are skipped, not duplicated
	existing, err := existingPairs(dbTx, txID)
	if err != nil {
		return nil, err
	}

	var newSplits []AllocationSplit
	alreadyExisted := 0
	for _, split := range splits {
		if existing[split.ExpectationID] {
			alreadyExisted++
			continue
		}
		newSplits = append(newSplits, split)
	}

	result := &AllocationResult{AlreadyExisted: alreadyExisted}

	if len(newSplits) == 0 {
		result.Transaction = bankTx
		return result, dbTx.Commit()
	}

	var totalNew int64
	for _, split := range newSplits {
		totalNew += split.AmountCents
	}
	if totalNew > bankTx.RemainingCents() {
		return nil, fmt.Errorf(
			"requested %d cents exceeds unallocated remainder %d of transaction %d: %w",
			totalNew, bankTx.RemainingCents(), txID, ErrConflict,
		)
	}

	for _, split := range newSplits {
		fee, err := getExpectationTx(dbTx, split.ExpectationID)
		if err != nil {
			return nil, err
		}

		if split.AmountCents > fee.RemainingCents() && !allowOverpayment {
			return nil, fmt.Errorf(
				"allocation of %d cents exceeds remaining %d of fee %d: %w",
				split.AmountCents, fee.RemainingCents(), fee.ID, ErrInvalid,
			)
		}

		wasPaid := fee.Paid

		_, err = dbTx.Exec(`
			INSERT INTO payment_matches (transaction_id, expectation_id, amount_cents, matched_by)
			VALUES (?, ?, ?, ?)
		`, txID, fee.ID, split.AmountCents, matchedBy)
		if err != nil {
			return nil, err
		}

		_, err = dbTx.Exec(`
			UPDATE fee_expectations
			SET matched_cents = matched_cents + ?,
			    paid = CASE WHEN matched_cents + ? >= amount_cents THEN 1 ELSE 0 END
			WHERE id = ?
		`, split.AmountCents, split.AmountCents, fee.ID)
		if err != nil {
			return nil, err
		}

		fee.MatchedCents += split.AmountCents
		fee.Paid = fee.MatchedCents >= fee.AmountCents

		result.Created++
		result.Fees = append(result.Fees, AllocatedFee{
			Fee:            fee,
			AllocatedCents: split.AmountCents,
			WasPaidBefore:  wasPaid,
		})
	}

	bankTx.AllocatedCents += totalNew
	result.Transaction = bankTx

	return result, dbTx.Commit()
}

// Unmatch reverses all of a transaction's allocations, restoring each fee's
// matched amount and paid flag, and optionally deletes the transaction row.
func (s *Store) Unmatch(txID int64, deleteTransaction bool) (*UnmatchResult, error) {
	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = dbTx.Rollback() }()

	if _, err := getTransactionTx(dbTx, txID); err != nil {
		return nil, err
	}

	rows, err := dbTx.Query(`
		SELECT expectation_id, amount_cents FROM payment_matches WHERE transaction_id = ?
	`, txID)
	if err != nil {
		return nil, err
	}

	type reversal struct {
		expectationID int64
		amountCents   int64
	}
	var reversals []reversal
	for rows.Next() {
		var r reversal
		if err := rows.Scan(&r.expectationID, &r.amountCents); err != nil {
			_ = rows.Close()
			return nil, err
		}
		reversals = append(reversals, r)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(reversals) == 0 && !deleteTransaction {
		return nil, fmt.Errorf("transaction %d has no allocations: %w", txID, ErrConflict)
	}

	for _, r := range reversals {
		_, err = dbTx.Exec(`
			UPDATE fee_expectations
			SET matched_cents = matched_cents - ?,
			    paid = CASE WHEN matched_cents - ? >= amount_cents THEN 1 ELSE 0 END
			WHERE id = ?
		`, r.amountCents, r.amountCents, r.expectationID)
		if err != nil {
			return nil, err
		}
	}

	if _, err := dbTx.Exec(`DELETE FROM payment_matches WHERE transaction_id = ?`, txID); err != nil {
		return nil, err
	}

	result := &UnmatchResult{AllocationsRemoved: len(reversals)}

	if deleteTransaction {
		if _, err := dbTx.Exec(`DELETE FROM bank_transactions WHERE id = ?`, txID); err != nil {
			return nil, err
		}
		result.TransactionDeleted = true
	}

	return result, dbTx.Commit()
}

// ListAllocations returns all allocations of a transaction
func (s *Store) ListAllocations(txID int64) ([]*PaymentMatch, error) {
	return s.queryAllocations(`
		SELECT id, transaction_id, expectation_id, amount_cents, matched_by, created_at
		FROM payment_matches WHERE transaction_id = ? ORDER BY id
	`, txID)
}

// ListAllocationsByExpectation returns all allocations onto a fee
func (s *Store) ListAllocationsByExpectation(expectationID int64) ([]*PaymentMatch, error) {
	return s.queryAllocations(`
		SELECT id, transaction_id, expectation_id, amount_cents, matched_by, created_at
		FROM payment_matches WHERE expectation_id = ? ORDER BY id
	`, expectationID)
}

func (s *Store) queryAllocations(query string, args ...any) ([]*PaymentMatch, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var matches []*PaymentMatch
	for rows.Next() {
		m := &PaymentMatch{}
		err := rows.Scan(&m.ID, &m.TransactionID, &m.ExpectationID, &m.AmountCents, &m.MatchedBy, &m.CreatedAt)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

// getTransactionTx loads a transaction with its allocation sum inside an open
// database transaction.
func getTransactionTx(dbTx *sql.Tx, id int64) (*BankTransaction, error) {
	query := `SELECT ` + txColumns + ` FROM bank_transactions t WHERE t.id = ?`
	return scanTransaction(dbTx.QueryRow(query, id))
}

// getExpectationTx loads a fee expectation inside an open database transaction.
func getExpectationTx(dbTx *sql.Tx, id int64) (*FeeExpectation, error) {
	query := `SELECT ` + feeColumns + ` FROM fee_expectations WHERE id = ?`
	return scanExpectation(dbTx.QueryRow(query, id))
}

// existingPairs returns the set of fee IDs already allocated from a transaction.
func existingPairs(dbTx *sql.Tx, txID int64) (map[int64]bool, error) {
	rows, err := dbTx.Query(`SELECT expectation_id FROM payment_matches WHERE transaction_id = ?`, txID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	pairs := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		pairs[id] = true
	}

	return pairs, rows.Err()
}

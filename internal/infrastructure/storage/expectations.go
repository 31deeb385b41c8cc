package storage

import (
	"database/sql"
	"fmt"
)

const feeColumns = `
	id, child_id, child_name, parent_name, member_number, fee_type,
	year, month, amount_cents, due_on, matched_cents, paid, reminder_for, created_at`

// InsertExpectation stores a fee expectation and returns its ID
func (s *Store) InsertExpectation(fee *FeeExpectation) (int64, error) {
	query := `
		INSERT INTO fee_expectations
		(child_id, child_name, parent_name, member_number, fee_type, year, month,
		 amount_cents, due_on, matched_cents, paid, reminder_for)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		fee.ChildID,
		fee.ChildName,
		fee.ParentName,
		fee.MemberNumber,
		fee.FeeType,
		fee.Year,
		fee.Month,
		fee.AmountCents,
		fee.DueOn,
		fee.MatchedCents,
		fee.Paid,
		fee.ReminderFor,
	)
	if err != nil {
		return 0, err
	}

	return result.LastInsertId()
}

func scanExpectation(row rowScanner) (*FeeExpectation, error) {
	fee := &FeeExpectation{}
	var month sql.NullInt64
	var reminderFor sql.NullInt64

	err := row.Scan(
		&fee.ID,
		&fee.ChildID,
		&fee.ChildName,
		&fee.ParentName,
		&fee.MemberNumber,
		&fee.FeeType,
		&fee.Year,
		&month,
		&fee.AmountCents,
		&fee.DueOn,
		&fee.MatchedCents,
		&fee.Paid,
		&reminderFor,
		&fee.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if month.Valid {
		m := int(month.Int64)
		fee.Month = &m
	}
	if reminderFor.Valid {
		r := reminderFor.Int64
		fee.ReminderFor = &r
	}

	return fee, nil
}

// GetExpectation retrieves a fee expectation by ID
func (s *Store) GetExpectation(id int64) (*FeeExpectation, error) {
	query := `SELECT ` + feeColumns + ` FROM fee_expectations WHERE id = ?`
	return scanExpectation(s.db.QueryRow(query, id))
}

// ListOpenExpectations returns all unpaid fee expectations
func (s *Store) ListOpenExpectations() ([]*FeeExpectation, error) {
	query := `SELECT ` + feeColumns + `
		FROM fee_expectations
		WHERE paid = 0
		ORDER BY due_on, id`

	return s.queryExpectations(query)
}

// ListExpectationsByChild returns all fee expectations for a child
func (s *Store) ListExpectationsByChild(childID int64) ([]*FeeExpectation, error) {
	query := `SELECT ` + feeColumns + `
		FROM fee_expectations
		WHERE child_id = ?
		ORDER BY due_on, id`

	return s.queryExpectations(query, childID)
}

func (s *Store) queryExpectations(query string, args ...any) ([]*FeeExpectation, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var fees []*FeeExpectation
	for rows.Next() {
		fee, err := scanExpectation(rows)
		if err != nil {
			return nil, err
		}
		fees = append(fees, fee)
	}

	return fees, rows.Err()
}

// DeleteExpectation removes a fee expectation. Deletion is only allowed
// while no allocation references it.
func (s *Store) DeleteExpectation(id int64) error {
	result, err := s.db.Exec(`
		DELETE FROM fee_expectations
		WHERE id = ? AND matched_cents = 0
		  AND NOT EXISTS (SELECT 1 FROM payment_matches pm WHERE pm.expectation_id = fee_expectations.id)
	`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish a missing fee from one that is still allocated
		if _, err := s.GetExpectation(id); err != nil {
			return err
		}
		return fmt.Errorf("fee %d still has allocations: %w", id, ErrConflict)
	}

	return nil
}

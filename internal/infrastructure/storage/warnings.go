package storage

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

const warningColumns = `
	id, transaction_id, expectation_id, child_id, warn_type, message, status, note, created_at`

// CreateWarningIfAbsent inserts a warning unless an open warning for the same
// (transaction, expectation, type) cause already exists. Returns true when a
// new warning was created.
func (s *Store) CreateWarningIfAbsent(w *TransactionWarning) (bool, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Status == "" {
		w.Status = WarningOpen
	}

	// The partial unique index on open warnings (NULL ids coalesced, so
	// transaction-level causes dedupe too) makes this race-safe; the
	// pre-check just avoids burning an insert on the common case.
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM transaction_warnings
		WHERE status = 'open'
		  AND warn_type = ?
		  AND transaction_id IS ?
		  AND expectation_id IS ?
	`, w.Type, w.TransactionID, w.ExpectationID).Scan(&count)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO transaction_warnings
		(id, transaction_id, expectation_id, child_id, warn_type, message, status, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.TransactionID, w.ExpectationID, w.ChildID, w.Type, w.Message, w.Status, w.Note)
	if err != nil {
		return false, err
	}

	return true, nil
}

// GetWarning retrieves a warning by ID
func (s *Store) GetWarning(id string) (*TransactionWarning, error) {
	query := `SELECT ` + warningColumns + ` FROM transaction_warnings WHERE id = ?`
	return scanWarning(s.db.QueryRow(query, id))
}

func scanWarning(row rowScanner) (*TransactionWarning, error) {
	w := &TransactionWarning{}
	var txID, expID, childID sql.NullInt64

	err := row.Scan(
		&w.ID,
		&txID,
		&expID,
		&childID,
		&w.Type,
		&w.Message,
		&w.Status,
		&w.Note,
		&w.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if txID.Valid {
		v := txID.Int64
		w.TransactionID = &v
	}
	if expID.Valid {
		v := expID.Int64
		w.ExpectationID = &v
	}
	if childID.Valid {
		v := childID.Int64
		w.ChildID = &v
	}

	return w, nil
}

// ListWarnings returns warnings, optionally filtered by status
func (s *Store) ListWarnings(status WarningStatus) ([]*TransactionWarning, error) {
	query := `SELECT ` + warningColumns + ` FROM transaction_warnings`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	warnings := make([]*TransactionWarning, 0)
	for rows.Next() {
		w, err := scanWarning(rows)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, w)
	}

	return warnings, rows.Err()
}

// SetWarningStatus transitions a warning to dismissed or resolved.
// Only open warnings can be transitioned.
func (s *Store) SetWarningStatus(id string, status WarningStatus, note string) error {
	result, err := s.db.Exec(`
		UPDATE transaction_warnings SET status = ?, note = ? WHERE id = ? AND status = 'open'
	`, status, note, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := s.GetWarning(id); err != nil {
			return err
		}
		return fmt.Errorf("warning %s is not open: %w", id, ErrConflict)
	}

	return nil
}

package storage

import (
	"database/sql"
	"time"
)

const batchColumns = `
	id, file_name, from_date, to_date, tx_count, matched_count, imported_by, created_at`

// CreateBatch stores a new import batch
func (s *Store) CreateBatch(b *ImportBatch) error {
	_, err := s.db.Exec(`
		INSERT INTO import_batches (id, file_name, from_date, to_date, tx_count, matched_count, imported_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.FileName, b.FromDate, b.ToDate, b.TxCount, b.MatchedCount, b.ImportedBy)
	return err
}

// FinishBatch records the final row counts and covered date range
func (s *Store) FinishBatch(id string, txCount int, fromDate, toDate time.Time) error {
	_, err := s.db.Exec(`
		UPDATE import_batches SET tx_count = ?, from_date = ?, to_date = ? WHERE id = ?
	`, txCount, fromDate, toDate, id)
	return err
}

// IncrementBatchMatched bumps the matched counter of a batch
func (s *Store) IncrementBatchMatched(id string, delta int) error {
	if id == "" || delta == 0 {
		return nil
	}
	_, err := s.db.Exec(`
		UPDATE import_batches SET matched_count = matched_count + ? WHERE id = ?
	`, delta, id)
	return err
}

// GetBatch retrieves a batch by ID
func (s *Store) GetBatch(id string) (*ImportBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM import_batches WHERE id = ?`
	return scanBatch(s.db.QueryRow(query, id))
}

func scanBatch(row rowScanner) (*ImportBatch, error) {
	b := &ImportBatch{}
	var fromDate, toDate sql.NullTime

	err := row.Scan(
		&b.ID,
		&b.FileName,
		&fromDate,
		&toDate,
		&b.TxCount,
		&b.MatchedCount,
		&b.ImportedBy,
		&b.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if fromDate.Valid {
		b.FromDate = fromDate.Time
	}
	if toDate.Valid {
		b.ToDate = toDate.Time
	}

	return b, nil
}

// ListBatches returns recent batches, newest first
func (s *Store) ListBatches(limit int) ([]*ImportBatch, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT `+batchColumns+` FROM import_batches ORDER BY created_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	batches := make([]*ImportBatch, 0)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}

	return batches, rows.Err()
}

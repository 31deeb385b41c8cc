package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// txColumns selects a transaction together with its derived allocation sum.
const txColumns = `
	t.id, t.amount_cents, t.booked_on, t.payer_name, t.payer_iban,
	t.description, COALESCE(t.batch_id, ''), t.ignored, t.created_at,
	COALESCE((SELECT SUM(pm.amount_cents) FROM payment_matches pm
	          WHERE pm.transaction_id = t.id), 0) AS allocated_cents`

// InsertTransaction stores an imported statement line and returns its ID
func (s *Store) InsertTransaction(tx *BankTransaction) (int64, error) {
	query := `
		INSERT INTO bank_transactions
		(amount_cents, booked_on, payer_name, payer_iban, description, batch_id, ignored)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var batchID any
	if tx.BatchID != "" {
		batchID = tx.BatchID
	}

	result, err := s.db.Exec(query,
		tx.AmountCents,
		tx.BookedOn,
		tx.PayerName,
		tx.PayerIBAN,
		tx.Description,
		batchID,
		tx.Ignored,
	)
	if err != nil {
		return 0, err
	}

	return result.LastInsertId()
}

// GetTransaction retrieves a transaction with its derived allocation sum
func (s *Store) GetTransaction(id int64) (*BankTransaction, error) {
	query := `SELECT ` + txColumns + ` FROM bank_transactions t WHERE t.id = ?`
	return scanTransaction(s.db.QueryRow(query, id))
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*BankTransaction, error) {
	tx := &BankTransaction{}
	err := row.Scan(
		&tx.ID,
		&tx.AmountCents,
		&tx.BookedOn,
		&tx.PayerName,
		&tx.PayerIBAN,
		&tx.Description,
		&tx.BatchID,
		&tx.Ignored,
		&tx.CreatedAt,
		&tx.AllocatedCents,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// ListTransactions returns transactions matching the filters
func (s *Store) ListTransactions(filters TransactionFilters) (*TransactionListResult, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	where := "WHERE 1=1"
	args := []any{}

	if !filters.IncludeIgnored {
		where += " AND t.ignored = 0"
	}

	if filters.Search != "" {
		where += ` AND (t.payer_name LIKE ? OR t.payer_iban LIKE ? OR t.description LIKE ?)`
		pattern := "%" + filters.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	switch filters.State {
	case StateUnmatched:
		where += ` AND NOT EXISTS (SELECT 1 FROM payment_matches pm WHERE pm.transaction_id = t.id)`
	case StateMatched:
		where += ` AND COALESCE((SELECT SUM(pm.amount_cents) FROM payment_matches pm
			WHERE pm.transaction_id = t.id), 0) >= t.amount_cents`
	case StatePartiallyMatched:
		where += ` AND EXISTS (SELECT 1 FROM payment_matches pm WHERE pm.transaction_id = t.id)
			AND COALESCE((SELECT SUM(pm.amount_cents) FROM payment_matches pm
			WHERE pm.transaction_id = t.id), 0) < t.amount_cents`
	}

	orderBy := "t.booked_on"
	switch filters.OrderBy {
	case "amount":
		orderBy = "t.amount_cents"
	case "payer":
		orderBy = "t.payer_name"
	}
	direction := "ASC"
	if filters.OrderDesc {
		direction = "DESC"
	}

	countQuery := `SELECT COUNT(*) FROM bank_transactions t ` + where
	var total int
	if err := s.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT %s FROM bank_transactions t %s ORDER BY %s %s, t.id %s LIMIT ? OFFSET ?`,
		txColumns, where, orderBy, direction, direction,
	)
	args = append(args, limit, filters.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := &TransactionListResult{
		Transactions: make([]*BankTransaction, 0),
		TotalCount:   total,
		Limit:        limit,
		Offset:       filters.Offset,
	}

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result.Transactions = append(result.Transactions, tx)
	}

	return result, rows.Err()
}

// ListUnmatched returns all non-ignored transactions with zero allocations
func (s *Store) ListUnmatched() ([]*BankTransaction, error) {
	query := `SELECT ` + txColumns + `
		FROM bank_transactions t
		WHERE t.ignored = 0
		  AND NOT EXISTS (SELECT 1 FROM payment_matches pm WHERE pm.transaction_id = t.id)
		ORDER BY t.booked_on, t.id`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var txs []*BankTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}

	return txs, rows.Err()
}

// IgnoreUnmatchedByIBAN flags every currently-unmatched transaction with the
// given payer IBAN as ignored and returns how many were affected
func (s *Store) IgnoreUnmatchedByIBAN(iban string) (int64, error) {
	query := `
		UPDATE bank_transactions
		SET ignored = 1
		WHERE payer_iban = ?
		  AND ignored = 0
		  AND NOT EXISTS (SELECT 1 FROM payment_matches pm
		                  WHERE pm.transaction_id = bank_transactions.id)
	`

	result, err := s.db.Exec(query, iban)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// FindDuplicateCandidates returns non-ignored transactions from the same IBAN
// with the same amount booked within windowDays of bookedOn
func (s *Store) FindDuplicateCandidates(iban string, amountCents int64, bookedOn time.Time, windowDays int, excludeID int64) ([]*BankTransaction, error) {
	if iban == "" {
		return nil, nil
	}

	from := bookedOn.AddDate(0, 0, -windowDays)
	to := bookedOn.AddDate(0, 0, windowDays)

	query := `SELECT ` + txColumns + `
		FROM bank_transactions t
		WHERE t.payer_iban = ?
		  AND t.amount_cents = ?
		  AND t.booked_on BETWEEN ? AND ?
		  AND t.id != ?
		  AND t.ignored = 0
		ORDER BY t.booked_on, t.id`

	rows, err := s.db.Query(query, iban, amountCents, from, to, excludeID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var txs []*BankTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}

	return txs, rows.Err()
}

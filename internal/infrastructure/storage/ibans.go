package storage

import (
	"database/sql"
	"fmt"
)

const ibanColumns = `
	id, iban, child_id, kind, payer_name, last_amount_cents, last_description, created_at`

// UpsertTrust records that an IBAN paid fees for a child
func (s *Store) UpsertTrust(iban string, childID int64, payerName string) error {
	if iban == "" {
		return nil
	}

	// An IBAN cannot be trusted while it is blacklisted
	blacklisted, err := s.IsBlacklisted(iban)
	if err != nil {
		return err
	}
	if blacklisted {
		return fmt.Errorf("iban %s is blacklisted: %w", iban, ErrConflict)
	}

	_, err = s.db.Exec(`
		INSERT INTO known_ibans (iban, child_id, kind, payer_name)
		VALUES (?, ?, 'trusted', ?)
		ON CONFLICT (iban, child_id) WHERE kind = 'trusted'
		DO UPDATE SET payer_name = excluded.payer_name
	`, iban, childID, payerName)
	return err
}

// RemoveTrust deletes a per-child trust entry
func (s *Store) RemoveTrust(iban string, childID int64) error {
	result, err := s.db.Exec(`
		DELETE FROM known_ibans WHERE iban = ? AND child_id = ? AND kind = 'trusted'
	`, iban, childID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("no trust entry for iban %s and child %d: %w", iban, childID, ErrNotFound)
	}

	return nil
}

// ListTrustedByChild returns trust entries scoped to a child
func (s *Store) ListTrustedByChild(childID int64) ([]*KnownIBAN, error) {
	return s.queryIBANs(`
		SELECT `+ibanColumns+` FROM known_ibans
		WHERE child_id = ? AND kind = 'trusted' ORDER BY iban
	`, childID)
}

// HasTrustHistory reports whether the IBAN has any trust entry at all
func (s *Store) HasTrustHistory(iban string) (bool, error) {
	if iban == "" {
		return false, nil
	}

	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM known_ibans WHERE iban = ? AND kind = 'trusted'
	`, iban).Scan(&count)
	return count > 0, err
}

// TrustedIBANsByChild returns the full trust map, keyed child -> IBAN set
func (s *Store) TrustedIBANsByChild() (map[int64]map[string]bool, error) {
	rows, err := s.db.Query(`
		SELECT child_id, iban FROM known_ibans WHERE kind = 'trusted'
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	trusted := make(map[int64]map[string]bool)
	for rows.Next() {
		var childID int64
		var iban string
		if err := rows.Scan(&childID, &iban); err != nil {
			return nil, err
		}
		if trusted[childID] == nil {
			trusted[childID] = make(map[string]bool)
		}
		trusted[childID][iban] = true
	}

	return trusted, rows.Err()
}

// AddToBlacklist records a global blacklist entry with audit context.
// Adding an already-blacklisted IBAN refreshes the audit fields. Any trust
// entries for the IBAN are removed in the same transaction, keeping it in
// exactly one tracked state.
func (s *Store) AddToBlacklist(entry *KnownIBAN) error {
	if entry.IBAN == "" {
		return fmt.Errorf("blacklist entry needs an iban: %w", ErrInvalid)
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = dbTx.Rollback() }()

	if _, err := dbTx.Exec(`
		DELETE FROM known_ibans WHERE iban = ? AND kind = 'trusted'
	`, entry.IBAN); err != nil {
		return err
	}

	if _, err := dbTx.Exec(`
		INSERT INTO known_ibans (iban, child_id, kind, payer_name, last_amount_cents, last_description)
		VALUES (?, NULL, 'blacklisted', ?, ?, ?)
		ON CONFLICT (iban) WHERE kind = 'blacklisted'
		DO UPDATE SET payer_name = excluded.payer_name,
		              last_amount_cents = excluded.last_amount_cents,
		              last_description = excluded.last_description
	`, entry.IBAN, entry.PayerName, entry.LastAmountCents, entry.LastDescription); err != nil {
		return err
	}

	return dbTx.Commit()
}

// RemoveFromBlacklist deletes the blacklist entry for an IBAN
func (s *Store) RemoveFromBlacklist(iban string) error {
	result, err := s.db.Exec(`
		DELETE FROM known_ibans WHERE iban = ? AND kind = 'blacklisted'
	`, iban)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("iban %s is not blacklisted: %w", iban, ErrNotFound)
	}

	return nil
}

// IsBlacklisted reports whether the IBAN is on the global blacklist
func (s *Store) IsBlacklisted(iban string) (bool, error) {
	if iban == "" {
		return false, nil
	}

	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM known_ibans WHERE iban = ? AND kind = 'blacklisted'
	`, iban).Scan(&count)
	return count > 0, err
}

// ListBlacklist returns all blacklist entries
func (s *Store) ListBlacklist() ([]*KnownIBAN, error) {
	return s.queryIBANs(`
		SELECT ` + ibanColumns + ` FROM known_ibans
		WHERE kind = 'blacklisted' ORDER BY iban
	`)
}

func (s *Store) queryIBANs(query string, args ...any) ([]*KnownIBAN, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*KnownIBAN, 0)
	for rows.Next() {
		entry := &KnownIBAN{}
		var childID sql.NullInt64
		err := rows.Scan(
			&entry.ID,
			&entry.IBAN,
			&childID,
			&entry.Kind,
			&entry.PayerName,
			&entry.LastAmountCents,
			&entry.LastDescription,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if childID.Valid {
			c := childID.Int64
			entry.ChildID = &c
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

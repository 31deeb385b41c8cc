package storage

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "add_known_ibans_table",
		Up:      migration002AddKnownIBANsTable,
	},
	{
		Version: 3,
		Name:    "add_warnings_table",
		Up:      migration003AddWarningsTable,
	},
}

// runMigrations executes all pending migrations
func (s *Store) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue // Already applied
		}

		log.Printf("Running migration %d: %s", migration.Version, migration.Name)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		_, err = tx.Exec(`
			INSERT INTO schema_migrations (version, name) VALUES (?, ?)
		`, migration.Version, migration.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table
func (s *Store) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.db.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// ================================================================
// MIGRATION FUNCTIONS
// ================================================================

// migration001InitialSchema creates the core ledger tables
func migration001InitialSchema(db *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS import_batches (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			from_date TIMESTAMP,
			to_date TIMESTAMP,
			tx_count INTEGER DEFAULT 0,
			matched_count INTEGER DEFAULT 0,
			imported_by TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS bank_transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
			booked_on TIMESTAMP NOT NULL,
			payer_name TEXT NOT NULL DEFAULT '',
			payer_iban TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			batch_id TEXT,
			ignored BOOLEAN NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (batch_id) REFERENCES import_batches(id)
		)`,

		`CREATE TABLE IF NOT EXISTS fee_expectations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			child_id INTEGER NOT NULL,
			child_name TEXT NOT NULL,
			parent_name TEXT NOT NULL DEFAULT '',
			member_number TEXT NOT NULL DEFAULT '',
			fee_type TEXT NOT NULL CHECK (fee_type IN ('membership', 'food', 'childcare', 'reminder')),
			year INTEGER NOT NULL,
			month INTEGER,
			amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
			due_on TIMESTAMP NOT NULL,
			matched_cents INTEGER NOT NULL DEFAULT 0 CHECK (matched_cents >= 0),
			paid BOOLEAN NOT NULL DEFAULT 0,
			reminder_for INTEGER,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (reminder_for) REFERENCES fee_expectations(id)
		)`,

		`CREATE TABLE IF NOT EXISTS payment_matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			transaction_id INTEGER NOT NULL,
			expectation_id INTEGER NOT NULL,
			amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
			matched_by TEXT NOT NULL CHECK (matched_by IN
				('trusted_iban', 'member_number', 'name', 'parent_name', 'combined', 'manual')),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (transaction_id, expectation_id),
			FOREIGN KEY (transaction_id) REFERENCES bank_transactions(id) ON DELETE CASCADE,
			FOREIGN KEY (expectation_id) REFERENCES fee_expectations(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_bank_transactions_booked_on
		 ON bank_transactions(booked_on)`,

		`CREATE INDEX IF NOT EXISTS idx_bank_transactions_iban
		 ON bank_transactions(payer_iban)`,

		`CREATE INDEX IF NOT EXISTS idx_fee_expectations_child
		 ON fee_expectations(child_id)`,

		`CREATE INDEX IF NOT EXISTS idx_fee_expectations_open
		 ON fee_expectations(paid) WHERE paid = 0`,

		`CREATE INDEX IF NOT EXISTS idx_payment_matches_tx
		 ON payment_matches(transaction_id)`,

		`CREATE INDEX IF NOT EXISTS idx_payment_matches_fee
		 ON payment_matches(expectation_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// migration002AddKnownIBANsTable creates the trust/blacklist table.
// Blacklist entries are global (child_id NULL); trust entries are scoped
// per child. The unique index keeps an IBAN in at most one state per scope.
func migration002AddKnownIBANsTable(db *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS known_ibans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			iban TEXT NOT NULL,
			child_id INTEGER,
			kind TEXT NOT NULL CHECK (kind IN ('trusted', 'blacklisted')),
			payer_name TEXT NOT NULL DEFAULT '',
			last_amount_cents INTEGER NOT NULL DEFAULT 0,
			last_description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_known_ibans_trust
		 ON known_ibans(iban, child_id) WHERE kind = 'trusted'`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_known_ibans_blacklist
		 ON known_ibans(iban) WHERE kind = 'blacklisted'`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// migration003AddWarningsTable creates the anomaly warnings table.
// The partial unique index makes warning creation idempotent per
// (transaction, expectation, type) while a warning is still open. The NULL
// ids are coalesced to 0 (never a real row id) because SQLite treats bare
// NULLs as distinct in unique indexes, which would let transaction-level
// warnings duplicate.
func migration003AddWarningsTable(db *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS transaction_warnings (
			id TEXT PRIMARY KEY,
			transaction_id INTEGER,
			expectation_id INTEGER,
			child_id INTEGER,
			warn_type TEXT NOT NULL CHECK (warn_type IN
				('AMOUNT_MISMATCH', 'DUPLICATE_PAYMENT', 'UNKNOWN_IBAN', 'LATE_PAYMENT')),
			message TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'dismissed', 'resolved')),
			note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (transaction_id) REFERENCES bank_transactions(id) ON DELETE CASCADE,
			FOREIGN KEY (expectation_id) REFERENCES fee_expectations(id)
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_warnings_open_cause
		 ON transaction_warnings(COALESCE(transaction_id, 0), COALESCE(expectation_id, 0), warn_type)
		 WHERE status = 'open'`,

		`CREATE INDEX IF NOT EXISTS idx_warnings_status
		 ON transaction_warnings(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

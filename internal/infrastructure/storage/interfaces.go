package storage

import "time"

// Repository defines the complete storage interface.
// This interface allows swapping implementations and makes testing
// the application layer straightforward.
type Repository interface {
	TransactionRepository
	ExpectationRepository
	AllocationRepository
	IBANRepository
	WarningRepository
	BatchRepository
	Close() error
}

// TransactionRepository handles bank transaction records
type TransactionRepository interface {
	// InsertTransaction stores an imported statement line and returns its ID
	InsertTransaction(tx *BankTransaction) (int64, error)

	// GetTransaction retrieves a transaction with its derived allocation sum
	GetTransaction(id int64) (*BankTransaction, error)

	// ListTransactions returns transactions matching the filters, with the
	// allocation sum joined in so the match state can be derived
	ListTransactions(filters TransactionFilters) (*TransactionListResult, error)

	// ListUnmatched returns all non-ignored transactions with zero allocations
	ListUnmatched() ([]*BankTransaction, error)

	// IgnoreUnmatchedByIBAN flags every currently-unmatched transaction with
	// the given payer IBAN as ignored and returns how many were affected
	IgnoreUnmatchedByIBAN(iban string) (int64, error)

	// FindDuplicateCandidates returns non-ignored transactions from the same
	// IBAN with the same amount booked within windowDays of bookedOn,
	// excluding the transaction itself
	FindDuplicateCandidates(iban string, amountCents int64, bookedOn time.Time, windowDays int, excludeID int64) ([]*BankTransaction, error)
}

// TransactionFilters defines filters for listing transactions
type TransactionFilters struct {
	State          MatchState // Filter by derived state (empty = all)
	Search         string     // Matches payer name, IBAN, or description
	Limit          int        // Max results (0 = default 50)
	Offset         int        // Pagination offset
	OrderBy        string     // Sort field: "booked_on", "amount", "payer" (default: "booked_on")
	OrderDesc      bool       // Sort descending
	IncludeIgnored bool       // Include blacklist-ignored transactions
}

// TransactionListResult contains paginated transaction results
type TransactionListResult struct {
	Transactions []*BankTransaction `json:"transactions"`
	TotalCount   int                `json:"total_count"`
	Limit        int                `json:"limit"`
	Offset       int                `json:"offset"`
}

// ExpectationRepository handles fee expectation records
type ExpectationRepository interface {
	// InsertExpectation stores a fee expectation and returns its ID
	InsertExpectation(fee *FeeExpectation) (int64, error)

	// GetExpectation retrieves a fee expectation by ID
	GetExpectation(id int64) (*FeeExpectation, error)

	// ListOpenExpectations returns all unpaid fee expectations
	ListOpenExpectations() ([]*FeeExpectation, error)

	// ListExpectationsByChild returns all fee expectations for a child
	ListExpectationsByChild(childID int64) ([]*FeeExpectation, error)

	// DeleteExpectation removes a fee expectation; rejected while any
	// allocation still references it
	DeleteExpectation(id int64) error
}

// AllocationSplit is one requested (fee, amount) pair of an allocation.
type AllocationSplit struct {
	ExpectationID int64
	AmountCents   int64
}

// AllocatedFee captures a fee's state around an allocation, for the
// anomaly pass that runs afterwards.
type AllocatedFee struct {
	Fee            *FeeExpectation
	AllocatedCents int64
	WasPaidBefore  bool
}

// AllocationResult reports the outcome of an allocation.
type AllocationResult struct {
	Created        int
	AlreadyExisted int
	Transaction    *BankTransaction
	Fees           []AllocatedFee
}

// UnmatchResult reports the outcome of reversing a transaction's allocations.
type UnmatchResult struct {
	AllocationsRemoved int
	TransactionDeleted bool
}

// AllocationRepository handles payment match records.
// Allocate and Unmatch are transactional: either every side effect lands
// or none does.
type AllocationRepository interface {
	// Allocate creates one payment match per split, increments each fee's
	// matched amount, and flips paid flags. Splits whose (transaction, fee)
	// pair already exists are skipped, making re-confirmation a no-op.
	// Returns ErrConflict when the requested amounts no longer fit the
	// transaction's unallocated remainder.
	Allocate(txID int64, splits []AllocationSplit, matchedBy MatchReason, allowOverpayment bool) (*AllocationResult, error)

	// Unmatch reverses all of a transaction's allocations and optionally
	// deletes the transaction row. Returns ErrConflict when there is
	// nothing to unmatch.
	Unmatch(txID int64, deleteTransaction bool) (*UnmatchResult, error)

	// ListAllocations returns all allocations of a transaction
	ListAllocations(txID int64) ([]*PaymentMatch, error)

	// ListAllocationsByExpectation returns all allocations onto a fee
	ListAllocationsByExpectation(expectationID int64) ([]*PaymentMatch, error)
}

// IBANRepository handles trust and blacklist entries
type IBANRepository interface {
	// UpsertTrust records that an IBAN paid fees for a child
	UpsertTrust(iban string, childID int64, payerName string) error

	// RemoveTrust deletes a per-child trust entry
	RemoveTrust(iban string, childID int64) error

	// ListTrustedByChild returns trust entries scoped to a child
	ListTrustedByChild(childID int64) ([]*KnownIBAN, error)

	// HasTrustHistory reports whether the IBAN has any trust entry at all
	HasTrustHistory(iban string) (bool, error)

	// TrustedIBANsByChild returns the full trust map, keyed child -> IBAN set.
	// Used as a read-through scoring context instead of an in-memory cache.
	TrustedIBANsByChild() (map[int64]map[string]bool, error)

	// AddToBlacklist records a global blacklist entry with audit context
	AddToBlacklist(entry *KnownIBAN) error

	// RemoveFromBlacklist deletes the blacklist entry for an IBAN
	RemoveFromBlacklist(iban string) error

	// IsBlacklisted reports whether the IBAN is on the global blacklist
	IsBlacklisted(iban string) (bool, error)

	// ListBlacklist returns all blacklist entries
	ListBlacklist() ([]*KnownIBAN, error)
}

// WarningRepository handles anomaly warnings
type WarningRepository interface {
	// CreateWarningIfAbsent inserts a warning unless an open warning for the
	// same (transaction, expectation, type) cause already exists.
	// Returns true when a new warning was created.
	CreateWarningIfAbsent(w *TransactionWarning) (bool, error)

	// GetWarning retrieves a warning by ID
	GetWarning(id string) (*TransactionWarning, error)

	// ListWarnings returns warnings, optionally filtered by status
	ListWarnings(status WarningStatus) ([]*TransactionWarning, error)

	// SetWarningStatus transitions a warning to dismissed or resolved
	SetWarningStatus(id string, status WarningStatus, note string) error
}

// BatchRepository handles import batch records
type BatchRepository interface {
	// CreateBatch stores a new import batch
	CreateBatch(b *ImportBatch) error

	// FinishBatch records the final row counts and covered date range
	FinishBatch(id string, txCount int, fromDate, toDate time.Time) error

	// IncrementBatchMatched bumps the matched counter of a batch
	IncrementBatchMatched(id string, delta int) error

	// GetBatch retrieves a batch by ID
	GetBatch(id string) (*ImportBatch, error)

	// ListBatches returns recent batches, newest first
	ListBatches(limit int) ([]*ImportBatch, error)
}

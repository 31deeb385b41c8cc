package storage

import "time"

// FeeType classifies a fee expectation.
type FeeType string

const (
	FeeMembership FeeType = "membership"
	FeeFood       FeeType = "food"
	FeeChildcare  FeeType = "childcare"
	FeeReminder   FeeType = "reminder"
)

// MatchReason records why an allocation was made.
type MatchReason string

const (
	ReasonTrustedIBAN  MatchReason = "trusted_iban"
	ReasonMemberNumber MatchReason = "member_number"
	ReasonName         MatchReason = "name"
	ReasonParentName   MatchReason = "parent_name"
	ReasonCombined     MatchReason = "combined"
	ReasonManual       MatchReason = "manual"
)

// MatchState is the derived match state of a transaction.
type MatchState string

const (
	StateUnmatched        MatchState = "unmatched"
	StateMatched          MatchState = "matched"
	StatePartiallyMatched MatchState = "partially_matched"
)

// IBANKind distinguishes trust entries from blacklist entries.
type IBANKind string

const (
	IBANTrusted     IBANKind = "trusted"
	IBANBlacklisted IBANKind = "blacklisted"
)

// WarningType classifies an anomaly warning.
type WarningType string

const (
	WarnAmountMismatch   WarningType = "AMOUNT_MISMATCH"
	WarnDuplicatePayment WarningType = "DUPLICATE_PAYMENT"
	WarnUnknownIBAN      WarningType = "UNKNOWN_IBAN"
	WarnLatePayment      WarningType = "LATE_PAYMENT"
)

// WarningStatus is the resolution state of a warning.
type WarningStatus string

const (
	WarningOpen      WarningStatus = "open"
	WarningDismissed WarningStatus = "dismissed"
	WarningResolved  WarningStatus = "resolved"
)

// BankTransaction is one imported bank-statement line.
// Immutable after import except for the ignored flag; the match state is
// derived from the sum of its allocations.
type BankTransaction struct {
	ID             int64     `json:"id"`
	AmountCents    int64     `json:"amount_cents"`
	BookedOn       time.Time `json:"booked_on"`
	PayerName      string    `json:"payer_name"`
	PayerIBAN      string    `json:"payer_iban,omitempty"`
	Description    string    `json:"description"`
	BatchID        string    `json:"batch_id"`
	Ignored        bool      `json:"ignored"`
	AllocatedCents int64     `json:"allocated_cents"`
	CreatedAt      time.Time `json:"created_at"`
}

// MatchState derives the transaction's state from its allocation sum.
func (t *BankTransaction) MatchState() MatchState {
	switch {
	case t.AllocatedCents == 0:
		return StateUnmatched
	case t.AllocatedCents >= t.AmountCents:
		return StateMatched
	default:
		return StatePartiallyMatched
	}
}

// RemainingCents is the still-unallocated part of the transaction amount.
func (t *BankTransaction) RemainingCents() int64 {
	remaining := t.AmountCents - t.AllocatedCents
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FeeExpectation is a due obligation for a child.
// Created by fee generation (external); only matched_cents and paid are
// mutated here, via the allocator.
type FeeExpectation struct {
	ID           int64     `json:"id"`
	ChildID      int64     `json:"child_id"`
	ChildName    string    `json:"child_name"`
	ParentName   string    `json:"parent_name,omitempty"`
	MemberNumber string    `json:"member_number,omitempty"`
	FeeType      FeeType   `json:"fee_type"`
	Year         int       `json:"year"`
	Month        *int      `json:"month,omitempty"`
	AmountCents  int64     `json:"amount_cents"`
	DueOn        time.Time `json:"due_on"`
	MatchedCents int64     `json:"matched_cents"`
	Paid         bool      `json:"paid"`
	ReminderFor  *int64    `json:"reminder_for,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RemainingCents is the still-uncovered part of the fee amount.
func (f *FeeExpectation) RemainingCents() int64 {
	remaining := f.AmountCents - f.MatchedCents
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PaymentMatch binds part of a transaction's amount to one fee expectation.
type PaymentMatch struct {
	ID            int64       `json:"id"`
	TransactionID int64       `json:"transaction_id"`
	ExpectationID int64       `json:"expectation_id"`
	AmountCents   int64       `json:"amount_cents"`
	MatchedBy     MatchReason `json:"matched_by"`
	CreatedAt     time.Time   `json:"created_at"`
}

// KnownIBAN is a durable per-IBAN record: either a trust entry scoped to a
// child, or a global blacklist entry carrying audit context from the
// dismissed transaction.
type KnownIBAN struct {
	ID              int64     `json:"id"`
	IBAN            string    `json:"iban"`
	ChildID         *int64    `json:"child_id,omitempty"`
	Kind            IBANKind  `json:"kind"`
	PayerName       string    `json:"payer_name,omitempty"`
	LastAmountCents int64     `json:"last_amount_cents,omitempty"`
	LastDescription string    `json:"last_description,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// TransactionWarning is an anomaly flag raised by the detector.
type TransactionWarning struct {
	ID            string        `json:"id"`
	TransactionID *int64        `json:"transaction_id,omitempty"`
	ExpectationID *int64        `json:"expectation_id,omitempty"`
	ChildID       *int64        `json:"child_id,omitempty"`
	Type          WarningType   `json:"type"`
	Message       string        `json:"message"`
	Status        WarningStatus `json:"status"`
	Note          string        `json:"note,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ImportBatch is one statement ingestion run. Append-only, except the
// matched counter which is updated as matches land within its transactions.
type ImportBatch struct {
	ID           string    `json:"id"`
	FileName     string    `json:"file_name"`
	FromDate     time.Time `json:"from_date"`
	ToDate       time.Time `json:"to_date"`
	TxCount      int       `json:"tx_count"`
	MatchedCount int       `json:"matched_count"`
	ImportedBy   string    `json:"imported_by"`
	CreatedAt    time.Time `json:"created_at"`
}

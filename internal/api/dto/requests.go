package dto

// TransactionListParams represents query parameters for listing transactions.
type TransactionListParams struct {
	State          string `json:"state"`
	Search         string `json:"search"`
	Limit          int    `json:"limit"`
	Offset         int    `json:"offset"`
	OrderBy        string `json:"order_by"`
	OrderDesc      bool   `json:"order_desc"`
	IncludeIgnored bool   `json:"include_ignored"`
}

// DefaultTransactionListParams returns default values for transaction list params.
func DefaultTransactionListParams() TransactionListParams {
	return TransactionListParams{
		Limit:     50,
		Offset:    0,
		OrderBy:   "booked_on",
		OrderDesc: true,
	}
}

// ConfirmMatchesRequest submits suggested pairings for confirmation.
type ConfirmMatchesRequest struct {
	Pairs []ConfirmPairRequest `json:"pairs" binding:"required,min=1,dive"`
}

// ConfirmPairRequest is one (transaction, fee) pairing to confirm.
type ConfirmPairRequest struct {
	TransactionID int64 `json:"transaction_id" binding:"required,gt=0"`
	ExpectationID int64 `json:"expectation_id" binding:"required,gt=0"`
}

// AllocateRequest splits a transaction's amount across fee expectations.
type AllocateRequest struct {
	Splits           []AllocationSplitRequest `json:"splits" binding:"required,min=1,dive"`
	AllowOverpayment bool                     `json:"allow_overpayment"`
}

// AllocationSplitRequest is one (fee, amount) pair of an allocation.
type AllocationSplitRequest struct {
	ExpectationID int64 `json:"expectation_id" binding:"required,gt=0"`
	AmountCents   int64 `json:"amount_cents" binding:"required,gt=0"`
}

// UnmatchRequest reverses a transaction's allocations.
type UnmatchRequest struct {
	DeleteTransaction bool `json:"delete_transaction"`
}

// WarningUpdateRequest closes a warning with an optional note.
type WarningUpdateRequest struct {
	Note string `json:"note"`
}

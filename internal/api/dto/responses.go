package dto

import (
	"time"

	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// TransactionResponse represents a bank transaction in API responses,
// with the derived match state spelled out.
type TransactionResponse struct {
	ID             int64  `json:"id"`
	AmountCents    int64  `json:"amount_cents"`
	BookedOn       string `json:"booked_on"`
	PayerName      string `json:"payer_name"`
	PayerIBAN      string `json:"payer_iban,omitempty"`
	Description    string `json:"description"`
	BatchID        string `json:"batch_id,omitempty"`
	Ignored        bool   `json:"ignored"`
	AllocatedCents int64  `json:"allocated_cents"`
	RemainingCents int64  `json:"remaining_cents"`
	State          string `json:"state"`
	CreatedAt      string `json:"created_at"`
}

// FromTransaction converts a storage transaction to its response shape.
func FromTransaction(tx *storage.BankTransaction) TransactionResponse {
	return TransactionResponse{
		ID:             tx.ID,
		AmountCents:    tx.AmountCents,
		BookedOn:       tx.BookedOn.Format("2006-01-02"),
		PayerName:      tx.PayerName,
		PayerIBAN:      tx.PayerIBAN,
		Description:    tx.Description,
		BatchID:        tx.BatchID,
		Ignored:        tx.Ignored,
		AllocatedCents: tx.AllocatedCents,
		RemainingCents: tx.RemainingCents(),
		State:          string(tx.MatchState()),
		CreatedAt:      tx.CreatedAt.Format(time.RFC3339),
	}
}

// TransactionListResponse is returned when listing transactions.
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	TotalCount   int                   `json:"total_count"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

// TransactionDetailResponse is a transaction with its allocations.
type TransactionDetailResponse struct {
	Transaction TransactionResponse     `json:"transaction"`
	Allocations []*storage.PaymentMatch `json:"allocations"`
}

// UnmatchResponse is returned after reversing a transaction's allocations.
type UnmatchResponse struct {
	AllocationsRemoved int  `json:"allocations_removed"`
	TransactionDeleted bool `json:"transaction_deleted"`
}

package recon

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kitaverein/recon-backend/internal/infrastructure/config"
	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

func newTestService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "recon_service_*.db")
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())
	t.Cleanup(func() { _ = os.Remove(tmpFile.Name()) })

	store, err := storage.NewStore(tmpFile.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{
		Matching: config.MatchingConfig{
			AutoConfirmThreshold: 0.80,
			AmbiguityMargin:      0.05,
			SuggestionFloor:      0.10,
			SubsetMaxSize:        3,
			SubsetCandidatePool:  12,
			DuplicateWindowDays:  7,
		},
		Fees: config.FeesConfig{ReminderFeeCents: 500},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewService(store, cfg, logger), store
}

func insertTx(t *testing.T, store *storage.Store, amountCents int64, payer, iban string, bookedOn time.Time) *storage.BankTransaction {
	t.Helper()

	id, err := store.InsertTransaction(&storage.BankTransaction{
		AmountCents: amountCents,
		BookedOn:    bookedOn,
		PayerName:   payer,
		PayerIBAN:   iban,
		Description: "Ueberweisung",
	})
	require.NoError(t, err)

	tx, err := store.GetTransaction(id)
	require.NoError(t, err)
	return tx
}

func insertFee(t *testing.T, store *storage.Store, childID int64, childName string, feeType storage.FeeType, amountCents int64, dueOn time.Time) *storage.FeeExpectation {
	t.Helper()

	id, err := store.InsertExpectation(&storage.FeeExpectation{
		ChildID:     childID,
		ChildName:   childName,
		FeeType:     feeType,
		Year:        2026,
		AmountCents: amountCents,
		DueOn:       dueOn,
	})
	require.NoError(t, err)

	fee, err := store.GetExpectation(id)
	require.NoError(t, err)
	return fee
}

var (
	marchSecond = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	aprilDue    = time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
)

func openWarningsOfType(t *testing.T, store *storage.Store, warnType storage.WarningType) []*storage.TransactionWarning {
	t.Helper()

	all, err := store.ListWarnings(storage.WarningOpen)
	require.NoError(t, err)

	var filtered []*storage.TransactionWarning
	for _, w := range all {
		if w.Type == warnType {
			filtered = append(filtered, w)
		}
	}
	return filtered
}

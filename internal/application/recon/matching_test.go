package recon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

func TestSuggestionsForChild_FiltersToHighConfidence(t *testing.T) {
	svc, store := newTestService(t)

	// Shared family IBAN trusted for two siblings: ambiguous, so the payment
	// stays suggested instead of auto-matching
	require.NoError(t, store.UpsertTrust("DE11", 1, "Anna Klein"))
	require.NoError(t, store.UpsertTrust("DE11", 2, "Max Klein"))
	insertTx(t, store, 4500, "Klein", "DE11", marchSecond)
	annaFee := insertFee(t, store, 1, "Anna Klein", storage.FeeFood, 4500, aprilDue)
	insertFee(t, store, 2, "Max Klein", storage.FeeFood, 4500, aprilDue)
	insertFee(t, store, 3, "Lena Schulz", storage.FeeFood, 4500, aprilDue)

	reports, err := svc.SuggestionsForChild(1)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Len(t, reports[0].Candidates, 1, "only the queried child's candidates appear")
	assert.Equal(t, []int64{annaFee.ID}, reports[0].Candidates[0].ExpectationIDs)
	assert.GreaterOrEqual(t, reports[0].Candidates[0].Confidence, 0.80)

	// Amount alone is not enough evidence to surface the payment for Lena
	reports, err = svc.SuggestionsForChild(3)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestSuggestionsForChild_DoesNotApply(t *testing.T) {
	svc, store := newTestService(t)

	require.NoError(t, store.UpsertTrust("DE11", 1, "Anna Klein"))
	tx := insertTx(t, store, 4500, "Anna Klein", "DE11", marchSecond)
	fee := insertFee(t, store, 1, "Anna Klein", storage.FeeFood, 4500, aprilDue)

	// A would-be auto-match is listed but never allocated by a read
	reports, err := svc.SuggestionsForChild(1)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.NotEmpty(t, reports[0].Candidates)
	assert.Equal(t, []int64{fee.ID}, reports[0].Candidates[0].ExpectationIDs)

	reloaded, err := store.GetTransaction(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StateUnmatched, reloaded.MatchState())
}

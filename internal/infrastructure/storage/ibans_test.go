package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_UpsertTrust_PerChild(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpsertTrust("DE11", 1, "Anna Klein"))
	require.NoError(t, store.UpsertTrust("DE11", 2, "Anna Klein")) // sibling, same account
	require.NoError(t, store.UpsertTrust("DE11", 1, "A. Klein"))   // re-learning updates, no duplicate

	entries, err := store.ListTrustedByChild(1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "A. Klein", entries[0].PayerName)

	has, err := store.HasTrustHistory("DE11")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = store.HasTrustHistory("DE99")
	require.NoError(t, err)
	assert.False(t, has)

	trusted, err := store.TrustedIBANsByChild()
	require.NoError(t, err)
	assert.True(t, trusted[1]["DE11"])
	assert.True(t, trusted[2]["DE11"])
	assert.False(t, trusted[3]["DE11"])
}

func TestStore_UpsertTrust_RejectsBlacklisted(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AddToBlacklist(&KnownIBAN{IBAN: "DE99", PayerName: "Sportverein e.V."}))

	err := store.UpsertTrust("DE99", 1, "Sportverein e.V.")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestStore_AddToBlacklist_DropsTrustEntries(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpsertTrust("DE11", 1, "Anna Klein"))
	require.NoError(t, store.UpsertTrust("DE11", 2, "Anna Klein"))

	require.NoError(t, store.AddToBlacklist(&KnownIBAN{IBAN: "DE11", PayerName: "Anna Klein"}))

	// The IBAN is in exactly one state now
	has, err := store.HasTrustHistory("DE11")
	require.NoError(t, err)
	assert.False(t, has)

	blacklisted, err := store.IsBlacklisted("DE11")
	require.NoError(t, err)
	assert.True(t, blacklisted)
}

func TestStore_AddToBlacklist_RefreshesAudit(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AddToBlacklist(&KnownIBAN{IBAN: "DE99", PayerName: "Alt", LastAmountCents: 100}))
	require.NoError(t, store.AddToBlacklist(&KnownIBAN{IBAN: "DE99", PayerName: "Neu", LastAmountCents: 200, LastDescription: "Spende"}))

	entries, err := store.ListBlacklist()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Neu", entries[0].PayerName)
	assert.Equal(t, int64(200), entries[0].LastAmountCents)
	assert.Equal(t, "Spende", entries[0].LastDescription)
}

func TestStore_RemoveFromBlacklist(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.AddToBlacklist(&KnownIBAN{IBAN: "DE99"}))
	require.NoError(t, store.RemoveFromBlacklist("DE99"))

	blacklisted, err := store.IsBlacklisted("DE99")
	require.NoError(t, err)
	assert.False(t, blacklisted)

	err = store.RemoveFromBlacklist("DE99")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RemoveTrust(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpsertTrust("DE11", 1, "Anna Klein"))
	require.NoError(t, store.RemoveTrust("DE11", 1))

	err := store.RemoveTrust("DE11", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

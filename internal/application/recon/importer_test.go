package recon

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

func TestParseStatement_GermanFormat(t *testing.T) {
	input := strings.Join([]string{
		"Buchungstag;Name;IBAN;Betrag;Verwendungszweck",
		"02.03.2026;Anna Klein;DE11 2345 6789;1.234,56;Mitgliedsbeitrag",
		"03.03.2026;Ben Maier;DE22;45,00;Essensgeld",
	}, "\n")

	rows, skipped, err := ParseStatement(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(123456), rows[0].AmountCents)
	assert.Equal(t, "DE1123456789", rows[0].PayerIBAN, "IBAN spaces are stripped")
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), rows[0].BookedOn)
	assert.Equal(t, "Mitgliedsbeitrag", rows[0].Description)

	assert.Equal(t, int64(4500), rows[1].AmountCents)
}

func TestParseStatement_DotDecimalAndISODates(t *testing.T) {
	input := "2026-03-02;Anna Klein;DE11;165.00;Beitrag\n"

	rows, skipped, err := ParseStatement(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(16500), rows[0].AmountCents)
}

func TestParseStatement_SkipsBadRows(t *testing.T) {
	input := strings.Join([]string{
		"02.03.2026;Anna Klein;DE11;45,00;Essensgeld",
		"not a statement line",
		"02.03.2026;Leer Betrag;DE33;kaputt;x",
		"02.03.2026;Abbuchung GmbH;DE44;-20,00;Lastschrift", // outgoing, not a payment
		"02.13.2026;Falsches Datum;DE55;10,00;x",
	}, "\n")

	rows, skipped, err := ParseStatement(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 4, skipped)
}

func TestImportStatement_EndToEnd(t *testing.T) {
	svc, store := newTestService(t)

	// Anna is a known payer with an open food fee; the Sportverein is noise
	// that was blacklisted earlier.
	insertFee(t, store, 1, "Anna Klein", storage.FeeFood, 4500, aprilDue)
	require.NoError(t, store.UpsertTrust("DE11", 1, "Anna Klein"))
	require.NoError(t, store.AddToBlacklist(&storage.KnownIBAN{IBAN: "DE99", PayerName: "Sportverein e.V."}))

	input := strings.Join([]string{
		"Buchungstag;Name;IBAN;Betrag;Verwendungszweck",
		"02.03.2026;Anna Klein;DE11;45,00;Essensgeld Maerz",
		"03.03.2026;Sportverein e.V.;DE99;99,00;Spende",
		"kaputte zeile",
		"04.03.2026;Unbekannt GmbH;DE55;12,34;Rechnung 778899",
	}, "\n")

	report, err := svc.ImportStatement("maerz.csv", "kassenwart", strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 4, report.TotalRows)
	assert.Equal(t, 3, report.Imported)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Ignored)
	assert.Equal(t, 1, report.AutoMatched)
	assert.NotEmpty(t, report.BatchID)

	// Anna's fee is settled by the auto-match
	fees, err := store.ListExpectationsByChild(1)
	require.NoError(t, err)
	require.Len(t, fees, 1)
	assert.True(t, fees[0].Paid)

	// The blacklisted payment is stored but ignored
	result, err := store.ListTransactions(storage.TransactionFilters{IncludeIgnored: true, Search: "Sportverein"})
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	assert.True(t, result.Transactions[0].Ignored)

	// Batch bookkeeping
	batch, err := store.GetBatch(report.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 3, batch.TxCount)
	assert.Equal(t, 1, batch.MatchedCount)
	assert.Equal(t, "kassenwart", batch.ImportedBy)
}

func TestImportStatement_DuplicateInWindowWarns(t *testing.T) {
	svc, store := newTestService(t)

	input := strings.Join([]string{
		"02.03.2026;Anna Klein;DE11;45,00;Essensgeld",
		"04.03.2026;Anna Klein;DE11;45,00;Essensgeld",
	}, "\n")

	_, err := svc.ImportStatement("maerz.csv", "", strings.NewReader(input))
	require.NoError(t, err)

	duplicates := openWarningsOfType(t, store, storage.WarnDuplicatePayment)
	assert.NotEmpty(t, duplicates)
}

func TestImportStatement_EmptyFileRejected(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ImportStatement("leer.csv", "", strings.NewReader(""))
	assert.True(t, IsValidation(err))
}

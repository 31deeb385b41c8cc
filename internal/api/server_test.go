package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitaverein/recon-backend/internal/application/recon"
	"github.com/kitaverein/recon-backend/internal/infrastructure/config"
	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

func newTestRouter(t *testing.T) (*gin.Engine, *storage.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tmpFile, err := os.CreateTemp("", "recon_api_*.db")
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())
	t.Cleanup(func() { _ = os.Remove(tmpFile.Name()) })

	store, err := storage.NewStore(tmpFile.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{AllowedOrigins: []string{"http://localhost:5173"}},
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
	service := recon.NewService(store, cfg, logger)

	server := NewServer(service, store, logger)
	return server.Router(cfg.Server), store
}

func seedTx(t *testing.T, store *storage.Store, amountCents int64, payer, iban string) int64 {
	t.Helper()
	id, err := store.InsertTransaction(&storage.BankTransaction{
		AmountCents: amountCents,
		BookedOn:    time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		PayerName:   payer,
		PayerIBAN:   iban,
		Description: "Ueberweisung",
	})
	require.NoError(t, err)
	return id
}

func seedFeeRow(t *testing.T, store *storage.Store, childID int64, childName string, amountCents int64) int64 {
	t.Helper()
	id, err := store.InsertExpectation(&storage.FeeExpectation{
		ChildID:     childID,
		ChildName:   childName,
		FeeType:     storage.FeeFood,
		Year:        2026,
		AmountCents: amountCents,
		DueOn:       time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return id
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := doJSON(router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "healthy")
}

func TestImportEndpoint_Multipart(t *testing.T) {
	router, store := newTestRouter(t)

	require.NoError(t, store.UpsertTrust("DE11", 1, "Anna Klein"))
	seedFeeRow(t, store, 1, "Anna Klein", 4500)

	statement := "Buchungstag;Name;IBAN;Betrag;Verwendungszweck\n" +
		"02.03.2026;Anna Klein;DE11;45,00;Essensgeld Maerz\n"

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "maerz.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(statement))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("imported_by", "kassenwart"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var report map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &report))
	assert.Equal(t, float64(1), report["imported"])
	assert.Equal(t, float64(1), report["auto_matched"])
}

func TestImportEndpoint_MissingFile(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := doJSON(router, http.MethodPost, "/api/import", nil)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestListTransactions_FiltersAndShape(t *testing.T) {
	router, store := newTestRouter(t)

	seedTx(t, store, 4500, "Anna Klein", "DE11")
	seedTx(t, store, 9900, "Ben Maier", "DE22")

	recorder := doJSON(router, http.MethodGet, "/api/transactions?state=unmatched&search=Klein", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Transactions []struct {
			PayerName string `json:"payer_name"`
			State     string `json:"state"`
		} `json:"transactions"`
		TotalCount int `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.Len(t, response.Transactions, 1)
	assert.Equal(t, "Anna Klein", response.Transactions[0].PayerName)
	assert.Equal(t, "unmatched", response.Transactions[0].State)

	// Unknown state filter is rejected
	recorder = doJSON(router, http.MethodGet, "/api/transactions?state=weird", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestConfirmAndUnmatchFlow(t *testing.T) {
	router, store := newTestRouter(t)

	txID := seedTx(t, store, 4500, "Anna Klein", "DE11")
	feeID := seedFeeRow(t, store, 1, "Anna Klein", 4500)

	recorder := doJSON(router, http.MethodPost, "/api/matches/confirm", map[string]any{
		"pairs": []map[string]int64{{"transaction_id": txID, "expectation_id": feeID}},
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Contains(t, recorder.Body.String(), `"confirmed":1`)

	detail := doJSON(router, http.MethodGet, fmt.Sprintf("/api/transactions/%d", txID), nil)
	require.Equal(t, http.StatusOK, detail.Code)
	assert.Contains(t, detail.Body.String(), `"state":"matched"`)

	unmatch := doJSON(router, http.MethodPost, fmt.Sprintf("/api/transactions/%d/unmatch", txID), nil)
	require.Equal(t, http.StatusOK, unmatch.Code)
	assert.Contains(t, unmatch.Body.String(), `"allocations_removed":1`)

	// Unmatching again conflicts: nothing left to reverse
	again := doJSON(router, http.MethodPost, fmt.Sprintf("/api/transactions/%d/unmatch", txID), nil)
	assert.Equal(t, http.StatusConflict, again.Code)
}

func TestConfirm_PartialFailureIsMultiStatus(t *testing.T) {
	router, store := newTestRouter(t)

	txID := seedTx(t, store, 4500, "Anna Klein", "DE11")
	feeID := seedFeeRow(t, store, 1, "Anna Klein", 4500)

	recorder := doJSON(router, http.MethodPost, "/api/matches/confirm", map[string]any{
		"pairs": []map[string]int64{
			{"transaction_id": txID, "expectation_id": feeID},
			{"transaction_id": 9999, "expectation_id": feeID},
		},
	})

	assert.Equal(t, http.StatusMultiStatus, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"confirmed":1`)
}

func TestAllocateEndpoint_Validation(t *testing.T) {
	router, store := newTestRouter(t)

	txID := seedTx(t, store, 4500, "Anna Klein", "DE11")

	recorder := doJSON(router, http.MethodPost, fmt.Sprintf("/api/transactions/%d/allocations", txID), map[string]any{
		"splits": []map[string]int64{},
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doJSON(router, http.MethodPost, "/api/transactions/abc/allocations", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestDismissAndBlacklistFlow(t *testing.T) {
	router, store := newTestRouter(t)

	txID := seedTx(t, store, 9900, "Sportverein e.V.", "DE99")
	seedTx(t, store, 9900, "Sportverein e.V.", "DE99")

	recorder := doJSON(router, http.MethodPost, fmt.Sprintf("/api/transactions/%d/dismiss", txID), nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"transactions_ignored":2`)

	list := doJSON(router, http.MethodGet, "/api/blacklist", nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), "DE99")

	remove := doJSON(router, http.MethodDelete, "/api/blacklist/DE99", nil)
	assert.Equal(t, http.StatusOK, remove.Code)

	missing := doJSON(router, http.MethodDelete, "/api/blacklist/DE99", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestTransactionNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	recorder := doJSON(router, http.MethodGet, "/api/transactions/424242", nil)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "not_found")
}

func TestRescanEndpoint(t *testing.T) {
	router, store := newTestRouter(t)

	require.NoError(t, store.UpsertTrust("DE11", 1, "Anna Klein"))
	seedTx(t, store, 4500, "Anna Klein", "DE11")
	seedFeeRow(t, store, 1, "Anna Klein", 4500)

	recorder := doJSON(router, http.MethodPost, "/api/rescan", nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"auto_matched":1`)
}

func TestWarningsEndpoints(t *testing.T) {
	router, store := newTestRouter(t)

	// Confirming a payment from an unseen account raises an UNKNOWN_IBAN warning
	txID := seedTx(t, store, 4500, "Oma Klein", "DE88")
	feeID := seedFeeRow(t, store, 1, "Anna Klein", 4500)
	doJSON(router, http.MethodPost, "/api/matches/confirm", map[string]any{
		"pairs": []map[string]int64{{"transaction_id": txID, "expectation_id": feeID}},
	})

	list := doJSON(router, http.MethodGet, "/api/warnings?status=open", nil)
	require.Equal(t, http.StatusOK, list.Code)

	var response struct {
		Warnings []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &response))
	require.NotEmpty(t, response.Warnings)

	dismiss := doJSON(router, http.MethodPost, "/api/warnings/"+response.Warnings[0].ID+"/dismiss",
		map[string]string{"note": "bekannt"})
	assert.Equal(t, http.StatusOK, dismiss.Code)

	// Already handled: a second transition conflicts
	again := doJSON(router, http.MethodPost, "/api/warnings/"+response.Warnings[0].ID+"/resolve", nil)
	assert.Equal(t, http.StatusConflict, again.Code)
}

func TestChildEndpoints(t *testing.T) {
	router, store := newTestRouter(t)

	seedFeeRow(t, store, 1, "Anna Klein", 4500)
	require.NoError(t, store.UpsertTrust("DE11", 1, "Anna Klein"))

	fees := doJSON(router, http.MethodGet, "/api/children/1/fees", nil)
	require.Equal(t, http.StatusOK, fees.Code)
	assert.Contains(t, fees.Body.String(), "Anna Klein")

	ibans := doJSON(router, http.MethodGet, "/api/children/1/ibans", nil)
	require.Equal(t, http.StatusOK, ibans.Code)
	assert.Contains(t, ibans.Body.String(), "DE11")

	remove := doJSON(router, http.MethodDelete, "/api/children/1/ibans/DE11", nil)
	assert.Equal(t, http.StatusOK, remove.Code)

	missing := doJSON(router, http.MethodDelete, "/api/children/1/ibans/DE11", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestFeeDetailEndpoint(t *testing.T) {
	router, store := newTestRouter(t)

	txID := seedTx(t, store, 4500, "Anna Klein", "DE11")
	feeID := seedFeeRow(t, store, 1, "Anna Klein", 4500)

	confirm := doJSON(router, http.MethodPost, "/api/matches/confirm", map[string]any{
		"pairs": []map[string]any{{"transaction_id": txID, "expectation_id": feeID}},
	})
	require.Equal(t, http.StatusOK, confirm.Code)

	recorder := doJSON(router, http.MethodGet, fmt.Sprintf("/api/fees/%d", feeID), nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"allocations"`)
	assert.Contains(t, recorder.Body.String(), fmt.Sprintf(`"transaction_id":%d`, txID))

	missing := doJSON(router, http.MethodGet, "/api/fees/424242", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestManualMatchEndpoint(t *testing.T) {
	router, store := newTestRouter(t)

	txID := seedTx(t, store, 4500, "Unleserlich GmbH", "DE77")
	feeID := seedFeeRow(t, store, 1, "Anna Klein", 4500)

	recorder := doJSON(router, http.MethodPost, "/api/matches", map[string]any{
		"transaction_id": txID,
		"expectation_id": feeID,
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"confirmed":1`)

	allocations, err := store.ListAllocations(txID)
	require.NoError(t, err)
	require.Len(t, allocations, 1)
	assert.Equal(t, storage.ReasonManual, allocations[0].MatchedBy)

	missing := doJSON(router, http.MethodPost, "/api/matches", map[string]any{
		"transaction_id": 424242,
		"expectation_id": feeID,
	})
	assert.Equal(t, http.StatusNotFound, missing.Code)

	malformed := doJSON(router, http.MethodPost, "/api/matches", map[string]any{
		"transaction_id": txID,
	})
	assert.Equal(t, http.StatusBadRequest, malformed.Code)
}

func TestChildSuggestionsEndpoint(t *testing.T) {
	router, store := newTestRouter(t)

	require.NoError(t, store.UpsertTrust("DE11", 1, "Anna Klein"))
	require.NoError(t, store.UpsertTrust("DE11", 2, "Max Klein"))
	seedTx(t, store, 4500, "Klein", "DE11")
	seedFeeRow(t, store, 1, "Anna Klein", 4500)
	seedFeeRow(t, store, 2, "Max Klein", 4500)

	recorder := doJSON(router, http.MethodGet, "/api/children/1/suggestions", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Anna Klein")
	assert.NotContains(t, recorder.Body.String(), "Max Klein")

	empty := doJSON(router, http.MethodGet, "/api/children/3/suggestions", nil)
	require.Equal(t, http.StatusOK, empty.Code)
}

func TestSuggestionsEndpoint(t *testing.T) {
	router, store := newTestRouter(t)

	require.NoError(t, store.UpsertTrust("DE11", 1, "Anna Klein"))
	require.NoError(t, store.UpsertTrust("DE11", 2, "Max Klein"))
	txID := seedTx(t, store, 4500, "Klein", "DE11")
	seedFeeRow(t, store, 1, "Anna Klein", 4500)
	seedFeeRow(t, store, 2, "Max Klein", 4500)

	recorder := doJSON(router, http.MethodGet, fmt.Sprintf("/api/transactions/%d/suggestions", txID), nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var report struct {
		Candidates []struct {
			Confidence float64 `json:"confidence"`
		} `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &report))
	require.GreaterOrEqual(t, len(report.Candidates), 2)
	assert.Greater(t, report.Candidates[0].Confidence, 0.5)
}

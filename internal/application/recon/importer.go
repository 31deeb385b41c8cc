package recon

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

// StatementRow is one parsed line of a bank statement export
type StatementRow struct {
	BookedOn    time.Time
	PayerName   string
	PayerIBAN   string
	AmountCents int64
	Description string
}

// ImportReport summarizes one statement ingestion run
type ImportReport struct {
	BatchID     string             `json:"batch_id"`
	FileName    string             `json:"file_name"`
	TotalRows   int                `json:"total_rows"`
	Imported    int                `json:"imported"`
	Skipped     int                `json:"skipped"`
	Ignored     int                `json:"ignored"`
	AutoMatched int                `json:"auto_matched"`
	Suggestions []SuggestionReport `json:"suggestions,omitempty"`
}

var dateLayouts = []string{"02.01.2006", "2006-01-02", "02.01.06"}

// ParseStatement reads a semicolon-separated statement export:
//
//	booked_on;payer_name;payer_iban;amount;description
//
// A header row is detected and skipped. Rows that cannot be parsed, or
// carry a non-positive amount (outgoing transfers), are counted as skipped
// rather than failing the whole file. Amounts accept both "165,00" and
// "165.00".
func ParseStatement(r io.Reader) (rows []StatementRow, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	for lineNo := 0; ; lineNo++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if lineNo == 0 && isHeaderRow(record) {
			continue
		}

		row, ok := parseRow(record)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, row)
	}

	return rows, skipped, nil
}

func isHeaderRow(record []string) bool {
	if len(record) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(record[0]))
	return first == "buchungstag" || first == "booked_on" || first == "datum" || first == "date"
}

func parseRow(record []string) (StatementRow, bool) {
	if len(record) < 5 {
		return StatementRow{}, false
	}

	var bookedOn time.Time
	var err error
	for _, layout := range dateLayouts {
		bookedOn, err = time.Parse(layout, strings.TrimSpace(record[0]))
		if err == nil {
			break
		}
	}
	if err != nil {
		return StatementRow{}, false
	}

	cents, err := parseAmountCents(record[3])
	if err != nil || cents <= 0 {
		return StatementRow{}, false
	}

	payer := strings.TrimSpace(record[1])
	if payer == "" {
		return StatementRow{}, false
	}

	return StatementRow{
		BookedOn:    bookedOn,
		PayerName:   payer,
		PayerIBAN:   normalizeIBAN(record[2]),
		AmountCents: cents,
		Description: strings.TrimSpace(record[4]),
	}, true
}

// parseAmountCents converts a statement amount like "165,00" or "1.234,56"
// to euro cents, exactly.
func parseAmountCents(raw string) (int64, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if strings.Contains(cleaned, ",") {
		// German formatting: dot groups thousands, comma separates cents
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("unparseable amount %q: %w", raw, err)
	}
	if amount.Exponent() < -2 {
		return 0, fmt.Errorf("amount %q has sub-cent precision: %w", raw, storage.ErrInvalid)
	}

	return amount.Shift(2).IntPart(), nil
}

func normalizeIBAN(raw string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
}

// ImportStatement ingests a statement export: parse, persist each row,
// auto-ignore blacklisted payers, then run the matcher over the new
// transactions. Unparseable rows are skipped and counted; they never abort
// the batch.
func (s *Service) ImportStatement(fileName, importedBy string, r io.Reader) (*ImportReport, error) {
	parsed, skipped, err := ParseStatement(r)
	if err != nil {
		return nil, err
	}
	if len(parsed) == 0 && skipped == 0 {
		return nil, NewValidationError("statement file contains no rows")
	}

	batch := &storage.ImportBatch{
		ID:         uuid.NewString(),
		FileName:   fileName,
		ImportedBy: importedBy,
	}
	if err := s.repo.CreateBatch(batch); err != nil {
		return nil, err
	}

	report := &ImportReport{
		BatchID:   batch.ID,
		FileName:  fileName,
		TotalRows: len(parsed) + skipped,
		Skipped:   skipped,
	}

	openFees, err := s.repo.ListOpenExpectations()
	if err != nil {
		return nil, err
	}
	ctx, err := s.scoringContext()
	if err != nil {
		return nil, err
	}

	var fromDate, toDate time.Time
	for _, row := range parsed {
		blacklisted, err := s.repo.IsBlacklisted(row.PayerIBAN)
		if err != nil {
			return nil, err
		}

		tx := &storage.BankTransaction{
			AmountCents: row.AmountCents,
			BookedOn:    row.BookedOn,
			PayerName:   row.PayerName,
			PayerIBAN:   row.PayerIBAN,
			Description: row.Description,
			BatchID:     batch.ID,
			Ignored:     blacklisted,
		}
		id, err := s.repo.InsertTransaction(tx)
		if err != nil {
			s.logger.Warn("row not imported", "payer", row.PayerName, "error", err)
			report.Skipped++
			continue
		}
		tx.ID = id
		report.Imported++

		if fromDate.IsZero() || row.BookedOn.Before(fromDate) {
			fromDate = row.BookedOn
		}
		if row.BookedOn.After(toDate) {
			toDate = row.BookedOn
		}

		if blacklisted {
			report.Ignored++
			continue
		}

		s.detectDuplicateAtImport(tx)

		created, suggestions, err := s.matchOne(tx, openFees, ctx)
		if err != nil {
			return nil, err
		}
		if created > 0 {
			report.AutoMatched++
		}
		if suggestions != nil {
			report.Suggestions = append(report.Suggestions, *suggestions)
		}
	}

	if err := s.repo.FinishBatch(batch.ID, report.Imported, fromDate, toDate); err != nil {
		return nil, err
	}

	s.logger.Info("statement imported",
		"batch_id", batch.ID,
		"file", fileName,
		"imported", report.Imported,
		"skipped", report.Skipped,
		"ignored", report.Ignored,
		"auto_matched", report.AutoMatched)
	return report, nil
}

// GetBatch returns one import batch
func (s *Service) GetBatch(id string) (*storage.ImportBatch, error) {
	return s.repo.GetBatch(id)
}

// ListBatches returns recent import batches, newest first
func (s *Service) ListBatches(limit int) ([]*storage.ImportBatch, error) {
	return s.repo.ListBatches(limit)
}

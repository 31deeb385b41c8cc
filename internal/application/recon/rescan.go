package recon

// RescanReport summarizes a matching pass over the unmatched pool.
// NewMatches counts the allocations created, AutoMatched the transactions
// they settled.
type RescanReport struct {
	Scanned     int                `json:"scanned"`
	AutoMatched int                `json:"auto_matched"`
	NewMatches  int                `json:"new_matches"`
	Suggested   int                `json:"suggested"`
	Suggestions []SuggestionReport `json:"suggestions,omitempty"`
}

// Rescan re-runs the matcher over every unmatched, non-ignored transaction.
// Useful after new fee expectations were generated or trust entries changed.
// Transactions lost to concurrent allocations are skipped, not failed.
func (s *Service) Rescan() (*RescanReport, error) {
	unmatched, err := s.repo.ListUnmatched()
	if err != nil {
		return nil, err
	}

	openFees, err := s.repo.ListOpenExpectations()
	if err != nil {
		return nil, err
	}
	ctx, err := s.scoringContext()
	if err != nil {
		return nil, err
	}

	report := &RescanReport{Scanned: len(unmatched)}
	for _, tx := range unmatched {
		created, suggestions, err := s.matchOne(tx, openFees, ctx)
		if err != nil {
			return nil, err
		}
		if created > 0 {
			report.AutoMatched++
			report.NewMatches += created
		}
		if suggestions != nil {
			report.Suggested++
			report.Suggestions = append(report.Suggestions, *suggestions)
		}
	}

	s.logger.Info("rescan finished",
		"scanned", report.Scanned,
		"auto_matched", report.AutoMatched,
		"new_matches", report.NewMatches,
		"suggested", report.Suggested)
	return report, nil
}

// Package recon orchestrates the reconciliation workflows: statement import,
// matching, allocation, anomaly detection, and blacklist handling.
//
// The package owns all cross-record workflows; per-record persistence and the
// pure scoring/matching logic live below it in storage and domain.
package recon

import (
	"log/slog"
	"sync"

	"github.com/kitaverein/recon-backend/internal/domain/matcher"
	"github.com/kitaverein/recon-backend/internal/domain/scorer"
	"github.com/kitaverein/recon-backend/internal/infrastructure/config"
	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

// Service coordinates reconciliation operations
type Service struct {
	repo    storage.Repository
	scorer  *scorer.Scorer
	matcher *matcher.Matcher
	logger  *slog.Logger

	duplicateWindowDays  int
	reminderFeeCents     int64
	autoConfirmThreshold float64

	// txLocks serializes mutating operations per transaction. The database
	// transaction re-checks the allocation sum, so this only reduces
	// needless conflict errors between concurrent admins.
	txLocks   map[int64]*sync.Mutex
	txLocksMu sync.Mutex
}

// NewService creates the reconciliation service with thresholds from config
func NewService(repo storage.Repository, cfg *config.Config, logger *slog.Logger) *Service {
	scorerCfg := scorer.DefaultConfig()
	sc := scorer.NewScorer(scorerCfg)

	matcherCfg := matcher.DefaultConfig()
	matcherCfg.AutoConfirmThreshold = cfg.Matching.AutoConfirmThreshold
	matcherCfg.AmbiguityMargin = cfg.Matching.AmbiguityMargin
	matcherCfg.SuggestionFloor = cfg.Matching.SuggestionFloor
	matcherCfg.SubsetMaxSize = cfg.Matching.SubsetMaxSize
	matcherCfg.SubsetCandidatePool = cfg.Matching.SubsetCandidatePool

	return &Service{
		repo:                 repo,
		scorer:               sc,
		matcher:              matcher.NewMatcher(matcherCfg, sc),
		logger:               logger,
		duplicateWindowDays:  cfg.Matching.DuplicateWindowDays,
		reminderFeeCents:     cfg.Fees.ReminderFeeCents,
		autoConfirmThreshold: matcherCfg.AutoConfirmThreshold,
		txLocks:              make(map[int64]*sync.Mutex),
	}
}

// lockTransaction acquires the per-transaction mutex and returns the unlock
func (s *Service) lockTransaction(txID int64) func() {
	s.txLocksMu.Lock()
	lock, exists := s.txLocks[txID]
	if !exists {
		lock = &sync.Mutex{}
		s.txLocks[txID] = lock
	}
	s.txLocksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// scoringContext loads the trust map fresh from the ledger. Read-through on
// purpose: trust entries change with every payer-evidence match.
func (s *Service) scoringContext() (scorer.Context, error) {
	trusted, err := s.repo.TrustedIBANsByChild()
	if err != nil {
		return scorer.Context{}, err
	}
	return scorer.Context{TrustedIBANs: trusted}, nil
}

package recon

import (
	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

// DismissReport summarizes dismissing a transaction to the blacklist
type DismissReport struct {
	IBAN                string `json:"iban"`
	TransactionsIgnored int64  `json:"transactions_ignored"`
}

// DismissTransaction marks a payer as not-association-related: the IBAN goes
// on the global blacklist and every currently-unmatched transaction from it,
// including this one, is flagged ignored. Allocated transactions stay as
// they are.
func (s *Service) DismissTransaction(txID int64) (*DismissReport, error) {
	unlock := s.lockTransaction(txID)
	defer unlock()

	tx, err := s.repo.GetTransaction(txID)
	if err != nil {
		return nil, err
	}
	if tx.PayerIBAN == "" {
		return nil, NewValidationError("transaction has no payer IBAN to blacklist")
	}
	if tx.AllocatedCents > 0 {
		return nil, NewValidationError("transaction has allocations; unmatch it before dismissing")
	}

	entry := &storage.KnownIBAN{
		IBAN:            tx.PayerIBAN,
		Kind:            storage.IBANBlacklisted,
		PayerName:       tx.PayerName,
		LastAmountCents: tx.AmountCents,
		LastDescription: tx.Description,
	}
	if err := s.repo.AddToBlacklist(entry); err != nil {
		return nil, err
	}

	ignored, err := s.repo.IgnoreUnmatchedByIBAN(tx.PayerIBAN)
	if err != nil {
		return nil, err
	}

	s.logger.Info("payer dismissed",
		"iban", tx.PayerIBAN,
		"payer", tx.PayerName,
		"transactions_ignored", ignored)
	return &DismissReport{IBAN: tx.PayerIBAN, TransactionsIgnored: ignored}, nil
}

// RemoveFromBlacklist takes an IBAN off the blacklist. Already-ignored
// transactions stay ignored; a later explicit rescan or import picks future
// payments up again.
func (s *Service) RemoveFromBlacklist(iban string) error {
	if iban == "" {
		return NewValidationError("iban is required")
	}
	if err := s.repo.RemoveFromBlacklist(iban); err != nil {
		return err
	}

	s.logger.Info("iban removed from blacklist", "iban", iban)
	return nil
}

// ListBlacklist returns all blacklist entries
func (s *Service) ListBlacklist() ([]*storage.KnownIBAN, error) {
	return s.repo.ListBlacklist()
}

// ListTrustedIBANs returns the trust entries of one child
func (s *Service) ListTrustedIBANs(childID int64) ([]*storage.KnownIBAN, error) {
	return s.repo.ListTrustedByChild(childID)
}

// RemoveTrustedIBAN deletes a per-child trust entry, for example after a
// family changes bank accounts
func (s *Service) RemoveTrustedIBAN(iban string, childID int64) error {
	if iban == "" {
		return NewValidationError("iban is required")
	}
	return s.repo.RemoveTrust(iban, childID)
}

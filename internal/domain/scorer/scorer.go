// Package scorer computes match confidence for a (transaction, fee) pair.
//
// Scoring is a pure function over the pair and a read-through trust context:
//   - trusted IBAN scoped to the fee's child: strong base score
//   - exact amount match: fixed bonus
//   - fee-type keywords in the description: small bonus
//   - payer name similarity against child or parent name: scaled bonus
//   - member number verbatim in the description: strong bonus
//
// Bonuses are additive and capped below 1.0 so manual matches always take
// precedence over heuristic ones.
package scorer

import (
	"strings"

	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

// Config holds scoring weights and thresholds
type Config struct {
	TrustedIBANWeight float64 // Base score for a trusted IBAN (default: 0.60)
	ExactAmountBonus  float64 // Bonus for an exact amount match (default: 0.25)
	FeeTypeBonus      float64 // Bonus when description keywords match the fee type (default: 0.05)
	NameWeight        float64 // Max bonus for child name similarity (default: 0.30)
	ParentNameWeight  float64 // Max bonus for parent name similarity (default: 0.25)
	MemberNumberBonus float64 // Bonus for a verbatim member number hit (default: 0.50)
	MinNameSimilarity float64 // Similarity below this contributes nothing (default: 0.50)
	Ceiling           float64 // Hard cap on heuristic confidence (default: 0.99)
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		TrustedIBANWeight: 0.60,
		ExactAmountBonus:  0.25,
		FeeTypeBonus:      0.05,
		NameWeight:        0.30,
		ParentNameWeight:  0.25,
		MemberNumberBonus: 0.50,
		MinNameSimilarity: 0.50,
		Ceiling:           0.99,
	}
}

// Context carries the trust data scoring reads. It is plain data loaded from
// the ledger per call, not a long-lived cache.
type Context struct {
	// TrustedIBANs maps child ID -> set of IBANs trusted for that child.
	TrustedIBANs map[int64]map[string]bool
}

// Trusted reports whether the IBAN is trusted for the given child.
func (c Context) Trusted(iban string, childID int64) bool {
	if iban == "" {
		return false
	}
	return c.TrustedIBANs[childID][iban]
}

// Scorer scores transaction/fee pairs
type Scorer struct {
	config Config
}

// NewScorer creates a new scorer with the given config
func NewScorer(config Config) *Scorer {
	return &Scorer{config: config}
}

// Score computes a confidence in [0, Ceiling] and the reason code of the
// strongest contributing payer signal. Pure: no side effects.
//
// When no payer-derived signal contributes (amount or fee-type only), the
// reason falls back to manual, since a human confirmation would be the only
// evidence tying the payment to this fee.
func (s *Scorer) Score(tx *storage.BankTransaction, fee *storage.FeeExpectation, ctx Context) (float64, storage.MatchReason) {
	confidence := 0.0
	reason := storage.ReasonManual
	strongest := 0.0

	record := func(bonus float64, r storage.MatchReason) {
		confidence += bonus
		if bonus > strongest {
			strongest = bonus
			reason = r
		}
	}

	if ctx.Trusted(tx.PayerIBAN, fee.ChildID) {
		record(s.config.TrustedIBANWeight, storage.ReasonTrustedIBAN)
	}

	if fee.MemberNumber != "" && containsToken(tx.Description, fee.MemberNumber) {
		record(s.config.MemberNumberBonus, storage.ReasonMemberNumber)
	}

	if sim := Similarity(tx.PayerName, fee.ChildName); sim >= s.config.MinNameSimilarity {
		record(s.config.NameWeight*sim, storage.ReasonName)
	} else if sim := Similarity(tx.PayerName, fee.ParentName); sim >= s.config.MinNameSimilarity {
		record(s.config.ParentNameWeight*sim, storage.ReasonParentName)
	}

	// Amount and fee-type signals raise confidence but never carry a match
	// on their own, so they do not set the reason.
	if tx.AmountCents == fee.AmountCents {
		confidence += s.config.ExactAmountBonus
	}

	if inferFeeType(tx.Description) == fee.FeeType {
		confidence += s.config.FeeTypeBonus
	}

	if confidence > s.config.Ceiling {
		confidence = s.config.Ceiling
	}

	return confidence, reason
}

// feeTypeKeywords maps description keywords to fee types. Statements from
// the association's members are overwhelmingly German.
var feeTypeKeywords = map[storage.FeeType][]string{
	storage.FeeMembership: {"mitglied", "beitrag", "membership"},
	storage.FeeFood:       {"essen", "essensgeld", "verpflegung", "food"},
	storage.FeeChildcare:  {"betreuung", "kita", "hort", "childcare"},
	storage.FeeReminder:   {"mahnung", "mahngeb", "reminder"},
}

// inferFeeType guesses a fee type from description keywords.
// Returns "" when nothing matches.
func inferFeeType(description string) storage.FeeType {
	desc := strings.ToLower(description)
	for _, feeType := range []storage.FeeType{storage.FeeReminder, storage.FeeFood, storage.FeeChildcare, storage.FeeMembership} {
		for _, keyword := range feeTypeKeywords[feeType] {
			if strings.Contains(desc, keyword) {
				return feeType
			}
		}
	}
	return ""
}

// containsToken reports whether needle appears as its own token in haystack,
// case-insensitively. Used for member numbers, where a substring hit inside
// a longer number would be a false positive.
func containsToken(haystack, needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return false
	}
	for _, token := range tokenize(haystack) {
		if token == needle {
			return true
		}
	}
	return false
}

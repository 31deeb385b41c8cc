package scorer

import "strings"

// Similarity returns a [0,1] estimate of how well two person names match.
// Case-insensitive; combines token overlap with character-bigram overlap so
// that "Klein" vs "Anna Klein" and small spelling variations both score.
func Similarity(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	joinedA := strings.Join(ta, " ")
	joinedB := strings.Join(tb, " ")
	if joinedA == joinedB {
		return 1
	}

	token := tokenOverlap(ta, tb)
	bigram := diceCoefficient(bigrams(joinedA), bigrams(joinedB))

	if bigram > token {
		return bigram
	}
	return token
}

// tokenize lowercases and splits a name into letter/digit runs.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		isLetter := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127
		return !isLetter
	})
}

// tokenOverlap scores how many tokens of the shorter name appear in the
// longer one. A full last-name hit inside "Anna Klein" vs "Klein" counts.
func tokenOverlap(a, b []string) float64 {
	short, long := a, b
	if len(b) < len(a) {
		short, long = b, a
	}

	longSet := make(map[string]bool, len(long))
	for _, token := range long {
		longSet[token] = true
	}

	hits := 0
	for _, token := range short {
		if longSet[token] {
			hits++
		}
	}

	return float64(hits) / float64(len(short))
}

// bigrams returns the multiset of adjacent character pairs of s.
func bigrams(s string) map[string]int {
	grams := make(map[string]int)
	runes := []rune(s)
	for i := 0; i+1 < len(runes); i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}

// diceCoefficient computes the Sørensen–Dice coefficient of two bigram
// multisets.
func diceCoefficient(a, b map[string]int) float64 {
	totalA, totalB := 0, 0
	for _, n := range a {
		totalA += n
	}
	for _, n := range b {
		totalB += n
	}
	if totalA+totalB == 0 {
		return 0
	}

	common := 0
	for gram, n := range a {
		if m, ok := b[gram]; ok {
			if m < n {
				common += m
			} else {
				common += n
			}
		}
	}

	return 2 * float64(common) / float64(totalA+totalB)
}

// Package fuzzy scores free-text similarity and selects the best candidate
// from a reference list.
package fuzzy

import (
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// Match is the best-scoring candidate of a lookup.
// Index is the candidate's position in the list passed to BestMatch.
type Match struct {
	Value string  `json:"value"`
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Ratio returns the indel similarity of a and b on a 0-100 scale: one minus
// the insertion and deletion distance over the combined rune count.
// Two empty strings score 100.
func Ratio(a, b string) float64 {
	if a == b {
		return 100
	}

	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	dist := edlib.LCSEditDistance(a, b)

	return (1 - float64(dist)/float64(total)) * 100
}

// BestMatch compares query against every candidate case-insensitively and
// returns the highest-scoring one. Ties go to the earliest candidate.
// The second result is false when candidates is empty.
func BestMatch(query string, candidates []string) (Match, bool) {
	if len(candidates) == 0 {
		return Match{}, false
	}

	q := strings.ToLower(query)
	best := Match{Index: -1, Score: -1}

	for i, c := range candidates {
		score := Ratio(q, strings.ToLower(c))
		if score > best.Score {
			best = Match{Value: c, Index: i, Score: score}
		}
	}

	return best, true
}

// Meets reports whether the match reached threshold.
func (m Match) Meets(threshold float64) bool {
	return m.Index >= 0 && m.Score >= threshold
}

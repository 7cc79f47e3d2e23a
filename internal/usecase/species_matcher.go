package usecase

import (
	"github.com/shogun-olives/hacksc-2024-WildIn/internal/domain"
)

// maxSuggestionDistance caps how far a misspelt species name may be from a catalog entry
const maxSuggestionDistance = 3

// SuggestSpecies returns the catalog species closest to query by edit distance on
// normalized keys. Short names tolerate fewer edits so "oak" does not suggest "ivy".
// names should be in a stable order; the first of equally close names wins.
func SuggestSpecies(query string, names []string) (string, bool) {
	q := domain.NormalizeSpeciesKey(query)
	if q == "" {
		return "", false
	}

	best := ""
	bestDistance := -1
	for _, name := range names {
		key := domain.NormalizeSpeciesKey(name)

		// Quick length check - if lengths differ by more than the limit, can't match
		limit := suggestionLimit(key)
		lenDiff := len([]rune(key)) - len([]rune(q))
		if lenDiff < 0 {
			lenDiff = -lenDiff
		}
		if lenDiff > limit {
			continue
		}

		d := levenshteinDistance(q, key)
		if d > limit {
			continue
		}
		if bestDistance < 0 || d < bestDistance {
			best, bestDistance = name, d
		}
	}

	return best, bestDistance >= 0
}

// suggestionLimit allows one edit per four characters, up to maxSuggestionDistance
func suggestionLimit(key string) int {
	return min(max(len([]rune(key))/4, 1), maxSuggestionDistance)
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// Use two rows instead of full matrix
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

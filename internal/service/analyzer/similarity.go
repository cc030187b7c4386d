package analyzer

import (
	"strings"
)

// SQLKeywords is the clause vocabulary used by KeywordSequenceSimilarity, in
// the order keywords are reported.
var SQLKeywords = []string{
	"SELECT",
	"FROM",
	"WHERE",
	"JOIN",
	"GROUP BY",
	"HAVING",
	"ORDER BY",
	"INSERT",
	"UPDATE",
	"DELETE",
}

// Jaccard returns |A∩B| / |A∪B| over the normalized token sets of a and b.
func Jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// NormalizedLevenshtein returns 1 - editDistance/maxLen over the lowercased
// runes of a and b.
func NormalizedLevenshtein(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))

	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}

	distance := levenshteinDistance(ra, rb)
	return float64(maxLen-distance) / float64(maxLen)
}

// levenshteinDistance keeps two rows sized by the shorter input.
func levenshteinDistance(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,
				curr[j-1]+1,
				prev[j-1]+cost,
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// ExtractKeywords returns the SQLKeywords found in text by case-insensitive
// substring match.
func ExtractKeywords(text string) []string {
	upper := strings.ToUpper(text)
	keywords := make([]string, 0, len(SQLKeywords))
	for _, keyword := range SQLKeywords {
		if strings.Contains(upper, keyword) {
			keywords = append(keywords, keyword)
		}
	}
	return keywords
}

// KeywordSequenceSimilarity compares the clause shape of two answers:
// |common keywords| / max(|keywords a|, |keywords b|).
func KeywordSequenceSimilarity(a, b string) float64 {
	keywordsA := ExtractKeywords(a)
	keywordsB := ExtractKeywords(b)

	if len(keywordsA) == 0 && len(keywordsB) == 0 {
		return 1.0
	}
	if len(keywordsA) == 0 || len(keywordsB) == 0 {
		return 0.0
	}

	present := make(map[string]struct{}, len(keywordsB))
	for _, keyword := range keywordsB {
		present[keyword] = struct{}{}
	}

	common := 0
	for _, keyword := range keywordsA {
		if _, ok := present[keyword]; ok {
			common++
		}
	}

	longest := len(keywordsA)
	if len(keywordsB) > longest {
		longest = len(keywordsB)
	}
	return float64(common) / float64(longest)
}

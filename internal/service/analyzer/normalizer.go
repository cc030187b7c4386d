package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinTokenLength is the shortest token kept by Tokenize. Shorter tokens
// ("a", "id", "on") carry no signal in SQL answers.
const MinTokenLength = 3

// Tokenize lowercases text, replaces punctuation with spaces, splits on
// whitespace and drops tokens shorter than MinTokenLength.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)

	fields := strings.Fields(cleaned)
	tokens := fields[:0]
	for _, field := range fields {
		if utf8.RuneCountInString(field) >= MinTokenLength {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

func tokenSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}

package search

import (
	"strings"
	"unicode/utf8"
)

// minKeywordLength is the shortest query token that participates in keyword scoring.
const minKeywordLength = 3

// keywords splits query on whitespace, lower-cases it and keeps distinct
// tokens of at least minKeywordLength characters, in first-seen order.
func keywords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minKeywordLength || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// KeywordScore returns the fraction of distinct query keywords that occur as
// substrings of the lower-cased text. Tokens are not stripped of punctuation.
// A query without keywords scores 0 against every text.
func KeywordScore(query, text string) float64 {
	return keywordScore(keywords(query), text)
}

func keywordScore(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lowered := strings.ToLower(text)
	matches := 0
	for _, term := range terms {
		if strings.Contains(lowered, term) {
			matches++
		}
	}
	return float64(matches) / float64(len(terms))
}

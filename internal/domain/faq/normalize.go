package faq

import (
	"sort"
	"strings"
	"unicode"
)

// minTermLength drops short tokens such as "a", "is" and "my".
const minTermLength = 3

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {}, "your": {},
	"all": {}, "can": {}, "had": {}, "her": {}, "was": {}, "one": {}, "our": {}, "out": {},
	"has": {}, "have": {}, "how": {}, "what": {}, "when": {}, "where": {}, "who": {}, "why": {},
	"which": {}, "with": {}, "this": {}, "that": {}, "these": {}, "those": {}, "from": {},
	"into": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {}, "should": {},
	"there": {}, "their": {}, "them": {}, "then": {}, "than": {}, "about": {}, "its": {},
	"also": {}, "just": {}, "get": {}, "any": {}, "some": {}, "way": {},
}

// NormalizeQuestion lowercases q, treats punctuation as whitespace and collapses runs of
// spaces. It is the canonical key for exact lookups, caching and the query log.
func NormalizeQuestion(q string) string {
	lowered := strings.ToLower(strings.TrimSpace(q))
	var builder strings.Builder
	builder.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
			continue
		}
		builder.WriteRune(' ')
	}
	return strings.Join(strings.Fields(builder.String()), " ")
}

// Terms returns the meaningful tokens of text: normalized, at least three characters long
// and not a stop word.
func Terms(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, word := range strings.Fields(NormalizeQuestion(text)) {
		if len([]rune(word)) < minTermLength {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		terms[word] = struct{}{}
	}
	return terms
}

// SortedTerms returns Terms(text) in lexical order.
func SortedTerms(text string) []string {
	set := Terms(text)
	out := make([]string, 0, len(set))
	for term := range set {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when either set is empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	intersection := 0
	for term := range small {
		if _, ok := large[term]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// LexicalSimilarity scores two questions by term overlap.
func LexicalSimilarity(a, b string) float64 {
	return Jaccard(Terms(a), Terms(b))
}

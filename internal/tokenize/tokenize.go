// Package tokenize provides the default tokenizer behind the query core's
// tokenizer port. It lower-cases input, splits on non-alphanumeric
// boundaries, removes stop-words, applies a simple suffix stemmer, and
// reports each token's byte offset in the original text.
package tokenize

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Token is a single normalised term with its rank and byte offset into the
// source text. Offsets are strictly increasing across the returned slice.
type Token struct {
	Word     string
	Rank     int
	Position int
}

// Tokenizer implements the query core's tokenizer port. Identical input
// always produces identical output.
type Tokenizer struct {
	rank int
}

// New returns a Tokenizer assigning the given rank to every token. Ranks
// below 1 are clamped to 1.
func New(rank int) *Tokenizer {
	if rank < 1 {
		rank = 1
	}
	return &Tokenizer{rank: rank}
}

// Tokenize breaks text into stemmed, lower-cased tokens with stop-words
// removed.
func (t *Tokenizer) Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/8)
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		word := strings.ToLower(text[start:end])
		pos := start
		start = -1
		if len(word) < 2 {
			return
		}
		if _, isStop := stopWords[word]; isStop {
			return
		}
		stemmed := stem(word)
		if stemmed == "" {
			return
		}
		tokens = append(tokens, Token{
			Word:     stemmed,
			Rank:     t.rank,
			Position: pos,
		})
	}
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return tokens
}

// stem applies a simple suffix-stripping stemmer to the given word.
func stem(word string) string {
	suffixes := []struct {
		suffix      string
		replacement string
		minLen      int
	}{
		{"ational", "ate", 2},
		{"tional", "tion", 2},
		{"encies", "ence", 2},
		{"ances", "ance", 2},
		{"ments", "ment", 2},
		{"izing", "ize", 2},
		{"ating", "ate", 2},
		{"iness", "y", 2},
		{"ously", "ous", 2},
		{"ively", "ive", 2},
		{"eness", "ene", 2},
		{"tion", "t", 3},
		{"sion", "s", 3},
		{"ying", "y", 2},
		{"ling", "l", 3},
		{"ies", "y", 2},
		{"ing", "", 3},
		{"ers", "er", 2},
		{"est", "", 3},
		{"ful", "", 3},
		{"ous", "", 3},
		{"ess", "", 3},
		{"ble", "", 3},
		{"ed", "", 3},
		{"er", "", 3},
		{"ly", "", 3},
		{"es", "", 3},
		{"ss", "ss", 2},
		{"s", "", 3},
	}
	for _, rule := range suffixes {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}

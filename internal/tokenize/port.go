package tokenize

import "github.com/ftsql/ftsql/internal/query"

// Port adapts a Tokenizer to the query core's tokenizer port.
type Port struct {
	t *Tokenizer
}

// NewPort wraps t for use by the query executor.
func NewPort(t *Tokenizer) Port {
	return Port{t: t}
}

// Tokenize implements query.Tokenizer.
func (p Port) Tokenize(text string) []query.Word {
	tokens := p.t.Tokenize(text)
	words := make([]query.Word, len(tokens))
	for i, tok := range tokens {
		words[i] = query.Word{Word: tok.Word, Rank: tok.Rank, Position: tok.Position}
	}
	return words
}

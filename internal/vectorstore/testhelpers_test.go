package vectorstore_test

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// wordEmbedder hashes words into a bag-of-words vector so that texts
// sharing words score higher than texts that do not.
type wordEmbedder struct {
	dim int
	err error
}

func newWordEmbedder(dim int) *wordEmbedder {
	return &wordEmbedder{dim: dim}
}

func (e *wordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *wordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.embed(text), nil
}

func (e *wordEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[int(h.Sum32())%e.dim]++
	}
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v * v)
	}
	if sumSq == 0 {
		// chromem rejects zero vectors
		vec[0] = 1
		return vec
	}
	norm := float32(1 / math.Sqrt(sumSq))
	for i := range vec {
		vec[i] *= norm
	}
	return vec
}

var errEmbedderDown = errors.New("embedder down")

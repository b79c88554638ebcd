package embeddings

import "strings"

// modelDimensions maps the model names accepted in configuration to their
// output dimension.
var modelDimensions = map[string]int{
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"fast-all-MiniLM-L6-v2":                  384,
	"fast-bge-small-en-v1.5":                 384,
	"fast-bge-small-en":                      384,
	"fast-bge-base-en-v1.5":                  768,
	"fast-bge-base-en":                       768,
}

// DimensionForModel returns the embedding dimension for a model name,
// guessing from the name for models outside the known table.
func DimensionForModel(model string) int {
	if dim, ok := modelDimensions[model]; ok {
		return dim
	}
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "large"):
		return 1024
	case strings.Contains(lower, "base"):
		return 768
	default:
		return 384
	}
}

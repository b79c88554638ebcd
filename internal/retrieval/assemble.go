package retrieval

import (
	"strings"

	"github.com/fyrsmithlabs/portfolio-rag/internal/vectorstore"
)

// UnknownSource stands in for chunks without source metadata.
const UnknownSource = "Unknown"

// Assemble joins chunk texts with a blank line, in retrieval order, and
// collects their unique sources in first-seen order. No truncation is applied.
func Assemble(chunks []vectorstore.SearchResult) (string, []string) {
	texts := make([]string, len(chunks))
	sources := make([]string, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))

	for i, c := range chunks {
		texts[i] = c.Content

		src := c.Source()
		if src == "" {
			src = UnknownSource
		}
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}
	return strings.Join(texts, "\n\n"), sources
}

package ingest

import (
	"fmt"
	"maps"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/fyrsmithlabs/portfolio-rag/internal/vectorstore"
)

// MetadataChunk holds the chunk's position within its source document.
const MetadataChunk = "chunk"

// Split cuts each document into chunks of at most size characters with
// the given overlap, preferring paragraph, then line, then word breaks.
// Every chunk gets its own copy of the parent metadata plus MetadataChunk.
func Split(docs []schema.Document, size, overlap int) ([]schema.Document, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be within [0,%d), got %d", size, overlap)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)

	var chunks []schema.Document
	for _, doc := range docs {
		texts, err := splitter.SplitText(doc.PageContent)
		if err != nil {
			return nil, fmt.Errorf("splitting %v: %w", doc.Metadata[vectorstore.MetadataSource], err)
		}
		for i, text := range texts {
			md := maps.Clone(doc.Metadata)
			if md == nil {
				md = map[string]any{}
			}
			md[MetadataChunk] = i
			chunks = append(chunks, schema.Document{PageContent: text, Metadata: md})
		}
	}
	return chunks, nil
}

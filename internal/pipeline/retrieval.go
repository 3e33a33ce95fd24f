package pipeline

import (
	"context"
	"fmt"

	"legal-rag-assistant/internal/models"
)

// retrieve embeds the standalone query and runs the similarity search. An
// embedding provider failure is fatal to the request; zero qualifying
// passages is a valid outcome handled by the no-evidence path.
func (p *Pipeline) retrieve(ctx context.Context, query string) ([]models.RetrievedPassage, error) {
	embedding, err := p.embedder.Embed(ctx, p.opts.EmbeddingModel, query)
	if err != nil {
		return nil, &UpstreamError{Service: "embedding", Err: err}
	}

	passages, err := p.store.SearchSimilar(embedding, p.opts.TopK, p.opts.RelevanceThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}

	if len(passages) > p.opts.TopK {
		passages = passages[:p.opts.TopK]
	}
	return passages, nil
}

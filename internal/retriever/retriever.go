package retriever

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/gunter0128/sop-assistant/internal/embedding"
	"github.com/gunter0128/sop-assistant/internal/index"
	"github.com/gunter0128/sop-assistant/internal/models"
)

// Retriever embeds queries and ranks every stored segment by cosine
// similarity. It holds read-only views of the index and never mutates
// stored vectors.
type Retriever struct {
	store    *index.Store
	embedder embedding.Embedder
	logger   *zap.Logger
}

// New creates a retriever over the given snapshot store.
func New(store *index.Store, embedder embedding.Embedder, logger *zap.Logger) *Retriever {
	return &Retriever{store: store, embedder: embedder, logger: logger}
}

// Rank embeds the query and returns every segment ranked by descending
// similarity, ties broken by segment ID ascending so the ordering is
// deterministic. The full ranking is what the version resolver needs: every
// version of every document appears somewhere in it.
func (r *Retriever) Rank(ctx context.Context, query string) ([]*models.RankedSegment, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", models.ErrInvalidQuery)
	}
	snap, err := r.store.Current()
	if err != nil {
		return nil, err
	}
	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	segments := snap.Segments()
	ranked := make([]*models.RankedSegment, len(segments))
	for i, seg := range segments {
		ranked[i] = &models.RankedSegment{
			Segment: seg,
			Score:   Cosine(queryVec, seg.Embedding),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Segment.ID < ranked[j].Segment.ID
	})
	if r.logger != nil {
		top := 0.0
		if len(ranked) > 0 {
			top = ranked[0].Score
		}
		r.logger.Debug("query ranked",
			zap.Int("segments", len(ranked)),
			zap.Float64("top_score", top),
		)
	}
	return ranked, nil
}

// Retrieve returns the topK most similar segments. topK must be positive.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]*models.RankedSegment, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", models.ErrInvalidQuery, topK)
	}
	ranked, err := r.Rank(ctx, query)
	if err != nil {
		return nil, err
	}
	if topK > len(ranked) {
		topK = len(ranked)
	}
	return ranked[:topK], nil
}

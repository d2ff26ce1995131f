package answer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gunter0128/sop-assistant/internal/models"
	"github.com/gunter0128/sop-assistant/internal/resolver"
	"github.com/gunter0128/sop-assistant/internal/retriever"
)

// Assistant runs the full pipeline for one question: rank, resolve to the
// authoritative version of each candidate document, synthesize. One query is
// fully processed before the next; the only shared state is the read-only
// index snapshot.
type Assistant struct {
	retriever   *retriever.Retriever
	resolver    *resolver.Resolver
	synthesizer Synthesizer
	defaultTopK int
	maxTopK     int
	logger      *zap.Logger
}

// NewAssistant wires the pipeline stages together.
func NewAssistant(
	ret *retriever.Retriever,
	res *resolver.Resolver,
	synth Synthesizer,
	defaultTopK, maxTopK int,
	logger *zap.Logger,
) *Assistant {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &Assistant{
		retriever:   ret,
		resolver:    res,
		synthesizer: synth,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
		logger:      logger,
	}
}

// DefaultTopK returns the top-K used when a request leaves it unset.
func (a *Assistant) DefaultTopK() int {
	return a.defaultTopK
}

// Ask answers one question. When resolution leaves no grounded context the
// fixed no-evidence answer is returned without calling the synthesis service.
// Citations are always one version per document.
func (a *Assistant) Ask(ctx context.Context, req *models.AskRequest) (*models.Answer, error) {
	start := time.Now()
	if err := req.Validate(a.defaultTopK, a.maxTopK); err != nil {
		return nil, err
	}

	ranked, err := a.retriever.Rank(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	resolved, err := a.resolver.Resolve(ranked, req.TopK)
	if err != nil {
		return nil, err
	}
	retrievedInWindow := req.TopK
	if retrievedInWindow > len(ranked) {
		retrievedInWindow = len(ranked)
	}
	a.logger.Debug("pipeline resolved",
		zap.Int("retrieved", retrievedInWindow),
		zap.Int("resolved_documents", len(resolved)),
	)

	if len(resolved) == 0 {
		return &models.Answer{Text: noEvidenceAnswer, Citations: []models.Citation{}}, nil
	}

	text, err := a.synthesizer.Synthesize(ctx, req.Query, resolved)
	if err != nil {
		return nil, err
	}

	citations := make([]models.Citation, len(resolved))
	for i, doc := range resolved {
		citations[i] = models.Citation{DocID: doc.DocID, Version: doc.Version, Title: doc.Title}
	}
	a.logger.Info("question answered",
		zap.Int("citations", len(citations)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &models.Answer{Text: text, Citations: citations}, nil
}

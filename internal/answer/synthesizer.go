package answer

import (
	"context"

	"github.com/gunter0128/sop-assistant/internal/models"
)

// Synthesizer is the external answer-synthesis boundary: it receives the
// question and the version-resolved context and returns grounded text. The
// citations offered to it are pre-deduplicated to one version per document;
// the core does not police what the service returns.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, resolved []*models.ResolvedDocument) (string, error)
}

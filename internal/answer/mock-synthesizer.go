package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/gunter0128/sop-assistant/internal/models"
)

// MockSynthesizer is a deterministic synthesizer for tests. It echoes the
// question and the grounding documents instead of calling an external service.
type MockSynthesizer struct {
	// Err, when set, is returned by every Synthesize call.
	Err error
	// LastQuery and LastResolved record the most recent call.
	LastQuery    string
	LastResolved []*models.ResolvedDocument
}

// Synthesize returns a canned answer mentioning each grounding document.
func (m *MockSynthesizer) Synthesize(ctx context.Context, query string, resolved []*models.ResolvedDocument) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.LastQuery = query
	m.LastResolved = resolved
	refs := make([]string, len(resolved))
	for i, doc := range resolved {
		refs[i] = fmt.Sprintf("- %s v%s %s", doc.DocID, doc.Version, doc.Title)
	}
	return fmt.Sprintf("Answer to %q.\n\nReferences\n%s", query, strings.Join(refs, "\n")), nil
}

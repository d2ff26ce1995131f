package models

import (
	"fmt"
	"strings"
)

// AskRequest is a question against the SOP corpus.
type AskRequest struct {
	Query string `json:"query"`
	// TopK is the ranked-window size considered for version resolution.
	// Zero means "use the configured default"; negative values are rejected.
	TopK int `json:"top_k,omitempty"`
}

// Validate checks the request and applies defaults. defaultTopK is used when
// TopK is unset; maxTopK caps the window. Returns ErrInvalidQuery for an
// empty query or a negative TopK.
func (r *AskRequest) Validate(defaultTopK, maxTopK int) error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	if r.TopK < 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidQuery, r.TopK)
	}
	if r.TopK == 0 {
		r.TopK = defaultTopK
	}
	if maxTopK > 0 && r.TopK > maxTopK {
		r.TopK = maxTopK
	}
	return nil
}

// Citation names one document version an answer is grounded in.
type Citation struct {
	DocID   string  `json:"doc_id"`
	Version Version `json:"version"`
	Title   string  `json:"title,omitempty"`
}

// Answer is the final response to a question: synthesized text plus the
// pre-deduplicated citations (one version per document).
type Answer struct {
	Text      string     `json:"answer_text"`
	Citations []Citation `json:"citations"`
}

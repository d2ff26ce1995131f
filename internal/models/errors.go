package models

import "errors"

// Error taxonomy. Callers classify failures with errors.Is; the concrete
// cause is carried by wrapping.
var (
	// ErrMalformedDocument indicates a corpus file with missing or
	// unparsable metadata. Surfaced at build time; the document is never
	// indexed with guessed metadata.
	ErrMalformedDocument = errors.New("malformed document")

	// ErrEmbeddingUnavailable indicates the external embedding service
	// failed after bounded retries.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrSynthesisUnavailable indicates the external answer-synthesis
	// service failed after bounded retries.
	ErrSynthesisUnavailable = errors.New("synthesis service unavailable")

	// ErrInvalidQuery indicates a caller error in query parameters.
	// Surfaced immediately, never retried.
	ErrInvalidQuery = errors.New("invalid query parameter")

	// ErrIndexCorrupt indicates the persisted index artifacts disagree.
	// Fatal at load time; the process must not serve queries against it.
	ErrIndexCorrupt = errors.New("index corrupt")
)

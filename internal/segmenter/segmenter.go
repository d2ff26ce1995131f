// Package segmenter parses raw SOP files into metadata-tagged segments.
//
// A raw file carries a structured header followed by a free-text body:
//
//	SOP_ID: SOP-001
//	VERSION: 2.0
//	EFFECTIVE_DATE: 2024-06-01
//	TITLE: Machine startup procedure
//	<body...>
//
// All four header fields are required; a missing or unparsable field fails
// with models.ErrMalformedDocument and the document is never indexed.
package segmenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/gunter0128/sop-assistant/internal/models"
)

var dateFormats = []string{"2006-01-02", "2006/01/02"}

// Segmenter splits document bodies into overlapping word-based segments.
type Segmenter struct {
	segmentSize    int
	segmentOverlap int
}

// New creates a segmenter with the given segment size and overlap (in words).
func New(segmentSize, segmentOverlap int) *Segmenter {
	return &Segmenter{
		segmentSize:    segmentSize,
		segmentOverlap: segmentOverlap,
	}
}

// Segment parses a raw document and returns its identity plus the ordered
// segment sequence. name is used only for error context. Whitespace in the
// body is normalized; concatenating the segments (minus overlap) reproduces
// the normalized body. An empty body yields zero segments.
func (s *Segmenter) Segment(name string, raw []byte) (*models.Document, []*models.Segment, error) {
	doc, body, err := parseHeader(name, string(raw))
	if err != nil {
		return nil, nil, err
	}

	words := strings.Fields(body)
	if len(words) == 0 {
		return doc, nil, nil
	}

	step := s.segmentSize - s.segmentOverlap
	if step <= 0 {
		step = 1
	}
	segments := make([]*models.Segment, 0)
	ordinal := 0
	for i := 0; i < len(words); i += step {
		end := i + s.segmentSize
		if end > len(words) {
			end = len(words)
		}
		segments = append(segments, &models.Segment{
			ID:            SegmentID(doc.DocID, doc.Version, ordinal),
			DocID:         doc.DocID,
			Version:       doc.Version,
			EffectiveDate: doc.EffectiveDate,
			Title:         doc.Title,
			Ordinal:       ordinal,
			Text:          strings.Join(words[i:end], " "),
		})
		ordinal++
		if end >= len(words) {
			break
		}
	}
	return doc, segments, nil
}

// SegmentID returns the deterministic segment ID for a document version and
// ordinal. Deterministic IDs make rebuilds idempotent: the same corpus always
// produces the same ID set.
func SegmentID(docID string, version models.Version, ordinal int) string {
	return fmt.Sprintf("%s@%s#%04d", docID, version, ordinal)
}

// parseHeader extracts the four required header fields. The body starts
// after the TITLE line, matching the original corpus layout.
func parseHeader(name, content string) (*models.Document, string, error) {
	lines := strings.Split(content, "\n")
	header := make(map[string]string)
	body := ""
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		key, value, ok := headerField(trimmed)
		if !ok {
			return nil, "", fmt.Errorf("%w: %s: unexpected line %q before end of header", models.ErrMalformedDocument, name, trimmed)
		}
		header[key] = value
		if key == "TITLE" {
			body = strings.Join(lines[i+1:], "\n")
			break
		}
	}

	for _, key := range []string{"SOP_ID", "VERSION", "EFFECTIVE_DATE", "TITLE"} {
		if header[key] == "" {
			return nil, "", fmt.Errorf("%w: %s: missing %s", models.ErrMalformedDocument, name, key)
		}
	}

	version, err := models.ParseVersion(header["VERSION"])
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", models.ErrMalformedDocument, name, err)
	}
	date, err := parseDate(header["EFFECTIVE_DATE"])
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", models.ErrMalformedDocument, name, err)
	}

	return &models.Document{
		DocID:         header["SOP_ID"],
		Version:       version,
		EffectiveDate: date,
		Title:         header["TITLE"],
	}, body, nil
}

func headerField(line string) (key, value string, ok bool) {
	for _, k := range []string{"SOP_ID", "VERSION", "EFFECTIVE_DATE", "TITLE"} {
		if strings.HasPrefix(line, k+":") {
			return k, strings.TrimSpace(strings.TrimPrefix(line, k+":")), true
		}
	}
	return "", "", false
}

func parseDate(s string) (time.Time, error) {
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid effective date %q", s)
}

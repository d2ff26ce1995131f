// Package models defines core data structures for SOP documents, segments, and answers.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Version is a major.minor document version, orderable.
type Version struct {
	Major int
	Minor int
}

// ParseVersion parses a "major.minor" string (e.g. "2.0"). A bare major
// ("2") is accepted as major.0.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("empty version")
	}
	parts := strings.SplitN(s, ".", 2)
	major, err := strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	minor := 0
	if len(parts) == 2 {
		minor, err = strconv.Atoi(parts[1])
		if err != nil || minor < 0 {
			return Version{}, fmt.Errorf("invalid version %q", s)
		}
	}
	return Version{Major: major, Minor: minor}, nil
}

// Compare returns -1, 0, or 1 comparing v to o (major first, then minor).
func (v Version) Compare(o Version) int {
	if v.Major != o.Major {
		if v.Major < o.Major {
			return -1
		}
		return 1
	}
	if v.Minor != o.Minor {
		if v.Minor < o.Minor {
			return -1
		}
		return 1
	}
	return 0
}

// String returns the "major.minor" form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// MarshalJSON encodes the version as a "major.minor" string.
func (v Version) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(v.String())), nil
}

// UnmarshalJSON decodes a "major.minor" string.
func (v *Version) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("version must be a string: %w", err)
	}
	parsed, err := ParseVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Document identifies one version of a procedure document. DocID is stable
// across versions; (DocID, Version) is unique within a corpus.
type Document struct {
	DocID         string    `json:"doc_id"`
	Version       Version   `json:"version"`
	EffectiveDate time.Time `json:"effective_date"`
	Title         string    `json:"title"`
}

// Segment is one indexable unit of a document version. Segments are created
// at build time and immutable thereafter; document metadata is denormalized
// onto each segment so the metadata table is self-contained.
type Segment struct {
	ID            string    `json:"id"`
	DocID         string    `json:"doc_id"`
	Version       Version   `json:"version"`
	EffectiveDate time.Time `json:"effective_date"`
	Title         string    `json:"title"`
	Ordinal       int       `json:"ordinal"`
	Text          string    `json:"text"`
	Embedding     []float32 `json:"-"`
}

// RankedSegment is a per-query pairing of a segment with its similarity
// score. Not persisted.
type RankedSegment struct {
	Segment *Segment `json:"segment"`
	Score   float64  `json:"score"`
}

// ResolvedDocument is the single version chosen for one doc ID, with all of
// that version's segments (ordered by ordinal) and the best similarity score
// among them.
type ResolvedDocument struct {
	DocID         string     `json:"doc_id"`
	Version       Version    `json:"version"`
	EffectiveDate time.Time  `json:"effective_date"`
	Title         string     `json:"title"`
	Segments      []*Segment `json:"segments"`
	BestScore     float64    `json:"best_score"`
}

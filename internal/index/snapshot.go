package index

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/gunter0128/sop-assistant/internal/models"
)

// Snapshot is an immutable view of the built index: all segments with their
// embeddings, plus a secondary index by doc ID for version enumeration.
// A snapshot is never mutated after construction; concurrent reads are safe
// without locking.
type Snapshot struct {
	segments   []*models.Segment
	byID       map[string]*models.Segment
	byDoc      map[string][]*models.Segment
	dimensions int
	buildID    string
}

// NewSnapshot builds a snapshot from segments (sorted by ID for deterministic
// iteration). buildID identifies the build run that produced it.
func NewSnapshot(segments []*models.Segment, dimensions int, buildID string) *Snapshot {
	sorted := make([]*models.Segment, len(segments))
	copy(sorted, segments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	byID := make(map[string]*models.Segment, len(sorted))
	byDoc := make(map[string][]*models.Segment)
	for _, seg := range sorted {
		byID[seg.ID] = seg
		byDoc[seg.DocID] = append(byDoc[seg.DocID], seg)
	}
	return &Snapshot{
		segments:   sorted,
		byID:       byID,
		byDoc:      byDoc,
		dimensions: dimensions,
		buildID:    buildID,
	}
}

// LoadSnapshot loads the two persisted artifacts and joins them by segment
// ID. A mismatch between the artifacts' ID sets fails with ErrIndexCorrupt.
func LoadSnapshot(ctx context.Context, vectorPath, metadataPath, buildID string) (*Snapshot, error) {
	vectors, dimensions, err := ReadVectorTable(vectorPath)
	if err != nil {
		return nil, err
	}
	meta, err := NewMetadataStore(metadataPath)
	if err != nil {
		return nil, err
	}
	defer meta.Close()

	segments, err := meta.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(segments) != len(vectors) {
		return nil, fmt.Errorf("%w: metadata has %d segments, vector table has %d",
			models.ErrIndexCorrupt, len(segments), len(vectors))
	}
	for _, seg := range segments {
		vec, ok := vectors[seg.ID]
		if !ok {
			return nil, fmt.Errorf("%w: segment %s has metadata but no vector", models.ErrIndexCorrupt, seg.ID)
		}
		seg.Embedding = vec
	}
	return NewSnapshot(segments, dimensions, buildID), nil
}

// Segments returns the segments sorted by ID. Callers must not mutate.
func (s *Snapshot) Segments() []*models.Segment {
	return s.segments
}

// Segment returns the segment with the given ID, if present.
func (s *Snapshot) Segment(id string) (*models.Segment, bool) {
	seg, ok := s.byID[id]
	return seg, ok
}

// DocSegments returns all segments for a doc ID across every version.
func (s *Snapshot) DocSegments(docID string) []*models.Segment {
	return s.byDoc[docID]
}

// DocIDs returns the distinct doc IDs in the snapshot, sorted.
func (s *Snapshot) DocIDs() []string {
	ids := make([]string, 0, len(s.byDoc))
	for id := range s.byDoc {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Candidates returns all known versions of a doc ID, newest first. It backs
// the documents API; resolution works from the full ranking instead.
func (s *Snapshot) Candidates(docID string) []models.Version {
	seen := make(map[models.Version]bool)
	var versions []models.Version
	for _, seg := range s.byDoc[docID] {
		if !seen[seg.Version] {
			seen[seg.Version] = true
			versions = append(versions, seg.Version)
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].Compare(versions[j]) > 0 })
	return versions
}

// Dimensions returns the embedding dimensionality.
func (s *Snapshot) Dimensions() int {
	return s.dimensions
}

// Size returns the number of segments.
func (s *Snapshot) Size() int {
	return len(s.segments)
}

// BuildID identifies the build run that produced this snapshot.
func (s *Snapshot) BuildID() string {
	return s.buildID
}

// Stats summarizes the snapshot contents.
type Stats struct {
	Documents  int    `json:"documents"`
	Versions   int    `json:"versions"`
	Segments   int    `json:"segments"`
	Dimensions int    `json:"dimensions"`
	BuildID    string `json:"build_id"`
}

// Stats returns counts of distinct documents, document versions, and segments.
func (s *Snapshot) Stats() Stats {
	versions := make(map[string]bool)
	for _, seg := range s.segments {
		versions[seg.DocID+"@"+seg.Version.String()] = true
	}
	return Stats{
		Documents:  len(s.byDoc),
		Versions:   len(versions),
		Segments:   len(s.segments),
		Dimensions: s.dimensions,
		BuildID:    s.buildID,
	}
}

// Store publishes the current snapshot. Rebuilds swap in a fresh snapshot
// atomically; in-flight queries keep the snapshot they loaded, so a rebuild
// is never partially visible.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore returns an empty store. Current returns an error until the first Swap.
func NewStore() *Store {
	return &Store{}
}

// Current returns the published snapshot, or an error when none is loaded.
func (s *Store) Current() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, fmt.Errorf("no index loaded")
	}
	return snap, nil
}

// Swap publishes snap as the current snapshot.
func (s *Store) Swap(snap *Snapshot) {
	s.current.Store(snap)
}

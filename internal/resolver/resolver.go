// Package resolver collapses ranked segments to one authoritative version per
// document.
//
// An answer must never be grounded in a superseded procedure, even when an
// older version's text matches the query more closely. The choice is
// "current", not "most similar": effective date first, then version, then
// best similarity score as a last-resort tie break for corpora with
// duplicate (date, version) pairs.
package resolver

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/gunter0128/sop-assistant/internal/models"
)

// Resolver is a pure, stateless stage: the same ranked input always produces
// the same resolution.
type Resolver struct {
	logger *zap.Logger
}

// New creates a resolver. logger may be nil.
func New(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// groupKey identifies one candidate grouping of a document's segments.
type groupKey struct {
	version models.Version
	date    int64
}

// versionGroup accumulates the ranked segments of one (docID, version, date) group.
type versionGroup struct {
	version   models.Version
	segments  []*models.RankedSegment
	bestScore float64
}

// Resolve collapses the full ranking to at most one version per doc ID.
//
// ranked must be the complete corpus ranking (descending). The top-K window
// selects which doc IDs are candidates; the decision for each candidate then
// considers every version of that doc ID anywhere in the ranking, so the
// true-latest version is always weighed even when its segments scored below
// the window. Output groups are ordered by best score descending; each
// group's segments are the chosen version's full segment set in ordinal
// order.
func (r *Resolver) Resolve(ranked []*models.RankedSegment, topK int) ([]*models.ResolvedDocument, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", models.ErrInvalidQuery, topK)
	}
	if len(ranked) == 0 {
		return nil, nil
	}
	window := topK
	if window > len(ranked) {
		window = len(ranked)
	}

	candidates := make(map[string]bool)
	for _, rs := range ranked[:window] {
		candidates[rs.Segment.DocID] = true
	}

	// Group every ranked segment of a candidate doc by (version, date).
	// Distinct dates for one version are a data-integrity case; keeping
	// them separate lets the date key resolve it.
	groups := make(map[string]map[groupKey]*versionGroup)
	for _, rs := range ranked {
		docID := rs.Segment.DocID
		if !candidates[docID] {
			continue
		}
		byVersion := groups[docID]
		if byVersion == nil {
			byVersion = make(map[groupKey]*versionGroup)
			groups[docID] = byVersion
		}
		key := groupKey{version: rs.Segment.Version, date: rs.Segment.EffectiveDate.Unix()}
		g := byVersion[key]
		if g == nil {
			g = &versionGroup{
				version:   rs.Segment.Version,
				bestScore: rs.Score,
			}
			byVersion[key] = g
		}
		g.segments = append(g.segments, rs)
		if rs.Score > g.bestScore {
			g.bestScore = rs.Score
		}
	}

	resolved := make([]*models.ResolvedDocument, 0, len(groups))
	for docID, byVersion := range groups {
		if len(byVersion) == 0 {
			// Cannot happen structurally; a bug in grouping, not caller error.
			return nil, fmt.Errorf("internal: empty version group for doc %s", docID)
		}
		chosen := chooseVersion(byVersion)
		doc := r.buildResolved(docID, chosen)
		resolved = append(resolved, doc)
		if r.logger != nil && len(byVersion) > 1 {
			r.logger.Debug("superseded versions discarded",
				zap.String("doc_id", docID),
				zap.String("chosen", chosen.version.String()),
				zap.Int("versions_seen", len(byVersion)),
			)
		}
	}

	sort.Slice(resolved, func(i, j int) bool {
		if resolved[i].BestScore != resolved[j].BestScore {
			return resolved[i].BestScore > resolved[j].BestScore
		}
		return resolved[i].DocID < resolved[j].DocID
	})
	return resolved, nil
}

// chooseVersion applies the three-key lexicographic comparison.
func chooseVersion(byVersion map[groupKey]*versionGroup) *versionGroup {
	var best *versionGroup
	for _, g := range byVersion {
		if best == nil || isNewer(g, best) {
			best = g
		}
	}
	return best
}

// isNewer reports whether cand supersedes base: later effective date, then
// higher version tuple, then higher best score. Equal date and version is a
// data-integrity edge case, not expected in well-formed corpora.
func isNewer(cand, base *versionGroup) bool {
	candDate := cand.segments[0].Segment.EffectiveDate
	baseDate := base.segments[0].Segment.EffectiveDate
	if !candDate.Equal(baseDate) {
		return candDate.After(baseDate)
	}
	if c := cand.version.Compare(base.version); c != 0 {
		return c > 0
	}
	// Groups are keyed by (version, date), so Resolve never presents two
	// groups equal on both; the score comparison covers direct callers.
	return cand.bestScore > base.bestScore
}

func (r *Resolver) buildResolved(docID string, g *versionGroup) *models.ResolvedDocument {
	segments := make([]*models.Segment, len(g.segments))
	for i, rs := range g.segments {
		segments[i] = rs.Segment
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].Ordinal < segments[j].Ordinal })
	first := segments[0]
	return &models.ResolvedDocument{
		DocID:         docID,
		Version:       g.version,
		EffectiveDate: first.EffectiveDate,
		Title:         first.Title,
		Segments:      segments,
		BestScore:     g.bestScore,
	}
}

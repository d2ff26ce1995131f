package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gunter0128/sop-assistant/internal/embedding"
	"github.com/gunter0128/sop-assistant/internal/models"
	"github.com/gunter0128/sop-assistant/internal/segmenter"
)

// Builder runs the offline index build: scan the corpus directory, segment
// each document, embed all segments, and write the two index artifacts.
// A malformed document aborts the build; nothing is indexed with guessed
// metadata.
type Builder struct {
	corpusDir    string
	extensions   []string
	vectorPath   string
	metadataPath string
	segmenter    *segmenter.Segmenter
	embedder     embedding.Embedder
	logger       *zap.Logger

	// mu serializes builds. The watcher and the rebuild endpoint share one
	// Builder; only one build may write the artifacts at a time.
	mu sync.Mutex
}

// NewBuilder creates a builder over corpusDir. extensions filters corpus
// files (empty = all files).
func NewBuilder(
	corpusDir string,
	extensions []string,
	vectorPath, metadataPath string,
	seg *segmenter.Segmenter,
	embedder embedding.Embedder,
	logger *zap.Logger,
) *Builder {
	return &Builder{
		corpusDir:    corpusDir,
		extensions:   extensions,
		vectorPath:   vectorPath,
		metadataPath: metadataPath,
		segmenter:    seg,
		embedder:     embedder,
		logger:       logger,
	}
}

// Build runs a full build and returns the fresh snapshot. Artifacts are
// written atomically (temp file + rename for the vector table, one
// transaction for the metadata table), so a failed build leaves the previous
// artifacts intact. Concurrent calls run one at a time.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buildID := uuid.New().String()
	files, err := b.corpusFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no corpus files found in %s", b.corpusDir)
	}
	b.logger.Info("index build starting",
		zap.String("build_id", buildID),
		zap.Int("files", len(files)),
		zap.String("corpus_dir", b.corpusDir),
	)

	seenVersions := make(map[string]string)
	var segments []*models.Segment
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		doc, docSegments, err := b.segmenter.Segment(filepath.Base(path), raw)
		if err != nil {
			return nil, err
		}
		key := doc.DocID + "@" + doc.Version.String()
		if prev, dup := seenVersions[key]; dup {
			return nil, fmt.Errorf("%w: %s: document version %s already declared by %s",
				models.ErrMalformedDocument, filepath.Base(path), key, prev)
		}
		seenVersions[key] = filepath.Base(path)
		if len(docSegments) == 0 {
			b.logger.Warn("document has empty body, skipping",
				zap.String("file", filepath.Base(path)),
				zap.String("doc_id", doc.DocID),
			)
			continue
		}
		segments = append(segments, docSegments...)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("corpus produced no segments")
	}

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	embeddings, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed segments: %w", err)
	}
	for i := range segments {
		segments[i].Embedding = embeddings[i]
	}
	dimensions := b.embedder.Dimensions()
	if len(embeddings) > 0 && len(embeddings[0]) > 0 {
		dimensions = len(embeddings[0])
	}

	if err := WriteVectorTable(b.vectorPath, segments, dimensions); err != nil {
		return nil, err
	}
	meta, err := NewMetadataStore(b.metadataPath)
	if err != nil {
		return nil, err
	}
	defer meta.Close()
	if err := meta.ReplaceAll(ctx, segments); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	snap := NewSnapshot(segments, dimensions, buildID)
	stats := snap.Stats()
	b.logger.Info("index build complete",
		zap.String("build_id", buildID),
		zap.Int("documents", stats.Documents),
		zap.Int("versions", stats.Versions),
		zap.Int("segments", stats.Segments),
	)
	return snap, nil
}

// corpusFiles returns matching corpus files sorted by name for deterministic builds.
func (b *Builder) corpusFiles() ([]string, error) {
	entries, err := os.ReadDir(b.corpusDir)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if len(b.extensions) > 0 && !extensionAllowed(filepath.Ext(entry.Name()), b.extensions) {
			continue
		}
		files = append(files, filepath.Join(b.corpusDir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

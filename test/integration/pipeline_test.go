// Package integration exercises the full pipeline against real on-disk
// index artifacts: build a corpus, persist the index, reload it, and answer
// questions.
package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/gunter0128/sop-assistant/internal/answer"
	"github.com/gunter0128/sop-assistant/internal/embedding"
	"github.com/gunter0128/sop-assistant/internal/index"
	"github.com/gunter0128/sop-assistant/internal/models"
	"github.com/gunter0128/sop-assistant/internal/resolver"
	"github.com/gunter0128/sop-assistant/internal/retriever"
	"github.com/gunter0128/sop-assistant/internal/segmenter"
)

func writeSOP(t *testing.T, dir, name, sopID, version, date, title, body string) {
	t.Helper()
	content := fmt.Sprintf("SOP_ID: %s\nVERSION: %s\nEFFECTIVE_DATE: %s\nTITLE: %s\n\n%s\n",
		sopID, version, date, title, body)
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestPipeline_BuildAndAsk(t *testing.T) {
	corpusDir := t.TempDir()
	indexDir := t.TempDir()
	vectorPath := filepath.Join(indexDir, "segments.vec")
	metadataPath := filepath.Join(indexDir, "segments.db")

	writeSOP(t, corpusDir, "lockout_v1.md", "SOP-001", "1.0", "2023-01-10", "Lockout procedure",
		"Apply the red padlock to the main breaker before any maintenance work begins on the press.")
	writeSOP(t, corpusDir, "lockout_v2.md", "SOP-001", "2.0", "2024-06-01", "Lockout procedure",
		"Apply your personal padlock and tag to the main breaker, then verify zero energy at the test point.")
	writeSOP(t, corpusDir, "spill_v1.md", "SOP-002", "1.0", "2024-02-15", "Spill response",
		"Contain the spill with absorbent booms and notify the shift supervisor immediately.")

	logger := zap.NewNop()
	embedder := embedding.NewMockEmbedder(8)
	defer embedder.Close()

	seg := segmenter.New(10, 2)
	builder := index.NewBuilder(corpusDir, []string{".md"}, vectorPath, metadataPath, seg, embedder, logger)

	ctx := context.Background()
	built, err := builder.Build(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if built.Size() == 0 {
		t.Fatal("build produced no segments")
	}

	// Reload from the persisted artifacts; the snapshot must match the one
	// the build returned.
	loaded, err := index.LoadSnapshot(ctx, vectorPath, metadataPath, built.BuildID())
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != built.Size() {
		t.Fatalf("reloaded %d segments, built %d", loaded.Size(), built.Size())
	}
	stats := loaded.Stats()
	if stats.Documents != 2 || stats.Versions != 3 {
		t.Errorf("stats = %+v, want 2 documents and 3 versions", stats)
	}

	store := index.NewStore()
	store.Swap(loaded)

	synth := &answer.MockSynthesizer{}
	assistant := answer.NewAssistant(
		retriever.New(store, embedder, logger),
		resolver.New(logger),
		synth,
		5, 100,
		logger,
	)

	ans, err := assistant.Ask(ctx, &models.AskRequest{Query: "how do I lock out the press breaker?"})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text == "" {
		t.Error("expected non-empty answer")
	}
	if len(ans.Citations) == 0 {
		t.Fatal("expected citations")
	}

	seen := make(map[string]bool)
	for _, c := range ans.Citations {
		if seen[c.DocID] {
			t.Errorf("document %s cited more than once", c.DocID)
		}
		seen[c.DocID] = true
		// Whatever ranks, a cited document must appear at its current
		// version, never a superseded one.
		if c.DocID == "SOP-001" && c.Version != (models.Version{Major: 2}) {
			t.Errorf("SOP-001 cited at %s, want 2.0", c.Version)
		}
	}
	if len(synth.LastResolved) != len(ans.Citations) {
		t.Errorf("synthesizer saw %d documents, answer cites %d", len(synth.LastResolved), len(ans.Citations))
	}
}

func TestPipeline_RebuildDropsRemovedVersions(t *testing.T) {
	corpusDir := t.TempDir()
	indexDir := t.TempDir()
	vectorPath := filepath.Join(indexDir, "segments.vec")
	metadataPath := filepath.Join(indexDir, "segments.db")

	writeSOP(t, corpusDir, "a_v1.md", "SOP-010", "1.0", "2023-03-01", "Forklift checks",
		"Inspect the forks and chains before the first lift of every shift.")
	writeSOP(t, corpusDir, "a_v2.md", "SOP-010", "2.0", "2024-03-01", "Forklift checks",
		"Inspect forks, chains, and the battery restraint before the first lift of every shift.")

	logger := zap.NewNop()
	embedder := embedding.NewMockEmbedder(8)
	defer embedder.Close()
	builder := index.NewBuilder(corpusDir, []string{".md"}, vectorPath, metadataPath,
		segmenter.New(10, 2), embedder, logger)

	ctx := context.Background()
	if _, err := builder.Build(ctx); err != nil {
		t.Fatal(err)
	}

	// Retire the old revision and rebuild; its segments must be gone from
	// the persisted artifacts, not orphaned.
	if err := os.Remove(filepath.Join(corpusDir, "a_v1.md")); err != nil {
		t.Fatal(err)
	}
	snap, err := builder.Build(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range snap.Segments() {
		if s.Version == (models.Version{Major: 1}) {
			t.Fatalf("segment %s from removed version survived the rebuild", s.ID)
		}
	}
	reloaded, err := index.LoadSnapshot(ctx, vectorPath, metadataPath, "check")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Size() != snap.Size() {
		t.Errorf("artifacts hold %d segments, snapshot has %d", reloaded.Size(), snap.Size())
	}
	if got := len(reloaded.Candidates("SOP-010")); got != 1 {
		t.Errorf("SOP-010 has %d versions after rebuild, want 1", got)
	}
}

func TestPipeline_MalformedDocumentAbortsBuild(t *testing.T) {
	corpusDir := t.TempDir()
	indexDir := t.TempDir()
	vectorPath := filepath.Join(indexDir, "segments.vec")
	metadataPath := filepath.Join(indexDir, "segments.db")

	writeSOP(t, corpusDir, "good.md", "SOP-001", "1.0", "2024-01-01", "Good",
		"A perfectly fine procedure body.")
	if err := os.WriteFile(filepath.Join(corpusDir, "bad.md"),
		[]byte("VERSION: 1.0\nTITLE: No SOP ID\nbody\n"), 0600); err != nil {
		t.Fatal(err)
	}

	embedder := embedding.NewMockEmbedder(8)
	defer embedder.Close()
	builder := index.NewBuilder(corpusDir, []string{".md"}, vectorPath, metadataPath,
		segmenter.New(10, 2), embedder, zap.NewNop())

	_, err := builder.Build(context.Background())
	if !errors.Is(err, models.ErrMalformedDocument) {
		t.Fatalf("err = %v, want ErrMalformedDocument", err)
	}
	// Nothing may be indexed with guessed metadata; the failed build leaves
	// no artifacts behind.
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		t.Error("vector table written despite failed build")
	}
}

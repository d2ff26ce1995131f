package index

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gunter0128/sop-assistant/internal/models"
)

func testSegments() []*models.Segment {
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return []*models.Segment{
		{
			ID: "SOP-001@2.0#0000", DocID: "SOP-001",
			Version: models.Version{Major: 2, Minor: 0}, EffectiveDate: date,
			Title: "Startup", Ordinal: 0, Text: "press the green button",
			Embedding: []float32{1, 0, 0},
		},
		{
			ID: "SOP-001@2.0#0001", DocID: "SOP-001",
			Version: models.Version{Major: 2, Minor: 0}, EffectiveDate: date,
			Title: "Startup", Ordinal: 1, Text: "wait for the ready light",
			Embedding: []float32{0, 1, 0},
		},
	}
}

func TestVectorTable_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segments.vec")
	segments := testSegments()
	if err := WriteVectorTable(path, segments, 3); err != nil {
		t.Fatal(err)
	}
	vectors, dims, err := ReadVectorTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if dims != 3 {
		t.Errorf("dims=%d", dims)
	}
	if len(vectors) != len(segments) {
		t.Fatalf("got %d vectors, want %d", len(vectors), len(segments))
	}
	for _, seg := range segments {
		vec, ok := vectors[seg.ID]
		if !ok {
			t.Fatalf("missing vector for %s", seg.ID)
		}
		for i := range vec {
			if vec[i] != seg.Embedding[i] {
				t.Errorf("%s[%d]=%f, want %f", seg.ID, i, vec[i], seg.Embedding[i])
			}
		}
	}
}

func TestVectorTable_DimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segments.vec")
	segments := testSegments()
	if err := WriteVectorTable(path, segments, 5); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestVectorTable_WriteIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segments.vec")
	if err := WriteVectorTable(path, testSegments(), 3); err != nil {
		t.Fatal(err)
	}
	// A failed rewrite must leave the previous table readable.
	bad := testSegments()
	bad[1].Embedding = []float32{1}
	if err := WriteVectorTable(path, bad, 3); err == nil {
		t.Fatal("expected write failure")
	}
	vectors, _, err := ReadVectorTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(vectors) != 2 {
		t.Errorf("previous table should survive failed rewrite, got %d vectors", len(vectors))
	}
}

func TestVectorTable_ConcurrentWritersDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segments.vec")
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	makeSet := func(docID string, n int) []*models.Segment {
		segs := make([]*models.Segment, n)
		for i := range segs {
			segs[i] = &models.Segment{
				ID:            fmt.Sprintf("%s@1.0#%04d", docID, i),
				DocID:         docID,
				Version:       models.Version{Major: 1},
				EffectiveDate: date,
				Title:         "Startup",
				Ordinal:       i,
				Text:          "step",
				Embedding:     []float32{float32(i), 0, 0},
			}
		}
		return segs
	}
	setA := makeSet("SOP-A", 500)
	setB := makeSet("SOP-B", 500)

	for iter := 0; iter < 5; iter++ {
		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() { defer wg.Done(); errs[0] = WriteVectorTable(path, setA, 3) }()
		go func() { defer wg.Done(); errs[1] = WriteVectorTable(path, setB, 3) }()
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				t.Fatal(err)
			}
		}

		// Whichever rename lands last, the published table must hold one
		// writer's records in full, never a blend of both.
		vectors, _, err := ReadVectorTable(path)
		if err != nil {
			t.Fatalf("iteration %d: %v", iter, err)
		}
		var a, b int
		for id := range vectors {
			if strings.HasPrefix(id, "SOP-A") {
				a++
			} else {
				b++
			}
		}
		if a != 0 && b != 0 {
			t.Fatalf("iteration %d: published table mixes two builds: %d and %d records", iter, a, b)
		}
		if len(vectors) != 500 {
			t.Fatalf("iteration %d: got %d records, want 500", iter, len(vectors))
		}
	}
}

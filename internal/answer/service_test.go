package answer

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gunter0128/sop-assistant/internal/index"
	"github.com/gunter0128/sop-assistant/internal/models"
	"github.com/gunter0128/sop-assistant/internal/resolver"
	"github.com/gunter0128/sop-assistant/internal/retriever"
)

// tableEmbedder maps known texts to fixed vectors so similarity is controlled
// by the test, not by hashing.
type tableEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
}

func (e *tableEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.vectors[text]; ok {
		return vec, nil
	}
	return e.fallback, nil
}

func (e *tableEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *tableEmbedder) Dimensions() int { return 2 }
func (e *tableEmbedder) Close() error    { return nil }

func pipelineFixture(t *testing.T, synth Synthesizer) *Assistant {
	t.Helper()
	date2023 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	date2024 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	segments := []*models.Segment{
		{
			ID: "SOP-001@1.0#0000", DocID: "SOP-001", Version: models.Version{Major: 1, Minor: 0},
			EffectiveDate: date2023, Title: "Startup", Ordinal: 0,
			Text: "old startup steps", Embedding: []float32{0.99, 0.14},
		},
		{
			ID: "SOP-001@2.0#0000", DocID: "SOP-001", Version: models.Version{Major: 2, Minor: 0},
			EffectiveDate: date2024, Title: "Startup", Ordinal: 0,
			Text: "new startup steps", Embedding: []float32{0.8, 0.6},
		},
		{
			ID: "SOP-002@1.0#0000", DocID: "SOP-002", Version: models.Version{Major: 1, Minor: 0},
			EffectiveDate: date2023, Title: "Shutdown", Ordinal: 0,
			Text: "shutdown steps", Embedding: []float32{0, 1},
		},
	}
	store := index.NewStore()
	store.Swap(index.NewSnapshot(segments, 2, "test"))
	embedder := &tableEmbedder{
		vectors: map[string][]float32{
			"how to start the machine": {1, 0},
		},
		fallback: []float32{1, 0},
	}
	ret := retriever.New(store, embedder, zap.NewNop())
	res := resolver.New(zap.NewNop())
	return NewAssistant(ret, res, synth, 5, 100, zap.NewNop())
}

func TestAsk_CitesLatestVersionOnly(t *testing.T) {
	synth := &MockSynthesizer{}
	a := pipelineFixture(t, synth)

	// The query vector sits closest to the old v1.0 segment; the answer
	// must still be grounded in v2.0.
	got, err := a.Ask(context.Background(), &models.AskRequest{Query: "how to start the machine", TopK: 2})
	if err != nil {
		t.Fatal(err)
	}
	var sop1 *models.Citation
	for i := range got.Citations {
		if got.Citations[i].DocID == "SOP-001" {
			if sop1 != nil {
				t.Fatal("SOP-001 cited twice")
			}
			sop1 = &got.Citations[i]
		}
	}
	if sop1 == nil {
		t.Fatal("SOP-001 not cited")
	}
	if sop1.Version != (models.Version{Major: 2, Minor: 0}) {
		t.Errorf("cited version=%v, want 2.0", sop1.Version)
	}
	for _, doc := range synth.LastResolved {
		if doc.DocID == "SOP-001" && doc.Segments[0].Text != "new startup steps" {
			t.Errorf("synthesis context grounded in %q", doc.Segments[0].Text)
		}
	}
}

func TestAsk_DefaultTopK(t *testing.T) {
	synth := &MockSynthesizer{}
	a := pipelineFixture(t, synth)
	if _, err := a.Ask(context.Background(), &models.AskRequest{Query: "how to start the machine"}); err != nil {
		t.Fatal(err)
	}
	if a.DefaultTopK() != 5 {
		t.Errorf("DefaultTopK=%d", a.DefaultTopK())
	}
}

func TestAsk_InvalidRequest(t *testing.T) {
	a := pipelineFixture(t, &MockSynthesizer{})
	_, err := a.Ask(context.Background(), &models.AskRequest{Query: ""})
	if !errors.Is(err, models.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
	_, err = a.Ask(context.Background(), &models.AskRequest{Query: "q", TopK: -2})
	if !errors.Is(err, models.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestAsk_SynthesisFailureSurfaced(t *testing.T) {
	synth := &MockSynthesizer{Err: models.ErrSynthesisUnavailable}
	a := pipelineFixture(t, synth)
	_, err := a.Ask(context.Background(), &models.AskRequest{Query: "how to start the machine"})
	if !errors.Is(err, models.ErrSynthesisUnavailable) {
		t.Errorf("expected ErrSynthesisUnavailable, got %v", err)
	}
}

func TestAsk_EmptyIndexGivesNoEvidenceAnswer(t *testing.T) {
	store := index.NewStore()
	store.Swap(index.NewSnapshot(nil, 2, "empty"))
	embedder := &tableEmbedder{fallback: []float32{1, 0}}
	ret := retriever.New(store, embedder, zap.NewNop())
	synth := &MockSynthesizer{Err: errors.New("must not be called")}
	a := NewAssistant(ret, resolver.New(zap.NewNop()), synth, 5, 100, zap.NewNop())

	got, err := a.Ask(context.Background(), &models.AskRequest{Query: "anything"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != noEvidenceAnswer {
		t.Errorf("Text=%q", got.Text)
	}
	if len(got.Citations) != 0 {
		t.Errorf("Citations=%v", got.Citations)
	}
}

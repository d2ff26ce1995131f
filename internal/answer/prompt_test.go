package answer

import (
	"strings"
	"testing"
	"time"

	"github.com/gunter0128/sop-assistant/internal/models"
)

func resolvedFixture() []*models.ResolvedDocument {
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return []*models.ResolvedDocument{
		{
			DocID:         "SOP-001",
			Version:       models.Version{Major: 2, Minor: 0},
			EffectiveDate: date,
			Title:         "Machine startup procedure",
			Segments: []*models.Segment{
				{Ordinal: 0, Text: "Check the power supply."},
				{Ordinal: 1, Text: "Press the green button."},
			},
			BestScore: 0.8,
		},
		{
			DocID:         "SOP-003",
			Version:       models.Version{Major: 1, Minor: 1},
			EffectiveDate: date,
			Title:         "Safety check",
			Segments: []*models.Segment{
				{Ordinal: 0, Text: "Wear protective gloves."},
			},
			BestScore: 0.6,
		},
	}
}

func TestBuildContext(t *testing.T) {
	got := BuildContext(resolvedFixture())
	for _, want := range []string{
		"SOP_ID: SOP-001",
		"VERSION: 2.0",
		"EFFECTIVE_DATE: 2024-06-01",
		"TITLE: Machine startup procedure",
		"Check the power supply.",
		"Press the green button.",
		"SOP_ID: SOP-003",
		"VERSION: 1.1",
		"Wear protective gloves.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q", want)
		}
	}
	if strings.Index(got, "SOP-001") > strings.Index(got, "SOP-003") {
		t.Error("documents should appear in resolution order")
	}
}

func TestBuildUserPrompt(t *testing.T) {
	got := BuildUserPrompt("how do I start the machine?", resolvedFixture())
	if !strings.Contains(got, "how do I start the machine?") {
		t.Error("prompt should contain the question")
	}
	if !strings.Contains(got, "SOP_ID: SOP-001") {
		t.Error("prompt should contain the SOP context")
	}
	if !strings.Contains(got, "References") {
		t.Error("prompt should ask for a references section")
	}
}

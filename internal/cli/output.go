// Package cli provides CLI output utilities for the SOP assistant.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gunter0128/sop-assistant/internal/index"
	"github.com/gunter0128/sop-assistant/internal/models"
)

// OutputFormat is the format for answer output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat maps the -output flag value to a format.
func ParseFormat(s string) (OutputFormat, error) {
	switch s {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteAnswer writes an answer to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	default:
		writeAnswerText(w, answer)
		return nil
	}
}

func writeAnswerText(w io.Writer, answer *models.Answer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, answer.Text)
	if len(answer.Citations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sources:")
		for _, c := range answer.Citations {
			fmt.Fprintf(w, "  - %s v%s", c.DocID, c.Version)
			if c.Title != "" {
				fmt.Fprintf(w, "  %s", c.Title)
			}
			fmt.Fprintln(w)
		}
	}
}

// WriteStats writes index stats to w in the given format.
func WriteStats(w io.Writer, stats index.Stats, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	default:
		fmt.Fprintf(w, "documents:   %d   # distinct SOP IDs\n", stats.Documents)
		fmt.Fprintf(w, "versions:    %d   # distinct (SOP ID, version) pairs\n", stats.Versions)
		fmt.Fprintf(w, "segments:    %d   # indexed text segments\n", stats.Segments)
		fmt.Fprintf(w, "dimensions:  %d   # embedding dimensionality\n", stats.Dimensions)
		fmt.Fprintf(w, "build_id:    %s\n", stats.BuildID)
		return nil
	}
}

// Package answer builds grounded prompts, calls the answer-synthesis service,
// and orchestrates the full question-answering pipeline.
package answer

import (
	"fmt"
	"strings"

	"github.com/gunter0128/sop-assistant/internal/models"
)

// systemPrompt constrains the model to the provided SOP content. The
// assistant must prefer the newest versions, answer in actionable steps,
// list its sources, and refuse to guess beyond the SOPs.
const systemPrompt = `You are a factory-floor SOP knowledge assistant.
You may only answer from the SOP content provided to you; never invent new rules.

Answering principles:
1. Always use the most recent SOP version provided.
2. Answer as numbered steps that floor personnel can follow directly.
3. Call out safety warnings whenever the SOP mentions them.
4. End every answer with a "References" section listing the SOPs you used, including SOP ID and version.
5. If the SOPs do not cover something, say plainly that the SOPs contain no guidance on it. Do not guess.`

// noEvidenceAnswer is returned without calling the synthesis service when
// version resolution leaves no grounded context.
const noEvidenceAnswer = "The SOP corpus contains nothing relevant to your question, so no SOP-grounded answer can be given."

const blockSeparator = "\n\n" + "--------------------------------------------------------------------------------" + "\n\n"

// BuildContext renders the resolved documents as prompt blocks, one per
// document version, in resolution order.
func BuildContext(resolved []*models.ResolvedDocument) string {
	blocks := make([]string, 0, len(resolved))
	for _, doc := range resolved {
		var b strings.Builder
		fmt.Fprintf(&b, "SOP_ID: %s\n", doc.DocID)
		fmt.Fprintf(&b, "VERSION: %s\n", doc.Version)
		fmt.Fprintf(&b, "EFFECTIVE_DATE: %s\n", doc.EffectiveDate.Format("2006-01-02"))
		fmt.Fprintf(&b, "TITLE: %s\n", doc.Title)
		b.WriteString("CONTENT:\n")
		for i, seg := range doc.Segments {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(seg.Text)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, blockSeparator)
}

// BuildUserPrompt assembles the user message from the question and the
// version-resolved SOP context.
func BuildUserPrompt(query string, resolved []*models.ResolvedDocument) string {
	var b strings.Builder
	b.WriteString("The user's question:\n")
	b.WriteString(query)
	b.WriteString("\n\nThe relevant SOP content, already filtered to the latest version of each document:\n\n")
	b.WriteString(BuildContext(resolved))
	b.WriteString("\n\nAnswer only from the SOP content above. ")
	b.WriteString("Use numbered steps, include any safety notes the SOPs mention, ")
	b.WriteString(`and finish with a "References" section such as:` + "\n")
	b.WriteString("  - SOP-001 v2.0 Machine startup procedure\n")
	return b.String()
}

package verify

import (
	"fmt"
	"strings"
	"time"
)

// SnippetChars bounds how much of a record's text is quoted verbatim into
// the prompt; evidence is never summarized, only truncated.
const SnippetChars = 500

// formatEvidenceBlock numbers the ranked evidence list starting at 0 (the
// indices the model is asked to cite back in cited_evidence_indices).
func formatEvidenceBlock(items []evidence) string {
	var sb strings.Builder
	for i, e := range items {
		published := "unknown"
		if e.publishedAt > 0 {
			published = time.Unix(e.publishedAt, 0).UTC().Format("2006-01-02")
		}
		snippet := snippetOf(e.text)
		fmt.Fprintf(&sb, "[%d] (%s, %s, %s): %s\n", i, e.kind, e.sourceName, published, snippet)
	}
	return sb.String()
}

func snippetOf(text string) string {
	r := []rune(text)
	if len(r) <= SnippetChars {
		return text
	}
	return string(r[:SnippetChars])
}

// Package chunker implements C5: splitting long ingested text into
// overlapping windows and rejecting duplicate RawItems by URL and content
// hash.
package chunker

import (
	"strings"
	"unicode"
)

// Defaults per the data model (§3): W_CHUNK=800, W_OVERLAP=120 characters.
const (
	DefaultWindow  = 800
	DefaultOverlap = 120
	// SnapRadius bounds how far a window boundary may drift to land on
	// whitespace instead of splitting a word.
	SnapRadius = 64
)

// Chunk is one row of the Chunk data model: a dense-ordinal, fixed-overlap
// slice of a RawItem's body.
type Chunk struct {
	ParentRawID string
	Ordinal     int
	Text        string
	SpanStart   int
	SpanEnd     int
}

// Split partitions body into overlapping windows of width `window` with
// `overlap` characters shared between consecutive chunks, snapping each
// boundary to the nearest whitespace within SnapRadius characters so words
// are not split. Produces dense ordinals starting at 0; the union of spans
// covers the full body.
func Split(parentRawID, body string, window, overlap int) []Chunk {
	if window <= 0 {
		window = DefaultWindow
	}
	if overlap < 0 || overlap >= window {
		overlap = DefaultOverlap
	}

	runes := []rune(body)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var chunks []Chunk
	ordinal := 0
	start := 0
	step := window - overlap

	for start < n {
		end := start + window
		if end >= n {
			end = n
		} else {
			end = snapToWhitespace(runes, end)
		}
		if end <= start {
			end = start + 1
		}

		text := strings.TrimSpace(string(runes[start:end]))
		if text != "" {
			chunks = append(chunks, Chunk{
				ParentRawID: parentRawID,
				Ordinal:     ordinal,
				Text:        text,
				SpanStart:   start,
				SpanEnd:     end,
			})
			ordinal++
		}

		if end >= n {
			break
		}
		next := start + step
		if snapped := snapToWhitespace(runes, next); snapped > start && snapped <= end {
			next = snapped
		}
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// snapToWhitespace looks for the nearest whitespace rune within SnapRadius
// characters of boundary (preferring to extend rather than truncate, so no
// word is cut), returning boundary unchanged if none is found nearby.
func snapToWhitespace(runes []rune, boundary int) int {
	n := len(runes)
	if boundary >= n {
		return n
	}
	if unicode.IsSpace(runes[boundary]) {
		return boundary
	}

	for d := 1; d <= SnapRadius; d++ {
		if boundary+d < n && unicode.IsSpace(runes[boundary+d]) {
			return boundary + d
		}
		if boundary-d > 0 && unicode.IsSpace(runes[boundary-d]) {
			return boundary - d
		}
	}
	return boundary
}

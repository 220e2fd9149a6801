package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Default chunking parameters for ingestion. Chunks overlap so a fact
// split across a boundary still lands whole in at least one chunk.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunk splits text into overlapping chunks of at most size bytes,
// preferring to break at a sentence boundary when one falls in the
// second half of the window.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end < len(text) {
			if b := lastSentenceEnd(text, start, end); b > start+size/2 {
				end = b + 1
			}
		} else {
			end = len(text)
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(text) {
			break
		}
		// A sentence break early in the window can make end-overlap fall
		// at or before start; never move backward.
		if next := end - overlap; next > start {
			start = next
		} else {
			start = end
		}
	}
	return chunks
}

// lastSentenceEnd returns the index of the last '.', '!' or '?' in
// text[start:end], or -1.
func lastSentenceEnd(text string, start, end int) int {
	boundary := -1
	for _, mark := range []string{".", "!", "?"} {
		if i := strings.LastIndex(text[start:end], mark); i >= 0 && start+i > boundary {
			boundary = start + i
		}
	}
	return boundary
}

// ContentID derives a stable document ID from chunk content, so
// re-ingesting unchanged material is an upsert rather than a duplicate.
func ContentID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

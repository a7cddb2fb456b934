package chunk

import (
	"unicode"

	"github.com/qdrant-loader/qdrant-loader-go/internal/tokencount"
)

// wordSpan is the byte range [start, end) of one whitespace-delimited word
// within the original content, used so chunk text can be sliced directly
// out of content instead of rebuilt by joining tokenized words — the latter
// would normalize every run of whitespace to a single space and break the
// document round-trip invariant (§8 property #2).
type wordSpan struct {
	start, end int
}

// splitWordSpans finds the byte ranges of whitespace-delimited words in
// content, mirroring strings.Fields' notion of a word but recording offsets
// instead of copying substrings.
func splitWordSpans(content string) []wordSpan {
	var spans []wordSpan
	inWord := false
	wordStart := 0
	for i, r := range content {
		if unicode.IsSpace(r) {
			if inWord {
				spans = append(spans, wordSpan{wordStart, i})
				inWord = false
			}
			continue
		}
		if !inWord {
			wordStart = i
			inWord = true
		}
	}
	if inWord {
		spans = append(spans, wordSpan{wordStart, len(content)})
	}
	return spans
}

// chunkFallback implements §4.6's fallback mode: a greedy sliding window of
// chunk_size tokens with chunk_overlap tokens of prefix carried from the
// previous chunk. Splitting happens on whitespace boundaries (words) so a
// chunk never cuts mid-token; max_chunk_bytes is enforced as a hard ceiling
// on the emitted text even if that means a chunk runs shorter than
// chunk_size tokens. The one exception is a first word whose span, with the
// whitespace after it, alone exceeds max_chunk_bytes: it still forms a chunk
// of its own. Each
// piece's text is a direct slice of content between word offsets, so
// whatever whitespace (spaces, tabs, newlines, runs of either) originally
// separated the words is carried through verbatim.
func chunkFallback(content string, cfg Config) []piece {
	words := splitWordSpans(content)
	if len(words) == 0 {
		return nil
	}

	wordText := func(w wordSpan) string { return content[w.start:w.end] }

	var pieces []piece
	start := 0
	for start < len(words) {
		end := start
		tokens := 0
		for end < len(words) {
			w := wordText(words[end])
			wTokens := tokencount.Estimate(w)
			// The emitted text runs up to the next word's start, so measure
			// that real span rather than assuming one separator per word.
			spanEnd := len(content)
			if end+1 < len(words) {
				spanEnd = words[end+1].start
			}
			if end > start && (tokens+wTokens > cfg.ChunkSize || spanEnd-words[start].start > cfg.MaxChunkBytes) {
				break
			}
			tokens += wTokens
			end++
		}
		if end == start {
			end = start + 1 // a single oversized word still advances
		}

		textStart := words[start].start
		textEnd := len(content)
		if end < len(words) {
			textEnd = words[end].start
		}
		pieces = append(pieces, piece{text: content[textStart:textEnd]})

		if end >= len(words) {
			break
		}

		// Carry chunk_overlap tokens of prefix into the next window by
		// rewinding `start` to cover approximately that many trailing
		// words of the chunk just emitted.
		next := end
		if cfg.ChunkOverlap > 0 {
			overlapTokens := 0
			back := end
			for back > start && overlapTokens < cfg.ChunkOverlap {
				overlapTokens += tokencount.Estimate(wordText(words[back-1]))
				back--
			}
			next = back
			if next <= start {
				next = end
			}
		}
		start = next
	}

	return pieces
}

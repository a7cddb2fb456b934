package chunk

import (
	"strings"

	"github.com/qdrant-loader/qdrant-loader-go/internal/tokencount"
)

// section is one heading-bounded region of a Markdown/HTML-derived
// document, carrying the breadcrumb of ancestor headings active at its
// start.
type section struct {
	path   []string
	body   []string // lines, heading line included
	fenced bool     // body is exactly one fenced code block, fence lines included
}

// chunkStructured implements §4.6's structured mode: split on Markdown
// heading lines and fenced code-block boundaries, never splitting inside a
// fence, and stamp each resulting piece with a section_path breadcrumb.
// A fenced block is its own section and stays one piece even past
// chunk_size; only a fence longer than max_chunk_bytes is divided. Other
// sections that exceed chunk_size/max_chunk_bytes after the heading split
// are further divided by the fallback sliding window, inheriting the
// section's breadcrumb.
func chunkStructured(content string, cfg Config) []piece {
	sections := splitSections(content)

	var pieces []piece
	for _, sec := range sections {
		text := strings.TrimSpace(strings.Join(sec.body, "\n"))
		if text == "" {
			continue
		}
		fits := tokencount.Estimate(text) <= cfg.ChunkSize && len(text) <= cfg.MaxChunkBytes
		if fits || (sec.fenced && len(text) <= cfg.MaxChunkBytes) {
			pieces = append(pieces, piece{text: text, sectionPath: sec.path})
			continue
		}
		for _, sub := range chunkFallback(text, cfg) {
			sub.sectionPath = sec.path
			pieces = append(pieces, sub)
		}
	}
	return pieces
}

// splitSections walks content line by line, tracking fenced-code state and
// the current heading breadcrumb, and groups lines into sections that each
// start at a heading, at the top of the document, at a fence's opening line,
// or just after a fence's closing line.
func splitSections(content string) []section {
	lines := strings.Split(content, "\n")

	var sections []section
	var cur section
	var headingStack []string
	inFence := false

	flush := func() {
		if len(cur.body) > 0 {
			sections = append(sections, cur)
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			if !inFence {
				flush()
				cur = section{path: append([]string(nil), headingStack...), fenced: true}
			}
			cur.body = append(cur.body, line)
			inFence = !inFence
			if !inFence {
				flush()
				cur = section{path: append([]string(nil), headingStack...)}
			}
			continue
		}
		if !inFence {
			if level, title, ok := headingLine(line); ok {
				flush()
				headingStack = adjustStack(headingStack, level, title)
				cur = section{path: append([]string(nil), headingStack...), body: []string{line}}
				continue
			}
		}
		cur.body = append(cur.body, line)
	}
	flush()

	if len(sections) == 0 {
		return []section{{body: lines}}
	}
	return sections
}

// headingLine reports whether line is a Markdown ATX heading ("# Title"),
// returning its level (1-6) and trimmed title.
func headingLine(line string) (level int, title string, ok bool) {
	trimmed := strings.TrimLeft(line, " ")
	n := 0
	for n < len(trimmed) && trimmed[n] == '#' {
		n++
	}
	if n == 0 || n > 6 || n >= len(trimmed) || trimmed[n] != ' ' {
		return 0, "", false
	}
	return n, strings.TrimSpace(trimmed[n:]), true
}

// adjustStack pushes title at level, truncating any deeper or equal
// existing ancestors so the breadcrumb always reflects the current
// heading's actual lineage.
func adjustStack(stack []string, level int, title string) []string {
	if level > len(stack)+1 {
		level = len(stack) + 1
	}
	stack = append(stack[:level-1:level-1], title)
	return stack
}

package chunker

import (
	"fmt"
	"strings"
)

// splitWindow is the universal fallback: fixed-size windows with
// overlap. When a window would end mid-text, the cut point backs up to
// the last newline within the final fifth of the window so lines tend
// to stay whole. The cursor must advance at least one character per
// iteration, which guarantees termination on newline-free input.
func (c *Chunker) splitWindow(text string) []Chunk {
	var chunks []Chunk
	n := len(text)
	start := 0
	counter := 1

	for start < n {
		end := start + c.chunkSize

		if end >= n {
			chunks = append(chunks, c.windowChunk(text, start, n, counter))
			break
		}

		searchStart := end - c.chunkSize/5
		if searchStart < start {
			searchStart = start
		}
		if idx := strings.LastIndex(text[searchStart:end], "\n"); idx >= 0 {
			end = searchStart + idx + 1 // keep the newline with this chunk
		}

		chunks = append(chunks, c.windowChunk(text, start, end, counter))
		counter++

		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

func (c *Chunker) windowChunk(text string, start, end, counter int) Chunk {
	code := text[start:end]
	startLine := strings.Count(text[:start], "\n") + 1
	return Chunk{
		Name:      fmt.Sprintf("chunk_%d", counter),
		Code:      code,
		StartLine: startLine,
		EndLine:   startLine + strings.Count(code, "\n"),
	}
}

// Package chunker splits file content into retrievable units. Python
// sources are split per function via tree-sitter; everything else goes
// through a sliding character window with overlap.
package chunker

import (
	"path/filepath"
	"strings"
)

// Chunk is one splitting result. Line numbers are 1-based inclusive.
type Chunk struct {
	Name      string
	Code      string
	StartLine int
	EndLine   int
}

// Chunker holds the window parameters for the universal strategy.
type Chunker struct {
	chunkSize int
	overlap   int
}

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// New returns a Chunker. Non-positive arguments fall back to defaults;
// overlap is clamped below chunkSize so the cursor always advances.
func New(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Split chunks content using the strategy selected by the filename
// extension. Strategy selection never inspects content. A failed or
// empty AST parse falls through to the window strategy, so Split never
// fails for any input.
func (c *Chunker) Split(filename string, content []byte) []Chunk {
	if strings.ToLower(filepath.Ext(filename)) == ".py" {
		if chunks, err := splitPythonFunctions(content); err == nil && len(chunks) > 0 {
			return chunks
		}
	}
	return c.splitWindow(string(content))
}

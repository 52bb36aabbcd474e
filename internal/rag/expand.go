package rag

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/codemind/codemind/internal/store"
)

// maxExpansion caps how many dependency chunks join the context.
const maxExpansion = 3

// importPattern captures the final stem of an import target, e.g.
// "embedder" from "from app.core.embedder import x" or "utils" from
// "import utils".
var importPattern = regexp.MustCompile(`(?:from|import)\s+(?:[\w\.]+\.)?(\w+)\b`)

// ignoredModules are common libraries not worth a store lookup.
var ignoredModules = map[string]bool{
	"typing":   true,
	"os":       true,
	"sys":      true,
	"json":     true,
	"datetime": true,
	"re":       true,
	"math":     true,
	"react":    true,
	"git":      true,
	"numpy":    true,
	"pandas":   true,
}

// expansionExtensions are the filename suffixes tried per stem.
var expansionExtensions = []string{".py", ".ts", ".tsx", ".js", ".jsx"}

// expand scans the top chunks for import statements and fetches at most
// one chunk per referenced file, up to maxExpansion. Best effort: a
// store failure here degrades to no expansion, never to a request
// failure.
func (p *Pipeline) expand(ctx context.Context, top []ranked) []store.Chunk {
	existing := make(map[string]bool, len(top))
	texts := make([]string, len(top))
	for i, r := range top {
		existing[r.chunk.FileName] = true
		texts[i] = r.chunk.Content
	}

	candidates := importCandidates(texts)
	names := make([]string, 0, len(candidates))
	for _, name := range candidates {
		if !existing[name] {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}

	chunks, err := p.chunks.GetByFileNames(ctx, names)
	if err != nil {
		p.log.Warn("dependency expansion failed", zap.Error(err))
		return nil
	}

	// One chunk per file, first wins; GetByFileNames orders by id.
	seen := make(map[string]bool)
	var extras []store.Chunk
	for _, c := range chunks {
		if seen[c.FileName] || len(extras) >= maxExpansion {
			continue
		}
		seen[c.FileName] = true
		extras = append(extras, c)
	}
	return extras
}

// importCandidates extracts referenced module stems from the snippets
// and fans each out across the known source extensions. Order is
// deterministic: snippet order, then extension order.
func importCandidates(snippets []string) []string {
	var names []string
	seenStems := make(map[string]bool)
	for _, snippet := range snippets {
		for _, match := range importPattern.FindAllStringSubmatch(snippet, -1) {
			stem := match[1]
			if ignoredModules[stem] || seenStems[stem] {
				continue
			}
			seenStems[stem] = true
			for _, ext := range expansionExtensions {
				names = append(names, stem+ext)
			}
		}
	}
	return names
}

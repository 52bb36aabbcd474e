package chunker

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// splitPythonFunctions extracts every function definition (including
// methods and nested functions) as one chunk. Returns an error when the
// source cannot be parsed at all; the caller falls back to the window
// strategy in that case.
func splitPythonFunctions(content []byte) ([]Chunk, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	var chunks []Chunk
	collectPythonFunctions(tree.RootNode(), content, &chunks)
	return chunks, nil
}

func collectPythonFunctions(node *sitter.Node, content []byte, out *[]Chunk) {
	if node == nil {
		return
	}
	if node.Type() == "function_definition" {
		name := "anonymous"
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			name = nameNode.Content(content)
		}
		*out = append(*out, Chunk{
			Name:      name,
			Code:      node.Content(content),
			StartLine: int(node.StartPoint().Row) + 1,
			EndLine:   int(node.EndPoint().Row) + 1,
		})
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectPythonFunctions(node.Child(i), content, out)
	}
}

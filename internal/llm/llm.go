// Package llm wraps the generative model behind a small interface. The
// retrieval pipeline treats generation failures as degraded output, not
// as errors, so callers there embed the message instead of propagating.
package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/codemind/codemind/internal/config"
)

// Generator produces an answer from assembled context and a question.
type Generator interface {
	Generate(ctx context.Context, contextText, question string) (string, error)
}

const promptTemplate = `You are an expert Senior Software Engineer and Codebase Assistant.
Your task is to answer the user's question accurately based **ONLY** on the provided code context.

### FORMATTING GUIDELINES (Strictly Follow These):
1. **Structure:**
   - Start with a clear, direct answer or summary.
   - If explaining logic, break it down into bullet points.
   - End with a brief concluding remark if necessary.

2. **Code Styling:**
   - ALWAYS use correct syntax highlighting for code blocks (e.g., ` + "```typescript, ```python" + `).
   - Use ` + "`inline code`" + ` (backticks) for function names, variable names, file paths, and library names.
   - Keep code snippets concise; show only the relevant parts.

3. **Tone:**
   - Professional, technical, yet helpful.
   - Avoid filler phrases like "Here is the answer." Just dive into the explanation.

4. **References:**
   - Mention specific file names from the context when explaining logic (e.g., "As seen in ` + "`src/auth/handler.ts`" + `...").

### CONTEXT:
%s

### QUESTION:
%s

### ANSWER (in clean Markdown):
`

// BuildPrompt renders the instructional template around the context and
// question.
func BuildPrompt(contextText, question string) string {
	return fmt.Sprintf(promptTemplate, contextText, question)
}

// GeminiGenerator implements Generator using the Gemini API.
type GeminiGenerator struct {
	apiKey string
	model  string
}

// NewGeminiGenerator creates a generator for the configured model.
func NewGeminiGenerator(cfg *config.LLMConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api_key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiGenerator{apiKey: cfg.APIKey, model: model}, nil
}

// Generate answers the question from the context text.
func (g *GeminiGenerator) Generate(ctx context.Context, contextText, question string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("create genai client: %w", err)
	}

	prompt := BuildPrompt(contextText, question)
	resp, err := client.Models.GenerateContent(
		ctx,
		g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Package promptctx assembles the bounded context text handed to the
// generation provider: scored snippets from the pipeline run-state (posts,
// trends, publication articles) selected under a token budget.
package promptctx

import (
	"fmt"
	"sort"
	"strings"
)

// Snippet is one candidate context fragment with a relevance score.
type Snippet struct {
	ID    string
	Text  string
	Score float64
}

type BuildInput struct {
	Task           string
	Snippets       []Snippet
	MaxInputTokens int
	MaxSnippets    int
}

type BuildOutput struct {
	ContextText string
	Selected    []Snippet
	TokenCount  int
}

// Build dedupes and scores snippets, then selects greedily until the token
// budget or snippet cap is hit.
func Build(input BuildInput) BuildOutput {
	input = normalizeBuildInput(input)

	snippets := dedupeSnippets(input.Snippets)
	sort.SliceStable(snippets, func(i, j int) bool {
		if snippets[i].Score == snippets[j].Score {
			return snippets[i].ID < snippets[j].ID
		}
		return snippets[i].Score > snippets[j].Score
	})

	selected := make([]Snippet, 0, len(snippets))
	totalTokens := 0
	for _, snippet := range snippets {
		estimatedTokens := estimateTokens(snippet.Text)
		if estimatedTokens <= 0 {
			continue
		}
		if totalTokens+estimatedTokens > input.MaxInputTokens {
			continue
		}
		selected = append(selected, snippet)
		totalTokens += estimatedTokens
		if len(selected) >= input.MaxSnippets {
			break
		}
	}

	if len(selected) == 0 {
		fallback := "Minimal context: not enough signal data collected for this run."
		selected = append(selected, Snippet{ID: "fallback", Text: fallback, Score: 1})
		totalTokens = estimateTokens(fallback)
	}

	builder := strings.Builder{}
	builder.WriteString("Prioritized context:\n")
	for index, snippet := range selected {
		builder.WriteString(fmt.Sprintf("[%d] %s\n", index+1, snippet.Text))
	}

	return BuildOutput{
		ContextText: strings.TrimSpace(builder.String()),
		Selected:    selected,
		TokenCount:  totalTokens,
	}
}

func normalizeBuildInput(input BuildInput) BuildInput {
	if input.MaxInputTokens <= 0 {
		switch strings.ToLower(strings.TrimSpace(input.Task)) {
		case "keywords":
			input.MaxInputTokens = 1200
		case "article":
			input.MaxInputTokens = 5200
		default:
			input.MaxInputTokens = 2500
		}
	}
	if input.MaxSnippets <= 0 {
		switch strings.ToLower(strings.TrimSpace(input.Task)) {
		case "keywords":
			input.MaxSnippets = 6
		case "article":
			input.MaxSnippets = 12
		default:
			input.MaxSnippets = 8
		}
	}
	return input
}

func dedupeSnippets(snippets []Snippet) []Snippet {
	if len(snippets) <= 1 {
		return snippets
	}

	seen := make(map[string]Snippet, len(snippets))
	order := make([]string, 0, len(snippets))
	for _, snippet := range snippets {
		key := strings.ToLower(strings.Join(strings.Fields(snippet.Text), " "))
		existing, exists := seen[key]
		if !exists {
			seen[key] = snippet
			order = append(order, key)
			continue
		}
		if snippet.Score > existing.Score {
			seen[key] = snippet
		}
	}

	result := make([]Snippet, 0, len(order))
	for _, key := range order {
		result = append(result, seen[key])
	}
	return result
}

func estimateTokens(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	count := len([]rune(trimmed)) / 4
	if count < 1 {
		count = 1
	}
	return count
}

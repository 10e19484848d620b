package promptctx

import (
	"strings"
	"testing"
)

func TestBuildDedupesAndRespectsTaskLimits(t *testing.T) {
	snippets := []Snippet{
		{ID: "p1", Text: "Widget Day is trending among hobbyist makers.", Score: 0.9},
		{ID: "p2", Text: "Widget Day is trending among hobbyist makers.", Score: 0.4},
		{ID: "p3", Text: "Thread on cheap widget jigs got 4k likes.", Score: 0.8},
		{ID: "p4", Text: "thread on cheap widget jigs got 4k likes.", Score: 0.2},
		{ID: "p5", Text: "Medium tag diy-tools surfaced two hot articles.", Score: 0.7},
	}

	result := Build(BuildInput{Task: "drafts", Snippets: snippets})
	if len(result.Selected) != 3 {
		t.Fatalf("expected 3 deduped snippets, got %d", len(result.Selected))
	}

	seen := make(map[string]struct{}, len(result.Selected))
	for _, snippet := range result.Selected {
		key := strings.ToLower(strings.Join(strings.Fields(snippet.Text), " "))
		if _, exists := seen[key]; exists {
			t.Fatalf("duplicate snippet selected: %q", snippet.Text)
		}
		seen[key] = struct{}{}
	}
}

func TestBuildOrdersByScoreAndIsStable(t *testing.T) {
	snippets := []Snippet{
		{ID: "a", Text: "low priority background note", Score: 0.1},
		{ID: "b", Text: "the single most important signal", Score: 0.9},
		{ID: "c", Text: "a mid priority observation", Score: 0.5},
	}

	first := Build(BuildInput{Task: "headlines", Snippets: snippets})
	second := Build(BuildInput{Task: "headlines", Snippets: snippets})

	if first.ContextText != second.ContextText {
		t.Fatal("expected stable context text across repeated builds")
	}
	if first.TokenCount != second.TokenCount {
		t.Fatal("expected stable token count across repeated builds")
	}
	if first.Selected[0].ID != "b" {
		t.Fatalf("expected highest scored snippet first, got %s", first.Selected[0].ID)
	}
}

func TestBuildEnforcesTokenBudget(t *testing.T) {
	long := strings.Repeat("an extremely verbose snippet about widgets ", 40)
	snippets := []Snippet{
		{ID: "big", Text: long, Score: 0.9},
		{ID: "small", Text: "short widget note", Score: 0.5},
	}

	result := Build(BuildInput{Task: "drafts", Snippets: snippets, MaxInputTokens: 50})
	for _, snippet := range result.Selected {
		if snippet.ID == "big" {
			t.Fatal("oversized snippet must not fit a 50 token budget")
		}
	}
	if result.TokenCount > 50 {
		t.Fatalf("token count %d exceeds budget", result.TokenCount)
	}
}

func TestBuildFallsBackWhenNothingFits(t *testing.T) {
	result := Build(BuildInput{Task: "drafts", Snippets: nil})
	if len(result.Selected) != 1 {
		t.Fatalf("expected fallback snippet, got %d", len(result.Selected))
	}
	if !strings.Contains(result.ContextText, "Minimal context") {
		t.Fatalf("expected fallback context, got %q", result.ContextText)
	}
}

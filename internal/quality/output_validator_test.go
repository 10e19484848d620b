package quality

import (
	"strings"
	"testing"

	"github.com/contentpulse/backend/internal/domain"
)

func TestCleanBatchDedupesAndNormalizes(t *testing.T) {
	validator := NewOutputValidator()

	cleaned := validator.CleanBatch(domain.KindArticleHeadline, []string{
		"  Why Makers Love  Widgets  ",
		"why makers love widgets",
		"",
		"Widget Day: what it means for your workshop",
	})
	if len(cleaned) != 2 {
		t.Fatalf("expected 2 candidates after dedup, got %d: %v", len(cleaned), cleaned)
	}
	if cleaned[0] != "Why Makers Love Widgets" {
		t.Fatalf("expected normalized first candidate, got %q", cleaned[0])
	}
}

func TestCleanBatchMasksContactDetails(t *testing.T) {
	validator := NewOutputValidator()

	cleaned := validator.CleanBatch(domain.KindTweet, []string{
		"DM me at someone@example.com for widget deals",
	})
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cleaned))
	}
	if strings.Contains(cleaned[0], "example.com") {
		t.Fatalf("expected masked email, got %q", cleaned[0])
	}
}

func TestCleanBatchDropsBlockedContent(t *testing.T) {
	validator := NewOutputValidator()

	cleaned := validator.CleanBatch(domain.KindTweet, []string{
		"grow your reach with bulk messaging today",
		"a genuinely useful widget tip",
	})
	if len(cleaned) != 1 {
		t.Fatalf("expected blocked candidate to be dropped, got %v", cleaned)
	}
	if cleaned[0] != "a genuinely useful widget tip" {
		t.Fatalf("unexpected surviving candidate: %q", cleaned[0])
	}
}

func TestCleanBatchTruncatesLongHeadlines(t *testing.T) {
	validator := NewOutputValidator()

	long := strings.Repeat("widget assembly techniques ", 20)
	cleaned := validator.CleanBatch(domain.KindArticleHeadline, []string{long})
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cleaned))
	}
	if len(cleaned[0]) > 160 {
		t.Fatalf("expected truncation to 160 bytes, got %d", len(cleaned[0]))
	}
}

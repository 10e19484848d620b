// Package quality screens generated candidates before they become
// suggestions: normalization, dedup, length limits per kind and a small
// blocklist for content the product will not publish.
package quality

import (
	"strings"

	"github.com/contentpulse/backend/internal/domain"
	"github.com/contentpulse/backend/internal/policy"
)

// Per-kind length limits, in bytes of normalized text.
var maxLengths = map[domain.SuggestionKind]int{
	domain.KindArticleHeadline: 160,
	domain.KindTweet:           280,
	domain.KindTweetReply:      280,
	domain.KindMemeConcept:     320,
	domain.KindSlopConcept:     320,
}

var blockedTerms = []string{
	"mass spam",
	"bulk messaging",
	"phishing",
	"ransomware",
	"malware",
}

type OutputValidator struct{}

func NewOutputValidator() *OutputValidator {
	return &OutputValidator{}
}

// CleanBatch normalizes a generated batch, masking contact details, dropping
// empties, duplicates and blocked content, and truncating to the kind's
// limit. Order is preserved so rank assignment stays positional.
func (v *OutputValidator) CleanBatch(kind domain.SuggestionKind, candidates []string) []string {
	maxLen := maxLengths[kind]
	if maxLen <= 0 {
		maxLen = 320
	}

	seen := make(map[string]struct{}, len(candidates))
	cleaned := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		text := normalizeText(policy.MaskPIIString(candidate))
		if text == "" {
			continue
		}
		if containsBlockedTerm(text) {
			continue
		}
		if len(text) > maxLen {
			text = truncateAtWord(text, maxLen)
		}

		key := strings.ToLower(text)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, text)
	}
	return cleaned
}

func containsBlockedTerm(value string) bool {
	lowered := strings.ToLower(value)
	for _, term := range blockedTerms {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}

func normalizeText(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	parts := strings.Fields(trimmed)
	return strings.Join(parts, " ")
}

func truncateAtWord(value string, maxLen int) string {
	if len(value) <= maxLen || maxLen <= 0 {
		return value
	}
	cut := value[:maxLen]
	lastSpace := strings.LastIndex(cut, " ")
	if lastSpace > maxLen/2 {
		cut = cut[:lastSpace]
	}
	return strings.TrimSpace(cut)
}

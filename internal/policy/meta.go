package policy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/contentpulse/backend/internal/domain"
)

// HeadlineMeta is attached to article_headline suggestions.
type HeadlineMeta struct {
	Origin      string `json:"origin"`
	Description string `json:"description,omitempty"`
	ArticleID   string `json:"article_id,omitempty"`
}

// DraftMeta is attached to tweet suggestions.
type DraftMeta struct {
	Origin string `json:"origin"`
}

// ReplyMeta embeds the source post so the UI can render reply-in-context.
type ReplyMeta struct {
	Origin     string             `json:"origin"`
	SourcePost domain.PostSummary `json:"source_post"`
	Score      float64            `json:"score"`
}

// ConceptMeta carries the structured generation instructions for meme and
// slop concepts, plus the derived asset id once one is requested.
type ConceptMeta struct {
	Origin       string          `json:"origin"`
	Instructions json.RawMessage `json:"instructions"`
	MemeID       string          `json:"meme_id,omitempty"`
	SlopID       string          `json:"slop_id,omitempty"`
}

// ValidateMeta checks that a metadata blob matches the closed shape expected
// for its suggestion kind. Storage stays a generic blob; the shape is
// enforced at write time.
func ValidateMeta(kind domain.SuggestionKind, meta json.RawMessage) error {
	if len(meta) == 0 {
		return fmt.Errorf("meta is required for kind %s", kind)
	}

	switch kind {
	case domain.KindArticleHeadline:
		var decoded HeadlineMeta
		if err := strictDecode(meta, &decoded); err != nil {
			return err
		}
		if strings.TrimSpace(decoded.Origin) == "" {
			return fmt.Errorf("headline meta missing origin")
		}
	case domain.KindTweet:
		var decoded DraftMeta
		if err := strictDecode(meta, &decoded); err != nil {
			return err
		}
		if strings.TrimSpace(decoded.Origin) == "" {
			return fmt.Errorf("draft meta missing origin")
		}
	case domain.KindTweetReply:
		var decoded ReplyMeta
		if err := strictDecode(meta, &decoded); err != nil {
			return err
		}
		if strings.TrimSpace(decoded.SourcePost.Text) == "" {
			return fmt.Errorf("reply meta missing source post")
		}
	case domain.KindMemeConcept, domain.KindSlopConcept:
		var decoded ConceptMeta
		if err := strictDecode(meta, &decoded); err != nil {
			return err
		}
		if len(decoded.Instructions) == 0 {
			return fmt.Errorf("concept meta missing instructions")
		}
	default:
		return fmt.Errorf("unknown suggestion kind: %s", kind)
	}
	return nil
}

func strictDecode(meta json.RawMessage, target any) error {
	decoder := json.NewDecoder(strings.NewReader(string(meta)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("malformed meta: %w", err)
	}
	return nil
}

package policy

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/contentpulse/backend/internal/domain"
)

func TestAssignRankStrictlyDecreasing(t *testing.T) {
	previous := Assign(domain.SourceTrendingTopic, domain.KindArticleHeadline, 0, 5)
	for position := 1; position < 10; position++ {
		current := Assign(domain.SourceTrendingTopic, domain.KindArticleHeadline, position, 5)
		if current.Rank >= previous.Rank {
			t.Fatalf("rank at position %d (%f) not below previous (%f)", position, current.Rank, previous.Rank)
		}
		previous = current
	}
}

func TestAssignGuestVisibilityOnlyUnderCutoff(t *testing.T) {
	cutoff := 5
	guests := 0
	for position := 0; position < 12; position++ {
		placement := Assign(domain.SourceTrendingTopic, domain.KindArticleHeadline, position, cutoff)
		if placement.Visibility == domain.VisibilityGuest {
			guests++
			if position >= cutoff {
				t.Fatalf("position %d past cutoff must not be guest visible", position)
			}
		}
	}
	if guests != cutoff {
		t.Fatalf("expected exactly %d guest placements, got %d", cutoff, guests)
	}
}

func TestAssignNonTrendSourcesAreSubscriberOnly(t *testing.T) {
	for _, sourceType := range []domain.SourceType{
		domain.SourceKeywordG1,
		domain.SourceKeywordG2,
		domain.SourceMediumTag,
	} {
		placement := Assign(sourceType, domain.KindArticleHeadline, 0, 5)
		if placement.Visibility != domain.VisibilitySubscriber {
			t.Fatalf("source %s position 0 must be subscriber, got %s", sourceType, placement.Visibility)
		}
	}
}

func TestAssignConceptsAlwaysSubscriber(t *testing.T) {
	placement := Assign(domain.SourceTrendingTopic, domain.KindMemeConcept, 0, 5)
	if placement.Visibility != domain.VisibilitySubscriber {
		t.Fatalf("meme concepts must be subscriber-only, got %s", placement.Visibility)
	}
	placement = Assign(domain.SourceTrendingTopic, domain.KindSlopConcept, 0, 5)
	if placement.Visibility != domain.VisibilitySubscriber {
		t.Fatalf("slop concepts must be subscriber-only, got %s", placement.Visibility)
	}
}

func TestValidateMetaShapes(t *testing.T) {
	headline, _ := json.Marshal(HeadlineMeta{Origin: "Widget Day", Description: "desc"})
	if err := ValidateMeta(domain.KindArticleHeadline, headline); err != nil {
		t.Fatalf("valid headline meta rejected: %v", err)
	}

	reply, _ := json.Marshal(ReplyMeta{
		Origin:     "Widget Day",
		SourcePost: domain.PostSummary{ID: "1", Text: "widgets are hard", LikeCount: 10},
		Score:      0.5,
	})
	if err := ValidateMeta(domain.KindTweetReply, reply); err != nil {
		t.Fatalf("valid reply meta rejected: %v", err)
	}

	if err := ValidateMeta(domain.KindTweetReply, headline); err == nil {
		t.Fatal("headline meta must not validate as reply meta")
	}

	concept, _ := json.Marshal(ConceptMeta{
		Origin:       "Widget Day",
		Instructions: json.RawMessage(`{"scene":"workshop","overlay":"when the widget fits"}`),
	})
	if err := ValidateMeta(domain.KindMemeConcept, concept); err != nil {
		t.Fatalf("valid concept meta rejected: %v", err)
	}

	if err := ValidateMeta(domain.KindMemeConcept, json.RawMessage(`{"origin":"x"}`)); err == nil {
		t.Fatal("concept meta without instructions must be rejected")
	}
}

func TestMaskPIIString(t *testing.T) {
	masked := MaskPIIString("reach me at someone@example.com or +1 (415) 555-0132")
	if strings.Contains(masked, "example.com") {
		t.Fatalf("email not masked: %s", masked)
	}
	if strings.Contains(masked, "555-0132") {
		t.Fatalf("phone not masked: %s", masked)
	}
}

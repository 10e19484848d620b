package domain

import (
	"encoding/json"
	"time"
)

type ReportStatus string

const (
	ReportStatusQueued       ReportStatus = "queued"
	ReportStatusRunning      ReportStatus = "running"
	ReportStatusPartialReady ReportStatus = "partial_ready"
	ReportStatusComplete     ReportStatus = "complete"
	ReportStatusFailed       ReportStatus = "failed"
)

// Terminal reports whether no further status transition is allowed.
func (s ReportStatus) Terminal() bool {
	return s == ReportStatusComplete || s == ReportStatusFailed
}

// statusOrder encodes the forward-only lifecycle. failed is reachable from
// any non-terminal state, every other transition must move strictly forward.
var statusOrder = map[ReportStatus]int{
	ReportStatusQueued:       0,
	ReportStatusRunning:      1,
	ReportStatusPartialReady: 2,
	ReportStatusComplete:     3,
	ReportStatusFailed:       3,
}

// CanTransition reports whether moving from s to next respects the lifecycle.
func (s ReportStatus) CanTransition(next ReportStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == ReportStatusFailed {
		return true
	}
	return statusOrder[next] > statusOrder[s]
}

// Report is one pipeline run for one Product. Owner is at most one of
// UserID or GuestID.
type Report struct {
	ID               string
	ProductID        string
	UserID           string
	GuestID          string
	Status           ReportStatus
	ErrorMessage     string
	VisibilityCutoff int
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const DefaultVisibilityCutoff = 5

type StepStatus string

const (
	StepStatusRunning StepStatus = "running"
	StepStatusDone    StepStatus = "done"
	StepStatusFailed  StepStatus = "failed"
)

// Pipeline stage identifiers, in execution order.
const (
	StepInitialKeywords = "initial_keywords"
	StepKeywordExpand   = "serpapi_expand"
	StepTwitterTrends   = "twitter_trends"
	StepSocialCorpus    = "social_corpus"
	StepMediumTags      = "medium_tags"
	StepHeadlines       = "headlines"
	StepTweetDrafts     = "tweet_drafts"
	StepVisualConcepts  = "visual_concepts"
	StepTweetReplies    = "tweet_replies"
)

// ReportStep records one attempt at one named stage within a Report.
// A failed step never blocks later stages.
type ReportStep struct {
	ID           string
	ReportID     string
	StepName     string
	Status       StepStatus
	StartedAt    time.Time
	FinishedAt   *time.Time
	ErrorMessage string
	Payload      json.RawMessage
}

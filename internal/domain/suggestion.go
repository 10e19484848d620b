package domain

import (
	"encoding/json"
	"time"
)

type SourceType string

const (
	SourceTrendingTopic SourceType = "trending_topic"
	SourceKeywordG1     SourceType = "kw_prospect"
	SourceKeywordG2     SourceType = "kw_seo"
	SourceMediumTag     SourceType = "medium_tag"
)

type SuggestionKind string

const (
	KindArticleHeadline SuggestionKind = "article_headline"
	KindTweet           SuggestionKind = "tweet"
	KindTweetReply      SuggestionKind = "tweet_reply"
	KindMemeConcept     SuggestionKind = "meme_concept"
	KindSlopConcept     SuggestionKind = "slop_concept"
)

type Visibility string

const (
	VisibilityGuest      Visibility = "guest"
	VisibilitySubscriber Visibility = "subscriber"
)

// Suggestion is one ranked content idea produced by a pipeline stage.
// Immutable after creation except for meta backfill of derived asset ids.
type Suggestion struct {
	ID         string
	ReportID   string
	SourceType SourceType
	Kind       SuggestionKind
	Text       string
	Rank       float64
	Meta       json.RawMessage
	Visibility Visibility
	CreatedAt  time.Time
}

// PostSummary is the compact form of a social post carried through the
// pipeline run-state and embedded in tweet_reply metadata.
type PostSummary struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	AuthorName   string `json:"author_name"`
	AuthorHandle string `json:"author_handle"`
	LikeCount    int    `json:"like_count"`
	RetweetCount int    `json:"retweet_count"`
	ReplyCount   int    `json:"reply_count"`
}

// ArticleSummary is a trending publication item fetched per tag.
type ArticleSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Author      string `json:"author"`
	PublishedAt string `json:"published_at"`
}

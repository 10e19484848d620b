package domain

import (
	"encoding/json"
	"time"
)

type AssetStatus string

const (
	AssetStatusGenerating AssetStatus = "generating"
	AssetStatusReady      AssetStatus = "ready"
	AssetStatusFailed     AssetStatus = "failed"
)

// Article is a full write-up expanded from an article_headline suggestion.
type Article struct {
	ID           string
	ReportID     string
	SuggestionID string
	Title        string
	Description  string
	ContentMD    string
	ContentHTML  string
	Status       AssetStatus
	ErrorMessage string
	ModelUsed    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Meme is an image asset generated from a meme_concept suggestion.
// ImageKey references the object store, not inline bytes.
type Meme struct {
	ID           string
	ReportID     string
	SuggestionID string
	Concept      string
	Instructions json.RawMessage
	ImageKey     string
	Status       AssetStatus
	ErrorMessage string
	ModelUsed    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Slop is a short-video asset generated from a slop_concept suggestion.
type Slop struct {
	ID           string
	ReportID     string
	SuggestionID string
	Concept      string
	Instructions json.RawMessage
	VideoKey     string
	Status       AssetStatus
	ErrorMessage string
	ModelUsed    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

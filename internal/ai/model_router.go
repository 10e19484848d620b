package ai

import "strings"

type TaskKind string

const (
	TaskKeywords  TaskKind = "keywords"
	TaskHeadlines TaskKind = "headlines"
	TaskDrafts    TaskKind = "drafts"
	TaskConcepts  TaskKind = "concepts"
	TaskArticle   TaskKind = "article"
)

type ModelProfile struct {
	PrimaryModel    string
	FallbackModel   string
	Temperature     float64
	MaxOutputTokens int
}

type ModelRouterConfig struct {
	KeywordsPrimary  string
	KeywordsFallback string

	HeadlinesPrimary  string
	HeadlinesFallback string

	DraftsPrimary  string
	DraftsFallback string

	ConceptsPrimary  string
	ConceptsFallback string

	ArticlePrimary  string
	ArticleFallback string
}

type ModelRouter struct {
	config ModelRouterConfig
}

func NewModelRouter(config ModelRouterConfig) *ModelRouter {
	if strings.TrimSpace(config.KeywordsPrimary) == "" {
		config.KeywordsPrimary = "gpt-4.1-mini"
	}
	if strings.TrimSpace(config.KeywordsFallback) == "" {
		config.KeywordsFallback = "gpt-4.1-nano"
	}
	if strings.TrimSpace(config.HeadlinesPrimary) == "" {
		config.HeadlinesPrimary = "gpt-4.1-mini"
	}
	if strings.TrimSpace(config.HeadlinesFallback) == "" {
		config.HeadlinesFallback = "gpt-4.1-nano"
	}
	if strings.TrimSpace(config.DraftsPrimary) == "" {
		config.DraftsPrimary = "gpt-4.1-mini"
	}
	if strings.TrimSpace(config.DraftsFallback) == "" {
		config.DraftsFallback = "gpt-4.1-nano"
	}
	if strings.TrimSpace(config.ConceptsPrimary) == "" {
		config.ConceptsPrimary = "gpt-4.1-mini"
	}
	if strings.TrimSpace(config.ConceptsFallback) == "" {
		config.ConceptsFallback = "gpt-4.1-nano"
	}
	if strings.TrimSpace(config.ArticlePrimary) == "" {
		config.ArticlePrimary = "gpt-4.1"
	}
	if strings.TrimSpace(config.ArticleFallback) == "" {
		config.ArticleFallback = "gpt-4.1-mini"
	}

	return &ModelRouter{config: config}
}

func (r *ModelRouter) Select(task TaskKind) ModelProfile {
	switch task {
	case TaskKeywords:
		return ModelProfile{
			PrimaryModel:    r.config.KeywordsPrimary,
			FallbackModel:   r.config.KeywordsFallback,
			Temperature:     0.3,
			MaxOutputTokens: 500,
		}
	case TaskHeadlines:
		return ModelProfile{
			PrimaryModel:    r.config.HeadlinesPrimary,
			FallbackModel:   r.config.HeadlinesFallback,
			Temperature:     0.7,
			MaxOutputTokens: 800,
		}
	case TaskDrafts:
		return ModelProfile{
			PrimaryModel:    r.config.DraftsPrimary,
			FallbackModel:   r.config.DraftsFallback,
			Temperature:     0.8,
			MaxOutputTokens: 600,
		}
	case TaskConcepts:
		return ModelProfile{
			PrimaryModel:    r.config.ConceptsPrimary,
			FallbackModel:   r.config.ConceptsFallback,
			Temperature:     0.9,
			MaxOutputTokens: 900,
		}
	case TaskArticle:
		return ModelProfile{
			PrimaryModel:    r.config.ArticlePrimary,
			FallbackModel:   r.config.ArticleFallback,
			Temperature:     0.5,
			MaxOutputTokens: 3000,
		}
	default:
		return ModelProfile{
			PrimaryModel:    r.config.KeywordsPrimary,
			FallbackModel:   r.config.KeywordsFallback,
			Temperature:     0.3,
			MaxOutputTokens: 500,
		}
	}
}

// Package pipeline runs the staged suggestion-generation flow for one
// report: signal collection, synthesis and ranked persistence. Stages fail
// independently; only report bookkeeping faults fail the run.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/contentpulse/backend/internal/domain"
	"github.com/contentpulse/backend/internal/policy"
	"github.com/contentpulse/backend/internal/repository"
	"github.com/contentpulse/backend/internal/service"
	"github.com/contentpulse/backend/internal/signals"
)

// KeywordExpander is the autocomplete signal provider.
type KeywordExpander interface {
	Available() bool
	ExpandKeywords(ctx context.Context, seeds []string, limit, perSeedLimit int) ([]string, error)
}

// SocialProvider serves trends and post search.
type SocialProvider interface {
	Available() bool
	TrendingTopics(ctx context.Context, limit int) ([]string, error)
	SearchPosts(ctx context.Context, query string, count int) (signals.SearchResults, error)
}

// TagProvider serves publication tags and their trending items.
type TagProvider interface {
	Available() bool
	ListTags(ctx context.Context, limit int) ([]string, error)
	TrendingForTag(ctx context.Context, tag string, limit int) ([]domain.ArticleSummary, error)
}

// Generator is the slice of the generation service the pipeline consumes.
type Generator interface {
	SynthesizeKeywords(ctx context.Context, product domain.Product) (service.KeywordGroups, error)
	SelectCandidates(ctx context.Context, product domain.Product, label string, candidates []string, limit int) ([]string, error)
	GenerateHeadlines(ctx context.Context, request service.HeadlineRequest) ([]service.HeadlineCandidate, error)
	GenerateTweetDrafts(ctx context.Context, request service.DraftRequest) ([]string, error)
	GenerateConcepts(ctx context.Context, request service.ConceptRequest) ([]service.ConceptCandidate, error)
	GenerateReplies(ctx context.Context, request service.ReplyRequest) ([]service.ReplyCandidate, error)
}

type OrchestratorConfig struct {
	// Seed makes truncation and sampling reproducible. Zero picks a
	// time-based seed per run.
	Seed          int64
	TrendLimit    int
	KeywordLimit  int
	TagLimit      int
	PostsPerQuery int
	RepliesTopK   int
}

type Orchestrator struct {
	repo    repository.ReportsRepository
	gen     Generator
	serp    KeywordExpander
	social  SocialProvider
	tags    TagProvider
	logger  *log.Logger
	config  OrchestratorConfig
	newRand func() *rand.Rand
}

func NewOrchestrator(
	repo repository.ReportsRepository,
	gen Generator,
	serp KeywordExpander,
	social SocialProvider,
	tags TagProvider,
	logger *log.Logger,
	config OrchestratorConfig,
) *Orchestrator {
	if config.TrendLimit <= 0 {
		config.TrendLimit = 3
	}
	if config.KeywordLimit <= 0 {
		config.KeywordLimit = 5
	}
	if config.TagLimit <= 0 {
		config.TagLimit = 3
	}
	if config.PostsPerQuery <= 0 {
		config.PostsPerQuery = 5
	}
	if config.RepliesTopK <= 0 {
		config.RepliesTopK = 5
	}

	return &Orchestrator{
		repo:   repo,
		gen:    gen,
		serp:   serp,
		social: social,
		tags:   tags,
		logger: logger,
		config: config,
		newRand: func() *rand.Rand {
			seed := config.Seed
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			return rand.New(rand.NewSource(seed))
		},
	}
}

// postGroup keeps collected posts attached to the query that found them, in
// collection order so sampling stays deterministic under a fixed seed.
type postGroup struct {
	SourceType domain.SourceType
	Origin     string
	Posts      []domain.PostSummary
}

type runState struct {
	product  domain.Product
	prospect []string
	seo      []string
	expanded []string
	trends   []string
	tags     []string
	articles map[string][]domain.ArticleSummary
	groups   []postGroup

	suggestions int
	positions   map[string]int
	rng         *rand.Rand

	// set when report bookkeeping fails mid-stage; aborts the run.
	bookkeepingErr error
}

// stageResult is what every stage body returns. err marks the step failed;
// warn lands in the payload of a step that degraded but still counts as
// done.
type stageResult struct {
	payload map[string]any
	warn    string
	err     error
}

// Run executes the full stage sequence for one report. An absent report is
// logged and ignored. The returned error is always a bookkeeping fault; the
// report has already been marked failed when it is non-nil.
func (o *Orchestrator) Run(ctx context.Context, reportID string) error {
	report, err := o.repo.GetReport(ctx, reportID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			o.logf("report %s not found, skipping run", reportID)
			return nil
		}
		return fmt.Errorf("load report %s: %w", reportID, err)
	}
	if report.Status.Terminal() {
		o.logf("report %s already %s, skipping run", reportID, report.Status)
		return nil
	}

	now := time.Now().UTC()
	report.Status = domain.ReportStatusRunning
	report.StartedAt = &now
	if err := o.repo.UpdateReportStatus(ctx, report); err != nil {
		return o.markFailed(ctx, report, fmt.Errorf("mark running: %w", err))
	}

	product, err := o.repo.GetProduct(ctx, report.ProductID)
	if err != nil {
		return o.markFailed(ctx, report, fmt.Errorf("load product %s: %w", report.ProductID, err))
	}

	state := &runState{
		product:   *product,
		articles:  make(map[string][]domain.ArticleSummary),
		positions: make(map[string]int),
		rng:       o.newRand(),
	}

	stages := []struct {
		name string
		body func(ctx context.Context, report *domain.Report, state *runState) stageResult
	}{
		{domain.StepInitialKeywords, o.stageInitialKeywords},
		{domain.StepKeywordExpand, o.stageKeywordExpand},
		{domain.StepTwitterTrends, o.stageTwitterTrends},
		{domain.StepSocialCorpus, o.stageSocialCorpus},
		{domain.StepMediumTags, o.stageMediumTags},
		{domain.StepHeadlines, o.stageHeadlines},
		{domain.StepTweetDrafts, o.stageTweetDrafts},
		{domain.StepVisualConcepts, o.stageVisualConcepts},
		{domain.StepTweetReplies, o.stageTweetReplies},
	}

	for _, stage := range stages {
		if err := o.runStage(ctx, report, state, stage.name, stage.body); err != nil {
			return o.markFailed(ctx, report, err)
		}
		if state.bookkeepingErr != nil {
			return o.markFailed(ctx, report, state.bookkeepingErr)
		}
	}

	finished := time.Now().UTC()
	report.Status = domain.ReportStatusComplete
	report.CompletedAt = &finished
	if err := o.repo.UpdateReportStatus(ctx, report); err != nil {
		return o.markFailed(ctx, report, fmt.Errorf("mark complete: %w", err))
	}
	o.logf("report %s complete with %d suggestions", report.ID, state.suggestions)
	return nil
}

// runStage wraps one stage with its ReportStep record. The returned error
// is a bookkeeping fault only; stage body errors become a failed step and
// the pipeline moves on.
func (o *Orchestrator) runStage(
	ctx context.Context,
	report *domain.Report,
	state *runState,
	name string,
	body func(ctx context.Context, report *domain.Report, state *runState) stageResult,
) error {
	step := &domain.ReportStep{
		ID:        uuid.NewString(),
		ReportID:  report.ID,
		StepName:  name,
		Status:    domain.StepStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := o.repo.CreateStep(ctx, step); err != nil {
		return fmt.Errorf("create step %s: %w", name, err)
	}

	result := body(ctx, report, state)

	finished := time.Now().UTC()
	step.FinishedAt = &finished
	if result.err != nil {
		o.logf("stage %s failed for report %s: %v", name, report.ID, result.err)
		step.Status = domain.StepStatusFailed
		step.ErrorMessage = result.err.Error()
	} else {
		step.Status = domain.StepStatusDone
		payload := result.payload
		if payload == nil {
			payload = map[string]any{}
		}
		if result.warn != "" {
			payload["warning"] = result.warn
			o.logf("stage %s degraded for report %s: %s", name, report.ID, result.warn)
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			encoded = []byte(`{}`)
		}
		step.Payload = encoded
	}

	if err := o.repo.UpdateStep(ctx, step); err != nil {
		return fmt.Errorf("finish step %s: %w", name, err)
	}
	return nil
}

// persistSuggestion ranks and stores one candidate. Creation errors are
// logged and swallowed so one bad row never blocks the rest of the batch;
// a failed partial_ready transition is a bookkeeping fault.
func (o *Orchestrator) persistSuggestion(
	ctx context.Context,
	report *domain.Report,
	state *runState,
	sourceType domain.SourceType,
	kind domain.SuggestionKind,
	text string,
	meta json.RawMessage,
) {
	if err := policy.ValidateMeta(kind, meta); err != nil {
		o.logf("drop %s candidate for report %s: %v", kind, report.ID, err)
		return
	}

	positionKey := string(kind) + "|" + string(sourceType)
	position := state.positions[positionKey]
	state.positions[positionKey] = position + 1

	placement := policy.Assign(sourceType, kind, position, report.VisibilityCutoff)
	suggestion := &domain.Suggestion{
		ID:         uuid.NewString(),
		ReportID:   report.ID,
		SourceType: sourceType,
		Kind:       kind,
		Text:       text,
		Rank:       placement.Rank,
		Meta:       meta,
		Visibility: placement.Visibility,
		CreatedAt:  time.Now().UTC(),
	}

	if err := o.repo.CreateSuggestion(ctx, suggestion); err != nil {
		o.logf("persist %s suggestion for report %s: %v", kind, report.ID, err)
		state.positions[positionKey] = position
		return
	}
	state.suggestions++

	if state.suggestions == 1 && report.Status == domain.ReportStatusRunning {
		report.Status = domain.ReportStatusPartialReady
		if err := o.repo.UpdateReportStatus(ctx, report); err != nil {
			state.bookkeepingErr = fmt.Errorf("mark partial_ready: %w", err)
		}
	}
}

func (o *Orchestrator) markFailed(ctx context.Context, report *domain.Report, cause error) error {
	o.logf("report %s failed: %v", report.ID, cause)

	finished := time.Now().UTC()
	report.Status = domain.ReportStatusFailed
	report.ErrorMessage = cause.Error()
	report.CompletedAt = &finished
	if err := o.repo.UpdateReportStatus(ctx, report); err != nil {
		o.logf("mark report %s failed: %v", report.ID, err)
	}
	return cause
}

// sampleStrings picks up to limit values without replacement, preserving
// the original order of the picked values.
func sampleStrings(rng *rand.Rand, values []string, limit int) []string {
	if limit >= len(values) {
		return append([]string(nil), values...)
	}

	picked := rng.Perm(len(values))[:limit]
	mask := make(map[int]struct{}, limit)
	for _, index := range picked {
		mask[index] = struct{}{}
	}

	result := make([]string, 0, limit)
	for index, value := range values {
		if _, ok := mask[index]; ok {
			result = append(result, value)
		}
	}
	return result
}

func (o *Orchestrator) logf(format string, args ...any) {
	if o.logger == nil {
		return
	}
	o.logger.Printf(format, args...)
}

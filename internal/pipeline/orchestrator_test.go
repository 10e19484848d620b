package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/contentpulse/backend/internal/domain"
	"github.com/contentpulse/backend/internal/repository"
	"github.com/contentpulse/backend/internal/service"
	"github.com/contentpulse/backend/internal/signals"
)

type fakeGenerator struct {
	keywords    service.KeywordGroups
	headlineErr error
	emptyBatch  bool
}

func (f *fakeGenerator) SynthesizeKeywords(_ context.Context, _ domain.Product) (service.KeywordGroups, error) {
	return f.keywords, nil
}

func (f *fakeGenerator) SelectCandidates(_ context.Context, _ domain.Product, _ string, candidates []string, limit int) ([]string, error) {
	if limit > len(candidates) {
		limit = len(candidates)
	}
	return candidates[:limit], nil
}

func (f *fakeGenerator) GenerateHeadlines(_ context.Context, request service.HeadlineRequest) ([]service.HeadlineCandidate, error) {
	if f.headlineErr != nil {
		return nil, f.headlineErr
	}
	if f.emptyBatch {
		return nil, nil
	}
	return []service.HeadlineCandidate{
		{Title: "Why " + request.Origin + " matters for " + request.Product.Name, Description: "an angle on " + request.Origin},
		{Title: request.Origin + ": a field guide", Description: "practical notes"},
	}, nil
}

func (f *fakeGenerator) GenerateTweetDrafts(_ context.Context, request service.DraftRequest) ([]string, error) {
	if f.emptyBatch {
		return nil, nil
	}
	return []string{"Hot take on " + request.Origin, "Another angle on " + request.Origin}, nil
}

func (f *fakeGenerator) GenerateConcepts(_ context.Context, request service.ConceptRequest) ([]service.ConceptCandidate, error) {
	if f.emptyBatch {
		return nil, nil
	}
	return []service.ConceptCandidate{
		{Caption: string(request.Kind) + " about " + request.Origin, Instructions: []byte(`{"scene":"workshop","overlay":"it fits"}`)},
	}, nil
}

func (f *fakeGenerator) GenerateReplies(_ context.Context, request service.ReplyRequest) ([]service.ReplyCandidate, error) {
	if f.emptyBatch {
		return nil, nil
	}
	replies := make([]service.ReplyCandidate, 0, len(request.Posts))
	for _, post := range request.Posts {
		replies = append(replies, service.ReplyCandidate{PostID: post.ID, Text: "Hang in there, " + post.AuthorHandle})
	}
	return replies, nil
}

type fakeExpander struct {
	enabled bool
	err     error
}

func (f *fakeExpander) Available() bool { return f.enabled }

func (f *fakeExpander) ExpandKeywords(_ context.Context, seeds []string, _, _ int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	expanded := make([]string, 0, len(seeds)*2)
	for _, seed := range seeds {
		expanded = append(expanded, seed, seed+" review")
	}
	return expanded, nil
}

type fakeSocial struct {
	enabled bool
	trends  []string
	posts   []domain.PostSummary
	err     error
}

func (f *fakeSocial) Available() bool { return f.enabled }

func (f *fakeSocial) TrendingTopics(_ context.Context, _ int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.trends, nil
}

func (f *fakeSocial) SearchPosts(_ context.Context, _ string, _ int) (signals.SearchResults, error) {
	if f.err != nil {
		return signals.SearchResults{}, f.err
	}
	return signals.SearchResults{Top: f.posts}, nil
}

type fakeTags struct {
	enabled bool
	tags    []string
}

func (f *fakeTags) Available() bool { return f.enabled }

func (f *fakeTags) ListTags(_ context.Context, _ int) ([]string, error) {
	return f.tags, nil
}

func (f *fakeTags) TrendingForTag(_ context.Context, tag string, _ int) ([]domain.ArticleSummary, error) {
	return []domain.ArticleSummary{{ID: "a1", Title: "Deep dive into " + tag}}, nil
}

func seedReport(t *testing.T, repo repository.ReportsRepository) *domain.Report {
	t.Helper()

	product := &domain.Product{
		ID:          uuid.NewString(),
		UserID:      "user-1",
		Name:        "Acme Widgets",
		Description: "widgets for makers",
		CreatedAt:   time.Now().UTC(),
	}
	if err := repo.CreateProduct(context.Background(), product); err != nil {
		t.Fatalf("create product: %v", err)
	}

	report := &domain.Report{
		ID:               uuid.NewString(),
		ProductID:        product.ID,
		UserID:           "user-1",
		Status:           domain.ReportStatusQueued,
		VisibilityCutoff: domain.DefaultVisibilityCutoff,
		CreatedAt:        time.Now().UTC(),
	}
	if err := repo.CreateReport(context.Background(), report); err != nil {
		t.Fatalf("create report: %v", err)
	}
	return report
}

func defaultFakes() (*fakeGenerator, *fakeExpander, *fakeSocial, *fakeTags) {
	gen := &fakeGenerator{
		keywords: service.KeywordGroups{
			Prospect: []string{"3d printing fails"},
			SEO:      []string{"best widget tool"},
		},
	}
	serp := &fakeExpander{enabled: true}
	social := &fakeSocial{
		enabled: true,
		trends:  []string{"Widget Day"},
		posts: []domain.PostSummary{
			{ID: "p1", Text: "widgets are hard", AuthorName: "Maker", AuthorHandle: "maker", LikeCount: 10},
		},
	}
	tags := &fakeTags{enabled: true, tags: []string{"diy-tools"}}
	return gen, serp, social, tags
}

func newOrchestrator(repo repository.ReportsRepository, gen Generator, serp KeywordExpander, social SocialProvider, tags TagProvider) *Orchestrator {
	logger := log.New(&strings.Builder{}, "", 0)
	return NewOrchestrator(repo, gen, serp, social, tags, logger, OrchestratorConfig{Seed: 42})
}

func TestRunEndToEndProducesRankedSuggestions(t *testing.T) {
	repo := repository.NewMemoryReportsRepository()
	report := seedReport(t, repo)
	gen, serp, social, tags := defaultFakes()

	orchestrator := newOrchestrator(repo, gen, serp, social, tags)
	if err := orchestrator.Run(context.Background(), report.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	updated, err := repo.GetReport(context.Background(), report.ID)
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	if updated.Status != domain.ReportStatusComplete {
		t.Fatalf("expected complete report, got %s", updated.Status)
	}

	steps, err := repo.ListSteps(context.Background(), report.ID)
	if err != nil {
		t.Fatalf("list steps: %v", err)
	}
	foundInitial := false
	for _, step := range steps {
		if step.StepName == domain.StepInitialKeywords && step.Status == domain.StepStatusDone {
			foundInitial = true
		}
	}
	if !foundInitial {
		t.Fatal("expected a done initial_keywords step")
	}

	suggestions, err := repo.ListSuggestions(context.Background(), report.ID)
	if err != nil {
		t.Fatalf("list suggestions: %v", err)
	}

	trendHeadlines := 0
	for _, suggestion := range suggestions {
		if suggestion.Kind == domain.KindArticleHeadline && suggestion.SourceType == domain.SourceTrendingTopic {
			trendHeadlines++
		}
	}
	if trendHeadlines == 0 {
		t.Fatal("expected at least one trend-sourced article headline")
	}

	// Ranks within one source+kind batch must strictly decrease.
	lastRank := make(map[string]float64)
	for _, suggestion := range suggestions {
		key := string(suggestion.Kind) + "|" + string(suggestion.SourceType)
		if previous, ok := lastRank[key]; ok && suggestion.Rank >= previous {
			// ListSuggestions sorts rank desc, so later rows must be lower.
			t.Fatalf("rank not strictly decreasing in batch %s: %f then %f", key, previous, suggestion.Rank)
		}
		lastRank[key] = suggestion.Rank
	}

	guestVisible := 0
	for _, suggestion := range suggestions {
		if suggestion.Visibility == domain.VisibilityGuest {
			guestVisible++
			if suggestion.SourceType != domain.SourceTrendingTopic {
				t.Fatalf("guest visibility on non-trend source %s", suggestion.SourceType)
			}
		}
	}
	if guestVisible == 0 {
		t.Fatal("expected guest-visible trend suggestions")
	}
}

func TestRunSocialFailureDoesNotFailReport(t *testing.T) {
	repo := repository.NewMemoryReportsRepository()
	report := seedReport(t, repo)
	gen, serp, social, tags := defaultFakes()
	social.err = errors.New("social provider exploded")

	orchestrator := newOrchestrator(repo, gen, serp, social, tags)
	if err := orchestrator.Run(context.Background(), report.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	updated, _ := repo.GetReport(context.Background(), report.ID)
	if updated.Status != domain.ReportStatusComplete {
		t.Fatalf("expected complete despite social failure, got %s", updated.Status)
	}

	steps, _ := repo.ListSteps(context.Background(), report.ID)
	failedTrends := false
	for _, step := range steps {
		if step.StepName == domain.StepTwitterTrends && step.Status == domain.StepStatusFailed {
			failedTrends = true
		}
	}
	if !failedTrends {
		t.Fatal("expected twitter_trends step to be failed")
	}
}

func TestRunExpansionDisabledDegradesWithWarning(t *testing.T) {
	repo := repository.NewMemoryReportsRepository()
	report := seedReport(t, repo)
	gen, serp, social, tags := defaultFakes()
	serp.enabled = false

	orchestrator := newOrchestrator(repo, gen, serp, social, tags)
	if err := orchestrator.Run(context.Background(), report.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	updated, _ := repo.GetReport(context.Background(), report.ID)
	if updated.Status != domain.ReportStatusComplete {
		t.Fatalf("expected complete report, got %s", updated.Status)
	}

	steps, _ := repo.ListSteps(context.Background(), report.ID)
	for _, step := range steps {
		if step.StepName != domain.StepKeywordExpand {
			continue
		}
		if step.Status != domain.StepStatusDone {
			t.Fatalf("expected done serpapi_expand step, got %s", step.Status)
		}
		if !strings.Contains(string(step.Payload), "warning") {
			t.Fatalf("expected warning payload, got %s", step.Payload)
		}
		if !strings.Contains(string(step.Payload), "best widget tool") {
			t.Fatalf("expected unexpanded keywords in payload, got %s", step.Payload)
		}
		return
	}
	t.Fatal("serpapi_expand step not found")
}

func TestRunEmptyGenerationBatchKeepsStageDone(t *testing.T) {
	repo := repository.NewMemoryReportsRepository()
	report := seedReport(t, repo)
	gen, serp, social, tags := defaultFakes()
	gen.emptyBatch = true

	orchestrator := newOrchestrator(repo, gen, serp, social, tags)
	if err := orchestrator.Run(context.Background(), report.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	steps, _ := repo.ListSteps(context.Background(), report.ID)
	for _, step := range steps {
		if step.StepName == domain.StepHeadlines && step.Status != domain.StepStatusDone {
			t.Fatalf("headlines step must stay done on empty batches, got %s", step.Status)
		}
	}

	suggestions, _ := repo.ListSuggestions(context.Background(), report.ID)
	if len(suggestions) != 0 {
		t.Fatalf("expected no suggestions from empty batches, got %d", len(suggestions))
	}

	updated, _ := repo.GetReport(context.Background(), report.ID)
	if updated.Status != domain.ReportStatusComplete {
		t.Fatalf("expected complete report, got %s", updated.Status)
	}
}

func TestRunHeadlineErrorMarksStepFailedOnly(t *testing.T) {
	repo := repository.NewMemoryReportsRepository()
	report := seedReport(t, repo)
	gen, serp, social, tags := defaultFakes()
	gen.headlineErr = fmt.Errorf("model timeout")

	orchestrator := newOrchestrator(repo, gen, serp, social, tags)
	if err := orchestrator.Run(context.Background(), report.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	updated, _ := repo.GetReport(context.Background(), report.ID)
	if updated.Status != domain.ReportStatusComplete {
		t.Fatalf("expected complete report, got %s", updated.Status)
	}

	suggestions, _ := repo.ListSuggestions(context.Background(), report.ID)
	for _, suggestion := range suggestions {
		if suggestion.Kind == domain.KindArticleHeadline {
			t.Fatal("no headlines expected when every batch errors")
		}
	}
}

func TestRunMissingReportIsANoOp(t *testing.T) {
	repo := repository.NewMemoryReportsRepository()
	gen, serp, social, tags := defaultFakes()

	orchestrator := newOrchestrator(repo, gen, serp, social, tags)
	if err := orchestrator.Run(context.Background(), "missing-report"); err != nil {
		t.Fatalf("missing report must not surface an error, got %v", err)
	}
}

func TestRunSkipsTerminalReport(t *testing.T) {
	repo := repository.NewMemoryReportsRepository()
	report := seedReport(t, repo)
	gen, serp, social, tags := defaultFakes()

	report.Status = domain.ReportStatusFailed
	report.ErrorMessage = "earlier fault"
	if err := repo.UpdateReportStatus(context.Background(), report); err != nil {
		t.Fatalf("seed failed status: %v", err)
	}

	orchestrator := newOrchestrator(repo, gen, serp, social, tags)
	if err := orchestrator.Run(context.Background(), report.ID); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	steps, _ := repo.ListSteps(context.Background(), report.ID)
	if len(steps) != 0 {
		t.Fatalf("terminal report must not gain steps, got %d", len(steps))
	}
}

func TestPersistSuggestionDropsMismatchedMeta(t *testing.T) {
	repo := repository.NewMemoryReportsRepository()
	report := seedReport(t, repo)
	report.Status = domain.ReportStatusRunning
	if err := repo.UpdateReportStatus(context.Background(), report); err != nil {
		t.Fatalf("mark running: %v", err)
	}

	gen, serp, social, tags := defaultFakes()
	orchestrator := newOrchestrator(repo, gen, serp, social, tags)
	state := &runState{positions: make(map[string]int)}

	orchestrator.persistSuggestion(
		context.Background(), report, state,
		domain.SourceTrendingTopic, domain.KindArticleHeadline,
		"headline a", []byte(`{"bogus": true, "keyword": 42}`),
	)

	if state.suggestions != 0 {
		t.Fatalf("mismatched meta must not count as a suggestion, got %d", state.suggestions)
	}
	if len(state.positions) != 0 {
		t.Fatalf("mismatched meta must not consume a rank position: %v", state.positions)
	}
	suggestions, err := repo.ListSuggestions(context.Background(), report.ID)
	if err != nil {
		t.Fatalf("list suggestions: %v", err)
	}
	if len(suggestions) != 0 {
		t.Fatalf("mismatched meta must not be stored, got %d rows", len(suggestions))
	}
}

func TestSnippetTruncatesOnRuneBoundaries(t *testing.T) {
	got := snippet(strings.Repeat("ő", 12), 5)
	if got != strings.Repeat("ő", 5) {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncated snippet is not valid UTF-8: %q", got)
	}
	if short := snippet("short  text", 140); short != "short text" {
		t.Fatalf("short input must pass through collapsed, got %q", short)
	}
}

func TestRunIsReproducibleWithFixedSeed(t *testing.T) {
	run := func() []string {
		repo := repository.NewMemoryReportsRepository()
		report := seedReport(t, repo)
		gen, serp, social, tags := defaultFakes()
		social.trends = []string{"Widget Day", "Maker Monday", "Tool Tuesday", "Print Friday"}

		orchestrator := newOrchestrator(repo, gen, serp, social, tags)
		if err := orchestrator.Run(context.Background(), report.ID); err != nil {
			t.Fatalf("run failed: %v", err)
		}

		suggestions, _ := repo.ListSuggestions(context.Background(), report.ID)
		texts := make([]string, 0, len(suggestions))
		for _, suggestion := range suggestions {
			texts = append(texts, suggestion.Text)
		}
		return texts
	}

	first := run()
	second := run()
	if len(first) != len(second) {
		t.Fatalf("runs differ in size: %d vs %d", len(first), len(second))
	}
	for index := range first {
		if first[index] != second[index] {
			t.Fatalf("runs diverge at %d: %q vs %q", index, first[index], second[index])
		}
	}
}

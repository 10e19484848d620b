package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/contentpulse/backend/internal/domain"
	"github.com/contentpulse/backend/internal/policy"
)

var (
	ErrNotFound = errors.New("resource not found")

	// ErrReportClosed guards suggestion/step writes against terminal reports.
	ErrReportClosed = errors.New("report is in a terminal state")

	// ErrInvalidTransition guards backward report status moves.
	ErrInvalidTransition = errors.New("invalid report status transition")

	// ErrInvalidMeta rejects suggestion metadata that does not match the
	// closed shape for its kind.
	ErrInvalidMeta = errors.New("suggestion meta does not match its kind")
)

// ReportsRepository abstracts persistence for the report aggregate, products,
// derived assets and usage counters.
type ReportsRepository interface {
	CreateProduct(ctx context.Context, product *domain.Product) error
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	ListProducts(ctx context.Context, userID, guestID string) ([]domain.ProductListItem, error)

	CreateReport(ctx context.Context, report *domain.Report) error
	GetReport(ctx context.Context, reportID string) (*domain.Report, error)
	UpdateReportStatus(ctx context.Context, report *domain.Report) error
	FindGuestReport(ctx context.Context, guestID string) (*domain.Report, error)

	CreateStep(ctx context.Context, step *domain.ReportStep) error
	UpdateStep(ctx context.Context, step *domain.ReportStep) error
	ListSteps(ctx context.Context, reportID string) ([]domain.ReportStep, error)

	CreateSuggestion(ctx context.Context, suggestion *domain.Suggestion) error
	GetSuggestion(ctx context.Context, suggestionID string) (*domain.Suggestion, error)
	ListSuggestions(ctx context.Context, reportID string) ([]domain.Suggestion, error)
	UpdateSuggestionMeta(ctx context.Context, suggestionID string, meta json.RawMessage) error

	MergeGuest(ctx context.Context, guestID, userID string) (int, error)

	CreateArticle(ctx context.Context, article *domain.Article) error
	GetArticle(ctx context.Context, articleID string) (*domain.Article, error)
	UpdateArticle(ctx context.Context, article *domain.Article) error

	CreateMeme(ctx context.Context, meme *domain.Meme) error
	GetMeme(ctx context.Context, memeID string) (*domain.Meme, error)
	UpdateMeme(ctx context.Context, meme *domain.Meme) error

	CreateSlop(ctx context.Context, slop *domain.Slop) error
	GetSlop(ctx context.Context, slopID string) (*domain.Slop, error)
	UpdateSlop(ctx context.Context, slop *domain.Slop) error

	GetUsage(ctx context.Context, userID, day string) (domain.UsageQuota, error)
	IncrementUsage(ctx context.Context, userID, day, kind string) error
}

// MemoryReportsRepository stores everything in memory for local development
// and tests.
type MemoryReportsRepository struct {
	mu          sync.RWMutex
	products    map[string]*domain.Product
	reports     map[string]*domain.Report
	steps       map[string]*domain.ReportStep
	suggestions map[string]*domain.Suggestion
	articles    map[string]*domain.Article
	memes       map[string]*domain.Meme
	slops       map[string]*domain.Slop
	usage       map[string]*domain.UsageQuota
}

func NewMemoryReportsRepository() *MemoryReportsRepository {
	return &MemoryReportsRepository{
		products:    make(map[string]*domain.Product),
		reports:     make(map[string]*domain.Report),
		steps:       make(map[string]*domain.ReportStep),
		suggestions: make(map[string]*domain.Suggestion),
		articles:    make(map[string]*domain.Article),
		memes:       make(map[string]*domain.Meme),
		slops:       make(map[string]*domain.Slop),
		usage:       make(map[string]*domain.UsageQuota),
	}
}

func (r *MemoryReportsRepository) CreateProduct(_ context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *product
	r.products[product.ID] = &clone
	return nil
}

func (r *MemoryReportsRepository) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[productID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *product
	return &clone, nil
}

func (r *MemoryReportsRepository) ListProducts(
	_ context.Context,
	userID, guestID string,
) ([]domain.ProductListItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]domain.ProductListItem, 0)
	for _, product := range r.products {
		if userID != "" && product.UserID != userID {
			continue
		}
		if userID == "" && (guestID == "" || product.GuestID != guestID) {
			continue
		}

		item := domain.ProductListItem{Product: *product}
		var latest *domain.Report
		for _, report := range r.reports {
			if report.ProductID != product.ID {
				continue
			}
			if latest == nil || report.CreatedAt.After(latest.CreatedAt) {
				latest = report
			}
		}
		if latest != nil {
			item.LatestReportID = latest.ID
			item.LatestStatus = latest.Status
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Product.CreatedAt.After(items[j].Product.CreatedAt)
	})
	return items, nil
}

func (r *MemoryReportsRepository) CreateReport(_ context.Context, report *domain.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reports[report.ID] = cloneReport(report)
	return nil
}

func (r *MemoryReportsRepository) GetReport(_ context.Context, reportID string) (*domain.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[reportID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneReport(report), nil
}

func (r *MemoryReportsRepository) UpdateReportStatus(_ context.Context, report *domain.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.reports[report.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Status.Terminal() {
		return ErrReportClosed
	}
	if current.Status != report.Status && !current.Status.CanTransition(report.Status) {
		return ErrInvalidTransition
	}
	r.reports[report.ID] = cloneReport(report)
	return nil
}

func (r *MemoryReportsRepository) FindGuestReport(_ context.Context, guestID string) (*domain.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if guestID == "" {
		return nil, ErrNotFound
	}
	var found *domain.Report
	for _, report := range r.reports {
		if report.GuestID != guestID {
			continue
		}
		if found == nil || report.CreatedAt.After(found.CreatedAt) {
			found = report
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return cloneReport(found), nil
}

func (r *MemoryReportsRepository) CreateStep(_ context.Context, step *domain.ReportStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	report, ok := r.reports[step.ReportID]
	if !ok {
		return ErrNotFound
	}
	if report.Status.Terminal() {
		return ErrReportClosed
	}
	r.steps[step.ID] = cloneStep(step)
	return nil
}

func (r *MemoryReportsRepository) UpdateStep(_ context.Context, step *domain.ReportStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.steps[step.ID]
	if !ok {
		return ErrNotFound
	}
	// A step never reverts from a terminal state.
	if current.Status != domain.StepStatusRunning && current.Status != step.Status {
		return ErrInvalidTransition
	}
	r.steps[step.ID] = cloneStep(step)
	return nil
}

func (r *MemoryReportsRepository) ListSteps(_ context.Context, reportID string) ([]domain.ReportStep, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	steps := make([]domain.ReportStep, 0)
	for _, step := range r.steps {
		if step.ReportID == reportID {
			steps = append(steps, *cloneStep(step))
		}
	}
	sort.Slice(steps, func(i, j int) bool {
		return steps[i].StartedAt.Before(steps[j].StartedAt)
	})
	return steps, nil
}

func (r *MemoryReportsRepository) CreateSuggestion(_ context.Context, suggestion *domain.Suggestion) error {
	if err := policy.ValidateMeta(suggestion.Kind, suggestion.Meta); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMeta, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	report, ok := r.reports[suggestion.ReportID]
	if !ok {
		return ErrNotFound
	}
	if report.Status.Terminal() {
		return ErrReportClosed
	}
	r.suggestions[suggestion.ID] = cloneSuggestion(suggestion)
	return nil
}

func (r *MemoryReportsRepository) GetSuggestion(_ context.Context, suggestionID string) (*domain.Suggestion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	suggestion, ok := r.suggestions[suggestionID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSuggestion(suggestion), nil
}

func (r *MemoryReportsRepository) ListSuggestions(_ context.Context, reportID string) ([]domain.Suggestion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	suggestions := make([]domain.Suggestion, 0)
	for _, suggestion := range r.suggestions {
		if suggestion.ReportID == reportID {
			suggestions = append(suggestions, *cloneSuggestion(suggestion))
		}
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Rank == suggestions[j].Rank {
			return suggestions[i].CreatedAt.Before(suggestions[j].CreatedAt)
		}
		return suggestions[i].Rank > suggestions[j].Rank
	})
	return suggestions, nil
}

func (r *MemoryReportsRepository) UpdateSuggestionMeta(
	_ context.Context,
	suggestionID string,
	meta json.RawMessage,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	suggestion, ok := r.suggestions[suggestionID]
	if !ok {
		return ErrNotFound
	}
	suggestion.Meta = append([]byte(nil), meta...)
	return nil
}

func (r *MemoryReportsRepository) MergeGuest(_ context.Context, guestID, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if guestID == "" || userID == "" {
		return 0, nil
	}

	merged := 0
	for _, product := range r.products {
		if product.GuestID == guestID {
			product.GuestID = ""
			product.UserID = userID
			product.UpdatedAt = time.Now().UTC()
			merged++
		}
	}
	for _, report := range r.reports {
		if report.GuestID == guestID {
			report.GuestID = ""
			report.UserID = userID
			report.UpdatedAt = time.Now().UTC()
			merged++
		}
	}
	return merged, nil
}

func (r *MemoryReportsRepository) CreateArticle(_ context.Context, article *domain.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *article
	r.articles[article.ID] = &clone
	return nil
}

func (r *MemoryReportsRepository) GetArticle(_ context.Context, articleID string) (*domain.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	article, ok := r.articles[articleID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *article
	return &clone, nil
}

func (r *MemoryReportsRepository) UpdateArticle(_ context.Context, article *domain.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.articles[article.ID]; !ok {
		return ErrNotFound
	}
	clone := *article
	r.articles[article.ID] = &clone
	return nil
}

func (r *MemoryReportsRepository) CreateMeme(_ context.Context, meme *domain.Meme) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *meme
	r.memes[meme.ID] = &clone
	return nil
}

func (r *MemoryReportsRepository) GetMeme(_ context.Context, memeID string) (*domain.Meme, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meme, ok := r.memes[memeID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *meme
	return &clone, nil
}

func (r *MemoryReportsRepository) UpdateMeme(_ context.Context, meme *domain.Meme) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.memes[meme.ID]; !ok {
		return ErrNotFound
	}
	clone := *meme
	r.memes[meme.ID] = &clone
	return nil
}

func (r *MemoryReportsRepository) CreateSlop(_ context.Context, slop *domain.Slop) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *slop
	r.slops[slop.ID] = &clone
	return nil
}

func (r *MemoryReportsRepository) GetSlop(_ context.Context, slopID string) (*domain.Slop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slop, ok := r.slops[slopID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *slop
	return &clone, nil
}

func (r *MemoryReportsRepository) UpdateSlop(_ context.Context, slop *domain.Slop) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.slops[slop.ID]; !ok {
		return ErrNotFound
	}
	clone := *slop
	r.slops[slop.ID] = &clone
	return nil
}

func (r *MemoryReportsRepository) GetUsage(_ context.Context, userID, day string) (domain.UsageQuota, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	usage, ok := r.usage[userID+"|"+day]
	if !ok {
		return domain.UsageQuota{UserID: userID, Day: day}, nil
	}
	return *usage, nil
}

func (r *MemoryReportsRepository) IncrementUsage(_ context.Context, userID, day, kind string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := userID + "|" + day
	usage, ok := r.usage[key]
	if !ok {
		usage = &domain.UsageQuota{UserID: userID, Day: day}
		r.usage[key] = usage
	}
	switch kind {
	case "content":
		usage.ContentCount++
	case "article":
		usage.ArticleCount++
	case "video":
		usage.VideoCount++
	}
	return nil
}

func cloneReport(report *domain.Report) *domain.Report {
	if report == nil {
		return nil
	}
	clone := *report
	if report.StartedAt != nil {
		started := *report.StartedAt
		clone.StartedAt = &started
	}
	if report.CompletedAt != nil {
		completed := *report.CompletedAt
		clone.CompletedAt = &completed
	}
	return &clone
}

func cloneStep(step *domain.ReportStep) *domain.ReportStep {
	if step == nil {
		return nil
	}
	clone := *step
	clone.Payload = append([]byte(nil), step.Payload...)
	if step.FinishedAt != nil {
		finished := *step.FinishedAt
		clone.FinishedAt = &finished
	}
	return &clone
}

func cloneSuggestion(suggestion *domain.Suggestion) *domain.Suggestion {
	if suggestion == nil {
		return nil
	}
	clone := *suggestion
	clone.Meta = append([]byte(nil), suggestion.Meta...)
	return &clone
}

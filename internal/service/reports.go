package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/contentpulse/backend/internal/domain"
	"github.com/contentpulse/backend/internal/queue"
	"github.com/contentpulse/backend/internal/repository"
)

var (
	ErrForbidden    = errors.New("actor may not access this resource")
	ErrInvalidInput = errors.New("invalid input")
)

// Actor identifies the caller: an authenticated user, a guest token, or
// neither. At most one of the two ids is set.
type Actor struct {
	UserID  string
	GuestID string
}

func (a Actor) IsGuest() bool {
	return a.UserID == "" && a.GuestID != ""
}

type ReportsService struct {
	repo             repository.ReportsRepository
	producer         queue.Producer
	visibilityCutoff int
	logger           *log.Logger
}

// NewReportsService wires the report lifecycle. visibilityCutoff caps the
// guest-visible suggestion slice on reports created by this service; zero or
// negative falls back to the default.
func NewReportsService(repo repository.ReportsRepository, producer queue.Producer, visibilityCutoff int, logger *log.Logger) *ReportsService {
	if visibilityCutoff <= 0 {
		visibilityCutoff = domain.DefaultVisibilityCutoff
	}
	return &ReportsService{repo: repo, producer: producer, visibilityCutoff: visibilityCutoff, logger: logger}
}

func (s *ReportsService) CreateProduct(ctx context.Context, actor Actor, name, description string) (*domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: product name is required", ErrInvalidInput)
	}
	if actor.UserID == "" && actor.GuestID == "" {
		return nil, fmt.Errorf("%w: product needs an owner", ErrInvalidInput)
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:          uuid.NewString(),
		UserID:      actor.UserID,
		GuestID:     actor.GuestID,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if actor.UserID != "" {
		product.GuestID = ""
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return product, nil
}

// ListProducts returns the actor's products with latest report summaries.
// An authenticated caller that still carries a guest token gets that guest's
// items merged into the account first.
func (s *ReportsService) ListProducts(ctx context.Context, actor Actor) ([]domain.ProductListItem, error) {
	if actor.UserID != "" && actor.GuestID != "" {
		if _, err := s.MergeGuest(ctx, actor.GuestID, actor.UserID); err != nil {
			return nil, err
		}
		actor.GuestID = ""
	}
	return s.repo.ListProducts(ctx, actor.UserID, actor.GuestID)
}

// InitiateResult reports what happened on a report request. PromptLogin is
// set when a guest already owns a report and must sign up for another.
type InitiateResult struct {
	ReportID    string
	PromptLogin bool
}

// InitiateReport creates a queued report for a product the actor owns and
// hands it to the background queue. Guests get exactly one report; a second
// request returns the existing one with a login prompt instead of an error.
func (s *ReportsService) InitiateReport(ctx context.Context, actor Actor, productID string) (InitiateResult, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return InitiateResult{}, err
	}
	if !ownsProduct(actor, product) {
		return InitiateResult{}, ErrForbidden
	}

	if actor.IsGuest() {
		existing, err := s.repo.FindGuestReport(ctx, actor.GuestID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return InitiateResult{}, fmt.Errorf("find guest report: %w", err)
		}
		if existing != nil {
			return InitiateResult{ReportID: existing.ID, PromptLogin: true}, nil
		}
	}

	report, err := s.createAndEnqueue(ctx, actor, product.ID)
	if err != nil {
		return InitiateResult{}, err
	}
	return InitiateResult{ReportID: report.ID}, nil
}

// Regenerate starts a fresh report for the same product. Owner-only; the
// original report is left untouched whatever state it is in.
func (s *ReportsService) Regenerate(ctx context.Context, actor Actor, reportID string) (string, error) {
	original, err := s.repo.GetReport(ctx, reportID)
	if err != nil {
		return "", err
	}
	if actor.UserID == "" || original.UserID != actor.UserID {
		return "", ErrForbidden
	}

	report, err := s.createAndEnqueue(ctx, actor, original.ProductID)
	if err != nil {
		return "", err
	}
	return report.ID, nil
}

func (s *ReportsService) createAndEnqueue(ctx context.Context, actor Actor, productID string) (*domain.Report, error) {
	now := time.Now().UTC()
	report := &domain.Report{
		ID:               uuid.NewString(),
		ProductID:        productID,
		UserID:           actor.UserID,
		GuestID:          actor.GuestID,
		Status:           domain.ReportStatusQueued,
		VisibilityCutoff: s.visibilityCutoff,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if actor.UserID != "" {
		report.GuestID = ""
	}

	if err := s.repo.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}

	message := domain.QueueMessage{
		JobID:       uuid.NewString(),
		Kind:        domain.JobKindReport,
		TargetID:    report.ID,
		ReportID:    report.ID,
		Attempt:     0,
		RequestedAt: now,
	}
	if err := s.producer.Enqueue(ctx, message); err != nil {
		report.Status = domain.ReportStatusFailed
		report.ErrorMessage = "enqueue failed: " + err.Error()
		if updateErr := s.repo.UpdateReportStatus(ctx, report); updateErr != nil {
			s.logf("mark report %s failed after enqueue error: %v", report.ID, updateErr)
		}
		return nil, fmt.Errorf("enqueue report: %w", err)
	}
	return report, nil
}

// SuggestionView is the API shape of one suggestion.
type SuggestionView struct {
	ID         string          `json:"id"`
	SourceType string          `json:"source_type"`
	Kind       string          `json:"kind"`
	Text       string          `json:"text"`
	Rank       float64         `json:"rank"`
	Meta       json.RawMessage `json:"meta,omitempty"`
	Visibility string          `json:"visibility"`
}

type StepView struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ReportView is the visibility-filtered answer to a report poll.
type ReportView struct {
	ID           string           `json:"id"`
	ProductID    string           `json:"product_id,omitempty"`
	Status       string           `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Partial      bool             `json:"partial,omitempty"`
	Steps        []StepView       `json:"steps"`
	Suggestions  []SuggestionView `json:"suggestions,omitempty"`
}

// GetReport applies the three access tiers: the owner sees everything, the
// matching guest sees the top guest-visible slice marked partial, anyone
// else sees only status and step progress.
func (s *ReportsService) GetReport(ctx context.Context, actor Actor, reportID string) (ReportView, error) {
	report, err := s.repo.GetReport(ctx, reportID)
	if err != nil {
		return ReportView{}, err
	}

	steps, err := s.repo.ListSteps(ctx, reportID)
	if err != nil {
		return ReportView{}, fmt.Errorf("list steps: %w", err)
	}

	view := ReportView{
		ID:     report.ID,
		Status: string(report.Status),
		Steps:  make([]StepView, 0, len(steps)),
	}
	for _, step := range steps {
		view.Steps = append(view.Steps, StepView{
			Name:         step.StepName,
			Status:       string(step.Status),
			ErrorMessage: step.ErrorMessage,
		})
	}

	isOwner := actor.UserID != "" && actor.UserID == report.UserID
	isMatchingGuest := !isOwner && actor.GuestID != "" && actor.GuestID == report.GuestID
	if !isOwner && !isMatchingGuest {
		return view, nil
	}

	suggestions, err := s.repo.ListSuggestions(ctx, reportID)
	if err != nil {
		return ReportView{}, fmt.Errorf("list suggestions: %w", err)
	}

	view.ProductID = report.ProductID
	view.ErrorMessage = report.ErrorMessage
	if isOwner {
		for _, suggestion := range suggestions {
			view.Suggestions = append(view.Suggestions, toSuggestionView(suggestion, true))
		}
		return view, nil
	}

	// Guest slice: the top visibility_cutoff guest-visible suggestions,
	// already rank-sorted by the repository.
	view.Partial = true
	for _, suggestion := range suggestions {
		if suggestion.Visibility != domain.VisibilityGuest {
			continue
		}
		view.Suggestions = append(view.Suggestions, toSuggestionView(suggestion, false))
		if len(view.Suggestions) >= report.VisibilityCutoff {
			break
		}
	}
	return view, nil
}

// MergeGuest re-owns every product and report carrying the guest token to
// the user and clears the token. Idempotent: a second call merges zero rows.
func (s *ReportsService) MergeGuest(ctx context.Context, guestID, userID string) (int, error) {
	if strings.TrimSpace(guestID) == "" || strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("%w: guest id and user id are required", ErrInvalidInput)
	}

	merged, err := s.repo.MergeGuest(ctx, guestID, userID)
	if err != nil {
		return 0, fmt.Errorf("merge guest %s: %w", guestID, err)
	}
	if merged > 0 {
		s.logf("merged %d rows from guest %s into user %s", merged, guestID, userID)
	}
	return merged, nil
}

func ownsProduct(actor Actor, product *domain.Product) bool {
	if actor.UserID != "" && product.UserID == actor.UserID {
		return true
	}
	if actor.IsGuest() && product.GuestID == actor.GuestID {
		return true
	}
	return false
}

func toSuggestionView(suggestion domain.Suggestion, includeMeta bool) SuggestionView {
	view := SuggestionView{
		ID:         suggestion.ID,
		SourceType: string(suggestion.SourceType),
		Kind:       string(suggestion.Kind),
		Text:       suggestion.Text,
		Rank:       suggestion.Rank,
		Visibility: string(suggestion.Visibility),
	}
	if includeMeta {
		view.Meta = suggestion.Meta
	}
	return view
}

func (s *ReportsService) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}

package service

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/contentpulse/backend/internal/domain"
	"github.com/contentpulse/backend/internal/queue"
	"github.com/contentpulse/backend/internal/repository"
)

type failingProducer struct{}

func (failingProducer) Enqueue(context.Context, domain.QueueMessage) error {
	return errors.New("broker offline")
}

func newReportsFixture(t *testing.T) (*ReportsService, *repository.MemoryReportsRepository) {
	t.Helper()
	repo := repository.NewMemoryReportsRepository()
	logger := log.New(io.Discard, "", 0)
	return NewReportsService(repo, queue.NewLocalQueue(64, 3, logger), 0, logger), repo
}

func createProduct(t *testing.T, svc *ReportsService, actor Actor) *domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(context.Background(), actor, "Acme Widgets", "widgets for makers")
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func TestCreateProductRequiresNameAndOwner(t *testing.T) {
	svc, _ := newReportsFixture(t)
	ctx := context.Background()

	if _, err := svc.CreateProduct(ctx, Actor{UserID: "user-1"}, "  ", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank name, got %v", err)
	}
	if _, err := svc.CreateProduct(ctx, Actor{}, "Acme", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing owner, got %v", err)
	}
}

func TestCreateProductAuthenticatedUserDropsGuestToken(t *testing.T) {
	svc, _ := newReportsFixture(t)

	product := createProduct(t, svc, Actor{UserID: "user-1", GuestID: "guest-1"})
	if product.UserID != "user-1" || product.GuestID != "" {
		t.Fatalf("expected user-owned product without guest token, got %+v", product)
	}
}

func TestInitiateReportGuestGetsSingleRun(t *testing.T) {
	svc, _ := newReportsFixture(t)
	ctx := context.Background()
	guest := Actor{GuestID: "guest-1"}
	product := createProduct(t, svc, guest)

	first, err := svc.InitiateReport(ctx, guest, product.ID)
	if err != nil {
		t.Fatalf("first initiate: %v", err)
	}
	if first.ReportID == "" || first.PromptLogin {
		t.Fatalf("expected fresh report without login prompt, got %+v", first)
	}

	second, err := svc.InitiateReport(ctx, guest, product.ID)
	if err != nil {
		t.Fatalf("second initiate: %v", err)
	}
	if second.ReportID != first.ReportID {
		t.Fatalf("expected the existing report back, got %+v", second)
	}
	if !second.PromptLogin {
		t.Fatalf("expected prompt_login on the second guest run")
	}
}

func TestInitiateReportRejectsNonOwner(t *testing.T) {
	svc, _ := newReportsFixture(t)
	ctx := context.Background()
	product := createProduct(t, svc, Actor{UserID: "user-1"})

	if _, err := svc.InitiateReport(ctx, Actor{UserID: "user-2"}, product.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another user, got %v", err)
	}
	if _, err := svc.InitiateReport(ctx, Actor{GuestID: "guest-9"}, product.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for an unrelated guest, got %v", err)
	}
}

func TestInitiateReportEnqueueFailureMarksReportFailed(t *testing.T) {
	repo := repository.NewMemoryReportsRepository()
	logger := log.New(io.Discard, "", 0)
	svc := NewReportsService(repo, failingProducer{}, 0, logger)
	ctx := context.Background()
	owner := Actor{UserID: "user-1"}

	product, err := svc.CreateProduct(ctx, owner, "Acme Widgets", "")
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	if _, err := svc.InitiateReport(ctx, owner, product.ID); err == nil {
		t.Fatalf("expected enqueue error to surface")
	}

	items, err := repo.ListProducts(ctx, "user-1", "")
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(items) != 1 || items[0].LatestStatus != domain.ReportStatusFailed {
		t.Fatalf("expected the report to be marked failed, got %+v", items)
	}
}

func TestInitiateReportAppliesConfiguredVisibilityCutoff(t *testing.T) {
	repo := repository.NewMemoryReportsRepository()
	logger := log.New(io.Discard, "", 0)
	svc := NewReportsService(repo, queue.NewLocalQueue(64, 3, logger), 3, logger)
	ctx := context.Background()
	owner := Actor{UserID: "user-1"}

	product, err := svc.CreateProduct(ctx, owner, "Acme Widgets", "")
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	initiated, err := svc.InitiateReport(ctx, owner, product.ID)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	report, err := repo.GetReport(ctx, initiated.ReportID)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if report.VisibilityCutoff != 3 {
		t.Fatalf("expected cutoff 3 on the new report, got %d", report.VisibilityCutoff)
	}
}

func TestNewReportsServiceDefaultsVisibilityCutoff(t *testing.T) {
	svc, repo := newReportsFixture(t)
	ctx := context.Background()
	owner := Actor{UserID: "user-1"}
	product := createProduct(t, svc, owner)

	initiated, err := svc.InitiateReport(ctx, owner, product.ID)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	report, err := repo.GetReport(ctx, initiated.ReportID)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if report.VisibilityCutoff != domain.DefaultVisibilityCutoff {
		t.Fatalf("expected the default cutoff, got %d", report.VisibilityCutoff)
	}
}

func TestRegenerateIsOwnerOnly(t *testing.T) {
	svc, _ := newReportsFixture(t)
	ctx := context.Background()
	owner := Actor{UserID: "user-1"}
	product := createProduct(t, svc, owner)

	initiated, err := svc.InitiateReport(ctx, owner, product.ID)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if _, err := svc.Regenerate(ctx, Actor{UserID: "user-2"}, initiated.ReportID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another user, got %v", err)
	}
	if _, err := svc.Regenerate(ctx, Actor{GuestID: "guest-1"}, initiated.ReportID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a guest, got %v", err)
	}

	newID, err := svc.Regenerate(ctx, owner, initiated.ReportID)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if newID == initiated.ReportID {
		t.Fatalf("expected a fresh report id from regenerate")
	}
}

func seedReportWithSuggestions(t *testing.T, repo *repository.MemoryReportsRepository, owner Actor) *domain.Report {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	report := &domain.Report{
		ID:               "report-1",
		ProductID:        "product-1",
		UserID:           owner.UserID,
		GuestID:          owner.GuestID,
		Status:           domain.ReportStatusRunning,
		VisibilityCutoff: 2,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := repo.CreateReport(ctx, report); err != nil {
		t.Fatalf("seed report: %v", err)
	}

	step := &domain.ReportStep{
		ID:       "step-1",
		ReportID: report.ID,
		StepName: "initial_keywords",
		Status:   domain.StepStatusDone,
	}
	if err := repo.CreateStep(ctx, step); err != nil {
		t.Fatalf("seed step: %v", err)
	}

	suggestions := []domain.Suggestion{
		{ID: "sg-1", ReportID: report.ID, SourceType: domain.SourceTrendingTopic, Kind: domain.KindArticleHeadline, Text: "headline a", Rank: 100, Meta: []byte(`{"origin":"widget day"}`), Visibility: domain.VisibilityGuest},
		{ID: "sg-2", ReportID: report.ID, SourceType: domain.SourceTrendingTopic, Kind: domain.KindArticleHeadline, Text: "headline b", Rank: 99, Meta: []byte(`{"origin":"widget day"}`), Visibility: domain.VisibilityGuest},
		{ID: "sg-3", ReportID: report.ID, SourceType: domain.SourceTrendingTopic, Kind: domain.KindArticleHeadline, Text: "headline c", Rank: 98, Meta: []byte(`{"origin":"widget day"}`), Visibility: domain.VisibilityGuest},
		{ID: "sg-4", ReportID: report.ID, SourceType: domain.SourceKeywordG2, Kind: domain.KindArticleHeadline, Text: "headline d", Rank: 70, Meta: []byte(`{"origin":"best widget tool"}`), Visibility: domain.VisibilitySubscriber},
	}
	for i := range suggestions {
		suggestions[i].CreatedAt = now
		if err := repo.CreateSuggestion(ctx, &suggestions[i]); err != nil {
			t.Fatalf("seed suggestion: %v", err)
		}
	}

	report.Status = domain.ReportStatusComplete
	if err := repo.UpdateReportStatus(ctx, report); err != nil {
		t.Fatalf("finalize seed report: %v", err)
	}
	return report
}

func TestGetReportOwnerSeesEverything(t *testing.T) {
	svc, repo := newReportsFixture(t)
	report := seedReportWithSuggestions(t, repo, Actor{UserID: "user-1"})

	view, err := svc.GetReport(context.Background(), Actor{UserID: "user-1"}, report.ID)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if view.Partial {
		t.Fatalf("owner view must not be partial")
	}
	if view.ProductID != "product-1" {
		t.Fatalf("expected product id in owner view, got %+v", view)
	}
	if len(view.Suggestions) != 4 {
		t.Fatalf("expected all suggestions for the owner, got %d", len(view.Suggestions))
	}
	for _, suggestion := range view.Suggestions {
		if suggestion.ID == "sg-4" && len(suggestion.Meta) == 0 {
			t.Fatalf("expected meta preserved for the owner")
		}
	}
}

func TestGetReportGuestSeesTopSliceOnly(t *testing.T) {
	svc, repo := newReportsFixture(t)
	report := seedReportWithSuggestions(t, repo, Actor{GuestID: "guest-1"})

	view, err := svc.GetReport(context.Background(), Actor{GuestID: "guest-1"}, report.ID)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if !view.Partial {
		t.Fatalf("guest view must be marked partial")
	}
	if len(view.Suggestions) != 2 {
		t.Fatalf("expected the cutoff to cap the guest slice at 2, got %d", len(view.Suggestions))
	}
	for _, suggestion := range view.Suggestions {
		if suggestion.Visibility != string(domain.VisibilityGuest) {
			t.Fatalf("guest slice contains a subscriber suggestion: %+v", suggestion)
		}
		if len(suggestion.Meta) != 0 {
			t.Fatalf("guest slice must not carry meta: %+v", suggestion)
		}
	}
}

func TestGetReportStrangerSeesStatusOnly(t *testing.T) {
	svc, repo := newReportsFixture(t)
	report := seedReportWithSuggestions(t, repo, Actor{GuestID: "guest-1"})

	view, err := svc.GetReport(context.Background(), Actor{GuestID: "guest-other"}, report.ID)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if view.ProductID != "" || len(view.Suggestions) != 0 {
		t.Fatalf("stranger view leaked data: %+v", view)
	}
	if len(view.Steps) != 1 {
		t.Fatalf("expected step progress for everyone, got %+v", view.Steps)
	}
}

func TestMergeGuestIsIdempotent(t *testing.T) {
	svc, _ := newReportsFixture(t)
	ctx := context.Background()
	guest := Actor{GuestID: "guest-1"}
	product := createProduct(t, svc, guest)

	if _, err := svc.InitiateReport(ctx, guest, product.ID); err != nil {
		t.Fatalf("initiate: %v", err)
	}

	merged, err := svc.MergeGuest(ctx, "guest-1", "user-1")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged < 2 {
		t.Fatalf("expected the product and the report to merge, got %d", merged)
	}

	again, err := svc.MergeGuest(ctx, "guest-1", "user-1")
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected second merge to move nothing, got %d", again)
	}

	items, err := svc.ListProducts(ctx, Actor{UserID: "user-1"})
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected merged product under the user, got %+v", items)
	}
}

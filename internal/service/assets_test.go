package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/contentpulse/backend/internal/ai"
	"github.com/contentpulse/backend/internal/cache"
	"github.com/contentpulse/backend/internal/domain"
	"github.com/contentpulse/backend/internal/policy"
	"github.com/contentpulse/backend/internal/quality"
	"github.com/contentpulse/backend/internal/queue"
	"github.com/contentpulse/backend/internal/repository"
	"github.com/contentpulse/backend/internal/storage"
)

type fakeTextGen struct {
	response string
	err      error
}

func (f *fakeTextGen) Generate(_ context.Context, _ ai.GenerateRequest) (ai.GenerateResult, error) {
	if f.err != nil {
		return ai.GenerateResult{}, f.err
	}
	return ai.GenerateResult{Text: f.response, ModelID: "fake-model"}, nil
}

func (f *fakeTextGen) Available() bool { return true }

type fakeImageGen struct {
	enabled bool
	err     error
	prompts []string
}

func (f *fakeImageGen) GenerateImage(_ context.Context, prompt, _, _ string) ([]byte, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("png-bytes"), nil
}

func (f *fakeImageGen) Available() bool { return f.enabled }

type assetsFixture struct {
	svc    *AssetsService
	repo   *repository.MemoryReportsRepository
	store  *storage.MemoryStore
	images *fakeImageGen
}

func newAssetsFixture(t *testing.T, textGen ai.TextGenerator) assetsFixture {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	repo := repository.NewMemoryReportsRepository()
	store := storage.NewMemoryStore()
	images := &fakeImageGen{enabled: true}

	gen := NewGenerationService(GenerationDependencies{
		Router:    ai.NewModelRouter(ai.ModelRouterConfig{}),
		Client:    textGen,
		Cache:     cache.NewSemanticCache(cache.Config{TTL: time.Minute, MaxEntries: 16}),
		Validator: quality.NewOutputValidator(),
		Logger:    logger,
	})

	svc := NewAssetsService(AssetsDependencies{
		Repo:      repo,
		Producer:  queue.NewLocalQueue(64, 3, logger),
		Generator: gen,
		Images:    images,
		Store:     store,
		Logger:    logger,
	})
	return assetsFixture{svc: svc, repo: repo, store: store, images: images}
}

func seedOwnedSuggestion(
	t *testing.T,
	repo *repository.MemoryReportsRepository,
	kind domain.SuggestionKind,
	meta any,
) *domain.Suggestion {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	report := &domain.Report{
		ID:               "report-1",
		ProductID:        "product-1",
		UserID:           "user-1",
		Status:           domain.ReportStatusRunning,
		VisibilityCutoff: domain.DefaultVisibilityCutoff,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := repo.CreateReport(ctx, report); err != nil {
		t.Fatalf("seed report: %v", err)
	}

	encoded, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("encode meta: %v", err)
	}
	suggestion := &domain.Suggestion{
		ID:         "sg-1",
		ReportID:   report.ID,
		SourceType: domain.SourceTrendingTopic,
		Kind:       kind,
		Text:       "Widget Day build fails roundup",
		Rank:       100,
		Meta:       encoded,
		Visibility: domain.VisibilityGuest,
		CreatedAt:  now,
	}
	if err := repo.CreateSuggestion(ctx, suggestion); err != nil {
		t.Fatalf("seed suggestion: %v", err)
	}
	return suggestion
}

func TestRequestArticleBackfillsMetaAndEnqueues(t *testing.T) {
	fixture := newAssetsFixture(t, &fakeTextGen{response: `{}`})
	suggestion := seedOwnedSuggestion(t, fixture.repo, domain.KindArticleHeadline, policy.HeadlineMeta{
		Origin:      "Widget Day",
		Description: "what the trend means for makers",
	})
	ctx := context.Background()
	owner := Actor{UserID: "user-1"}

	article, err := fixture.svc.RequestArticle(ctx, owner, suggestion.ID)
	if err != nil {
		t.Fatalf("request article: %v", err)
	}
	if article.Status != domain.AssetStatusGenerating {
		t.Fatalf("expected generating status, got %s", article.Status)
	}
	if article.Title != suggestion.Text || article.Description == "" {
		t.Fatalf("expected headline carried onto the article, got %+v", article)
	}

	stored, err := fixture.repo.GetSuggestion(ctx, suggestion.ID)
	if err != nil {
		t.Fatalf("reload suggestion: %v", err)
	}
	var meta policy.HeadlineMeta
	if err := json.Unmarshal(stored.Meta, &meta); err != nil {
		t.Fatalf("decode backfilled meta: %v", err)
	}
	if meta.ArticleID != article.ID {
		t.Fatalf("expected article id backfilled into meta, got %+v", meta)
	}
}

func TestRequestArticleRejectsWrongKindAndNonOwner(t *testing.T) {
	fixture := newAssetsFixture(t, &fakeTextGen{response: `{}`})
	suggestion := seedOwnedSuggestion(t, fixture.repo, domain.KindTweet, policy.DraftMeta{Origin: "Widget Day"})
	ctx := context.Background()

	if _, err := fixture.svc.RequestArticle(ctx, Actor{UserID: "user-1"}, suggestion.ID); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind for a tweet suggestion, got %v", err)
	}
	if _, err := fixture.svc.RequestArticle(ctx, Actor{UserID: "user-2"}, suggestion.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another user, got %v", err)
	}
	if _, err := fixture.svc.RequestArticle(ctx, Actor{GuestID: "guest-1"}, suggestion.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a guest, got %v", err)
	}
}

func TestGenerateArticleStoresBodyAndModel(t *testing.T) {
	body := `{"content_md":"# Widget Day\n\nbody","content_html":"<h1>Widget Day</h1><p>body</p>"}`
	fixture := newAssetsFixture(t, &fakeTextGen{response: body})
	suggestion := seedOwnedSuggestion(t, fixture.repo, domain.KindArticleHeadline, policy.HeadlineMeta{Origin: "Widget Day"})
	ctx := context.Background()

	article, err := fixture.svc.RequestArticle(ctx, Actor{UserID: "user-1"}, suggestion.ID)
	if err != nil {
		t.Fatalf("request article: %v", err)
	}

	if err := fixture.svc.GenerateArticle(ctx, article.ID); err != nil {
		t.Fatalf("generate article: %v", err)
	}

	stored, err := fixture.repo.GetArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("reload article: %v", err)
	}
	if stored.Status != domain.AssetStatusReady {
		t.Fatalf("expected ready article, got %+v", stored)
	}
	if !strings.Contains(stored.ContentMD, "Widget Day") || stored.ContentHTML == "" {
		t.Fatalf("expected generated body stored, got %+v", stored)
	}
	if stored.ModelUsed == "" {
		t.Fatalf("expected model id recorded on the article")
	}
}

func TestGenerateArticleFailsVisiblyOnBadOutput(t *testing.T) {
	fixture := newAssetsFixture(t, &fakeTextGen{response: "not json at all"})
	suggestion := seedOwnedSuggestion(t, fixture.repo, domain.KindArticleHeadline, policy.HeadlineMeta{Origin: "Widget Day"})
	ctx := context.Background()

	article, err := fixture.svc.RequestArticle(ctx, Actor{UserID: "user-1"}, suggestion.ID)
	if err != nil {
		t.Fatalf("request article: %v", err)
	}

	if err := fixture.svc.GenerateArticle(ctx, article.ID); err == nil {
		t.Fatalf("expected generation error for non-JSON output")
	}

	stored, err := fixture.repo.GetArticle(ctx, article.ID)
	if err != nil {
		t.Fatalf("reload article: %v", err)
	}
	if stored.Status != domain.AssetStatusFailed || stored.ErrorMessage == "" {
		t.Fatalf("expected failed article with message, got %+v", stored)
	}
}

func TestGenerateMemeStoresImageInObjectStore(t *testing.T) {
	fixture := newAssetsFixture(t, &fakeTextGen{response: `{}`})
	suggestion := seedOwnedSuggestion(t, fixture.repo, domain.KindMemeConcept, policy.ConceptMeta{
		Origin:       "Widget Day",
		Instructions: json.RawMessage(`{"top_text":"when the print fails","style":"drake"}`),
	})
	ctx := context.Background()

	meme, err := fixture.svc.RequestMeme(ctx, Actor{UserID: "user-1"}, suggestion.ID)
	if err != nil {
		t.Fatalf("request meme: %v", err)
	}

	if err := fixture.svc.GenerateMeme(ctx, meme.ID); err != nil {
		t.Fatalf("generate meme: %v", err)
	}

	stored, err := fixture.repo.GetMeme(ctx, meme.ID)
	if err != nil {
		t.Fatalf("reload meme: %v", err)
	}
	if stored.Status != domain.AssetStatusReady {
		t.Fatalf("expected ready meme, got %+v", stored)
	}
	if stored.ImageKey != "memes/"+meme.ID+".png" {
		t.Fatalf("unexpected image key %q", stored.ImageKey)
	}
	if _, ok := fixture.store.Get(stored.ImageKey); !ok {
		t.Fatalf("expected image bytes in the object store under %q", stored.ImageKey)
	}
	if len(fixture.images.prompts) != 1 || !strings.Contains(fixture.images.prompts[0], "top_text") {
		t.Fatalf("expected instructions folded into the image prompt, got %+v", fixture.images.prompts)
	}
}

func TestAssetURLSignsStoredKey(t *testing.T) {
	fixture := newAssetsFixture(t, &fakeTextGen{response: `{}`})
	suggestion := seedOwnedSuggestion(t, fixture.repo, domain.KindMemeConcept, policy.ConceptMeta{
		Origin:       "Widget Day",
		Instructions: json.RawMessage(`{"style":"drake"}`),
	})
	ctx := context.Background()

	meme, err := fixture.svc.RequestMeme(ctx, Actor{UserID: "user-1"}, suggestion.ID)
	if err != nil {
		t.Fatalf("request meme: %v", err)
	}
	if err := fixture.svc.GenerateMeme(ctx, meme.ID); err != nil {
		t.Fatalf("generate meme: %v", err)
	}
	stored, err := fixture.repo.GetMeme(ctx, meme.ID)
	if err != nil {
		t.Fatalf("reload meme: %v", err)
	}

	url, err := fixture.svc.AssetURL(ctx, stored.ImageKey)
	if err != nil {
		t.Fatalf("sign url: %v", err)
	}
	if url != "memory://"+stored.ImageKey {
		t.Fatalf("unexpected signed url %q", url)
	}

	if _, err := fixture.svc.AssetURL(ctx, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for an empty key, got %v", err)
	}
	if _, err := fixture.svc.AssetURL(ctx, "memes/missing.png"); err == nil {
		t.Fatal("expected an error for an unknown key")
	}
}

func TestGenerateMemeFailsWhenImageBackendDown(t *testing.T) {
	fixture := newAssetsFixture(t, &fakeTextGen{response: `{}`})
	fixture.images.enabled = false
	suggestion := seedOwnedSuggestion(t, fixture.repo, domain.KindMemeConcept, policy.ConceptMeta{
		Origin:       "Widget Day",
		Instructions: json.RawMessage(`{"style":"drake"}`),
	})
	ctx := context.Background()

	meme, err := fixture.svc.RequestMeme(ctx, Actor{UserID: "user-1"}, suggestion.ID)
	if err != nil {
		t.Fatalf("request meme: %v", err)
	}

	if err := fixture.svc.GenerateMeme(ctx, meme.ID); !errors.Is(err, ai.ErrOpenAIUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}

	stored, err := fixture.repo.GetMeme(ctx, meme.ID)
	if err != nil {
		t.Fatalf("reload meme: %v", err)
	}
	if stored.Status != domain.AssetStatusFailed {
		t.Fatalf("expected failed meme, got %+v", stored)
	}
}

func TestGenerateSlopStoresKeyframe(t *testing.T) {
	fixture := newAssetsFixture(t, &fakeTextGen{response: `{}`})
	suggestion := seedOwnedSuggestion(t, fixture.repo, domain.KindSlopConcept, policy.ConceptMeta{
		Origin:       "Widget Day",
		Instructions: json.RawMessage(`{"beats":["hook","fail montage","cta"]}`),
	})
	ctx := context.Background()

	slop, err := fixture.svc.RequestSlop(ctx, Actor{UserID: "user-1"}, suggestion.ID)
	if err != nil {
		t.Fatalf("request slop: %v", err)
	}

	if err := fixture.svc.GenerateSlop(ctx, slop.ID); err != nil {
		t.Fatalf("generate slop: %v", err)
	}

	stored, err := fixture.repo.GetSlop(ctx, slop.ID)
	if err != nil {
		t.Fatalf("reload slop: %v", err)
	}
	if stored.Status != domain.AssetStatusReady {
		t.Fatalf("expected ready slop, got %+v", stored)
	}
	if stored.VideoKey != "slops/"+slop.ID+"/keyframe.png" {
		t.Fatalf("unexpected video key %q", stored.VideoKey)
	}
	if _, ok := fixture.store.Get(stored.VideoKey); !ok {
		t.Fatalf("expected keyframe bytes in the object store under %q", stored.VideoKey)
	}
	if len(fixture.images.prompts) != 1 || !strings.HasPrefix(fixture.images.prompts[0], "Opening keyframe") {
		t.Fatalf("expected keyframe prompt, got %+v", fixture.images.prompts)
	}
}

func TestUpdateArticleOwnerEdits(t *testing.T) {
	fixture := newAssetsFixture(t, &fakeTextGen{response: `{"content_md":"body","content_html":"<p>body</p>"}`})
	suggestion := seedOwnedSuggestion(t, fixture.repo, domain.KindArticleHeadline, policy.HeadlineMeta{Origin: "Widget Day"})
	ctx := context.Background()
	owner := Actor{UserID: "user-1"}

	article, err := fixture.svc.RequestArticle(ctx, owner, suggestion.ID)
	if err != nil {
		t.Fatalf("request article: %v", err)
	}
	if err := fixture.svc.GenerateArticle(ctx, article.ID); err != nil {
		t.Fatalf("generate article: %v", err)
	}

	updated, err := fixture.svc.UpdateArticle(ctx, owner, article.ID, "Edited Title", "edited body")
	if err != nil {
		t.Fatalf("update article: %v", err)
	}
	if updated.Title != "Edited Title" || updated.ContentMD != "edited body" {
		t.Fatalf("expected edits applied, got %+v", updated)
	}

	if _, err := fixture.svc.UpdateArticle(ctx, Actor{UserID: "user-2"}, article.ID, "x", "y"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another user, got %v", err)
	}
}

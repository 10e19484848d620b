package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/contentpulse/backend/internal/ai"
	"github.com/contentpulse/backend/internal/domain"
	"github.com/contentpulse/backend/internal/policy"
	"github.com/contentpulse/backend/internal/queue"
	"github.com/contentpulse/backend/internal/repository"
	"github.com/contentpulse/backend/internal/storage"
)

// ErrWrongKind is returned when an asset is requested from a suggestion of
// an incompatible kind.
var ErrWrongKind = errors.New("suggestion kind does not support this asset")

type AssetsDependencies struct {
	Repo       repository.ReportsRepository
	Producer   queue.Producer
	Generator  *GenerationService
	Images     ai.ImageGenerator
	Store      storage.ObjectStore
	ImageModel string
	Logger     *log.Logger
}

// AssetsService creates derived assets (article, meme, slop) from
// suggestions and drives their generation from the worker side.
type AssetsService struct {
	repo       repository.ReportsRepository
	producer   queue.Producer
	gen        *GenerationService
	images     ai.ImageGenerator
	store      storage.ObjectStore
	imageModel string
	logger     *log.Logger
}

func NewAssetsService(deps AssetsDependencies) *AssetsService {
	if deps.ImageModel == "" {
		deps.ImageModel = "gpt-image-1"
	}
	return &AssetsService{
		repo:       deps.Repo,
		producer:   deps.Producer,
		gen:        deps.Generator,
		images:     deps.Images,
		store:      deps.Store,
		imageModel: deps.ImageModel,
		logger:     deps.Logger,
	}
}

// ownedSuggestion loads a suggestion and checks the actor owns its report.
// Asset creation is account-only; guests are gated before reaching here but
// the check stands on its own.
func (s *AssetsService) ownedSuggestion(ctx context.Context, actor Actor, suggestionID string) (*domain.Suggestion, *domain.Report, error) {
	suggestion, err := s.repo.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return nil, nil, err
	}
	report, err := s.repo.GetReport(ctx, suggestion.ReportID)
	if err != nil {
		return nil, nil, err
	}
	if actor.UserID == "" || report.UserID != actor.UserID {
		return nil, nil, ErrForbidden
	}
	return suggestion, report, nil
}

func (s *AssetsService) RequestArticle(ctx context.Context, actor Actor, suggestionID string) (*domain.Article, error) {
	suggestion, report, err := s.ownedSuggestion(ctx, actor, suggestionID)
	if err != nil {
		return nil, err
	}
	if suggestion.Kind != domain.KindArticleHeadline {
		return nil, ErrWrongKind
	}

	var meta policy.HeadlineMeta
	if err := json.Unmarshal(suggestion.Meta, &meta); err != nil {
		return nil, fmt.Errorf("decode headline meta: %w", err)
	}

	now := time.Now().UTC()
	article := &domain.Article{
		ID:           uuid.NewString(),
		ReportID:     report.ID,
		SuggestionID: suggestion.ID,
		Title:        suggestion.Text,
		Description:  meta.Description,
		Status:       domain.AssetStatusGenerating,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateArticle(ctx, article); err != nil {
		return nil, fmt.Errorf("create article: %w", err)
	}

	meta.ArticleID = article.ID
	if err := s.backfillMeta(ctx, suggestion.ID, meta); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, domain.JobKindArticle, article.ID, report.ID); err != nil {
		return nil, err
	}
	return article, nil
}

func (s *AssetsService) RequestMeme(ctx context.Context, actor Actor, suggestionID string) (*domain.Meme, error) {
	suggestion, report, err := s.ownedSuggestion(ctx, actor, suggestionID)
	if err != nil {
		return nil, err
	}
	if suggestion.Kind != domain.KindMemeConcept {
		return nil, ErrWrongKind
	}

	var meta policy.ConceptMeta
	if err := json.Unmarshal(suggestion.Meta, &meta); err != nil {
		return nil, fmt.Errorf("decode concept meta: %w", err)
	}

	now := time.Now().UTC()
	meme := &domain.Meme{
		ID:           uuid.NewString(),
		ReportID:     report.ID,
		SuggestionID: suggestion.ID,
		Concept:      suggestion.Text,
		Instructions: meta.Instructions,
		Status:       domain.AssetStatusGenerating,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateMeme(ctx, meme); err != nil {
		return nil, fmt.Errorf("create meme: %w", err)
	}

	meta.MemeID = meme.ID
	if err := s.backfillMeta(ctx, suggestion.ID, meta); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, domain.JobKindMeme, meme.ID, report.ID); err != nil {
		return nil, err
	}
	return meme, nil
}

func (s *AssetsService) RequestSlop(ctx context.Context, actor Actor, suggestionID string) (*domain.Slop, error) {
	suggestion, report, err := s.ownedSuggestion(ctx, actor, suggestionID)
	if err != nil {
		return nil, err
	}
	if suggestion.Kind != domain.KindSlopConcept {
		return nil, ErrWrongKind
	}

	var meta policy.ConceptMeta
	if err := json.Unmarshal(suggestion.Meta, &meta); err != nil {
		return nil, fmt.Errorf("decode concept meta: %w", err)
	}

	now := time.Now().UTC()
	slop := &domain.Slop{
		ID:           uuid.NewString(),
		ReportID:     report.ID,
		SuggestionID: suggestion.ID,
		Concept:      suggestion.Text,
		Instructions: meta.Instructions,
		Status:       domain.AssetStatusGenerating,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateSlop(ctx, slop); err != nil {
		return nil, fmt.Errorf("create slop: %w", err)
	}

	meta.SlopID = slop.ID
	if err := s.backfillMeta(ctx, suggestion.ID, meta); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, domain.JobKindSlop, slop.ID, report.ID); err != nil {
		return nil, err
	}
	return slop, nil
}

func (s *AssetsService) GetArticle(ctx context.Context, actor Actor, articleID string) (*domain.Article, error) {
	article, err := s.repo.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if err := s.checkReportOwner(ctx, actor, article.ReportID); err != nil {
		return nil, err
	}
	return article, nil
}

func (s *AssetsService) GetMeme(ctx context.Context, actor Actor, memeID string) (*domain.Meme, error) {
	meme, err := s.repo.GetMeme(ctx, memeID)
	if err != nil {
		return nil, err
	}
	if err := s.checkReportOwner(ctx, actor, meme.ReportID); err != nil {
		return nil, err
	}
	return meme, nil
}

func (s *AssetsService) GetSlop(ctx context.Context, actor Actor, slopID string) (*domain.Slop, error) {
	slop, err := s.repo.GetSlop(ctx, slopID)
	if err != nil {
		return nil, err
	}
	if err := s.checkReportOwner(ctx, actor, slop.ReportID); err != nil {
		return nil, err
	}
	return slop, nil
}

// assetURLTTL bounds how long a handed-out download link stays valid.
const assetURLTTL = 15 * time.Minute

// AssetURL signs a short-lived download link for a stored object key.
// Rendered assets keep only their key on the row; callers resolve the key to
// a URL at read time.
func (s *AssetsService) AssetURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: object key is required", ErrInvalidInput)
	}
	url, err := s.store.PresignGet(ctx, key, assetURLTTL)
	if err != nil {
		return "", fmt.Errorf("sign asset url for %s: %w", key, err)
	}
	return url, nil
}

// UpdateArticle lets the owner edit title/body of a ready article.
func (s *AssetsService) UpdateArticle(ctx context.Context, actor Actor, articleID, title, contentMD string) (*domain.Article, error) {
	article, err := s.GetArticle(ctx, actor, articleID)
	if err != nil {
		return nil, err
	}
	if title != "" {
		article.Title = title
	}
	if contentMD != "" {
		article.ContentMD = contentMD
	}
	article.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateArticle(ctx, article); err != nil {
		return nil, fmt.Errorf("update article: %w", err)
	}
	return article, nil
}

// GenerateArticle runs on the worker: produce the full body and flip the
// asset to ready or failed.
func (s *AssetsService) GenerateArticle(ctx context.Context, articleID string) error {
	article, err := s.repo.GetArticle(ctx, articleID)
	if err != nil {
		return fmt.Errorf("load article %s: %w", articleID, err)
	}

	body, err := s.gen.GenerateArticleBody(ctx, ArticleRequest{
		Title:       article.Title,
		Description: article.Description,
	})
	if err != nil {
		return s.failArticle(ctx, article, err)
	}

	article.ContentMD = body.ContentMD
	article.ContentHTML = body.ContentHTML
	article.ModelUsed = body.ModelID
	article.Status = domain.AssetStatusReady
	article.ErrorMessage = ""
	article.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateArticle(ctx, article); err != nil {
		return fmt.Errorf("store article %s: %w", articleID, err)
	}
	return nil
}

// GenerateMeme renders the concept to an image and stores the bytes in the
// object store, keeping only the key on the row.
func (s *AssetsService) GenerateMeme(ctx context.Context, memeID string) error {
	meme, err := s.repo.GetMeme(ctx, memeID)
	if err != nil {
		return fmt.Errorf("load meme %s: %w", memeID, err)
	}
	if s.images == nil || !s.images.Available() {
		return s.failMeme(ctx, meme, ai.ErrOpenAIUnavailable)
	}

	prompt := meme.Concept
	if len(meme.Instructions) > 0 {
		prompt += "\nInstructions: " + string(meme.Instructions)
	}

	imageBytes, err := s.images.GenerateImage(ctx, prompt, s.imageModel, "1024x1024")
	if err != nil {
		return s.failMeme(ctx, meme, err)
	}

	key := "memes/" + meme.ID + ".png"
	if err := s.store.Put(ctx, key, bytes.NewReader(imageBytes), int64(len(imageBytes)), "image/png"); err != nil {
		return s.failMeme(ctx, meme, err)
	}

	meme.ImageKey = key
	meme.ModelUsed = s.imageModel
	meme.Status = domain.AssetStatusReady
	meme.ErrorMessage = ""
	meme.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateMeme(ctx, meme); err != nil {
		return fmt.Errorf("store meme %s: %w", memeID, err)
	}
	return nil
}

// GenerateSlop produces the keyframe image for the video concept. Actual
// video rendering happens in an external tool fed by the stored
// instructions; the keyframe gives the UI something to preview.
func (s *AssetsService) GenerateSlop(ctx context.Context, slopID string) error {
	slop, err := s.repo.GetSlop(ctx, slopID)
	if err != nil {
		return fmt.Errorf("load slop %s: %w", slopID, err)
	}
	if s.images == nil || !s.images.Available() {
		return s.failSlop(ctx, slop, ai.ErrOpenAIUnavailable)
	}

	prompt := "Opening keyframe for a short video: " + slop.Concept
	if len(slop.Instructions) > 0 {
		prompt += "\nInstructions: " + string(slop.Instructions)
	}

	imageBytes, err := s.images.GenerateImage(ctx, prompt, s.imageModel, "1024x1024")
	if err != nil {
		return s.failSlop(ctx, slop, err)
	}

	key := "slops/" + slop.ID + "/keyframe.png"
	if err := s.store.Put(ctx, key, bytes.NewReader(imageBytes), int64(len(imageBytes)), "image/png"); err != nil {
		return s.failSlop(ctx, slop, err)
	}

	slop.VideoKey = key
	slop.ModelUsed = s.imageModel
	slop.Status = domain.AssetStatusReady
	slop.ErrorMessage = ""
	slop.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateSlop(ctx, slop); err != nil {
		return fmt.Errorf("store slop %s: %w", slopID, err)
	}
	return nil
}

func (s *AssetsService) failArticle(ctx context.Context, article *domain.Article, cause error) error {
	article.Status = domain.AssetStatusFailed
	article.ErrorMessage = cause.Error()
	article.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateArticle(ctx, article); err != nil {
		s.logf("mark article %s failed: %v", article.ID, err)
	}
	return cause
}

func (s *AssetsService) failMeme(ctx context.Context, meme *domain.Meme, cause error) error {
	meme.Status = domain.AssetStatusFailed
	meme.ErrorMessage = cause.Error()
	meme.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateMeme(ctx, meme); err != nil {
		s.logf("mark meme %s failed: %v", meme.ID, err)
	}
	return cause
}

func (s *AssetsService) failSlop(ctx context.Context, slop *domain.Slop, cause error) error {
	slop.Status = domain.AssetStatusFailed
	slop.ErrorMessage = cause.Error()
	slop.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateSlop(ctx, slop); err != nil {
		s.logf("mark slop %s failed: %v", slop.ID, err)
	}
	return cause
}

func (s *AssetsService) checkReportOwner(ctx context.Context, actor Actor, reportID string) error {
	report, err := s.repo.GetReport(ctx, reportID)
	if err != nil {
		return err
	}
	if actor.UserID == "" || report.UserID != actor.UserID {
		return ErrForbidden
	}
	return nil
}

func (s *AssetsService) backfillMeta(ctx context.Context, suggestionID string, meta any) error {
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode meta backfill: %w", err)
	}
	if err := s.repo.UpdateSuggestionMeta(ctx, suggestionID, encoded); err != nil {
		return fmt.Errorf("backfill suggestion meta: %w", err)
	}
	return nil
}

func (s *AssetsService) enqueue(ctx context.Context, kind domain.JobKind, targetID, reportID string) error {
	message := domain.QueueMessage{
		JobID:       uuid.NewString(),
		Kind:        kind,
		TargetID:    targetID,
		ReportID:    reportID,
		Attempt:     0,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.producer.Enqueue(ctx, message); err != nil {
		return fmt.Errorf("enqueue %s job: %w", kind, err)
	}
	return nil
}

func (s *AssetsService) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/contentpulse/backend/internal/ai"
	"github.com/contentpulse/backend/internal/cache"
	"github.com/contentpulse/backend/internal/domain"
	"github.com/contentpulse/backend/internal/policy"
	"github.com/contentpulse/backend/internal/quality"
)

type GenerationDependencies struct {
	Router     *ai.ModelRouter
	Client     ai.TextGenerator
	Secondary  ai.TextGenerator
	Cache      *cache.SemanticCache
	Validator  *quality.OutputValidator
	PromptsDir string
	Logger     *log.Logger
}

// GenerationService wraps every model call the pipeline and the asset
// workers make: prompt rendering, caching, JSON extraction and batch
// validation live here so stage code only sees typed candidates.
type GenerationService struct {
	router     *ai.ModelRouter
	client     ai.TextGenerator
	secondary  ai.TextGenerator
	cache      *cache.SemanticCache
	validator  *quality.OutputValidator
	promptsDir string
	logger     *log.Logger

	tmplMu    sync.RWMutex
	templates map[string]*template.Template
}

type KeywordGroups struct {
	Prospect []string `json:"prospect"`
	SEO      []string `json:"seo"`
}

type HeadlineCandidate struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type ConceptCandidate struct {
	Caption      string          `json:"caption"`
	Instructions json.RawMessage `json:"instructions"`
}

type ReplyCandidate struct {
	PostID string `json:"post_id"`
	Text   string `json:"text"`
}

type ArticleBody struct {
	ContentMD   string `json:"content_md"`
	ContentHTML string `json:"content_html"`
	ModelID     string `json:"model_id"`
}

func NewGenerationService(deps GenerationDependencies) *GenerationService {
	promptsDir := strings.TrimSpace(deps.PromptsDir)
	if promptsDir == "" {
		promptsDir = "prompts"
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewSemanticCache(cache.Config{})
	}
	if deps.Validator == nil {
		deps.Validator = quality.NewOutputValidator()
	}

	return &GenerationService{
		router:     deps.Router,
		client:     deps.Client,
		secondary:  deps.Secondary,
		cache:      deps.Cache,
		validator:  deps.Validator,
		promptsDir: promptsDir,
		logger:     deps.Logger,
		templates:  make(map[string]*template.Template),
	}
}

// SynthesizeKeywords produces the two seed keyword groups for a product.
// When no provider is reachable it degrades to keywords derived from the
// product fields so the rest of the run still has seeds to work with.
func (s *GenerationService) SynthesizeKeywords(ctx context.Context, product domain.Product) (KeywordGroups, error) {
	profile := s.router.Select(ai.TaskKeywords)
	promptVersion := "keywords_v1"

	signature := s.cache.BuildSignature(string(ai.TaskKeywords), product.ID, promptVersion, product.Name, product.Description)
	if cached, ok := s.cache.Get(signature); ok {
		var groups KeywordGroups
		if err := json.Unmarshal(cached.Value, &groups); err == nil && len(groups.Prospect)+len(groups.SEO) > 0 {
			return groups, nil
		}
	}

	rendered, err := s.renderPrompt("keywords_v1.tmpl", map[string]any{
		"ProductName": product.Name,
		"Description": product.Description,
	})
	if err != nil {
		s.logf("render keywords prompt failed: %v", err)
		return fallbackKeywords(product), nil
	}

	text, _, callErr := s.generateText(ctx, profile, rendered)
	if callErr != nil {
		s.logf("keyword synthesis call failed, deriving locally: %v", callErr)
		return fallbackKeywords(product), nil
	}

	rawJSON, parseErr := ai.ExtractJSON(text)
	if parseErr != nil {
		s.logf("keyword synthesis returned non-JSON, deriving locally")
		return fallbackKeywords(product), nil
	}

	var groups KeywordGroups
	if err := json.Unmarshal(rawJSON, &groups); err != nil || len(groups.Prospect)+len(groups.SEO) == 0 {
		return fallbackKeywords(product), nil
	}
	groups.Prospect = sanitizeTerms(groups.Prospect, 10)
	groups.SEO = sanitizeTerms(groups.SEO, 10)

	if encoded, err := json.Marshal(groups); err == nil {
		s.cache.Set(signature, cache.Entry{Value: encoded, PromptVersion: promptVersion})
	}
	return groups, nil
}

// SelectCandidates asks the model to keep the candidates most relevant to
// the product. Used for expanded keywords, trending topics and publication
// tags alike. A transport failure surfaces as an error so the caller can
// decide how to degrade; unparseable output returns an empty slice.
func (s *GenerationService) SelectCandidates(ctx context.Context, product domain.Product, label string, candidates []string, limit int) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}
	profile := s.router.Select(ai.TaskKeywords)
	promptVersion := "select_v1"

	signature := s.cache.BuildSignature(promptVersion, product.ID, label, fmt.Sprint(limit), strings.Join(candidates, "|"))
	if cached, ok := s.cache.Get(signature); ok {
		var selected []string
		if err := json.Unmarshal(cached.Value, &selected); err == nil {
			return selected, nil
		}
	}

	rendered, err := s.renderPrompt("select_v1.tmpl", map[string]any{
		"ProductName": product.Name,
		"Description": product.Description,
		"Label":       label,
		"Limit":       limit,
		"Candidates":  candidates,
	})
	if err != nil {
		return nil, fmt.Errorf("render select prompt: %w", err)
	}

	text, _, callErr := s.generateText(ctx, profile, rendered)
	if callErr != nil {
		return nil, callErr
	}

	rawJSON, parseErr := ai.ExtractJSON(text)
	if parseErr != nil {
		s.logf("candidate selection for %s returned non-JSON, keeping none", label)
		return nil, nil
	}

	var envelope struct {
		Selected []string `json:"selected"`
	}
	if err := json.Unmarshal(rawJSON, &envelope); err != nil {
		var bare []string
		if err := json.Unmarshal(rawJSON, &bare); err != nil {
			return nil, nil
		}
		envelope.Selected = bare
	}

	selected := intersectCandidates(envelope.Selected, candidates, limit)
	if encoded, err := json.Marshal(selected); err == nil {
		s.cache.Set(signature, cache.Entry{Value: encoded, PromptVersion: promptVersion})
	}
	return selected, nil
}

type HeadlineRequest struct {
	Product     domain.Product
	Origin      string
	SourceType  domain.SourceType
	ContextText string
	Count       int
}

func (s *GenerationService) GenerateHeadlines(ctx context.Context, request HeadlineRequest) ([]HeadlineCandidate, error) {
	if request.Count <= 0 {
		request.Count = 3
	}
	profile := s.router.Select(ai.TaskHeadlines)
	promptVersion := "headlines_v1"

	signature := s.cache.BuildSignature(promptVersion, request.Product.ID, string(request.SourceType), request.Origin, request.ContextText)
	if cached, ok := s.cache.Get(signature); ok {
		var headlines []HeadlineCandidate
		if err := json.Unmarshal(cached.Value, &headlines); err == nil && len(headlines) > 0 {
			return headlines, nil
		}
	}

	rendered, err := s.renderPrompt("headlines_v1.tmpl", map[string]any{
		"ProductName": request.Product.Name,
		"Description": request.Product.Description,
		"Origin":      request.Origin,
		"Context":     request.ContextText,
		"Count":       request.Count,
	})
	if err != nil {
		return nil, fmt.Errorf("render headlines prompt: %w", err)
	}

	text, _, callErr := s.generateText(ctx, profile, rendered)
	if callErr != nil {
		return nil, callErr
	}

	rawJSON, parseErr := ai.ExtractJSON(text)
	if parseErr != nil {
		s.logf("headline generation for %q returned non-JSON, keeping none", request.Origin)
		return nil, nil
	}

	var envelope struct {
		Headlines []HeadlineCandidate `json:"headlines"`
	}
	if err := json.Unmarshal(rawJSON, &envelope); err != nil || len(envelope.Headlines) == 0 {
		return nil, nil
	}

	titles := make([]string, 0, len(envelope.Headlines))
	byTitle := make(map[string]HeadlineCandidate, len(envelope.Headlines))
	for _, headline := range envelope.Headlines {
		title := strings.TrimSpace(headline.Title)
		if title == "" {
			continue
		}
		titles = append(titles, title)
		byTitle[strings.ToLower(title)] = headline
	}

	cleaned := s.validator.CleanBatch(domain.KindArticleHeadline, titles)
	headlines := make([]HeadlineCandidate, 0, request.Count)
	for _, title := range cleaned {
		original, ok := byTitle[strings.ToLower(title)]
		description := ""
		if ok {
			description = strings.TrimSpace(policy.MaskPIIString(original.Description))
		}
		headlines = append(headlines, HeadlineCandidate{Title: title, Description: description})
		if len(headlines) >= request.Count {
			break
		}
	}

	if encoded, err := json.Marshal(headlines); err == nil && len(headlines) > 0 {
		s.cache.Set(signature, cache.Entry{Value: encoded, PromptVersion: promptVersion})
	}
	return headlines, nil
}

type DraftRequest struct {
	Product     domain.Product
	Origin      string
	ContextText string
	Count       int
}

func (s *GenerationService) GenerateTweetDrafts(ctx context.Context, request DraftRequest) ([]string, error) {
	if request.Count <= 0 {
		request.Count = 3
	}
	profile := s.router.Select(ai.TaskDrafts)

	rendered, err := s.renderPrompt("drafts_v1.tmpl", map[string]any{
		"ProductName": request.Product.Name,
		"Description": request.Product.Description,
		"Origin":      request.Origin,
		"Context":     request.ContextText,
		"Count":       request.Count,
	})
	if err != nil {
		return nil, fmt.Errorf("render drafts prompt: %w", err)
	}

	text, _, callErr := s.generateText(ctx, profile, rendered)
	if callErr != nil {
		return nil, callErr
	}

	rawJSON, parseErr := ai.ExtractJSON(text)
	if parseErr != nil {
		s.logf("tweet draft generation for %q returned non-JSON, keeping none", request.Origin)
		return nil, nil
	}

	var envelope struct {
		Drafts []string `json:"drafts"`
	}
	if err := json.Unmarshal(rawJSON, &envelope); err != nil || len(envelope.Drafts) == 0 {
		return nil, nil
	}

	cleaned := s.validator.CleanBatch(domain.KindTweet, envelope.Drafts)
	if len(cleaned) > request.Count {
		cleaned = cleaned[:request.Count]
	}
	return cleaned, nil
}

type ConceptRequest struct {
	Product     domain.Product
	Kind        domain.SuggestionKind
	Origin      string
	ContextText string
	Count       int
}

func (s *GenerationService) GenerateConcepts(ctx context.Context, request ConceptRequest) ([]ConceptCandidate, error) {
	if request.Count <= 0 {
		request.Count = 2
	}
	profile := s.router.Select(ai.TaskConcepts)

	format := "meme"
	if request.Kind == domain.KindSlopConcept {
		format = "short-form video"
	}
	rendered, err := s.renderPrompt("concepts_v1.tmpl", map[string]any{
		"ProductName": request.Product.Name,
		"Description": request.Product.Description,
		"Origin":      request.Origin,
		"Context":     request.ContextText,
		"Format":      format,
		"Count":       request.Count,
	})
	if err != nil {
		return nil, fmt.Errorf("render concepts prompt: %w", err)
	}

	text, _, callErr := s.generateText(ctx, profile, rendered)
	if callErr != nil {
		return nil, callErr
	}

	rawJSON, parseErr := ai.ExtractJSON(text)
	if parseErr != nil {
		s.logf("%s concept generation returned non-JSON, keeping none", format)
		return nil, nil
	}

	var envelope struct {
		Concepts []ConceptCandidate `json:"concepts"`
	}
	if err := json.Unmarshal(rawJSON, &envelope); err != nil || len(envelope.Concepts) == 0 {
		return nil, nil
	}

	concepts := make([]ConceptCandidate, 0, request.Count)
	seen := make(map[string]struct{}, len(envelope.Concepts))
	for _, concept := range envelope.Concepts {
		cleaned := s.validator.CleanBatch(request.Kind, []string{concept.Caption})
		if len(cleaned) == 0 || len(concept.Instructions) == 0 || !json.Valid(concept.Instructions) {
			continue
		}
		key := strings.ToLower(cleaned[0])
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		concepts = append(concepts, ConceptCandidate{
			Caption:      cleaned[0],
			Instructions: policy.MaskPIIJSON(concept.Instructions),
		})
		if len(concepts) >= request.Count {
			break
		}
	}
	return concepts, nil
}

type ReplyRequest struct {
	Product domain.Product
	Posts   []domain.PostSummary
}

// GenerateReplies drafts one reply per sampled post. Replies that come back
// without a matching post id are dropped rather than guessed.
func (s *GenerationService) GenerateReplies(ctx context.Context, request ReplyRequest) ([]ReplyCandidate, error) {
	if len(request.Posts) == 0 {
		return nil, nil
	}
	profile := s.router.Select(ai.TaskDrafts)

	posts := make([]map[string]string, 0, len(request.Posts))
	validIDs := make(map[string]domain.PostSummary, len(request.Posts))
	for _, post := range request.Posts {
		posts = append(posts, map[string]string{
			"id":   post.ID,
			"text": policy.MaskPIIString(post.Text),
		})
		validIDs[post.ID] = post
	}

	rendered, err := s.renderPrompt("replies_v1.tmpl", map[string]any{
		"ProductName": request.Product.Name,
		"Description": request.Product.Description,
		"Posts":       posts,
	})
	if err != nil {
		return nil, fmt.Errorf("render replies prompt: %w", err)
	}

	text, _, callErr := s.generateText(ctx, profile, rendered)
	if callErr != nil {
		return nil, callErr
	}

	rawJSON, parseErr := ai.ExtractJSON(text)
	if parseErr != nil {
		s.logf("reply generation returned non-JSON, keeping none")
		return nil, nil
	}

	var envelope struct {
		Replies []ReplyCandidate `json:"replies"`
	}
	if err := json.Unmarshal(rawJSON, &envelope); err != nil || len(envelope.Replies) == 0 {
		return nil, nil
	}

	replies := make([]ReplyCandidate, 0, len(envelope.Replies))
	for _, reply := range envelope.Replies {
		if _, ok := validIDs[reply.PostID]; !ok {
			continue
		}
		cleaned := s.validator.CleanBatch(domain.KindTweetReply, []string{reply.Text})
		if len(cleaned) == 0 {
			continue
		}
		replies = append(replies, ReplyCandidate{PostID: reply.PostID, Text: cleaned[0]})
	}
	return replies, nil
}

type ArticleRequest struct {
	Title       string
	Description string
	ContextText string
}

func (s *GenerationService) GenerateArticleBody(ctx context.Context, request ArticleRequest) (ArticleBody, error) {
	profile := s.router.Select(ai.TaskArticle)
	promptVersion := "article_v1"

	signature := s.cache.BuildSignature(promptVersion, request.Title, request.Description, request.ContextText)
	if cached, ok := s.cache.Get(signature); ok {
		var body ArticleBody
		if err := json.Unmarshal(cached.Value, &body); err == nil && strings.TrimSpace(body.ContentMD) != "" {
			body.ModelID = firstNonEmpty(cached.ModelID, "cache-hit")
			return body, nil
		}
	}

	rendered, err := s.renderPrompt("article_v1.tmpl", map[string]any{
		"Title":       request.Title,
		"Description": request.Description,
		"Context":     request.ContextText,
	})
	if err != nil {
		return ArticleBody{}, fmt.Errorf("render article prompt: %w", err)
	}

	text, modelID, callErr := s.generateText(ctx, profile, rendered)
	if callErr != nil {
		return ArticleBody{}, callErr
	}

	rawJSON, parseErr := ai.ExtractJSON(text)
	if parseErr != nil {
		return ArticleBody{}, fmt.Errorf("article body is not valid JSON: %w", parseErr)
	}

	var body ArticleBody
	if err := json.Unmarshal(rawJSON, &body); err != nil {
		return ArticleBody{}, fmt.Errorf("decode article body: %w", err)
	}
	body.ContentMD = strings.TrimSpace(body.ContentMD)
	if body.ContentMD == "" {
		return ArticleBody{}, errors.New("article body is empty")
	}
	body.ContentHTML = strings.TrimSpace(body.ContentHTML)
	body.ModelID = modelID

	if encoded, err := json.Marshal(body); err == nil {
		s.cache.Set(signature, cache.Entry{Value: encoded, ModelID: modelID, PromptVersion: promptVersion})
	}
	return body, nil
}

func (s *GenerationService) generateText(
	ctx context.Context,
	profile ai.ModelProfile,
	prompt string,
) (string, string, error) {
	instructions := "Return only valid JSON. Do not use markdown code fences."

	client := s.client
	if client == nil || !client.Available() {
		client = s.secondary
	}
	if client == nil || !client.Available() {
		return "", "", ai.ErrOpenAIUnavailable
	}

	primaryResult, err := client.Generate(ctx, ai.GenerateRequest{
		Model:           profile.PrimaryModel,
		Instructions:    instructions,
		Input:           prompt,
		Temperature:     profile.Temperature,
		MaxOutputTokens: profile.MaxOutputTokens,
	})
	if err == nil {
		return primaryResult.Text, firstNonEmpty(primaryResult.ModelID, profile.PrimaryModel), nil
	}

	if strings.TrimSpace(profile.FallbackModel) == "" || profile.FallbackModel == profile.PrimaryModel {
		return "", "", err
	}

	fallbackResult, fallbackErr := client.Generate(ctx, ai.GenerateRequest{
		Model:           profile.FallbackModel,
		Instructions:    instructions,
		Input:           prompt,
		Temperature:     profile.Temperature,
		MaxOutputTokens: profile.MaxOutputTokens,
	})
	if fallbackErr != nil {
		return "", "", fmt.Errorf("primary model failed: %v; fallback failed: %w", err, fallbackErr)
	}
	return fallbackResult.Text, firstNonEmpty(fallbackResult.ModelID, profile.FallbackModel), nil
}

func (s *GenerationService) renderPrompt(fileName string, data any) (string, error) {
	tmpl, err := s.loadTemplate(fileName)
	if err != nil {
		return "", err
	}

	buffer := bytes.NewBuffer(nil)
	if err := tmpl.Execute(buffer, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", fileName, err)
	}
	return buffer.String(), nil
}

func (s *GenerationService) loadTemplate(fileName string) (*template.Template, error) {
	s.tmplMu.RLock()
	if tmpl, ok := s.templates[fileName]; ok {
		s.tmplMu.RUnlock()
		return tmpl, nil
	}
	s.tmplMu.RUnlock()

	content := defaultPrompts[fileName]
	absolute := filepath.Join(s.promptsDir, fileName)
	if fromDisk, err := os.ReadFile(absolute); err == nil {
		content = string(fromDisk)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("prompt template %s not found", fileName)
	}

	tmpl, err := template.New(fileName).Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", fileName, err)
	}

	s.tmplMu.Lock()
	s.templates[fileName] = tmpl
	s.tmplMu.Unlock()

	return tmpl, nil
}

// fallbackKeywords derives seeds from the product fields so a run without a
// reachable provider still moves forward.
func fallbackKeywords(product domain.Product) KeywordGroups {
	base := strings.ToLower(strings.TrimSpace(product.Name))
	if base == "" {
		base = "product"
	}

	return KeywordGroups{
		Prospect: []string{
			"best " + base,
			base + " alternatives",
			base + " pricing",
		},
		SEO: []string{
			"what is " + base,
			"how to use " + base,
			base + " guide",
		},
	}
}

func sanitizeTerms(terms []string, limit int) []string {
	seen := make(map[string]struct{}, len(terms))
	result := make([]string, 0, len(terms))
	for _, term := range terms {
		trimmed := strings.Join(strings.Fields(term), " ")
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, trimmed)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}

// intersectCandidates keeps only selections the model was actually offered,
// preserving the candidate order so results stay deterministic.
func intersectCandidates(selected, candidates []string, limit int) []string {
	wanted := make(map[string]struct{}, len(selected))
	for _, value := range selected {
		wanted[strings.ToLower(strings.TrimSpace(value))] = struct{}{}
	}

	result := make([]string, 0, limit)
	for _, candidate := range candidates {
		if _, ok := wanted[strings.ToLower(strings.TrimSpace(candidate))]; !ok {
			continue
		}
		result = append(result, candidate)
		if len(result) >= limit {
			break
		}
	}
	return result
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func (s *GenerationService) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}

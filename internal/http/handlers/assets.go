package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/contentpulse/backend/internal/domain"
	"github.com/contentpulse/backend/internal/quota"
)

type createAssetRequest struct {
	SuggestionID string `json:"suggestion_id"`
}

type updateArticleRequest struct {
	Title     string `json:"title"`
	ContentMD string `json:"content_md"`
}

func (api *API) Articles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	suggestionID, ok := api.assetRequest(w, r, quota.OpArticle)
	if !ok {
		return
	}

	article, err := api.assets.RequestArticle(r.Context(), api.actorFrom(r), suggestionID)
	if err != nil {
		writeServiceError(w, r, err, "failed to request article")
		return
	}
	writeJSON(w, http.StatusAccepted, articlePayload(article))
}

func (api *API) ArticleByID(w http.ResponseWriter, r *http.Request) {
	articleID := pathID(r.URL.Path, "/v1/articles/")
	if articleID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "article id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		article, err := api.assets.GetArticle(r.Context(), api.actorFrom(r), articleID)
		if err != nil {
			writeServiceError(w, r, err, "failed to load article")
			return
		}
		writeJSON(w, http.StatusOK, articlePayload(article))
	case http.MethodPut:
		var request updateArticleRequest
		if err := decodeJSON(r, &request); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
			return
		}
		article, err := api.assets.UpdateArticle(r.Context(), api.actorFrom(r), articleID, request.Title, request.ContentMD)
		if err != nil {
			writeServiceError(w, r, err, "failed to update article")
			return
		}
		writeJSON(w, http.StatusOK, articlePayload(article))
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (api *API) Memes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	suggestionID, ok := api.assetRequest(w, r, quota.OpArticle)
	if !ok {
		return
	}

	meme, err := api.assets.RequestMeme(r.Context(), api.actorFrom(r), suggestionID)
	if err != nil {
		writeServiceError(w, r, err, "failed to request meme")
		return
	}
	writeJSON(w, http.StatusAccepted, api.memePayload(r.Context(), meme))
}

func (api *API) MemeByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	memeID := pathID(r.URL.Path, "/v1/memes/")
	if memeID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "meme id is required")
		return
	}

	meme, err := api.assets.GetMeme(r.Context(), api.actorFrom(r), memeID)
	if err != nil {
		writeServiceError(w, r, err, "failed to load meme")
		return
	}
	writeJSON(w, http.StatusOK, api.memePayload(r.Context(), meme))
}

func (api *API) Slops(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	suggestionID, ok := api.assetRequest(w, r, quota.OpVideo)
	if !ok {
		return
	}

	slop, err := api.assets.RequestSlop(r.Context(), api.actorFrom(r), suggestionID)
	if err != nil {
		writeServiceError(w, r, err, "failed to request slop")
		return
	}
	writeJSON(w, http.StatusAccepted, api.slopPayload(r.Context(), slop))
}

func (api *API) SlopByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	slopID := pathID(r.URL.Path, "/v1/slops/")
	if slopID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "slop id is required")
		return
	}

	slop, err := api.assets.GetSlop(r.Context(), api.actorFrom(r), slopID)
	if err != nil {
		writeServiceError(w, r, err, "failed to load slop")
		return
	}
	writeJSON(w, http.StatusOK, api.slopPayload(r.Context(), slop))
}

// assetRequest decodes the shared body and runs the quota gate. Asset
// expansion is account-only work.
func (api *API) assetRequest(w http.ResponseWriter, r *http.Request, kind quota.OperationKind) (string, bool) {
	actor := api.actorFrom(r)
	if actor.UserID == "" {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
		return "", false
	}

	var request createAssetRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return "", false
	}
	suggestionID := strings.TrimSpace(request.SuggestionID)
	if suggestionID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "suggestion_id is required")
		return "", false
	}

	decision, err := api.gate.Authorize(r.Context(), api.quotaActorFrom(r), kind)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to check quota")
		return "", false
	}
	if !decision.Allowed {
		writeError(w, r, http.StatusTooManyRequests, "quota_exceeded", decision.Reason)
		return "", false
	}
	return suggestionID, true
}

func pathID(path, prefix string) string {
	id := strings.TrimPrefix(path, prefix)
	id = strings.Trim(id, "/")
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}

func articlePayload(article *domain.Article) map[string]any {
	payload := map[string]any{
		"article_id":    article.ID,
		"report_id":     article.ReportID,
		"suggestion_id": article.SuggestionID,
		"title":         article.Title,
		"description":   article.Description,
		"status":        article.Status,
		"updated_at":    article.UpdatedAt.Format(time.RFC3339Nano),
	}
	if article.Status == domain.AssetStatusReady {
		payload["content_md"] = article.ContentMD
		payload["content_html"] = article.ContentHTML
		payload["model_used"] = article.ModelUsed
	}
	if article.ErrorMessage != "" {
		payload["error_message"] = article.ErrorMessage
	}
	return payload
}

func (api *API) memePayload(ctx context.Context, meme *domain.Meme) map[string]any {
	payload := map[string]any{
		"meme_id":       meme.ID,
		"report_id":     meme.ReportID,
		"suggestion_id": meme.SuggestionID,
		"concept":       meme.Concept,
		"status":        meme.Status,
		"updated_at":    meme.UpdatedAt.Format(time.RFC3339Nano),
	}
	if meme.ImageKey != "" {
		payload["image_key"] = meme.ImageKey
		if url, err := api.assets.AssetURL(ctx, meme.ImageKey); err == nil {
			payload["image_url"] = url
		}
	}
	if meme.ErrorMessage != "" {
		payload["error_message"] = meme.ErrorMessage
	}
	return payload
}

func (api *API) slopPayload(ctx context.Context, slop *domain.Slop) map[string]any {
	payload := map[string]any{
		"slop_id":       slop.ID,
		"report_id":     slop.ReportID,
		"suggestion_id": slop.SuggestionID,
		"concept":       slop.Concept,
		"status":        slop.Status,
		"updated_at":    slop.UpdatedAt.Format(time.RFC3339Nano),
	}
	if slop.VideoKey != "" {
		payload["video_key"] = slop.VideoKey
		if url, err := api.assets.AssetURL(ctx, slop.VideoKey); err == nil {
			payload["video_url"] = url
		}
	}
	if slop.ErrorMessage != "" {
		payload["error_message"] = slop.ErrorMessage
	}
	return payload
}

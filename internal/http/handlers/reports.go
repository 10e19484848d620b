package handlers

import (
	"net/http"
	"strings"

	"github.com/contentpulse/backend/internal/quota"
)

type createReportRequest struct {
	ProductID string `json:"product_id"`
}

func (api *API) Reports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	api.createReport(w, r)
}

func (api *API) createReport(w http.ResponseWriter, r *http.Request) {
	var request createReportRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	if strings.TrimSpace(request.ProductID) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "product_id is required")
		return
	}
	api.startReport(w, r, request.ProductID)
}

// startReport runs the quota gate and hands the run to the service. Shared
// by /v1/reports and /v1/products/{id}/reports.
func (api *API) startReport(w http.ResponseWriter, r *http.Request, productID string) {
	actor := api.actorFrom(r)
	if actor.UserID == "" && actor.GuestID == "" {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "a bearer token or X-Guest-Id header is required")
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	payloadHash := hashPayload(map[string]string{
		"product_id": productID,
		"user_id":    actor.UserID,
		"guest_id":   actor.GuestID,
	})
	if idempotencyKey != "" {
		if entry, exists := api.idempotency.Get(idempotencyKey); exists {
			if entry.PayloadHash != payloadHash {
				writeError(w, r, http.StatusConflict, "idempotency_conflict", "Idempotency-Key already used with different payload")
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]any{
				"report_id":  entry.ResourceID,
				"status":     "queued",
				"status_url": "/v1/reports/" + entry.ResourceID,
			})
			return
		}
	}

	decision, err := api.gate.Authorize(r.Context(), api.quotaActorFrom(r), quota.OpContent)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to check quota")
		return
	}
	if !decision.Allowed {
		writeError(w, r, http.StatusTooManyRequests, "quota_exceeded", decision.Reason)
		return
	}

	result, err := api.reports.InitiateReport(r.Context(), actor, productID)
	if err != nil {
		writeServiceError(w, r, err, "failed to initiate report")
		return
	}

	if idempotencyKey != "" {
		api.idempotency.Put(idempotencyKey, payloadHash, result.ReportID)
	}

	response := map[string]any{
		"report_id":  result.ReportID,
		"status":     "queued",
		"status_url": "/v1/reports/" + result.ReportID,
	}
	if result.PromptLogin {
		response["status"] = "existing"
		response["prompt_login"] = true
	}
	writeJSON(w, http.StatusAccepted, response)
}

// ReportByID serves GET /v1/reports/{id} and POST /v1/reports/{id}/regenerate.
func (api *API) ReportByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/reports/")
	rest = strings.Trim(rest, "/")
	if rest == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "report id is required")
		return
	}

	if strings.HasSuffix(rest, "/regenerate") {
		reportID := strings.TrimSuffix(rest, "/regenerate")
		api.regenerateReport(w, r, strings.Trim(reportID, "/"))
		return
	}
	if strings.Contains(rest, "/") {
		writeError(w, r, http.StatusNotFound, "not_found", "unknown report resource")
		return
	}

	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	view, err := api.reports.GetReport(r.Context(), api.actorFrom(r), rest)
	if err != nil {
		writeServiceError(w, r, err, "failed to load report")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (api *API) regenerateReport(w http.ResponseWriter, r *http.Request, reportID string) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if reportID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "report id is required")
		return
	}

	decision, err := api.gate.Authorize(r.Context(), api.quotaActorFrom(r), quota.OpContent)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to check quota")
		return
	}
	if !decision.Allowed {
		writeError(w, r, http.StatusTooManyRequests, "quota_exceeded", decision.Reason)
		return
	}

	newReportID, err := api.reports.Regenerate(r.Context(), api.actorFrom(r), reportID)
	if err != nil {
		writeServiceError(w, r, err, "failed to regenerate report")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"report_id":  newReportID,
		"status":     "queued",
		"status_url": "/v1/reports/" + newReportID,
	})
}

package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/contentpulse/backend/internal/domain"
)

type createProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (api *API) Products(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		api.createProduct(w, r)
	case http.MethodGet:
		api.listProducts(w, r)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (api *API) createProduct(w http.ResponseWriter, r *http.Request) {
	var request createProductRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}

	actor := api.actorFrom(r)
	if actor.UserID == "" && actor.GuestID == "" {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "a bearer token or X-Guest-Id header is required")
		return
	}

	product, err := api.reports.CreateProduct(r.Context(), actor, request.Name, request.Description)
	if err != nil {
		writeServiceError(w, r, err, "failed to create product")
		return
	}

	writeJSON(w, http.StatusCreated, productPayload(*product))
}

func (api *API) listProducts(w http.ResponseWriter, r *http.Request) {
	actor := api.actorFrom(r)
	if actor.UserID == "" && actor.GuestID == "" {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "a bearer token or X-Guest-Id header is required")
		return
	}

	items, err := api.reports.ListProducts(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, err, "failed to list products")
		return
	}

	payloadItems := make([]map[string]any, 0, len(items))
	for _, item := range items {
		entry := productPayload(item.Product)
		if item.LatestReportID != "" {
			entry["latest_report"] = map[string]any{
				"report_id": item.LatestReportID,
				"status":    item.LatestStatus,
			}
		}
		payloadItems = append(payloadItems, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": payloadItems})
}

// ProductReports serves POST /v1/products/{id}/reports.
func (api *API) ProductReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/products/")
	rest = strings.Trim(rest, "/")
	productID := strings.TrimSuffix(rest, "/reports")
	productID = strings.Trim(productID, "/")
	if productID == "" || !strings.HasSuffix(rest, "/reports") {
		writeError(w, r, http.StatusNotFound, "not_found", "unknown product resource")
		return
	}

	api.startReport(w, r, productID)
}

func productPayload(product domain.Product) map[string]any {
	return map[string]any{
		"product_id":  product.ID,
		"name":        product.Name,
		"description": product.Description,
		"created_at":  product.CreatedAt.Format(time.RFC3339Nano),
	}
}

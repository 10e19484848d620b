package handlers

import (
	"net/http"
	"strings"
)

type mergeGuestRequest struct {
	GuestID string `json:"guest_id"`
}

// MergeGuest serves POST /v1/guest/merge: re-own guest products and reports
// to the authenticated user.
func (api *API) MergeGuest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	actor := api.actorFrom(r)
	if actor.UserID == "" {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var request mergeGuestRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	guestID := strings.TrimSpace(request.GuestID)
	if guestID == "" {
		guestID = actor.GuestID
	}
	if guestID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "guest_id is required")
		return
	}

	merged, err := api.reports.MergeGuest(r.Context(), guestID, actor.UserID)
	if err != nil {
		writeServiceError(w, r, err, "failed to merge guest data")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"merged": merged})
}

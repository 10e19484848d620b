package handlers

import (
	"net/http"

	"github.com/contentpulse/backend/internal/quota"
)

// Plans serves GET /v1/plans with the static plan catalog.
func (api *API) Plans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": quota.Plans()})
}

// MyLimits serves GET /v1/me/limits: what the caller can still run today.
func (api *API) MyLimits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	actor := api.quotaActorFrom(r)
	if actor.UserID == "" && actor.GuestID == "" {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "a bearer token or X-Guest-Id header is required")
		return
	}

	remaining, err := api.gate.Remaining(r.Context(), actor)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load limits")
		return
	}

	planID := "guest"
	if actor.UserID != "" {
		if plan, ok := quota.PlanByID(actor.PlanID); ok {
			planID = plan.ID
		} else {
			planID = "basic"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"plan":      planID,
		"remaining": remaining,
	})
}

package handlers

import (
	"encoding/json"
	"errors"
	"hash/fnv"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/contentpulse/backend/internal/http/middleware"
	"github.com/contentpulse/backend/internal/quota"
	"github.com/contentpulse/backend/internal/repository"
	"github.com/contentpulse/backend/internal/service"
)

var errInvalidPayload = errors.New("invalid payload")

type API struct {
	reports     *service.ReportsService
	assets      *service.AssetsService
	gate        *quota.Gate
	userPlans   map[string]string
	idempotency *idempotencyStore
}

func NewAPI(
	reports *service.ReportsService,
	assets *service.AssetsService,
	gate *quota.Gate,
	userPlans map[string]string,
) *API {
	if userPlans == nil {
		userPlans = map[string]string{}
	}
	return &API{
		reports:     reports,
		assets:      assets,
		gate:        gate,
		userPlans:   userPlans,
		idempotency: newIdempotencyStore(),
	}
}

func (api *API) actorFrom(r *http.Request) service.Actor {
	return service.Actor{
		UserID:  middleware.GetUserID(r.Context()),
		GuestID: middleware.GetGuestID(r.Context()),
	}
}

func (api *API) quotaActorFrom(r *http.Request) quota.Actor {
	actor := api.actorFrom(r)
	return quota.Actor{
		UserID:  actor.UserID,
		GuestID: actor.GuestID,
		PlanID:  api.userPlans[actor.UserID],
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

// writeServiceError maps service/repository sentinels onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden", "access denied")
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, service.ErrWrongKind):
		writeError(w, r, http.StatusUnprocessableEntity, "wrong_kind", err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", fallback)
	}
}

// decodeJSON fills value from the request body. An empty body leaves the
// value zeroed so handlers can fall back to header-derived defaults.
func decodeJSON(r *http.Request, value any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(value); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errInvalidPayload
	}
	return nil
}

type idempotencyEntry struct {
	PayloadHash uint64
	ResourceID  string
	CreatedAt   time.Time
}

type idempotencyStore struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
}

func newIdempotencyStore() *idempotencyStore {
	return &idempotencyStore{
		entries: make(map[string]idempotencyEntry),
	}
}

func (s *idempotencyStore) Get(key string) (idempotencyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *idempotencyStore) Put(key string, payloadHash uint64, resourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = idempotencyEntry{
		PayloadHash: payloadHash,
		ResourceID:  resourceID,
		CreatedAt:   time.Now().UTC(),
	}
}

func hashPayload(value any) uint64 {
	payload, _ := json.Marshal(value)
	hasher := fnv.New64a()
	_, _ = hasher.Write(payload)
	return hasher.Sum64()
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func identityProbe(t *testing.T, tokens map[string]string, mutate func(*http.Request)) (*httptest.ResponseRecorder, string, string) {
	t.Helper()

	var userID, guestID string
	handler := Identity(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID = GetUserID(r.Context())
		guestID = GetGuestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	request := httptest.NewRequest(http.MethodGet, "/v1/reports", nil)
	if mutate != nil {
		mutate(request)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder, userID, guestID
}

func TestIdentityResolvesKnownToken(t *testing.T) {
	tokens := map[string]string{"token-1": "user-1"}

	recorder, userID, _ := identityProbe(t, tokens, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer token-1")
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if userID != "user-1" {
		t.Fatalf("expected user-1 in context, got %q", userID)
	}
}

func TestIdentityRejectsUnknownToken(t *testing.T) {
	recorder, _, _ := identityProbe(t, map[string]string{"token-1": "user-1"}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer wrong")
	})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "unauthorized") {
		t.Fatalf("expected error envelope, got %s", recorder.Body.String())
	}
}

func TestIdentityRejectsMalformedAuthorization(t *testing.T) {
	recorder, _, _ := identityProbe(t, map[string]string{}, func(r *http.Request) {
		r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-bearer scheme, got %d", recorder.Code)
	}
}

func TestIdentityPassesGuestHeader(t *testing.T) {
	recorder, userID, guestID := identityProbe(t, map[string]string{}, func(r *http.Request) {
		r.Header.Set("X-Guest-Id", " guest-42 ")
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if userID != "" || guestID != "guest-42" {
		t.Fatalf("expected anonymous guest context, got user=%q guest=%q", userID, guestID)
	}
}

func TestIdentityIgnoresOversizedGuestHeader(t *testing.T) {
	_, _, guestID := identityProbe(t, map[string]string{}, func(r *http.Request) {
		r.Header.Set("X-Guest-Id", strings.Repeat("g", 65))
	})
	if guestID != "" {
		t.Fatalf("expected oversized guest id dropped, got %q", guestID)
	}
}

func TestIdentitySkipsNonAPIPaths(t *testing.T) {
	handler := Identity(map[string]string{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	request.Header.Set("Authorization", "Bearer unknown")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected health path to bypass auth, got %d", recorder.Code)
	}
}

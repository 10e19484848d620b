package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func corsProbe(t *testing.T, method, origin string, preflight bool) (*httptest.ResponseRecorder, bool) {
	t.Helper()

	nextCalled := false
	handler := CORS(CORSConfig{
		AllowedOrigins: []string{"https://app.contentpulse.io"},
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	request := httptest.NewRequest(method, "/v1/reports", nil)
	request.Header.Set("Origin", origin)
	if preflight {
		request.Header.Set("Access-Control-Request-Method", http.MethodPost)
		request.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder, nextCalled
}

func TestCORSAnswersPreflightForAllowedOrigin(t *testing.T) {
	recorder, nextCalled := corsProbe(t, http.MethodOptions, "https://app.contentpulse.io", true)

	if recorder.Code != http.StatusNoContent || nextCalled {
		t.Fatalf("expected preflight short-circuit with 204, got code=%d next=%v", recorder.Code, nextCalled)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://app.contentpulse.io" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
		t.Fatalf("expected POST allowed, got %q", got)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "X-Guest-Id") {
		t.Fatalf("expected guest header allowed, got %q", got)
	}
}

func TestCORSStampsActualRequests(t *testing.T) {
	recorder, nextCalled := corsProbe(t, http.MethodPost, "https://app.contentpulse.io", false)

	if recorder.Code != http.StatusOK || !nextCalled {
		t.Fatalf("expected request passed through, got code=%d next=%v", recorder.Code, nextCalled)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://app.contentpulse.io" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}

func TestCORSLeavesUnknownOriginsToTheBrowser(t *testing.T) {
	recorder, nextCalled := corsProbe(t, http.MethodOptions, "https://evil.example", true)

	if !nextCalled {
		t.Fatalf("unknown origin must pass through to the handler")
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unknown origin must not be acknowledged, got %q", got)
	}
}

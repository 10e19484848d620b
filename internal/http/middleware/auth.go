package middleware

import (
	"context"
	"net/http"
	"strings"
)

const (
	userIDContextKey  contextKey = "user_id"
	guestIDContextKey contextKey = "guest_id"
)

// Identity resolves the caller before handlers run. A bearer token is
// looked up in the static token table and must match; requests without a
// token stay anonymous and may carry an X-Guest-Id header instead.
func Identity(tokens map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/v1/") {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()

			authorization := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if authorization != "" {
				if !strings.HasPrefix(authorization, prefix) {
					writeUnauthorized(w, r)
					return
				}
				token := strings.TrimSpace(strings.TrimPrefix(authorization, prefix))
				userID, ok := tokens[token]
				if !ok || userID == "" {
					writeUnauthorized(w, r)
					return
				}
				ctx = context.WithValue(ctx, userIDContextKey, userID)
			}

			if guestID := strings.TrimSpace(r.Header.Get("X-Guest-Id")); guestID != "" && len(guestID) <= 64 {
				ctx = context.WithValue(ctx, guestIDContextKey, guestID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID returns the authenticated user id, empty for anonymous calls.
func GetUserID(ctx context.Context) string {
	value, _ := ctx.Value(userIDContextKey).(string)
	return value
}

// GetGuestID returns the guest correlation token, if any.
func GetGuestID(ctx context.Context) string {
	value, _ := ctx.Value(guestIDContextKey).(string)
	return value
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"authentication required"},"request_id":"` + GetRequestID(r.Context()) + `"}`))
}

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mkreusch/magento-cd-edition/internal/interfaces/rest"
)

// Timeout cancels the request context after the configured duration and
// answers with the shared error envelope once the deadline passes.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	body, _ := json.Marshal(rest.ErrorResponse{
		Error: rest.ErrorDetail{Code: "TIMEOUT", Message: "request timed out"},
	})

	return func(next http.Handler) http.Handler {
		handler := http.TimeoutHandler(next, timeout, string(body))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			handler.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

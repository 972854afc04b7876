package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go-gamification/internal/model"
)

// Timeout bounds each request. Handlers see the deadline through the
// request context, so database calls are cancelled along with the request.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	body, _ := json.Marshal(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    "REQUEST_TIMEOUT",
			Message: "request timed out",
		},
	})

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(body))
	}
}

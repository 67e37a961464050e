package handlers

import (
	"net/http"
	"time"
)

var startTime = time.Now()

// HandleHealth reports service liveness: GET /health.
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, map[string]any{
		"status": "ok",
		"uptime": time.Since(startTime).String(),
	})
}

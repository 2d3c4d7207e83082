package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
)

// CORS builds the go-chi/cors handler for the ingress API, allowing the
// configured origins to call the notification endpoints from a browser.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization", "X-API-Key", "X-Correlation-ID", "Content-Type"},
		ExposedHeaders:   []string{"X-Correlation-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           int(10 * time.Minute / time.Second),
	})
}

package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/simplegpt/backend/internal/stream"
)

// CORS allows the browser client to call the API from origins.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders: []string{stream.HeaderFormat},
		MaxAge:         300,
	})
}

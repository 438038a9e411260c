package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS builds the CORS middleware for the operator API. Clients
// authenticate with bearer tokens, so credentialed requests stay off.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})

	return c.Handler
}

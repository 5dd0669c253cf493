package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// localOrigins are the storefront and admin dev servers.
var localOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

// CORS lets browser frontends call the wallet API. Outside dev only the
// configured origins are allowed; wildcard origins are never honoured since
// responses carry credentials.
func CORS(dev bool, origins ...string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   corsOrigins(dev, origins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotencyKeyHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, idempotentReplayHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}

func corsOrigins(dev bool, configured []string) []string {
	var out []string
	if dev {
		out = append(out, localOrigins...)
	}
	for _, origin := range configured {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" || origin == "*" {
			continue
		}
		out = append(out, origin)
	}
	return out
}

package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /state", h.GetState)

	mux.HandleFunc("POST /generations", h.CreateGeneration)
	mux.HandleFunc("POST /generations/check", h.CheckGeneration)
	mux.HandleFunc("POST /generations/reset", h.ResetGeneration)
	mux.HandleFunc("GET /generations", h.ListGenerations)

	mux.HandleFunc("GET /credential", h.GetCredential)
	mux.HandleFunc("PUT /credential", h.SetCredential)
	mux.HandleFunc("DELETE /credential", h.DeleteCredential)
	mux.HandleFunc("GET /connection", h.TestConnection)

	mux.HandleFunc("POST /normalize", h.Normalize)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		TracingMiddleware(),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}

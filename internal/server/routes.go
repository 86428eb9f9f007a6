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

	mux.HandleFunc("POST /sessions", h.CreateSession)
	mux.HandleFunc("GET /sessions/{id}", h.GetSession)
	mux.HandleFunc("DELETE /sessions/{id}", h.DeleteSession)

	mux.HandleFunc("PUT /sessions/{id}/uploads/{slot}", h.PutUpload)
	mux.HandleFunc("DELETE /sessions/{id}/uploads/{slot}", h.DeleteUpload)

	mux.HandleFunc("POST /sessions/{id}/split", h.Split)
	mux.HandleFunc("DELETE /sessions/{id}/error", h.DismissError)
	mux.HandleFunc("GET /sessions/{id}/segments/{index}", h.DownloadSegment)
	mux.HandleFunc("GET /sessions/{id}/events", h.Events)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/cryptouniverse/discovery/internal/api/handlers"
	"github.com/cryptouniverse/discovery/pkg/logger"
)

// NewRouter wires the discovery endpoints.
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(opportunityHandler *handlers.OpportunityHandler, streamHandler *handlers.StreamHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/opportunities/discover", opportunityHandler.Discover).Methods("POST")
	api.HandleFunc("/opportunities/status/{scan_id}", opportunityHandler.Status).Methods("GET")
	api.HandleFunc("/opportunities/latest", opportunityHandler.Latest).Methods("GET")
	api.HandleFunc("/opportunities/history", opportunityHandler.History).Methods("GET")
	api.HandleFunc("/opportunities/stream/{scan_id}", streamHandler.Stream).Methods("GET")

	r.Use(recoveryMiddleware(log))
	r.Use(loggingMiddleware(log))

	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "discovery-api",
	})
}

// loggingMiddleware logs request latency. The response writer is not
// wrapped so the websocket stream can still hijack the connection.
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"remote":   r.RemoteAddr,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware converts handler panics into 500 responses.
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Package api assembles the HTTP surface of the sync service.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/gmail-finance-sync/internal/api/handlers"
	"github.com/dvloznov/gmail-finance-sync/internal/api/middleware"
	"github.com/rs/zerolog"
)

// Handlers groups the endpoint handlers served by the router.
type Handlers struct {
	Sync         *handlers.SyncHandler
	Transactions *handlers.TransactionsHandler
	Settings     *handlers.SettingsHandler
}

// Options configures the middleware chain.
type Options struct {
	// Token, when set, protects everything but /health.
	Token string
	// CORSOrigin defaults to "*".
	CORSOrigin string
}

// NewRouter registers all routes and wraps them in the middleware chain.
func NewRouter(h Handlers, opts Options, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Sync.TriggerSync(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Sync.ListRuns(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/runs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
		if runID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Run ID is required")
			return
		}
		h.Sync.GetRun(w, r, runID)
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Transactions.ListTransactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Settings.GetSettings(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	var handler http.Handler = mux
	handler = middleware.Auth(opts.Token, "/health")(handler)
	handler = middleware.CORS(opts.CORSOrigin)(handler)
	handler = middleware.Recovery(handler)
	handler = middleware.Logger(log)(handler)
	return middleware.RequestID(handler)
}

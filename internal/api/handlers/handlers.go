package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dvloznov/gmail-finance-sync/internal/api/middleware"
	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"github.com/dvloznov/gmail-finance-sync/internal/jobs"
	"github.com/dvloznov/gmail-finance-sync/internal/pipeline"
	"github.com/rs/zerolog"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 1000
)

// SyncHandler handles sync trigger and run status endpoints.
type SyncHandler struct {
	trigger jobs.Trigger
	store   jobs.RunStore
	log     zerolog.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(trigger jobs.Trigger, store jobs.RunStore, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		trigger: trigger,
		store:   store,
		log:     log,
	}
}

// TriggerSync handles POST /api/sync
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	run, err := h.trigger.Trigger(r.Context(), "api")
	if errors.Is(err, jobs.ErrRunInProgress) {
		middleware.WriteJSON(w, http.StatusConflict, map[string]interface{}{
			"error": "A sync run is already in progress",
			"run":   run,
		})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to trigger sync run")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to trigger sync run")
		return
	}

	h.log.Info().Str("run_id", run.RunID).Msg("Sync run requested")
	middleware.WriteJSON(w, http.StatusAccepted, run)
}

// GetRun handles GET /api/runs/{id}
func (h *SyncHandler) GetRun(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := h.store.GetRun(r.Context(), runID)
	if errors.Is(err, jobs.ErrRunNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get run")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, run)
}

// ListRuns handles GET /api/runs
func (h *SyncHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.RunFilter{
		Status: jobs.RunStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	runs, err := h.store.ListRuns(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// RecentReader reads the newest transactions from the configured store.
type RecentReader interface {
	RecentTransactions(ctx context.Context, category string, limit int) ([]domain.Transaction, error)
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	reader RecentReader
	log    zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(reader RecentReader, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		reader: reader,
		log:    log,
	}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := defaultRecentLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 || n > maxRecentLimit {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	transactions, err := h.reader.RecentTransactions(r.Context(), query.Get("category"), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	// Return array directly for frontend compatibility
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// SettingsHandler exposes the reference configuration extraction is constrained to.
type SettingsHandler struct {
	source pipeline.ReferenceSource
	log    zerolog.Logger
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(source pipeline.ReferenceSource, log zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{
		source: source,
		log:    log,
	}
}

// GetSettings handles GET /api/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ref, err := h.source.Load(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load reference configuration")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, ref)
}

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/gmail-finance-sync/internal/api"
	"github.com/dvloznov/gmail-finance-sync/internal/api/handlers"
	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"github.com/dvloznov/gmail-finance-sync/internal/jobs"
	"github.com/dvloznov/gmail-finance-sync/internal/jobs/inmemory"
	"github.com/dvloznov/gmail-finance-sync/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	txs         []domain.Transaction
	err         error
	gotCategory string
	gotLimit    int
}

func (f *fakeReader) RecentTransactions(ctx context.Context, category string, limit int) ([]domain.Transaction, error) {
	f.gotCategory = category
	f.gotLimit = limit
	return f.txs, f.err
}

type staticReference struct {
	ref domain.ReferenceConfig
	err error
}

func (s staticReference) Load(ctx context.Context) (domain.ReferenceConfig, error) {
	return s.ref, s.err
}

type server struct {
	handler http.Handler
	runner  *inmemory.Runner
	store   *inmemory.Store
	reader  *fakeReader
}

func newServer(t *testing.T, token string, ref staticReference) *server {
	t.Helper()
	store := inmemory.NewStore()
	runner := inmemory.NewRunner(store)
	t.Cleanup(func() { _ = runner.Stop(context.Background()) })

	reader := &fakeReader{txs: []domain.Transaction{{ID: "tx-1", Title: "Almuerzo", Amount: 25000, Currency: "COP"}}}
	log := zerolog.Nop()
	h := api.Handlers{
		Sync:         handlers.NewSyncHandler(runner, store, log),
		Transactions: handlers.NewTransactionsHandler(reader, log),
		Settings:     handlers.NewSettingsHandler(ref, log),
	}
	return &server{handler: api.NewRouter(h, api.Options{Token: token}, log), runner: runner, store: store, reader: reader}
}

func (s *server) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newServer(t, "secret", staticReference{})

	rec := s.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuth(t *testing.T) {
	s := newServer(t, "secret", staticReference{})

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/runs", "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/runs", "wrong").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/runs", "secret").Code)
}

func TestAuthDisabledWithoutToken(t *testing.T) {
	s := newServer(t, "", staticReference{})

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/runs", "").Code)
}

func TestTriggerSync(t *testing.T) {
	s := newServer(t, "", staticReference{})

	rec := s.do(http.MethodPost, "/api/sync", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var run jobs.SyncRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, "api", run.Trigger)
	assert.Equal(t, jobs.RunStatusPending, run.Status)

	// The runner is not started, so the first run stays pending.
	rec = s.do(http.MethodPost, "/api/sync", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), run.RunID)

	rec = s.do(http.MethodGet, "/api/runs/"+run.RunID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTriggerSyncMethodNotAllowed(t *testing.T) {
	s := newServer(t, "", staticReference{})

	assert.Equal(t, http.StatusMethodNotAllowed, s.do(http.MethodGet, "/api/sync", "").Code)
}

func TestRunCompletes(t *testing.T) {
	s := newServer(t, "", staticReference{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.runner.Start(ctx, func(ctx context.Context) (*pipeline.RunReport, error) {
		return nil, errors.New("label not found")
	}))

	rec := s.do(http.MethodPost, "/api/sync", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var run jobs.SyncRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))

	require.Eventually(t, func() bool {
		got, err := s.store.GetRun(context.Background(), run.RunID)
		return err == nil && got.Status == jobs.RunStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	rec = s.do(http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	assert.Contains(t, rec.Body.String(), "label not found")
}

func TestGetRunNotFound(t *testing.T) {
	s := newServer(t, "", staticReference{})

	rec := s.do(http.MethodGet, "/api/runs/missing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTransactions(t *testing.T) {
	s := newServer(t, "", staticReference{})

	rec := s.do(http.MethodGet, "/api/transactions?limit=5&category=Comida", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, s.reader.gotLimit)
	assert.Equal(t, "Comida", s.reader.gotCategory)

	var txs []domain.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	require.Len(t, txs, 1)
	assert.Equal(t, "tx-1", txs[0].ID)
}

func TestListTransactionsDefaultsAndErrors(t *testing.T) {
	s := newServer(t, "", staticReference{})

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/transactions", "").Code)
	assert.Equal(t, 20, s.reader.gotLimit)

	for _, q := range []string{"limit=abc", "limit=0", "limit=5000"} {
		rec := s.do(http.MethodGet, "/api/transactions?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}

	s.reader.err = errors.New("bigquery down")
	rec := s.do(http.MethodGet, "/api/transactions", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), "bigquery down"))
}

func TestListTransactionsEmptyIsArray(t *testing.T) {
	s := newServer(t, "", staticReference{})
	s.reader.txs = nil

	rec := s.do(http.MethodGet, "/api/transactions", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetSettings(t *testing.T) {
	ref := domain.ReferenceConfig{
		Categories: []domain.Category{{Name: "Transporte", Subcategories: []string{"Taxi"}}},
		Accounts:   []string{"Visa"},
		Currencies: []string{"COP"},
	}
	s := newServer(t, "", staticReference{ref: ref})

	rec := s.do(http.MethodGet, "/api/settings", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.ReferenceConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, ref, got)
}

func TestGetSettingsFailure(t *testing.T) {
	s := newServer(t, "", staticReference{err: errors.New("no settings")})

	assert.Equal(t, http.StatusInternalServerError, s.do(http.MethodGet, "/api/settings", "").Code)
}

func TestCORSPreflightSkipsAuth(t *testing.T) {
	s := newServer(t, "secret", staticReference{})

	rec := s.do(http.MethodOptions, "/api/sync", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

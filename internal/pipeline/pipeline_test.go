package pipeline_test

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"github.com/dvloznov/gmail-finance-sync/internal/logger"
	"github.com/dvloznov/gmail-finance-sync/internal/mailbox"
	"github.com/dvloznov/gmail-finance-sync/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	pendingLabel = "Bancos/PendingBot"
	pendingID    = "Label_1"
	failedLabel  = "Bancos/Failed"
	failedID     = "Label_2"
	receivedMS   = int64(1709634120000)
)

type fakeMailbox struct {
	labels    map[string]string
	list      []string
	messages  map[string]domain.Message
	fetchErr  error
	removeErr error
	fetched   []string
	removed   []string
	moved     []string
}

func newFakeMailbox(messages ...domain.Message) *fakeMailbox {
	m := &fakeMailbox{
		labels:   map[string]string{pendingLabel: pendingID, failedLabel: failedID},
		messages: map[string]domain.Message{},
	}
	for _, msg := range messages {
		m.list = append(m.list, msg.ID)
		m.messages[msg.ID] = msg
	}
	return m
}

func (m *fakeMailbox) ResolveLabel(ctx context.Context, name string) (string, error) {
	for n, id := range m.labels {
		if strings.EqualFold(n, name) {
			return id, nil
		}
	}
	return "", fmt.Errorf("ResolveLabel %q: %w", name, mailbox.ErrNotFound)
}

func (m *fakeMailbox) ListByLabel(ctx context.Context, labelID string) ([]string, error) {
	return m.list, nil
}

func (m *fakeMailbox) Fetch(ctx context.Context, id string) (domain.Message, error) {
	m.fetched = append(m.fetched, id)
	if m.fetchErr != nil {
		return domain.Message{}, m.fetchErr
	}
	return m.messages[id], nil
}

func (m *fakeMailbox) RemoveLabel(ctx context.Context, id, labelID string) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removed = append(m.removed, id)
	return nil
}

func (m *fakeMailbox) MoveLabel(ctx context.Context, id, fromLabelID, toLabelID string) error {
	m.moved = append(m.moved, id+":"+toLabelID)
	return nil
}

type fakeModel struct {
	reply   string
	err     error
	prompts []string
	onCall  func(ctx context.Context) error
}

func (f *fakeModel) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.onCall != nil {
		if err := f.onCall(ctx); err != nil {
			return "", err
		}
	}
	return f.reply, f.err
}

type fakeStore struct {
	inserted []domain.Transaction
	err      error
}

func (s *fakeStore) InsertTransaction(ctx context.Context, tx domain.Transaction) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.inserted = append(s.inserted, tx)
	return fmt.Sprintf("tx-%d", len(s.inserted)), nil
}

type staticReference struct {
	ref domain.ReferenceConfig
	err error
}

func (s staticReference) Load(ctx context.Context) (domain.ReferenceConfig, error) {
	return s.ref, s.err
}

type memLedger struct {
	ids map[string]bool
	err error
}

func (l *memLedger) Contains(id string) bool { return l.ids[id] }

func (l *memLedger) Record(id string) error {
	if l.err != nil {
		return l.err
	}
	l.ids[id] = true
	return nil
}

type memAttempts struct {
	counts map[string]int
}

func (a *memAttempts) RecordFailure(id string) (int, error) {
	a.counts[id]++
	return a.counts[id], nil
}

type fakeRecorder struct {
	outputs []domain.ModelOutput
}

func (r *fakeRecorder) InsertModelOutput(ctx context.Context, out domain.ModelOutput) error {
	r.outputs = append(r.outputs, out)
	return nil
}

type failingArchiver struct{}

func (failingArchiver) ArchiveBody(ctx context.Context, messageID, body string) (string, error) {
	return "", errors.New("bucket unavailable")
}

type harness struct {
	mail     *fakeMailbox
	model    *fakeModel
	store    *fakeStore
	ledger   *memLedger
	attempts *memAttempts
	outputs  *fakeRecorder
	ref      staticReference
	opts     pipeline.Options
	archiver pipeline.Archiver
}

func newHarness(messages ...domain.Message) *harness {
	return &harness{
		mail:     newFakeMailbox(messages...),
		model:    &fakeModel{},
		store:    &fakeStore{},
		ledger:   &memLedger{ids: map[string]bool{}},
		attempts: &memAttempts{counts: map[string]int{}},
		outputs:  &fakeRecorder{},
		ref: staticReference{ref: domain.ReferenceConfig{
			Categories: []domain.Category{{Name: "Comida"}},
			Accounts:   []string{"Visa"},
			Currencies: []string{"COP"},
		}},
		opts: pipeline.Options{Label: pendingLabel, MaxInputChars: 3500},
	}
}

func (h *harness) syncer() *pipeline.Syncer {
	fb := pipeline.DefaultFallbacks()
	fb.Location = time.UTC

	return pipeline.NewSyncer(pipeline.Deps{
		Mailbox:   h.mail,
		Reference: h.ref,
		Store:     h.store,
		Ledger:    h.ledger,
		Attempts:  h.attempts,
		Archiver:  h.archiver,
		Outputs:   h.outputs,
	}, pipeline.NewExtractor(h.model, "test-model", fb), pipeline.NewNormalizer(fb), h.opts)
}

func (h *harness) run(t *testing.T) *pipeline.RunReport {
	t.Helper()
	report, err := h.syncer().Run(testContext())
	require.NoError(t, err)
	return report
}

func testContext() context.Context {
	return logger.WithContext(context.Background(), logger.NewWithWriter(io.Discard))
}

func textMessage(id, body string) domain.Message {
	return domain.Message{
		ID:           id,
		InternalDate: receivedMS,
		Payload: domain.Part{
			MimeType: "text/plain",
			Data:     base64.URLEncoding.EncodeToString([]byte(body)),
		},
	}
}

const supermarketReply = `{"type":"debit","amount":45000,"title":"Supermercado","currency":"COP","category":"Comida","card":"Visa","context":"personal","date":"2024-03-05"}`

func TestSyncer_CommitsTransaction(t *testing.T) {
	h := newHarness(textMessage("m1", "Compra aprobada por $45000 en Supermercado, con tarjeta Visa"))
	h.model.reply = supermarketReply

	report := h.run(t)

	require.Len(t, h.store.inserted, 1)
	tx := h.store.inserted[0]
	assert.Equal(t, "debit", tx.Type)
	assert.Equal(t, 45000.0, tx.Amount)
	assert.Equal(t, "Supermercado", tx.Title)
	assert.Equal(t, "COP", tx.Currency)
	assert.Equal(t, "Comida", tx.Category)
	assert.Equal(t, "Visa", tx.Card)
	assert.Equal(t, "personal", tx.Context)
	assert.Equal(t, pipeline.DefaultComments, tx.Comments)
	assert.True(t, time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC).Equal(tx.Date))
	assert.Equal(t, "m1", tx.SourceMessageID)

	assert.True(t, h.ledger.Contains("m1"))
	assert.Equal(t, []string{"m1"}, h.mail.removed)
	require.Len(t, report.Results, 1)
	assert.Equal(t, pipeline.OutcomeCommitted, report.Results[0].Outcome)
	assert.Equal(t, "tx-1", report.Results[0].TransactionID)

	require.Len(t, h.model.prompts, 1)
	assert.Contains(t, h.model.prompts[0], "Compra aprobada por $45000 en Supermercado")
	require.Len(t, h.outputs.outputs, 1)
	assert.Equal(t, supermarketReply, h.outputs.outputs[0].Reply)
	assert.Equal(t, "test-model", h.outputs.outputs[0].Model)
}

func TestSyncer_DeclinedTransactionIsIgnored(t *testing.T) {
	h := newHarness(textMessage("m1", "Su transacción rechazada por fondos insuficientes"))
	h.model.reply = `{"type":"ignore"}`

	report := h.run(t)

	assert.Empty(t, h.store.inserted)
	assert.True(t, h.ledger.Contains("m1"))
	assert.Equal(t, []string{"m1"}, h.mail.removed)
	assert.Equal(t, 1, report.Count(pipeline.OutcomeIgnored))
}

func TestSyncer_IsIdempotent(t *testing.T) {
	// The fake mailbox keeps listing the message, as if label removal had been lost.
	h := newHarness(textMessage("m1", "Compra aprobada"))
	h.model.reply = supermarketReply

	h.run(t)
	report := h.run(t)

	assert.Len(t, h.store.inserted, 1)
	assert.Len(t, h.model.prompts, 1)
	assert.Equal(t, []string{"m1", "m1"}, h.mail.removed)
	assert.Equal(t, pipeline.OutcomeAlreadyLedgered, report.Results[0].Outcome)
}

func TestSyncer_UnreadableMessageIsTerminal(t *testing.T) {
	h := newHarness(domain.Message{ID: "m1", Payload: domain.Part{MimeType: "application/pdf", Data: "JVBERi0="}})
	h.model.err = errors.New("model down")
	h.store.err = errors.New("store down")

	report := h.run(t)

	assert.Empty(t, h.model.prompts)
	assert.True(t, h.ledger.Contains("m1"))
	assert.Equal(t, []string{"m1"}, h.mail.removed)
	assert.Equal(t, pipeline.OutcomeUnreadable, report.Results[0].Outcome)
}

func TestSyncer_TransientFailuresKeepLabel(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *harness)
		outcome pipeline.Outcome
	}{
		{
			name:    "model call fails",
			setup:   func(h *harness) { h.model.err = errors.New("model down") },
			outcome: pipeline.OutcomeExtractionFailed,
		},
		{
			name:    "reply is not JSON",
			setup:   func(h *harness) { h.model.reply = "I could not find a transaction" },
			outcome: pipeline.OutcomeExtractionFailed,
		},
		{
			name: "store write fails",
			setup: func(h *harness) {
				h.model.reply = supermarketReply
				h.store.err = errors.New("store down")
			},
			outcome: pipeline.OutcomeCommitFailed,
		},
		{
			name:    "fetch fails",
			setup:   func(h *harness) { h.mail.fetchErr = errors.New("503") },
			outcome: pipeline.OutcomeFetchFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(textMessage("m1", "Compra aprobada"), textMessage("m2", "Compra aprobada"))
			tt.setup(h)

			report := h.run(t)

			assert.Empty(t, h.mail.removed)
			assert.False(t, h.ledger.Contains("m1"))
			assert.False(t, h.ledger.Contains("m2"))
			require.Len(t, report.Results, 2, "a failing message must not stop the cycle")
			for _, res := range report.Results {
				assert.Equal(t, tt.outcome, res.Outcome)
				assert.Equal(t, 1, res.Attempts)
				assert.NotEmpty(t, res.Error)
			}
		})
	}
}

func TestSyncer_DeadLettersAfterMaxAttempts(t *testing.T) {
	h := newHarness(textMessage("m1", "Compra aprobada"))
	h.model.err = errors.New("model down")
	h.opts.MaxAttempts = 2
	h.opts.DeadLetterLabel = failedLabel
	h.attempts.counts["m1"] = 1

	report := h.run(t)

	assert.Equal(t, pipeline.OutcomeDeadLettered, report.Results[0].Outcome)
	assert.Equal(t, 2, report.Results[0].Attempts)
	assert.True(t, h.ledger.Contains("m1"))
	assert.Equal(t, []string{"m1:" + failedID}, h.mail.moved)
	assert.Empty(t, h.mail.removed)
}

func TestSyncer_DeadLetterWithoutLabelOnlyUnlabels(t *testing.T) {
	h := newHarness(textMessage("m1", "Compra aprobada"))
	h.model.err = errors.New("model down")
	h.opts.MaxAttempts = 1
	h.opts.DeadLetterLabel = "Does/Not/Exist"

	report := h.run(t)

	assert.Equal(t, pipeline.OutcomeDeadLettered, report.Results[0].Outcome)
	assert.Empty(t, h.mail.moved)
	assert.Equal(t, []string{"m1"}, h.mail.removed)
}

func TestSyncer_UnboundedRetriesByDefault(t *testing.T) {
	h := newHarness(textMessage("m1", "Compra aprobada"))
	h.model.err = errors.New("model down")
	h.attempts.counts["m1"] = 99

	report := h.run(t)

	assert.Equal(t, pipeline.OutcomeExtractionFailed, report.Results[0].Outcome)
	assert.Equal(t, 100, report.Results[0].Attempts)
	assert.False(t, h.ledger.Contains("m1"))
}

func TestSyncer_CancelledCycleIsNotAnAttempt(t *testing.T) {
	h := newHarness(textMessage("m1", "Compra aprobada"), textMessage("m2", "Compra aprobada"))
	h.opts.MaxAttempts = 1
	h.opts.DeadLetterLabel = failedLabel

	ctx, cancel := context.WithCancel(testContext())
	defer cancel()
	h.model.onCall = func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	}

	report, err := h.syncer().Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, report.Results, 1)
	assert.Equal(t, pipeline.OutcomeExtractionFailed, report.Results[0].Outcome)
	assert.Equal(t, 0, report.Results[0].Attempts)
	assert.Empty(t, h.attempts.counts)
	assert.False(t, h.ledger.Contains("m1"))
	assert.Empty(t, h.mail.removed)
	assert.Empty(t, h.mail.moved)
	assert.Equal(t, []string{"m1"}, h.mail.fetched)
}

func TestSyncer_LabelNotFound(t *testing.T) {
	h := newHarness(textMessage("m1", "Compra aprobada"))
	h.opts.Label = "Missing"

	_, err := h.syncer().Run(testContext())

	assert.True(t, errors.Is(err, pipeline.ErrLabelNotFound))
	assert.Empty(t, h.mail.fetched)
}

func TestSyncer_LabelLookupIgnoresCase(t *testing.T) {
	h := newHarness(textMessage("m1", "Compra aprobada"))
	h.opts.Label = "bancos/pendingbot"
	h.model.reply = supermarketReply

	report := h.run(t)
	assert.Equal(t, pipeline.OutcomeCommitted, report.Results[0].Outcome)
}

func TestSyncer_ReferenceLoadFailureAbortsCycle(t *testing.T) {
	h := newHarness(textMessage("m1", "Compra aprobada"))
	h.ref.err = errors.New("settings unavailable")

	_, err := h.syncer().Run(testContext())

	assert.Error(t, err)
	assert.Empty(t, h.mail.fetched)
}

func TestSyncer_LedgerWriteFailureAbortsCycle(t *testing.T) {
	h := newHarness(textMessage("m1", "Compra aprobada"), textMessage("m2", "Compra aprobada"))
	h.model.reply = supermarketReply
	h.ledger.err = errors.New("disk full")

	report, err := h.syncer().Run(testContext())

	require.Error(t, err)
	assert.Equal(t, []string{"m1"}, h.mail.fetched)
	assert.Empty(t, h.mail.removed)
	require.Len(t, report.Results, 1)
}

func TestSyncer_LabelRemovalFailureIsNotFatal(t *testing.T) {
	h := newHarness(textMessage("m1", "Compra aprobada"), textMessage("m2", "Compra aprobada"))
	h.model.reply = supermarketReply
	h.mail.removeErr = errors.New("429")

	report := h.run(t)

	assert.Equal(t, 2, report.Count(pipeline.OutcomeCommitted))
	assert.True(t, h.ledger.Contains("m1"))
	assert.True(t, h.ledger.Contains("m2"))
}

func TestSyncer_DateFallsBackToReceiptTime(t *testing.T) {
	h := newHarness(textMessage("m1", "Compra aprobada"))
	h.model.reply = `{"type":"debit","amount":1000,"title":"Tienda","context":"urgent"}`

	h.run(t)

	require.Len(t, h.store.inserted, 1)
	tx := h.store.inserted[0]
	assert.True(t, time.UnixMilli(receivedMS).Equal(tx.Date))
	assert.Equal(t, "personal", tx.Context)
	assert.Equal(t, "COP", tx.Currency)
}

func TestSyncer_ArchiveFailureDoesNotChangeOutcome(t *testing.T) {
	h := newHarness(textMessage("m1", "Compra aprobada"))
	h.model.reply = supermarketReply
	h.archiver = failingArchiver{}

	report := h.run(t)
	assert.Equal(t, pipeline.OutcomeCommitted, report.Results[0].Outcome)
}

func TestSyncer_IngestText(t *testing.T) {
	h := newHarness()
	h.model.reply = supermarketReply

	res, err := h.syncer().IngestText(testContext(), "  Compra aprobada por $45000  ")

	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeCommitted, res.Outcome)
	assert.Equal(t, "tx-1", res.TransactionID)
	require.Len(t, h.store.inserted, 1)
	assert.Empty(t, h.store.inserted[0].SourceMessageID)
}

func TestSyncer_IngestTextExtractionFailure(t *testing.T) {
	h := newHarness()
	h.model.err = errors.New("model down")

	res, err := h.syncer().IngestText(testContext(), "Compra aprobada")

	require.Error(t, err)
	assert.Equal(t, pipeline.OutcomeExtractionFailed, res.Outcome)
	assert.Empty(t, h.store.inserted)
}

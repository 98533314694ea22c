package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"github.com/dvloznov/gmail-finance-sync/internal/logger"
	"github.com/dvloznov/gmail-finance-sync/internal/mailbody"
	"github.com/dvloznov/gmail-finance-sync/internal/mailbox"
	"github.com/rs/zerolog"
)

// ErrLabelNotFound aborts a cycle whose processing label does not exist.
var ErrLabelNotFound = errors.New("processing label not found")

// Outcome is the terminal state of one message within a cycle.
type Outcome string

const (
	OutcomeAlreadyLedgered  Outcome = "already_ledgered"
	OutcomeUnreadable       Outcome = "unreadable"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeCommitted        Outcome = "committed"
	OutcomeDeadLettered     Outcome = "dead_lettered"
	OutcomeFetchFailed      Outcome = "fetch_failed"
	OutcomeExtractionFailed Outcome = "extraction_failed"
	OutcomeCommitFailed     Outcome = "commit_failed"
)

// Resolved reports whether the outcome removes the message from the work list.
func (o Outcome) Resolved() bool {
	switch o {
	case OutcomeAlreadyLedgered, OutcomeUnreadable, OutcomeIgnored, OutcomeCommitted, OutcomeDeadLettered:
		return true
	}
	return false
}

// MessageResult is the status of one processed message.
type MessageResult struct {
	MessageID     string  `json:"message_id"`
	Outcome       Outcome `json:"outcome"`
	TransactionID string  `json:"transaction_id,omitempty"`
	Attempts      int     `json:"attempts,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// RunReport summarises one discovery cycle.
type RunReport struct {
	Label      string          `json:"label"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Results    []MessageResult `json:"results"`
}

// Count returns how many messages ended with the given outcome.
func (r *RunReport) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Options configure a Syncer.
type Options struct {
	Label           string
	DeadLetterLabel string
	MaxInputChars   int
	// MaxAttempts dead-letters a message after this many failures. 0 retries forever.
	MaxAttempts int
}

// Deps are the collaborators of a Syncer. Archiver and Outputs are optional.
type Deps struct {
	Mailbox   Mailbox
	Reference ReferenceSource
	Store     TransactionStore
	Ledger    Ledger
	Attempts  AttemptLog
	Archiver  Archiver
	Outputs   ModelOutputRecorder
}

// Syncer runs discovery cycles over one mailbox label.
type Syncer struct {
	deps     Deps
	opts     Options
	messages *Pipeline
	text     *Pipeline
	now      func() time.Time
}

// NewSyncer wires the per-message pipeline.
func NewSyncer(deps Deps, extractor *Extractor, normalizer *Normalizer, opts Options) *Syncer {
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = DefaultMaxInputChars
	}

	s := &Syncer{deps: deps, opts: opts, now: time.Now}

	s.messages = NewPipeline(
		&FetchMessageStep{Mailbox: deps.Mailbox},
		&ExtractBodyStep{MaxChars: opts.MaxInputChars},
		&ArchiveBodyStep{Archiver: deps.Archiver},
		&AskModelStep{Extractor: extractor},
		&RecordModelOutputStep{Recorder: deps.Outputs, ModelName: extractor.ModelName()},
		&ParseCandidateStep{Extractor: extractor},
		&NormalizeStep{Normalizer: normalizer},
		&CommitStep{Store: deps.Store},
	)
	s.text = NewPipeline(
		&AskModelStep{Extractor: extractor},
		&RecordModelOutputStep{Recorder: deps.Outputs, ModelName: extractor.ModelName()},
		&ParseCandidateStep{Extractor: extractor},
		&NormalizeStep{Normalizer: normalizer},
		&CommitStep{Store: deps.Store},
	)
	return s
}

// Run executes one discovery cycle. Per-message failures are reported in the
// RunReport; an error is returned only for configuration problems, a lost
// ledger write or cancellation.
func (s *Syncer) Run(ctx context.Context) (*RunReport, error) {
	log := logger.FromContext(ctx)
	report := &RunReport{Label: s.opts.Label, StartedAt: s.now()}
	defer func() { report.FinishedAt = s.now() }()

	labelID, err := s.deps.Mailbox.ResolveLabel(ctx, s.opts.Label)
	if err != nil {
		if errors.Is(err, mailbox.ErrNotFound) {
			return report, fmt.Errorf("Run: %q: %w", s.opts.Label, ErrLabelNotFound)
		}
		return report, fmt.Errorf("Run: resolving label: %w", err)
	}

	deadLetterID := s.resolveDeadLetter(ctx, log)

	ref, err := s.deps.Reference.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("Run: loading reference configuration: %w", err)
	}

	ids, err := s.deps.Mailbox.ListByLabel(ctx, labelID)
	if err != nil {
		return report, fmt.Errorf("Run: listing messages: %w", err)
	}
	log.Info().Str("label", s.opts.Label).Int("messages", len(ids)).Msg("Starting sync cycle")

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("Run: %w", err)
		}

		res, err := s.processMessage(ctx, id, labelID, deadLetterID, ref)
		report.Results = append(report.Results, res)
		logResult(log, res)
		if err != nil {
			return report, err
		}
	}

	log.Info().
		Int("committed", report.Count(OutcomeCommitted)).
		Int("ignored", report.Count(OutcomeIgnored)).
		Int("unreadable", report.Count(OutcomeUnreadable)).
		Int("dead_lettered", report.Count(OutcomeDeadLettered)).
		Int("messages", len(report.Results)).
		Msg("Sync cycle finished")

	return report, nil
}

// IngestText extracts and commits a transaction from free text, bypassing the mailbox.
func (s *Syncer) IngestText(ctx context.Context, text string) (MessageResult, error) {
	ref, err := s.deps.Reference.Load(ctx)
	if err != nil {
		return MessageResult{}, fmt.Errorf("IngestText: loading reference configuration: %w", err)
	}

	state := &MessageState{Reference: ref, Now: s.now}
	state.Body = mailbody.Truncate(strings.TrimSpace(text), s.opts.MaxInputChars)
	if state.Body == "" {
		return MessageResult{Outcome: OutcomeUnreadable}, nil
	}

	if err := s.text.Execute(ctx, state); err != nil {
		res := MessageResult{Error: err.Error()}
		var stepErr *StepError
		if errors.As(err, &stepErr) {
			res.Outcome = stepErr.Outcome
		}
		return res, fmt.Errorf("IngestText: %w", err)
	}
	return MessageResult{Outcome: state.Outcome, TransactionID: state.TransactionID}, nil
}

func (s *Syncer) processMessage(ctx context.Context, id, labelID, deadLetterID string, ref domain.ReferenceConfig) (MessageResult, error) {
	res := MessageResult{MessageID: id}

	// Ledgered but still labeled: a previous run stopped between the two writes.
	if s.deps.Ledger.Contains(id) {
		res.Outcome = OutcomeAlreadyLedgered
		s.removeLabel(ctx, id, labelID)
		return res, nil
	}

	state := &MessageState{MessageID: id, Reference: ref, Now: s.now}
	err := s.messages.Execute(ctx, state)

	var stepErr *StepError
	switch {
	case err == nil && state.Outcome.Resolved():
		res.Outcome = state.Outcome
		res.TransactionID = state.TransactionID
		if err := s.acknowledge(ctx, id, labelID); err != nil {
			return res, err
		}
		return res, nil
	case errors.As(err, &stepErr):
		res.Outcome = stepErr.Outcome
		res.Error = stepErr.Err.Error()
		// A cancelled cycle says nothing about the message; leave it for the next run.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("processMessage %s: %w", id, ctxErr)
		}
		return s.handleFailure(ctx, res, labelID, deadLetterID)
	case err == nil:
		return res, fmt.Errorf("processMessage %s: pipeline ended without an outcome", id)
	default:
		return res, fmt.Errorf("processMessage %s: %w", id, err)
	}
}

// acknowledge records the id in the ledger, then removes the label. A label
// failure is healed on the next cycle; a ledger failure stops the cycle.
func (s *Syncer) acknowledge(ctx context.Context, id, labelID string) error {
	if err := s.deps.Ledger.Record(id); err != nil {
		return fmt.Errorf("acknowledge %s: recording in ledger: %w", id, err)
	}
	s.removeLabel(ctx, id, labelID)
	return nil
}

func (s *Syncer) handleFailure(ctx context.Context, res MessageResult, labelID, deadLetterID string) (MessageResult, error) {
	if s.deps.Attempts == nil {
		return res, nil
	}
	log := logger.FromContext(ctx)

	n, err := s.deps.Attempts.RecordFailure(res.MessageID)
	if err != nil {
		log.Warn().Err(err).Str("message_id", res.MessageID).Msg("Failed to record attempt")
		return res, nil
	}
	res.Attempts = n

	if s.opts.MaxAttempts <= 0 || n < s.opts.MaxAttempts {
		return res, nil
	}

	if err := s.deps.Ledger.Record(res.MessageID); err != nil {
		return res, fmt.Errorf("handleFailure %s: recording in ledger: %w", res.MessageID, err)
	}
	res.Outcome = OutcomeDeadLettered

	if deadLetterID == "" {
		s.removeLabel(ctx, res.MessageID, labelID)
		return res, nil
	}
	if err := s.deps.Mailbox.MoveLabel(ctx, res.MessageID, labelID, deadLetterID); err != nil {
		log.Warn().Err(err).Str("message_id", res.MessageID).Msg("Failed to move message to dead-letter label")
	}
	return res, nil
}

func (s *Syncer) removeLabel(ctx context.Context, id, labelID string) {
	if err := s.deps.Mailbox.RemoveLabel(ctx, id, labelID); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("message_id", id).Msg("Failed to remove label, will retry next cycle")
	}
}

func (s *Syncer) resolveDeadLetter(ctx context.Context, log zerolog.Logger) string {
	if s.opts.DeadLetterLabel == "" {
		return ""
	}
	id, err := s.deps.Mailbox.ResolveLabel(ctx, s.opts.DeadLetterLabel)
	if err != nil {
		log.Warn().Err(err).Str("label", s.opts.DeadLetterLabel).Msg("Dead-letter label unavailable, exhausted messages will only be unlabeled")
		return ""
	}
	return id
}

func logResult(log zerolog.Logger, res MessageResult) {
	ev := log.Info()
	if !res.Outcome.Resolved() {
		ev = log.Warn()
	}
	ev = ev.Str("message_id", res.MessageID).Str("outcome", string(res.Outcome))
	if res.TransactionID != "" {
		ev = ev.Str("transaction_id", res.TransactionID)
	}
	if res.Attempts > 0 {
		ev = ev.Int("attempts", res.Attempts)
	}
	if res.Error != "" {
		ev = ev.Str("error", res.Error)
	}
	ev.Msg("Message processed")
}

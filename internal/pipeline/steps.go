package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"github.com/dvloznov/gmail-finance-sync/internal/logger"
	"github.com/dvloznov/gmail-finance-sync/internal/mailbody"
	"github.com/google/uuid"
)

// PipelineStep represents a single step in per-message processing.
type PipelineStep interface {
	Execute(ctx context.Context, state *MessageState) error
}

// MessageState holds the shared state across all steps for one message.
type MessageState struct {
	MessageID string
	Reference domain.ReferenceConfig
	Now       func() time.Time

	Message       domain.Message
	Body          string
	Prompt        string
	Reply         string
	Candidate     domain.Candidate
	Transaction   domain.Transaction
	TransactionID string

	// Outcome is set by the step that resolves the message. Once set, the
	// remaining steps are skipped.
	Outcome Outcome
}

// StepError tags a step failure with the outcome it leads to.
type StepError struct {
	Outcome Outcome
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Outcome, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// fallbackTime is the receipt time of the message, or now when unknown.
func (s *MessageState) fallbackTime() time.Time {
	if t := s.Message.ReceivedAt(); !t.IsZero() {
		return t
	}
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Step 1: FetchMessageStep downloads the full message.
type FetchMessageStep struct {
	Mailbox Mailbox
}

func (s *FetchMessageStep) Execute(ctx context.Context, state *MessageState) error {
	msg, err := s.Mailbox.Fetch(ctx, state.MessageID)
	if err != nil {
		return &StepError{Outcome: OutcomeFetchFailed, Err: err}
	}
	state.Message = msg
	return nil
}

// Step 2: ExtractBodyStep renders the payload to text. Empty text resolves
// the message as unreadable.
type ExtractBodyStep struct {
	MaxChars int
}

func (s *ExtractBodyStep) Execute(ctx context.Context, state *MessageState) error {
	state.Body = mailbody.Truncate(mailbody.Extract(state.Message.Payload), s.MaxChars)
	if state.Body == "" {
		state.Outcome = OutcomeUnreadable
	}
	return nil
}

// Step 3: ArchiveBodyStep stores the body text. Failures are only logged.
type ArchiveBodyStep struct {
	Archiver Archiver
}

func (s *ArchiveBodyStep) Execute(ctx context.Context, state *MessageState) error {
	if s.Archiver == nil || state.MessageID == "" {
		return nil
	}
	log := logger.FromContext(ctx)

	uri, err := s.Archiver.ArchiveBody(ctx, state.MessageID, state.Body)
	if err != nil {
		log.Warn().Err(err).Str("message_id", state.MessageID).Msg("Failed to archive message body")
		return nil
	}
	log.Debug().Str("message_id", state.MessageID).Str("uri", uri).Msg("Archived message body")
	return nil
}

// Step 4: AskModelStep sends the body to the language model.
type AskModelStep struct {
	Extractor *Extractor
}

func (s *AskModelStep) Execute(ctx context.Context, state *MessageState) error {
	prompt, reply, err := s.Extractor.Ask(ctx, state.Body, state.Reference)
	state.Prompt = prompt
	if err != nil {
		return &StepError{Outcome: OutcomeExtractionFailed, Err: err}
	}
	state.Reply = reply
	return nil
}

// Step 5: RecordModelOutputStep stores the raw reply. Failures are only logged.
type RecordModelOutputStep struct {
	Recorder  ModelOutputRecorder
	ModelName string
}

func (s *RecordModelOutputStep) Execute(ctx context.Context, state *MessageState) error {
	if s.Recorder == nil {
		return nil
	}

	out := domain.ModelOutput{
		ID:        uuid.NewString(),
		MessageID: state.MessageID,
		Model:     s.ModelName,
		Prompt:    state.Prompt,
		Reply:     state.Reply,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Recorder.InsertModelOutput(ctx, out); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("message_id", state.MessageID).Msg("Failed to store model output")
	}
	return nil
}

// Step 6: ParseCandidateStep decodes the reply into a Candidate.
type ParseCandidateStep struct {
	Extractor *Extractor
}

func (s *ParseCandidateStep) Execute(ctx context.Context, state *MessageState) error {
	c, err := s.Extractor.Parse(state.Reply)
	if err != nil {
		return &StepError{Outcome: OutcomeExtractionFailed, Err: err}
	}
	state.Candidate = c
	return nil
}

// Step 7: NormalizeStep produces the final record or the ignore verdict.
type NormalizeStep struct {
	Normalizer *Normalizer
}

func (s *NormalizeStep) Execute(ctx context.Context, state *MessageState) error {
	tx, ignored := s.Normalizer.Normalize(state.Candidate, state.Reference, state.fallbackTime())
	if ignored {
		state.Outcome = OutcomeIgnored
		return nil
	}
	tx.SourceMessageID = state.MessageID
	state.Transaction = tx
	return nil
}

// Step 8: CommitStep inserts the record into the store.
type CommitStep struct {
	Store TransactionStore
}

func (s *CommitStep) Execute(ctx context.Context, state *MessageState) error {
	id, err := s.Store.InsertTransaction(ctx, state.Transaction)
	if err != nil {
		return &StepError{Outcome: OutcomeCommitFailed, Err: err}
	}
	state.TransactionID = id
	state.Transaction.ID = id
	state.Outcome = OutcomeCommitted
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs the steps sequentially until one fails or resolves the message.
func (p *Pipeline) Execute(ctx context.Context, state *MessageState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
		if state.Outcome != "" {
			return nil
		}
	}
	return nil
}

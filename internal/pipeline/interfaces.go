package pipeline

import (
	"context"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
)

// Mailbox is the label-driven work list. Implemented by mailbox.Gmail.
type Mailbox interface {
	ResolveLabel(ctx context.Context, name string) (string, error)
	ListByLabel(ctx context.Context, labelID string) ([]string, error)
	Fetch(ctx context.Context, id string) (domain.Message, error)
	RemoveLabel(ctx context.Context, id, labelID string) error
	MoveLabel(ctx context.Context, id, fromLabelID, toLabelID string) error
}

// ChatModel is a single-shot chat completion returning raw text.
type ChatModel interface {
	Complete(ctx context.Context, model, system, prompt string) (string, error)
}

// TransactionStore persists committed transactions and returns the generated id.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, tx domain.Transaction) (string, error)
}

// ReferenceSource loads the operator-maintained reference lists.
type ReferenceSource interface {
	Load(ctx context.Context) (domain.ReferenceConfig, error)
}

// Ledger is the durable set of message ids that are fully resolved.
type Ledger interface {
	Contains(id string) bool
	Record(id string) error
}

// AttemptLog counts failed attempts per message id.
type AttemptLog interface {
	RecordFailure(id string) (int, error)
}

// Archiver keeps a copy of the extracted body text and returns its location.
type Archiver interface {
	ArchiveBody(ctx context.Context, messageID, body string) (string, error)
}

// ModelOutputRecorder stores raw model replies for auditing.
type ModelOutputRecorder interface {
	InsertModelOutput(ctx context.Context, out domain.ModelOutput) error
}

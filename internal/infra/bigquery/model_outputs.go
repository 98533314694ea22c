package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/gmail-finance-sync/internal/domain"
)

type ModelOutputRow struct {
	OutputID  string `bigquery:"output_id"`  // REQUIRED
	MessageID string `bigquery:"message_id"` // NULLABLE for free-text ingestion

	ModelName string              `bigquery:"model_name"` // REQUIRED
	Prompt    bigquery.NullString `bigquery:"prompt"`     // NULLABLE
	RawReply  string              `bigquery:"raw_reply"`  // REQUIRED

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// NewModelOutputRow maps a model reply onto the table schema.
func NewModelOutputRow(out domain.ModelOutput) *ModelOutputRow {
	return &ModelOutputRow{
		OutputID:  out.ID,
		MessageID: out.MessageID,
		ModelName: out.Model,
		Prompt:    nullString(out.Prompt),
		RawReply:  out.Reply,
		CreatedTS: out.CreatedAt,
	}
}

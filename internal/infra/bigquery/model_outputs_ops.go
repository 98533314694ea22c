package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
)

const modelOutputsTable = "model_outputs"

// InsertModelOutputWithClient inserts a single ModelOutputRow using the provided
// BigQuery client. Uses DML INSERT to avoid streaming buffer issues.
func InsertModelOutputWithClient(ctx context.Context, client *bigquery.Client, table string, row *ModelOutputRow) error {
	if row.OutputID == "" {
		row.OutputID = uuid.NewString()
	}
	if row.CreatedTS.IsZero() {
		row.CreatedTS = time.Now().UTC()
	}

	q := client.Query(`
		INSERT INTO ` + table + ` (
			output_id, message_id, model_name,
			prompt, raw_reply, created_ts
		)
		VALUES (
			@output_id, @message_id, @model_name,
			@prompt, @raw_reply, @created_ts
		)
	`)

	q.Parameters = []bigquery.QueryParameter{
		{Name: "output_id", Value: row.OutputID},
		{Name: "message_id", Value: row.MessageID},
		{Name: "model_name", Value: row.ModelName},
		{Name: "prompt", Value: row.Prompt},
		{Name: "raw_reply", Value: row.RawReply},
		{Name: "created_ts", Value: row.CreatedTS},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertModelOutput: %w", err)
	}
	return nil
}

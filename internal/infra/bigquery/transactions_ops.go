package bigquery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const (
	transactionsTable = "transactions"

	defaultRecentLimit = 20
	maxRecentLimit     = 1000
)

// updatableColumns maps the field names accepted by UpdateTransactionFields
// to their columns. Everything else is rejected.
var updatableColumns = map[string]string{
	"type":        "type",
	"amount":      "amount",
	"currency":    "currency",
	"title":       "title",
	"category":    "category_name",
	"subcategory": "subcategory_name",
	"card":        "card",
	"comments":    "comments",
	"context":     "context",
	"date":        "transaction_ts",
}

// RecentFilter narrows QueryRecentTransactions.
type RecentFilter struct {
	Category string
	Limit    int
}

// InsertTransactionWithClient inserts one row with a DML INSERT so it can be
// updated right away, and returns the generated transaction_id.
func InsertTransactionWithClient(ctx context.Context, client *bigquery.Client, table string, row *TransactionRow) (string, error) {
	if row.TransactionID == "" {
		row.TransactionID = uuid.NewString()
	}
	if row.CreatedTS.IsZero() {
		row.CreatedTS = time.Now().UTC()
	}

	q := client.Query(`
		INSERT INTO ` + table + ` (
			transaction_id, type, amount, currency,
			title, category_name, subcategory_name, card,
			comments, context, transaction_ts, source_message_id,
			created_ts
		)
		VALUES (
			@transaction_id, @type, @amount, @currency,
			@title, @category_name, @subcategory_name, @card,
			@comments, @context, @transaction_ts, @source_message_id,
			@created_ts
		)
	`)

	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_id", Value: row.TransactionID},
		{Name: "type", Value: row.Type},
		{Name: "amount", Value: row.Amount},
		{Name: "currency", Value: row.Currency},
		{Name: "title", Value: row.Title},
		{Name: "category_name", Value: row.CategoryName},
		{Name: "subcategory_name", Value: row.SubcategoryName},
		{Name: "card", Value: row.Card},
		{Name: "comments", Value: row.Comments},
		{Name: "context", Value: row.Context},
		{Name: "transaction_ts", Value: row.TransactionTS},
		{Name: "source_message_id", Value: row.SourceMessageID},
		{Name: "created_ts", Value: row.CreatedTS},
	}

	if err := runDML(ctx, q); err != nil {
		return "", fmt.Errorf("InsertTransaction: %w", err)
	}
	return row.TransactionID, nil
}

// QueryRecentTransactionsWithClient returns the newest transactions first.
func QueryRecentTransactionsWithClient(ctx context.Context, client *bigquery.Client, table string, f RecentFilter) ([]*TransactionRow, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	where := ""
	params := []bigquery.QueryParameter{{Name: "limit", Value: limit}}
	if f.Category != "" {
		where = "WHERE LOWER(category_name) = LOWER(@category)"
		params = append(params, bigquery.QueryParameter{Name: "category", Value: f.Category})
	}

	q := client.Query(`
		SELECT
			transaction_id, type, amount, currency,
			title, category_name, subcategory_name, card,
			comments, context, transaction_ts, source_message_id,
			created_ts, updated_ts
		FROM ` + table + `
		` + where + `
		ORDER BY transaction_ts DESC, created_ts DESC
		LIMIT @limit
	`)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryRecentTransactions: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryRecentTransactions: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

// UpdateTransactionFieldsWithClient point-updates whitelisted fields of one transaction.
func UpdateTransactionFieldsWithClient(ctx context.Context, client *bigquery.Client, table, transactionID string, fields map[string]interface{}) error {
	set, params, err := buildUpdate(fields)
	if err != nil {
		return fmt.Errorf("UpdateTransactionFields: %w", err)
	}

	q := client.Query(`
		UPDATE ` + table + `
		SET ` + set + `
		WHERE transaction_id = @transaction_id
	`)
	q.Parameters = append(params, bigquery.QueryParameter{Name: "transaction_id", Value: transactionID})

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("UpdateTransactionFields %s: %w", transactionID, err)
	}
	return nil
}

// buildUpdate renders the SET clause in a stable column order.
func buildUpdate(fields map[string]interface{}) (string, []bigquery.QueryParameter, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("no fields to update")
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if _, ok := updatableColumns[k]; !ok {
			return "", nil, fmt.Errorf("field %q cannot be updated", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys)+1)
	params := make([]bigquery.QueryParameter, 0, len(keys)+1)
	for _, k := range keys {
		col := updatableColumns[k]
		clauses = append(clauses, col+" = @"+col)
		params = append(params, bigquery.QueryParameter{Name: col, Value: fields[k]})
	}
	clauses = append(clauses, "updated_ts = @updated_ts")
	params = append(params, bigquery.QueryParameter{Name: "updated_ts", Value: time.Now().UTC()})

	return strings.Join(clauses, ", "), params, nil
}

// runDML runs a DML statement and waits for it to finish.
func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

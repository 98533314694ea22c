package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/gmail-finance-sync/internal/domain"
)

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	Type     string  `bigquery:"type"`     // REQUIRED: debit | credit
	Amount   float64 `bigquery:"amount"`   // REQUIRED FLOAT64, non-negative
	Currency string  `bigquery:"currency"` // REQUIRED

	Title           string              `bigquery:"title"`            // REQUIRED
	CategoryName    string              `bigquery:"category_name"`    // REQUIRED
	SubcategoryName bigquery.NullString `bigquery:"subcategory_name"` // NULLABLE
	Card            string              `bigquery:"card"`             // REQUIRED
	Comments        string              `bigquery:"comments"`         // REQUIRED
	Context         string              `bigquery:"context"`          // REQUIRED: personal | business

	TransactionTS time.Time `bigquery:"transaction_ts"` // REQUIRED

	SourceMessageID bigquery.NullString `bigquery:"source_message_id"` // NULLABLE

	CreatedTS time.Time              `bigquery:"created_ts"` // REQUIRED
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

// NewTransactionRow maps a committed transaction onto the table schema.
func NewTransactionRow(tx domain.Transaction) *TransactionRow {
	return &TransactionRow{
		TransactionID:   tx.ID,
		Type:            tx.Type,
		Amount:          tx.Amount,
		Currency:        tx.Currency,
		Title:           tx.Title,
		CategoryName:    tx.Category,
		SubcategoryName: nullString(tx.Subcategory),
		Card:            tx.Card,
		Comments:        tx.Comments,
		Context:         tx.Context,
		TransactionTS:   tx.Date,
		SourceMessageID: nullString(tx.SourceMessageID),
	}
}

// ToDomain converts a row read back from BigQuery.
func (r *TransactionRow) ToDomain() domain.Transaction {
	return domain.Transaction{
		ID:              r.TransactionID,
		Type:            r.Type,
		Amount:          r.Amount,
		Currency:        r.Currency,
		Title:           r.Title,
		Category:        r.CategoryName,
		Subcategory:     r.SubcategoryName.StringVal,
		Card:            r.Card,
		Comments:        r.Comments,
		Context:         r.Context,
		Date:            r.TransactionTS,
		SourceMessageID: r.SourceMessageID.StringVal,
	}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

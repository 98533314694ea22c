package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the closed set of verdicts the model may return for a message.
type TransactionType string

const (
	TypeUnknown TransactionType = ""
	TypeDebit   TransactionType = "debit"
	TypeCredit  TransactionType = "credit"
	TypeIgnore  TransactionType = "ignore"
)

// ParseTransactionType maps free text to a TransactionType. Anything outside
// {debit, credit, ignore} maps to TypeUnknown with ok=false.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch TransactionType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeDebit:
		return TypeDebit, true
	case TypeCredit:
		return TypeCredit, true
	case TypeIgnore:
		return TypeIgnore, true
	}
	return TypeUnknown, false
}

// Context tells whether a transaction belongs to personal or business books.
type Context string

const (
	ContextUnknown  Context = ""
	ContextPersonal Context = "personal"
	ContextBusiness Context = "business"
)

// ParseContext maps free text to a Context, with ok=false for anything else.
func ParseContext(s string) (Context, bool) {
	switch Context(strings.ToLower(strings.TrimSpace(s))) {
	case ContextPersonal:
		return ContextPersonal, true
	case ContextBusiness:
		return ContextBusiness, true
	}
	return ContextUnknown, false
}

// Candidate is the unvalidated structured guess produced by the model for one
// message. Nil pointers and empty strings mean the model left the field out.
type Candidate struct {
	Type        TransactionType
	RawType     string
	Amount      *decimal.Decimal
	Title       string
	Currency    string
	Category    string
	Subcategory string
	Card        string
	Context     Context
	RawContext  string
	Date        string
}

// Transaction is a fully populated record ready to be committed.
type Transaction struct {
	ID          string    `json:"id,omitempty"`
	Type        string    `json:"type"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory,omitempty"`
	Card        string    `json:"card"`
	Comments    string    `json:"comments"`
	Context     string    `json:"context"`
	Date        time.Time `json:"date"`

	// SourceMessageID links the record back to the mail message it came from.
	SourceMessageID string `json:"source_message_id,omitempty"`
}

package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"github.com/jomei/notionapi"
)

const maxPageSize = 100

// Store keeps transactions as pages of one Notion database.
type Store struct {
	db Database
}

// NewStore creates a Store over an existing database.
func NewStore(db Database) *Store {
	return &Store{db: db}
}

// InsertTransaction creates one page and returns its id.
func (s *Store) InsertTransaction(ctx context.Context, tx domain.Transaction) (string, error) {
	id, err := s.db.CreatePage(ctx, TransactionToNotionProperties(tx))
	if err != nil {
		return "", fmt.Errorf("InsertTransaction: %w", err)
	}
	return id, nil
}

// UpdateTransactionFields point-updates one page.
func (s *Store) UpdateTransactionFields(ctx context.Context, pageID string, fields map[string]interface{}) error {
	props, err := FieldsToNotionProperties(fields)
	if err != nil {
		return fmt.Errorf("UpdateTransactionFields: %w", err)
	}
	if err := s.db.UpdatePage(ctx, pageID, props); err != nil {
		return fmt.Errorf("UpdateTransactionFields %s: %w", pageID, err)
	}
	return nil
}

// QueryRecentTransactions returns up to limit pages, newest date first.
func (s *Store) QueryRecentTransactions(ctx context.Context, category string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	req := &notionapi.DatabaseQueryRequest{
		Sorts:    []notionapi.SortObject{{Property: propDate, Direction: notionapi.SortOrderDESC}},
		PageSize: limit,
	}
	if category != "" {
		req.Filter = notionapi.PropertyFilter{
			Property: propCategory,
			Select:   &notionapi.SelectFilterCondition{Equals: category},
		}
	}

	resp, err := s.db.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("QueryRecentTransactions: %w", err)
	}

	txs := make([]domain.Transaction, 0, len(resp.Results))
	for _, page := range resp.Results {
		txs = append(txs, PageToTransaction(page))
	}
	return txs, nil
}

// queryAllPages queries all pages of the database, following cursors.
func (s *Store) queryAllPages(ctx context.Context) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: maxPageSize}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := s.db.Query(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}

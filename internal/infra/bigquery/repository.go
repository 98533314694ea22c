package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/gmail-finance-sync/internal/domain"
)

// Repository is the BigQuery-backed transaction store. It holds a shared
// client so every operation reuses one connection.
type Repository struct {
	client    *bigquery.Client
	projectID string
	dataset   string
}

// NewRepository creates a Repository for projectID.dataset.
func NewRepository(ctx context.Context, projectID, dataset string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return NewRepositoryWithClient(client, dataset), nil
}

// NewRepositoryWithClient wraps an existing client.
func NewRepositoryWithClient(client *bigquery.Client, dataset string) *Repository {
	return &Repository{client: client, projectID: client.Project(), dataset: dataset}
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Client exposes the underlying client for schema tooling.
func (r *Repository) Client() *bigquery.Client {
	return r.client
}

// Table returns the fully qualified, backquoted name of a table in the dataset.
func (r *Repository) Table(name string) string {
	return qualifiedTable(r.projectID, r.dataset, name)
}

// InsertTransaction stores one transaction and returns its generated id.
func (r *Repository) InsertTransaction(ctx context.Context, tx domain.Transaction) (string, error) {
	return InsertTransactionWithClient(ctx, r.client, r.Table(transactionsTable), NewTransactionRow(tx))
}

// QueryRecentTransactions returns the newest transactions first.
func (r *Repository) QueryRecentTransactions(ctx context.Context, f RecentFilter) ([]domain.Transaction, error) {
	rows, err := QueryRecentTransactionsWithClient(ctx, r.client, r.Table(transactionsTable), f)
	if err != nil {
		return nil, err
	}
	txs := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, row.ToDomain())
	}
	return txs, nil
}

// UpdateTransactionFields point-updates whitelisted fields of one transaction.
func (r *Repository) UpdateTransactionFields(ctx context.Context, transactionID string, fields map[string]interface{}) error {
	return UpdateTransactionFieldsWithClient(ctx, r.client, r.Table(transactionsTable), transactionID, fields)
}

// GetReferenceConfig reads the settings row with the given id.
func (r *Repository) GetReferenceConfig(ctx context.Context, settingsID string) (domain.ReferenceConfig, error) {
	return GetReferenceConfigWithClient(ctx, r.client, r.Table(settingsTable), settingsID)
}

// InsertModelOutput stores one raw model reply.
func (r *Repository) InsertModelOutput(ctx context.Context, out domain.ModelOutput) error {
	return InsertModelOutputWithClient(ctx, r.client, r.Table(modelOutputsTable), NewModelOutputRow(out))
}

func qualifiedTable(projectID, dataset, name string) string {
	if projectID == "" {
		return "`" + dataset + "." + name + "`"
	}
	return "`" + projectID + "." + dataset + "." + name + "`"
}

// Package container wires the application's dependencies from configuration.
// Commands build one Container and ask it for the pieces they need; clients
// that require credentials (Gmail, Gemini) are only created on demand.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dvloznov/gmail-finance-sync/internal/archive"
	"github.com/dvloznov/gmail-finance-sync/internal/config"
	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	infraBQ "github.com/dvloznov/gmail-finance-sync/internal/infra/bigquery"
	"github.com/dvloznov/gmail-finance-sync/internal/ledger"
	"github.com/dvloznov/gmail-finance-sync/internal/mailbox"
	"github.com/dvloznov/gmail-finance-sync/internal/notionsync"
	"github.com/dvloznov/gmail-finance-sync/internal/pipeline"
	"github.com/dvloznov/gmail-finance-sync/internal/reference"
	"github.com/rs/zerolog"
)

// ErrNoReferenceSource is returned when neither reference.file nor a BigQuery
// settings row is available.
var ErrNoReferenceSource = errors.New("no reference source: set reference.file or configure BigQuery")

// ErrArchiveDisabled is returned by Archive when archive.bucket is empty.
var ErrArchiveDisabled = errors.New("body archive is disabled: set archive.bucket")

// Container holds the long-lived clients built from one Config.
type Container struct {
	cfg *config.Config
	log zerolog.Logger

	bq       *infraBQ.Repository
	notion   *notionsync.Store
	archiver *archive.GCSArchiver
	ref      pipeline.ReferenceSource

	closers []io.Closer
}

// New builds the storage side of the application: the transaction store,
// the reference source and the optional body archive.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("container: configuration cannot be nil")
	}
	c := &Container{cfg: cfg, log: log}

	if cfg.Store.Backend == config.BackendBigQuery || cfg.Store.ProjectID != "" {
		repo, err := infraBQ.NewRepository(ctx, cfg.Store.ProjectID, cfg.Store.Dataset)
		if err != nil {
			return nil, fmt.Errorf("container: %w", err)
		}
		c.bq = repo
		c.closers = append(c.closers, repo)
	}

	if cfg.Notion.Token != "" && cfg.Notion.DatabaseID != "" {
		c.notion = notionsync.NewStore(notionsync.NewDatabaseClient(cfg.Notion.Token, cfg.Notion.DatabaseID))
	}

	switch {
	case cfg.Reference.File != "":
		c.ref = reference.FileSource{Path: cfg.Reference.File}
	case c.bq != nil:
		c.ref = reference.StoreSource{Reader: c.bq, SettingsID: cfg.Store.SettingsID}
	default:
		c.Close()
		return nil, fmt.Errorf("container: %w", ErrNoReferenceSource)
	}

	if cfg.Archive.Bucket != "" {
		a, err := archive.NewGCSArchiver(ctx, cfg.Archive.Bucket, cfg.Archive.Prefix)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("container: %w", err)
		}
		c.archiver = a
		c.closers = append(c.closers, a)
	}

	log.Debug().
		Str("backend", cfg.Store.Backend).
		Bool("bigquery", c.bq != nil).
		Bool("notion", c.notion != nil).
		Bool("archive", c.archiver != nil).
		Msg("Container initialized")

	return c, nil
}

// Config returns the configuration the container was built from.
func (c *Container) Config() *config.Config {
	return c.cfg
}

// Logger returns the application logger.
func (c *Container) Logger() zerolog.Logger {
	return c.log
}

// BigQuery returns the BigQuery repository, or nil when it is not configured.
func (c *Container) BigQuery() *infraBQ.Repository {
	return c.bq
}

// Notion returns the Notion store, or nil when it is not configured.
func (c *Container) Notion() *notionsync.Store {
	return c.notion
}

// Reference returns the reference configuration source.
func (c *Container) Reference() pipeline.ReferenceSource {
	return c.ref
}

// Archive returns the body archive.
func (c *Container) Archive() (*archive.GCSArchiver, error) {
	if c.archiver == nil {
		return nil, ErrArchiveDisabled
	}
	return c.archiver, nil
}

// Store returns the transaction store selected by store.backend.
func (c *Container) Store() pipeline.TransactionStore {
	if c.cfg.Store.Backend == config.BackendNotion {
		return c.notion
	}
	return c.bq
}

// RecentTransactions reads the newest transactions from the selected backend.
func (c *Container) RecentTransactions(ctx context.Context, category string, limit int) ([]domain.Transaction, error) {
	if c.cfg.Store.Backend == config.BackendNotion {
		return c.notion.QueryRecentTransactions(ctx, category, limit)
	}
	return c.bq.QueryRecentTransactions(ctx, infraBQ.RecentFilter{Category: category, Limit: limit})
}

// UpdateTransaction applies a point update on the selected backend.
func (c *Container) UpdateTransaction(ctx context.Context, id string, fields map[string]interface{}) error {
	if c.cfg.Store.Backend == config.BackendNotion {
		return c.notion.UpdateTransactionFields(ctx, id, fields)
	}
	return c.bq.UpdateTransactionFields(ctx, id, fields)
}

// Fallbacks converts the configured defaults.
func (c *Container) Fallbacks() (pipeline.Fallbacks, error) {
	loc, err := c.cfg.Location()
	if err != nil {
		return pipeline.Fallbacks{}, err
	}
	d := c.cfg.Defaults
	return pipeline.Fallbacks{
		Type:     domain.TransactionType(d.Type),
		Currency: d.Currency,
		Title:    d.Title,
		Category: d.Category,
		Card:     d.Card,
		Context:  domain.Context(d.Context),
		Comments: d.Comments,
		Location: loc,
	}, nil
}

// NewMailbox authorizes against Gmail with the stored token.
func (c *Container) NewMailbox(ctx context.Context) (*mailbox.Gmail, error) {
	httpClient, err := mailbox.NewHTTPClient(ctx, c.cfg.Mail.CredentialsFile, c.cfg.Mail.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("NewMailbox: %w", err)
	}
	return mailbox.NewGmail(ctx, httpClient, c.cfg.Mail.User)
}

// NewSyncer builds a Syncer over the Gmail mailbox and the on-disk ledger.
func (c *Container) NewSyncer(ctx context.Context) (*pipeline.Syncer, error) {
	mb, err := c.NewMailbox(ctx)
	if err != nil {
		return nil, err
	}

	l, err := ledger.Open(c.cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("NewSyncer: %w", err)
	}
	c.closers = append(c.closers, l)

	attempts, err := ledger.OpenAttempts(c.cfg.Ledger.AttemptsPath)
	if err != nil {
		return nil, fmt.Errorf("NewSyncer: %w", err)
	}
	c.closers = append(c.closers, attempts)

	c.log.Info().
		Str("ledger", l.Path()).
		Int("ledgered", l.Len()).
		Msg("Idempotency ledger loaded")

	deps := pipeline.Deps{Mailbox: mb, Ledger: l, Attempts: attempts}
	return c.buildSyncer(ctx, deps)
}

// NewTextSyncer builds a Syncer for IngestText only. It needs no mailbox.
func (c *Container) NewTextSyncer(ctx context.Context) (*pipeline.Syncer, error) {
	return c.buildSyncer(ctx, pipeline.Deps{})
}

func (c *Container) buildSyncer(ctx context.Context, deps pipeline.Deps) (*pipeline.Syncer, error) {
	fb, err := c.Fallbacks()
	if err != nil {
		return nil, err
	}

	chat, err := pipeline.NewGeminiChat(ctx, c.cfg.LLM.APIKey)
	if err != nil {
		return nil, fmt.Errorf("buildSyncer: %w", err)
	}

	deps.Reference = c.ref
	deps.Store = c.Store()
	// Optional collaborators stay nil interfaces when unconfigured.
	if c.archiver != nil {
		deps.Archiver = c.archiver
	}
	if c.bq != nil {
		deps.Outputs = c.bq
	}

	extractor := pipeline.NewExtractor(chat, c.cfg.LLM.Model, fb)
	normalizer := pipeline.NewNormalizer(fb)

	return pipeline.NewSyncer(deps, extractor, normalizer, pipeline.Options{
		Label:           c.cfg.Mail.Label,
		DeadLetterLabel: c.cfg.Mail.DeadLetterLabel,
		MaxInputChars:   c.cfg.LLM.MaxInputChars,
		MaxAttempts:     c.cfg.Ledger.MaxAttempts,
	}), nil
}

// Close releases clients and ledger files in reverse order of creation.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

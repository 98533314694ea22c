package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"github.com/dvloznov/gmail-finance-sync/internal/logger"
)

// MirrorResult counts what Mirror did.
type MirrorResult struct {
	Created int
	Skipped int
}

// Mirror copies transactions into the Notion database, skipping those whose
// store id is already present on a page. With dryRun nothing is written.
func Mirror(ctx context.Context, txs []domain.Transaction, dst *Store, dryRun bool) (MirrorResult, error) {
	log := logger.FromContext(ctx)
	var res MirrorResult

	pages, err := dst.queryAllPages(ctx)
	if err != nil {
		return res, fmt.Errorf("Mirror: %w", err)
	}

	existing := make(map[string]bool, len(pages))
	for _, p := range pages {
		if id := extractTransactionID(p); id != "" {
			existing[id] = true
		}
	}

	for _, tx := range txs {
		if existing[tx.ID] {
			res.Skipped++
			continue
		}
		if dryRun {
			log.Info().Str("transaction_id", tx.ID).Str("title", tx.Title).Msg("[DRY RUN] Would create Notion page")
			res.Created++
			continue
		}
		if _, err := dst.InsertTransaction(ctx, tx); err != nil {
			return res, fmt.Errorf("Mirror %s: %w", tx.ID, err)
		}
		res.Created++
	}

	log.Info().Int("created", res.Created).Int("skipped", res.Skipped).Msg("Notion mirror completed")
	return res, nil
}

package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"google.golang.org/api/iterator"
)

const settingsTable = "settings"

// GetReferenceConfigWithClient reads the settings row with the given id.
// A missing row yields an empty configuration.
func GetReferenceConfigWithClient(ctx context.Context, client *bigquery.Client, table, settingsID string) (domain.ReferenceConfig, error) {
	q := client.Query(`
		SELECT
			settings_id,
			TO_JSON_STRING(categories) AS categories_json,
			accounts,
			currencies
		FROM ` + table + `
		WHERE settings_id = @settings_id
		LIMIT 1
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "settings_id", Value: settingsID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return domain.ReferenceConfig{}, fmt.Errorf("GetReferenceConfig: query read: %w", err)
	}

	var row SettingsRow
	err = it.Next(&row)
	if err == iterator.Done {
		return domain.ReferenceConfig{}, nil
	}
	if err != nil {
		return domain.ReferenceConfig{}, fmt.Errorf("GetReferenceConfig: iter next: %w", err)
	}

	return row.ToReferenceConfig()
}

package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
)

// DatabaseClient implements Database over the Notion SDK.
type DatabaseClient struct {
	api *notionapi.Client
	id  notionapi.DatabaseID
}

// NewDatabaseClient authenticates with token and binds to databaseID.
func NewDatabaseClient(token, databaseID string) *DatabaseClient {
	return &DatabaseClient{
		api: notionapi.NewClient(notionapi.Token(token)),
		id:  notionapi.DatabaseID(databaseID),
	}
}

var _ Database = (*DatabaseClient)(nil)

func (d *DatabaseClient) CreatePage(ctx context.Context, properties notionapi.Properties) (string, error) {
	page, err := d.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: d.id,
		},
		Properties: properties,
	})
	if err != nil {
		return "", fmt.Errorf("CreatePage in %s: %w", d.id, err)
	}
	return string(page.ID), nil
}

func (d *DatabaseClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) error {
	if _, err := d.api.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Properties: properties}); err != nil {
		return fmt.Errorf("UpdatePage %s: %w", pageID, err)
	}
	return nil
}

func (d *DatabaseClient) Query(ctx context.Context, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := d.api.Database.Query(ctx, d.id, req)
	if err != nil {
		return nil, fmt.Errorf("Query %s: %w", d.id, err)
	}
	return resp, nil
}

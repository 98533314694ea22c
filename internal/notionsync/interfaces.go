package notionsync

import (
	"context"

	"github.com/jomei/notionapi"
)

// Database is the part of the Notion API a Store uses. An implementation is
// bound to one transactions database, so callers never pass its id.
type Database interface {
	// CreatePage adds a row and returns the new page id.
	CreatePage(ctx context.Context, properties notionapi.Properties) (string, error)

	// UpdatePage overwrites the given properties of an existing row.
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) error

	// Query runs one page of a database query.
	Query(ctx context.Context, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

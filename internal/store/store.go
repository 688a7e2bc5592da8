package store

import (
	"context"

	"github.com/sells-group/receipt-matcher/internal/model"
)

// Store defines the persistence interface consumed by the matching pipeline.
//
// FindCandidatesBySimilarity delegates ranking to the database-side trigram
// similarity function; this layer never scores text itself.
type Store interface {
	// Catalog queries
	FindUnmatchedItems(ctx context.Context, documentID string) ([]model.ReceiptItem, error)
	FindCandidatesBySimilarity(ctx context.Context, description string, limit int) ([]model.Candidate, error)
	InventoryItemExists(ctx context.Context, inventoryID string) (bool, error)

	// Mappings
	GetMapping(ctx context.Context, vendorItemID, inventoryItemID string) (*model.Mapping, error)
	UpsertMapping(ctx context.Context, vendorItemID, inventoryItemID, receiptUPC string) error

	// Run bookkeeping
	CreateMatchRun(ctx context.Context, documentID string) (*model.MatchRun, error)
	CompleteMatchRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

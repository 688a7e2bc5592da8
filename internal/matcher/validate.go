package matcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/receipt-matcher/internal/model"
)

// validate rechecks a matched decision against the catalog. The shortlist
// was read at retrieval time; an item deleted between then and now must not
// be persisted, so a decision whose id no longer exists is downgraded to a
// non-match rather than trusted.
func (m *Matcher) validate(ctx context.Context, d model.MatchDecision) model.MatchDecision {
	if d.InventoryID == nil {
		return d
	}

	exists, err := m.store.InventoryItemExists(ctx, *d.InventoryID)
	if err != nil {
		zap.L().Warn("inventory existence check failed",
			zap.String("receipt_item", d.ReceiptItem),
			zap.String("inventory_id", *d.InventoryID),
			zap.Error(err),
		)
		d.InventoryID = nil
		d.InventoryName = nil
		d.Confidence = 0
		d.Reasoning = "Inventory existence check failed"
		d.Error = err.Error()
		d.Success = false
		return d
	}
	if !exists {
		zap.L().Warn("model matched a nonexistent inventory item",
			zap.String("receipt_item", d.ReceiptItem),
			zap.String("inventory_id", *d.InventoryID),
		)
		d.Error = "invalid inventory ID returned by AI: " + *d.InventoryID
		d.InventoryID = nil
		d.InventoryName = nil
		d.Confidence = 0
		d.Reasoning = "Invalid inventory ID returned by AI"
		d.Success = false
		return d
	}

	return d
}

package matcher

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/receipt-matcher/internal/model"
)

// Save writes every eligible decision to the mapping table and returns how
// many were saved. Eligible means a bound inventory id with confidence at
// or above the acceptance threshold. Persistence is an idempotent keyed
// upsert, so re-saving the same batch is a no-op. A store failure stops the
// pass and reports the count written so far.
func (m *Matcher) Save(ctx context.Context, decisions []model.MatchDecision) (int, error) {
	threshold := m.cfg.Matching.AcceptConfidence
	if threshold <= 0 {
		threshold = 70
	}

	saved := 0
	for _, d := range decisions {
		if d.InventoryID == nil || d.Confidence < threshold {
			zap.L().Debug("skipping unaccepted decision",
				zap.String("receipt_item", d.ReceiptItem),
				zap.Int("confidence", d.Confidence),
				zap.Bool("matched", d.Matched()),
			)
			continue
		}
		if d.VendorItemID == "" {
			zap.L().Warn("accepted decision has no vendor item id, cannot save",
				zap.String("receipt_item", d.ReceiptItem),
				zap.String("inventory_id", *d.InventoryID),
			)
			continue
		}

		if err := m.store.UpsertMapping(ctx, d.VendorItemID, *d.InventoryID, d.ReceiptUPC); err != nil {
			return saved, eris.Wrapf(err, "matcher: save mapping for vendor item %s", d.VendorItemID)
		}
		saved++

		zap.L().Debug("saved mapping",
			zap.String("vendor_item_id", d.VendorItemID),
			zap.String("inventory_id", *d.InventoryID),
			zap.Int("confidence", d.Confidence),
		)
	}

	return saved, nil
}

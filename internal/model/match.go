package model

import "time"

// MatchType tags how an item mapping was produced.
type MatchType string

const (
	// MatchTypeAI marks mappings produced by the automated matching pipeline.
	MatchTypeAI MatchType = "AI_MATCH"
)

// ReceiptItem is one line item extracted from a vendor purchase document.
// Items are produced by the upstream OCR/extraction service and are
// read-only to the matching pipeline.
type ReceiptItem struct {
	VendorItemID    string `json:"vendor_item_id"`
	VendorName      string `json:"vendor_name,omitempty"`
	ReceiptItemName string `json:"receipt_item_name"`
	ReceiptUPC      string `json:"receipt_upc,omitempty"`
}

// Candidate is an inventory catalog entry shortlisted as a plausible match
// for one receipt item. Candidates are ephemeral within a single matching
// attempt and never persisted.
type Candidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MatchDecision is the outcome of arbitration for one receipt item.
//
// InventoryID and InventoryName are set together or not at all: a non-nil
// InventoryID always refers to one of the candidates offered to the
// arbiter (or one that survived the catalog existence re-check). Success
// reports whether the pipeline completed without a fault for this item,
// independent of whether a match was found.
type MatchDecision struct {
	ReceiptItem   string  `json:"receipt_item"`
	ReceiptUPC    string  `json:"receipt_upc,omitempty"`
	VendorItemID  string  `json:"vendor_item_id,omitempty"`
	VendorName    string  `json:"vendor_name,omitempty"`
	InventoryID   *string `json:"inventory_id"`
	InventoryName *string `json:"inventory_name"`
	Confidence    int     `json:"confidence"`
	Reasoning     string  `json:"reasoning,omitempty"`
	Success       bool    `json:"success"`
	Error         string  `json:"error,omitempty"`
}

// Matched reports whether the decision selected a catalog item.
func (d MatchDecision) Matched() bool {
	return d.InventoryID != nil
}

// Mapping is the persisted association between a vendor item and the
// inventory item it was matched to. Uniqueness is logical on
// (VendorItemID, InventoryItemID), enforced read-before-write.
type Mapping struct {
	VendorItemID    string    `json:"vendor_item_id"`
	ReceiptUPC      string    `json:"receipt_upc,omitempty"`
	InventoryItemID string    `json:"inventory_item_id"`
	MatchType       MatchType `json:"match_type"`
	MappedAt        time.Time `json:"mapped_at"`
}

package stocksync

import "github.com/erp/stocksync/internal/domain/integration"

// SyncAction is the kind of change a decision asks for.
type SyncAction string

const (
	SyncActionNone         SyncAction = "none"
	SyncActionToInstock    SyncAction = "to_instock"
	SyncActionToOutofstock SyncAction = "to_outofstock"
	SyncActionQuantity     SyncAction = "quantity"
)

// String returns the string representation of SyncAction
func (a SyncAction) String() string {
	return string(a)
}

// SyncDecision is the computed transition for one storefront SKU. It is
// never persisted.
type SyncDecision struct {
	StorefrontSku  string
	CurrentStatus  integration.StockStatus
	TargetStatus   integration.StockStatus
	TargetQuantity *int
	Action         SyncAction
	Threshold      int
	NetStock       int
	Reason         string
}

// IsNoop returns true when nothing needs to be sent to the storefront
func (d SyncDecision) IsNoop() bool {
	return d.Action == SyncActionNone
}

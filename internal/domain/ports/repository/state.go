package repository

import (
	"context"
)

// Conversation steps. Absence of a state entry means "no active flow":
// the next input is treated as a menu selection.
const (
	StepAwaitingProduct        = "awaiting_product"
	StepAwaitingQuantity       = "awaiting_quantity"
	StepAwaitingProductInfo    = "awaiting_product_info"
	StepAwaitingBulkProducts   = "awaiting_bulk_products"
	StepAwaitingBulkQuantities = "awaiting_bulk_quantities"
)

// ConversationState holds a session's progress through a multi-step flow.
// At most one state exists per session ID at any time.
type ConversationState struct {
	Step string `json:"step"`

	// Set when Step == StepAwaitingQuantity. Nil means the product was not
	// available on that source.
	ZeptoPrice     *float64 `json:"zepto_price,omitempty"`
	BigBasketPrice *float64 `json:"bigbasket_price,omitempty"`

	// Set when Step == StepAwaitingBulkQuantities.
	ProductNames []string `json:"product_names,omitempty"`
}

// StateRepository is the port for the conversation store. GetState returns
// (nil, nil) when no state exists for the session.
type StateRepository interface {
	SetState(ctx context.Context, sessionID string, state *ConversationState) error
	GetState(ctx context.Context, sessionID string) (*ConversationState, error)
	ClearState(ctx context.Context, sessionID string) error
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderFailed    OrderStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderFailed
}

// CanTransition encodes the settlement state machine:
// PENDING -> COMPLETED | FAILED, terminal states stay put.
func CanTransition(from, to OrderStatus) bool {
	if from != OrderPending {
		return false
	}
	return to == OrderCompleted || to == OrderFailed
}

// Failure reasons recorded on the order when it transitions to FAILED.
const (
	FailAmountMismatch    = "AMOUNT_MISMATCH"
	FailExpired           = "EXPIRED"
	FailGatewayDeclined   = "GATEWAY_DECLINED"
	FailInsufficientStock = "INSUFFICIENT_STOCK"
)

type OrderItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int64     `json:"quantity"`
	UnitPrice int64     `json:"unit_price"` // paisa
}

// Order is created by checkout initiation and mutated only by the
// reconciliation engine. TotalAmount is the source of truth for the
// amount check and is never recomputed from gateway input.
type Order struct {
	ID              uuid.UUID   `json:"id"`
	TransactionUUID string      `json:"transaction_uuid"`
	Items           []OrderItem `json:"items"`
	TotalAmount     int64       `json:"total_amount"` // paisa
	Status          OrderStatus `json:"status"`
	FailureReason   string      `json:"failure_reason,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	SettledAt       *time.Time  `json:"settled_at,omitempty"`
}

package models

import "time"

// Event types
const (
	EventTypeTransactionCreated   = "TRANSACTION_CREATED"
	EventTypeTransactionFinalized = "TRANSACTION_FINALIZED"
	EventTypeStockRestored        = "STOCK_RESTORED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// TransactionCreatedEvent published when a purchase intent is accepted and
// stock has been reserved
type TransactionCreatedEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	SessionID     string `json:"session_id"`
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	Amount        int64  `json:"amount"`
	UserEmail     string `json:"user_email"`
}

// TransactionFinalizedEvent published when a transaction reaches a
// terminal status
type TransactionFinalizedEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason,omitempty"`
}

// StockRestoredEvent published when a cancellation or rejection credits
// reserved stock back to the product
type StockRestoredEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
}

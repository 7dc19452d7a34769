package models

import "time"

// Product represents a digital good with limited stock.
// Price is stored in minor currency units (cents) so no floating point
// ever touches the money path.
type Product struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Price       int64     `db:"price" json:"price"`
	Quantity    int       `db:"quantity" json:"quantity"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// PaymentSession binds one purchase intent to a product and a shopper.
// IsUsed flips false->true exactly once, when the owning transaction
// reaches a terminal status.
type PaymentSession struct {
	ID           string    `db:"id" json:"id"`
	SessionToken string    `db:"session_token" json:"-"`
	ProductID    string    `db:"product_id" json:"product_id"`
	UserID       string    `db:"user_id" json:"user_id,omitempty"`
	UserEmail    string    `db:"user_email" json:"user_email"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	IsUsed       bool      `db:"is_used" json:"is_used"`
}

// Transaction records one purchase attempt. Amount is in minor currency
// units. Status is write-once-to-terminal: once APPROVED, CANCELED or
// REJECTED it never changes again.
type Transaction struct {
	ID                   string    `db:"id" json:"id"`
	SessionID            string    `db:"session_id" json:"session_id"`
	Amount               int64     `db:"amount" json:"amount"`
	Quantity             int       `db:"quantity" json:"quantity"`
	Status               string    `db:"status" json:"status"`
	PaymentTransactionID *string   `db:"payment_transaction_id" json:"payment_transaction_id,omitempty"`
	PaymentMethod        *string   `db:"payment_method" json:"payment_method,omitempty"`
	ErrorMessage         *string   `db:"error_message" json:"error_message,omitempty"`
	ExpiresAt            time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction statuses
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusCanceled = "CANCELED"
	StatusRejected = "REJECTED"
)

// IsTerminalStatus reports whether a status belongs to the terminal set.
// Every terminal check in the codebase goes through this, never through a
// single-value comparison.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusApproved, StatusCanceled, StatusRejected:
		return true
	}
	return false
}

// IsValidTargetStatus reports whether a status is a legal target for a
// transition. PENDING is the initial state only, never a target.
func IsValidTargetStatus(status string) bool {
	return IsTerminalStatus(status)
}

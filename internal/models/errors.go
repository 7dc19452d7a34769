package models

import "errors"

// Domain errors. Callers match these with errors.Is; the API layer maps
// them to HTTP statuses.
var (
	// Not found
	ErrProductNotFound     = errors.New("product not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrSessionNotFound     = errors.New("payment session not found")

	// Invalid input
	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
	ErrInvalidTransition = errors.New("transaction status must be a terminal state (APPROVED, CANCELED, or REJECTED)")

	// Conflicts
	ErrInsufficientStock = errors.New("insufficient product quantity")
	ErrTransactionFinal  = errors.New("transaction is already in a terminal state")

	// Signature / token material
	ErrSignatureSecret = errors.New("integrity secret is not configured")
	ErrInvalidToken    = errors.New("invalid payment token")

	// Gateway
	ErrAcceptanceTokenRequired = errors.New("acceptance token is required and must be provided by the client")
	ErrGatewayValidation       = errors.New("gateway rejected the request as invalid")
	ErrGateway                 = errors.New("gateway returned an error")
	ErrGatewayUnavailable      = errors.New("gateway is unavailable")
)

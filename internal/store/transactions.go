package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"payment-service/internal/models"
)

// CreatePaymentSession persists a new payment session
func (s *Store) CreatePaymentSession(ctx context.Context, uow UnitOfWork, session *models.PaymentSession) error {
	query := `
		INSERT INTO payment_sessions (id, session_token, product_id, user_id, user_email, expires_at, is_used)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	return uow.GetContext(ctx, &session.CreatedAt, query,
		session.ID, session.SessionToken, session.ProductID, session.UserID,
		session.UserEmail, session.ExpiresAt, session.IsUsed)
}

// CreateTransaction persists a new transaction in PENDING status
func (s *Store) CreateTransaction(ctx context.Context, uow UnitOfWork, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, session_id, amount, quantity, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	row := uow.QueryRowxContext(ctx, query,
		tx.ID, tx.SessionID, tx.Amount, tx.Quantity, tx.Status, tx.ExpiresAt)
	return row.Scan(&tx.CreatedAt, &tx.UpdatedAt)
}

// GetTransaction retrieves a transaction by ID without locking it
func (s *Store) GetTransaction(ctx context.Context, uow UnitOfWork, id string) (*models.Transaction, error) {
	var tx models.Transaction
	err := uow.GetContext(ctx, &tx, "SELECT * FROM transactions WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetSession retrieves a payment session by ID without locking it
func (s *Store) GetSession(ctx context.Context, uow UnitOfWork, id string) (*models.PaymentSession, error) {
	var session models.PaymentSession
	err := uow.GetContext(ctx, &session, "SELECT * FROM payment_sessions WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// lockTransaction loads a transaction under an exclusive row lock
func (s *Store) lockTransaction(ctx context.Context, uow UnitOfWork, id string) (*models.Transaction, error) {
	var tx models.Transaction
	err := uow.GetContext(ctx, &tx, "SELECT * FROM transactions WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock transaction: %w", err)
	}
	return &tx, nil
}

// lockSession loads a payment session under an exclusive row lock
func (s *Store) lockSession(ctx context.Context, uow UnitOfWork, id string) (*models.PaymentSession, error) {
	var session models.PaymentSession
	err := uow.GetContext(ctx, &session, "SELECT * FROM payment_sessions WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}
	return &session, nil
}

// TransitionParams carries the optional fields a terminal transition may
// record alongside the status itself.
type TransitionParams struct {
	Status        string
	ErrorMessage  string
	PaymentMethod string
}

// FinalizeTransaction moves a PENDING transaction to a terminal status
// inside the given UnitOfWork. The transaction and its session rows are
// locked before mutation; CANCELED and REJECTED credit the reserved
// quantity back to the product. Returns the updated transaction and its
// session.
//
// The current status is checked against the whole terminal set, so a second
// finalization attempt always fails with ErrTransactionFinal no matter
// which terminal status won the race.
func (s *Store) FinalizeTransaction(ctx context.Context, uow UnitOfWork, transactionID string, params TransitionParams) (*models.Transaction, *models.PaymentSession, error) {
	if !models.IsValidTargetStatus(params.Status) {
		return nil, nil, models.ErrInvalidTransition
	}

	tx, err := s.lockTransaction(ctx, uow, transactionID)
	if err != nil {
		return nil, nil, err
	}

	if models.IsTerminalStatus(tx.Status) {
		return nil, nil, models.ErrTransactionFinal
	}

	session, err := s.lockSession(ctx, uow, tx.SessionID)
	if err != nil {
		return nil, nil, err
	}

	session.IsUsed = true
	_, err = uow.ExecContext(ctx,
		"UPDATE payment_sessions SET is_used = TRUE WHERE id = $1", session.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to mark session used: %w", err)
	}

	if params.Status == models.StatusCanceled || params.Status == models.StatusRejected {
		if err := s.RestoreStock(ctx, uow, session.ProductID, tx.Quantity); err != nil {
			return nil, nil, err
		}
	}

	tx.Status = params.Status
	tx.UpdatedAt = time.Now()
	if params.ErrorMessage != "" {
		tx.ErrorMessage = &params.ErrorMessage
	}
	if params.PaymentMethod != "" {
		tx.PaymentMethod = &params.PaymentMethod
	}

	_, err = uow.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1,
		    error_message = COALESCE($2, error_message),
		    payment_method = COALESCE($3, payment_method),
		    updated_at = $4
		WHERE id = $5`,
		tx.Status, tx.ErrorMessage, tx.PaymentMethod, tx.UpdatedAt, tx.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update transaction status: %w", err)
	}

	return tx, session, nil
}

// RecordGatewayReference stores the external gateway's transaction id and
// payment method on a still-PENDING transaction after hand-off. The status
// itself is untouched; the status sweep or the client-driven update
// finalizes it later.
func (s *Store) RecordGatewayReference(ctx context.Context, uow UnitOfWork, transactionID, gatewayID, paymentMethod string) error {
	tx, err := s.lockTransaction(ctx, uow, transactionID)
	if err != nil {
		return err
	}
	if models.IsTerminalStatus(tx.Status) {
		return models.ErrTransactionFinal
	}

	_, err = uow.ExecContext(ctx, `
		UPDATE transactions
		SET payment_transaction_id = $1, payment_method = $2, updated_at = NOW()
		WHERE id = $3`,
		gatewayID, paymentMethod, transactionID)
	if err != nil {
		return fmt.Errorf("failed to record gateway reference: %w", err)
	}
	return nil
}

// ExpiredPendingSession pairs an expired session with its PENDING
// transaction for the expiry sweep.
type ExpiredPendingSession struct {
	SessionID     string `db:"session_id"`
	TransactionID string `db:"transaction_id"`
}

// GetExpiredPendingSessions lists sessions past their expiry that still own
// a PENDING transaction. No locks are taken here; the sweep re-locks each
// transaction before mutating it.
func (s *Store) GetExpiredPendingSessions(ctx context.Context, uow UnitOfWork, now time.Time) ([]ExpiredPendingSession, error) {
	var rows []ExpiredPendingSession
	err := uow.SelectContext(ctx, &rows, `
		SELECT ps.id AS session_id, t.id AS transaction_id
		FROM payment_sessions ps
		JOIN transactions t ON t.session_id = ps.id
		WHERE ps.expires_at < $1 AND t.status = $2`,
		now, models.StatusPending)
	return rows, err
}

// GetPendingWithGatewayID lists PENDING transactions that have already been
// handed to the gateway and can therefore be polled for status.
func (s *Store) GetPendingWithGatewayID(ctx context.Context, uow UnitOfWork) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := uow.SelectContext(ctx, &txs, `
		SELECT * FROM transactions
		WHERE status = $1 AND payment_transaction_id IS NOT NULL`,
		models.StatusPending)
	return txs, err
}

// FindTransactionBySessionToken resolves a transaction from its session's
// opaque token
func (s *Store) FindTransactionBySessionToken(ctx context.Context, uow UnitOfWork, sessionToken string) (*models.Transaction, error) {
	var tx models.Transaction
	err := uow.GetContext(ctx, &tx, `
		SELECT t.* FROM transactions t
		JOIN payment_sessions ps ON ps.id = t.session_id
		WHERE ps.session_token = $1`,
		sessionToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

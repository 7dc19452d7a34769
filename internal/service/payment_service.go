package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"payment-service/internal/broker"
	"payment-service/internal/gateway"
	"payment-service/internal/models"
	"payment-service/internal/redisclient"
	"payment-service/internal/store"
	"payment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentService owns the payment transaction lifecycle: stock reservation,
// session and transaction creation, terminal transitions, and the hand-off
// to the external gateway.
type PaymentService struct {
	store          *store.Store
	gateway        *gateway.Client
	redis          *redisclient.Client
	signatures     *SignatureService
	tokens         *TokenService
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger

	currency           string
	publicKey          string
	redirectURL        string
	sessionTTL         time.Duration
	acceptanceCacheTTL time.Duration
}

// Options carries the immutable configuration the service is constructed
// with
type Options struct {
	Currency                string
	PublicKey               string
	RedirectURL             string
	SessionTTL              time.Duration
	AcceptanceTokenCacheTTL time.Duration
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	st *store.Store,
	gw *gateway.Client,
	redis *redisclient.Client,
	signatures *SignatureService,
	tokens *TokenService,
	eventPublisher *broker.EventPublisher,
	opts Options,
) *PaymentService {
	return &PaymentService{
		store:              st,
		gateway:            gw,
		redis:              redis,
		signatures:         signatures,
		tokens:             tokens,
		eventPublisher:     eventPublisher,
		logger:             util.GetLogger(),
		currency:           opts.Currency,
		publicKey:          opts.PublicKey,
		redirectURL:        opts.RedirectURL,
		sessionTTL:         opts.SessionTTL,
		acceptanceCacheTTL: opts.AcceptanceTokenCacheTTL,
	}
}

// InitiatePaymentRequest is a purchase intent for a single product
type InitiatePaymentRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	UserEmail string `json:"user_email" binding:"required,email"`
	UserID    string `json:"user_id,omitempty"`
}

// PaymentMaterial is everything the client needs to hand the purchase to
// the gateway or a checkout widget
type PaymentMaterial struct {
	PublicKey      string `json:"public_key"`
	Currency       string `json:"currency"`
	AmountInCents  int64  `json:"amount_in_cents"`
	Reference      string `json:"reference"`
	Signature      string `json:"signature"`
	PaymentToken   string `json:"payment_token"`
	ExpirationDate string `json:"expiration_date"`
	RedirectURL    string `json:"redirect_url,omitempty"`
}

// InitiatePaymentResponse pairs the created transaction with its payment
// material
type InitiatePaymentResponse struct {
	Transaction *models.Transaction `json:"transaction"`
	Payment     *PaymentMaterial    `json:"payment"`
}

// InitiatePayment reserves stock, creates the payment session and PENDING
// transaction, and issues the signature and bearer token in one atomic
// unit. Any failure rolls the stock debit back with the rest.
func (ps *PaymentService) InitiatePayment(ctx context.Context, req *InitiatePaymentRequest) (*InitiatePaymentResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.InitiatePayment")
	defer span.End()

	var (
		transaction *models.Transaction
		material    *PaymentMaterial
	)

	err := ps.store.WithinTx(ctx, func(uow store.UnitOfWork) error {
		start := time.Now()
		product, err := ps.store.ReserveStock(ctx, uow, req.ProductID, req.Quantity)
		util.StockReserveLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}

		amount := ps.amountFor(product, req.Quantity)

		sessionToken, err := newSessionToken()
		if err != nil {
			return err
		}

		expiresAt := time.Now().Add(ps.sessionTTL)
		session := &models.PaymentSession{
			ID:           uuid.New().String(),
			SessionToken: sessionToken,
			ProductID:    req.ProductID,
			UserID:       req.UserID,
			UserEmail:    req.UserEmail,
			ExpiresAt:    expiresAt,
			IsUsed:       false,
		}
		if err := ps.store.CreatePaymentSession(ctx, uow, session); err != nil {
			return fmt.Errorf("failed to create payment session: %w", err)
		}

		transaction = &models.Transaction{
			ID:        uuid.New().String(),
			SessionID: session.ID,
			Amount:    amount,
			Quantity:  req.Quantity,
			Status:    models.StatusPending,
			ExpiresAt: expiresAt,
		}
		if err := ps.store.CreateTransaction(ctx, uow, transaction); err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}

		// The transaction id doubles as the externally visible reference.
		reference := transaction.ID
		expirationDate := expiresAt.UTC().Format(time.RFC3339)

		signature, err := ps.signatures.Generate(SignatureParams{
			Reference:      reference,
			AmountInCents:  amount,
			Currency:       ps.currency,
			ExpirationDate: expirationDate,
		})
		if err != nil {
			return err
		}

		paymentToken, err := ps.tokens.Generate(PaymentTokenClaims{
			TransactionID:  transaction.ID,
			Amount:         amount,
			ProductID:      req.ProductID,
			ExpirationDate: expirationDate,
			SessionID:      session.ID,
			UserEmail:      req.UserEmail,
		})
		if err != nil {
			return err
		}

		material = &PaymentMaterial{
			PublicKey:      ps.publicKey,
			Currency:       ps.currency,
			AmountInCents:  amount,
			Reference:      reference,
			Signature:      signature,
			PaymentToken:   paymentToken,
			ExpirationDate: expirationDate,
			RedirectURL:    ps.redirectURL,
		}
		return nil
	})
	if err != nil {
		util.PaymentsInitiationFailedTotal.WithLabelValues(initiationFailureReason(err)).Inc()
		return nil, err
	}

	util.PaymentsInitiatedTotal.Inc()
	ps.logger.Info("Payment initiated",
		zap.String("transaction_id", transaction.ID),
		zap.String("product_id", req.ProductID),
		zap.Int("quantity", req.Quantity),
		zap.Int64("amount", transaction.Amount))

	ps.publishCreated(ctx, transaction, req)

	return &InitiatePaymentResponse{Transaction: transaction, Payment: material}, nil
}

// UpdateTransactionStatus moves a transaction to a terminal status on
// behalf of a token-bearing client
func (ps *PaymentService) UpdateTransactionStatus(ctx context.Context, transactionID, status string) (*models.Transaction, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.UpdateTransactionStatus")
	defer span.End()

	return ps.finalize(ctx, transactionID, store.TransitionParams{Status: status})
}

// finalize runs one terminal transition in its own atomic unit and emits
// the follow-up event and metrics
func (ps *PaymentService) finalize(ctx context.Context, transactionID string, params store.TransitionParams) (*models.Transaction, error) {
	var (
		transaction *models.Transaction
		session     *models.PaymentSession
	)

	err := ps.store.WithinTx(ctx, func(uow store.UnitOfWork) error {
		var err error
		transaction, session, err = ps.store.FinalizeTransaction(ctx, uow, transactionID, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	util.TransactionsFinalizedTotal.WithLabelValues(transaction.Status).Inc()
	if transaction.Status == models.StatusCanceled || transaction.Status == models.StatusRejected {
		util.StockRestoredTotal.Add(float64(transaction.Quantity))
	}

	ps.logger.Info("Transaction finalized",
		zap.String("transaction_id", transaction.ID),
		zap.String("status", transaction.Status))

	ps.publishFinalized(ctx, transaction, session, params)

	return transaction, nil
}

// FinalizeFromSweep is the sweep-facing variant of finalize; it lets the
// reconciliation jobs attach an error message and payment method
func (ps *PaymentService) FinalizeFromSweep(ctx context.Context, transactionID string, params store.TransitionParams) (*models.Transaction, error) {
	return ps.finalize(ctx, transactionID, params)
}

// ProcessGatewayPaymentRequest carries the client-confirmed payment to be
// created at the gateway
type ProcessGatewayPaymentRequest struct {
	TransactionID   string `json:"transaction_id" binding:"required"`
	AcceptanceToken string `json:"acceptance_token" binding:"required"`
	CardToken       string `json:"card_token" binding:"required"`
	Installments    int    `json:"installments"`
	CustomerEmail   string `json:"customer_email" binding:"required,email"`
}

// ProcessGatewayPayment regenerates the integrity signature, creates the
// payment at the gateway, and records the returned gateway id on the local
// transaction. No product or transaction lock is held across the gateway
// call.
func (ps *PaymentService) ProcessGatewayPayment(ctx context.Context, req *ProcessGatewayPaymentRequest) (*gateway.TransactionData, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.ProcessGatewayPayment")
	defer span.End()

	transaction, err := ps.store.GetTransaction(ctx, ps.store.DB(), req.TransactionID)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalStatus(transaction.Status) {
		return nil, models.ErrTransactionFinal
	}

	expirationDate := transaction.ExpiresAt.UTC().Format(time.RFC3339)
	signature, err := ps.signatures.Generate(SignatureParams{
		Reference:      transaction.ID,
		AmountInCents:  transaction.Amount,
		Currency:       ps.currency,
		ExpirationDate: expirationDate,
	})
	if err != nil {
		return nil, err
	}

	gwReq := &gateway.CreatePaymentRequest{
		AcceptanceToken: req.AcceptanceToken,
		AmountInCents:   transaction.Amount,
		Currency:        ps.currency,
		CustomerEmail:   req.CustomerEmail,
		Reference:       transaction.ID,
		Signature:       signature,
		ExpirationTime:  expirationDate,
	}
	gwReq.PaymentMethod.Type = "CARD"
	gwReq.PaymentMethod.Token = req.CardToken
	gwReq.PaymentMethod.Installments = req.Installments

	start := time.Now()
	remote, err := ps.gateway.CreatePayment(ctx, gwReq)
	util.GatewayRequestDuration.WithLabelValues("create_payment").Observe(time.Since(start).Seconds())
	if err != nil {
		util.GatewayErrorsTotal.WithLabelValues("create_payment", errorKind(err)).Inc()
		return nil, err
	}

	err = ps.store.WithinTx(ctx, func(uow store.UnitOfWork) error {
		return ps.store.RecordGatewayReference(ctx, uow, transaction.ID, remote.ID, remote.PaymentMethodType)
	})
	if err != nil {
		// The gateway accepted the payment; the status sweep will still
		// find it once the reference write succeeds on a later retry.
		ps.logger.Error("Failed to record gateway reference",
			zap.String("transaction_id", transaction.ID),
			zap.String("gateway_id", remote.ID),
			zap.Error(err))
		return nil, err
	}

	ps.logger.Info("Payment handed to gateway",
		zap.String("transaction_id", transaction.ID),
		zap.String("gateway_id", remote.ID),
		zap.String("remote_status", remote.Status))

	return remote, nil
}

// GetAcceptanceTokens returns the merchant's consent tokens, served from
// the Redis cache when fresh
func (ps *PaymentService) GetAcceptanceTokens(ctx context.Context) (*gateway.AcceptanceTokens, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.GetAcceptanceTokens")
	defer span.End()

	if ps.redis != nil {
		var cached gateway.AcceptanceTokens
		err := ps.redis.GetAcceptanceTokens(ctx, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, redisclient.ErrCacheMiss) {
			ps.logger.Warn("Acceptance token cache read failed", zap.Error(err))
		}
	}

	start := time.Now()
	tokens, err := ps.gateway.GetMerchantAcceptanceTokens(ctx)
	util.GatewayRequestDuration.WithLabelValues("acceptance_tokens").Observe(time.Since(start).Seconds())
	if err != nil {
		util.GatewayErrorsTotal.WithLabelValues("acceptance_tokens", errorKind(err)).Inc()
		return nil, err
	}

	if ps.redis != nil {
		if err := ps.redis.SetAcceptanceTokens(ctx, tokens, ps.acceptanceCacheTTL); err != nil {
			ps.logger.Warn("Acceptance token cache write failed", zap.Error(err))
		}
	}
	return tokens, nil
}

// TokenizeCard forwards card data to the gateway's tokenization endpoint
func (ps *PaymentService) TokenizeCard(ctx context.Context, req *gateway.CardTokenRequest) (*gateway.CardTokenData, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.TokenizeCard")
	defer span.End()

	start := time.Now()
	data, err := ps.gateway.TokenizeCard(ctx, req)
	util.GatewayRequestDuration.WithLabelValues("tokenize_card").Observe(time.Since(start).Seconds())
	if err != nil {
		util.GatewayErrorsTotal.WithLabelValues("tokenize_card", errorKind(err)).Inc()
		return nil, err
	}
	return data, nil
}

// VerifyPaymentToken validates a bearer token and returns its claims
func (ps *PaymentService) VerifyPaymentToken(tokenString string) (*PaymentTokenClaims, error) {
	return ps.tokens.Verify(tokenString)
}

// GetProducts lists the catalog
func (ps *PaymentService) GetProducts(ctx context.Context) ([]models.Product, error) {
	return ps.store.GetProducts(ctx, ps.store.DB())
}

// GetProduct fetches one product
func (ps *PaymentService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return ps.store.GetProduct(ctx, ps.store.DB(), id)
}

// GetTransaction fetches one transaction
func (ps *PaymentService) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return ps.store.GetTransaction(ctx, ps.store.DB(), id)
}

func (ps *PaymentService) publishCreated(ctx context.Context, tx *models.Transaction, req *InitiatePaymentRequest) {
	if ps.eventPublisher == nil {
		return
	}
	event := &models.TransactionCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeTransactionCreated,
			Timestamp: time.Now(),
		},
		TransactionID: tx.ID,
		SessionID:     tx.SessionID,
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		Amount:        tx.Amount,
		UserEmail:     req.UserEmail,
	}
	if err := ps.eventPublisher.PublishTransactionCreated(ctx, event); err != nil {
		ps.logger.Error("Failed to publish TransactionCreated event", zap.Error(err))
	}
}

func (ps *PaymentService) publishFinalized(ctx context.Context, tx *models.Transaction, session *models.PaymentSession, params store.TransitionParams) {
	if ps.eventPublisher == nil {
		return
	}
	event := &models.TransactionFinalizedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeTransactionFinalized,
			Timestamp: time.Now(),
		},
		TransactionID: tx.ID,
		Status:        tx.Status,
		Amount:        tx.Amount,
		Reason:        params.ErrorMessage,
	}
	if err := ps.eventPublisher.PublishTransactionFinalized(ctx, event); err != nil {
		ps.logger.Error("Failed to publish TransactionFinalized event", zap.Error(err))
	}

	if tx.Status == models.StatusCanceled || tx.Status == models.StatusRejected {
		restored := &models.StockRestoredEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeStockRestored,
				Timestamp: time.Now(),
			},
			TransactionID: tx.ID,
			ProductID:     session.ProductID,
			Quantity:      tx.Quantity,
		}
		if err := ps.eventPublisher.PublishStockRestored(ctx, restored); err != nil {
			ps.logger.Error("Failed to publish StockRestored event", zap.Error(err))
		}
	}
}

// amountFor computes the charge in minor currency units. Price is already
// stored in minor units, so no rounding rule is needed anywhere in the
// money path.
func (ps *PaymentService) amountFor(product *models.Product, quantity int) int64 {
	return product.Price * int64(quantity)
}

// initiationFailureReason buckets initiation failures for metrics labels
func initiationFailureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, models.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, models.ErrInvalidQuantity):
		return "invalid_quantity"
	default:
		return "internal"
	}
}

// errorKind buckets gateway errors for metrics labels
func errorKind(err error) string {
	switch {
	case errors.Is(err, models.ErrGatewayValidation):
		return "validation"
	case errors.Is(err, models.ErrGatewayUnavailable):
		return "unavailable"
	default:
		return "generic"
	}
}

// newSessionToken returns 32 random bytes hex-encoded (256 bits of
// entropy)
func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

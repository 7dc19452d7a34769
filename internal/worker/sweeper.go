package worker

import (
	"context"
	"errors"
	"time"

	"payment-service/internal/gateway"
	"payment-service/internal/models"
	"payment-service/internal/service"
	"payment-service/internal/store"
	"payment-service/internal/util"

	"go.uber.org/zap"
)

// remoteStatusMapping is the finite table from gateway status strings to
// local transaction statuses. Anything not present here leaves the local
// status unchanged.
var remoteStatusMapping = map[string]string{
	"APPROVED": models.StatusApproved,
	"DECLINED": models.StatusRejected,
	"REJECTED": models.StatusRejected,
	"ERROR":    models.StatusRejected,
	"VOIDED":   models.StatusCanceled,
	"CANCELED": models.StatusCanceled,
}

// MapRemoteStatus maps a gateway status to a local terminal status. The
// second result is false when the remote status is PENDING or unknown, in
// which case the local transaction must not be touched.
func MapRemoteStatus(remote string) (string, bool) {
	local, ok := remoteStatusMapping[remote]
	return local, ok
}

// ExpirySweeper cancels PENDING transactions whose payment session has
// expired, restoring the reserved stock. Stateless between ticks.
type ExpirySweeper struct {
	store    *store.Store
	payments *service.PaymentService
	interval time.Duration
	logger   *zap.Logger
}

// NewExpirySweeper creates the expiry sweep
func NewExpirySweeper(st *store.Store, payments *service.PaymentService, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		store:    st,
		payments: payments,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Start runs the sweep on a fixed interval until ctx is canceled
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.logger.Info("Starting expiry sweeper", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Expiry sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single sweep tick. Each expired session is processed
// in its own atomic unit; one failure never aborts the rest of the batch.
func (s *ExpirySweeper) RunOnce(ctx context.Context) {
	start := time.Now()
	defer func() {
		util.SweepTickDuration.WithLabelValues("expiry").Observe(time.Since(start).Seconds())
	}()

	expired, err := s.store.GetExpiredPendingSessions(ctx, s.store.DB(), time.Now())
	if err != nil {
		s.logger.Error("Expiry sweep query failed", zap.Error(err))
		return
	}

	if len(expired) == 0 {
		return
	}
	s.logger.Info("Found expired payment sessions with pending transactions",
		zap.Int("count", len(expired)))

	for _, row := range expired {
		_, err := s.payments.FinalizeFromSweep(ctx, row.TransactionID, store.TransitionParams{
			Status:       models.StatusCanceled,
			ErrorMessage: "Payment session expired",
		})
		switch {
		case err == nil:
			util.ExpirySweepCanceledTotal.Inc()
			s.logger.Info("Canceled expired transaction",
				zap.String("transaction_id", row.TransactionID),
				zap.String("session_id", row.SessionID))
		case errors.Is(err, models.ErrTransactionFinal):
			// Another writer finalized it between the query and the
			// lock. Expected, not an error.
			s.logger.Debug("Transaction no longer pending, skipping",
				zap.String("transaction_id", row.TransactionID))
		default:
			s.logger.Error("Failed to cancel expired transaction",
				zap.String("transaction_id", row.TransactionID),
				zap.Error(err))
		}
	}
}

// StatusSweeper polls the gateway for PENDING transactions that already
// have a gateway id and applies the resulting terminal transitions.
// Stateless between ticks.
type StatusSweeper struct {
	store    *store.Store
	payments *service.PaymentService
	gateway  *gateway.Client
	interval time.Duration
	logger   *zap.Logger
}

// NewStatusSweeper creates the status sweep
func NewStatusSweeper(st *store.Store, payments *service.PaymentService, gw *gateway.Client, interval time.Duration) *StatusSweeper {
	return &StatusSweeper{
		store:    st,
		payments: payments,
		gateway:  gw,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Start runs the sweep on a fixed interval until ctx is canceled
func (s *StatusSweeper) Start(ctx context.Context) {
	s.logger.Info("Starting status sweeper", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Status sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single sweep tick. Gateway calls happen outside any
// database transaction, so no row lock is ever held across the network.
func (s *StatusSweeper) RunOnce(ctx context.Context) {
	start := time.Now()
	defer func() {
		util.SweepTickDuration.WithLabelValues("status").Observe(time.Since(start).Seconds())
	}()

	pending, err := s.store.GetPendingWithGatewayID(ctx, s.store.DB())
	if err != nil {
		s.logger.Error("Status sweep query failed", zap.Error(err))
		return
	}

	if len(pending) == 0 {
		return
	}
	s.logger.Info("Checking gateway status for pending transactions",
		zap.Int("count", len(pending)))

	for _, tx := range pending {
		if err := s.checkOne(ctx, tx); err != nil {
			s.logger.Error("Failed to reconcile transaction status",
				zap.String("transaction_id", tx.ID),
				zap.Error(err))
		}
	}
}

func (s *StatusSweeper) checkOne(ctx context.Context, tx models.Transaction) error {
	callStart := time.Now()
	remote, err := s.gateway.GetTransactionStatus(ctx, *tx.PaymentTransactionID)
	util.GatewayRequestDuration.WithLabelValues("transaction_status").Observe(time.Since(callStart).Seconds())
	if err != nil {
		util.GatewayErrorsTotal.WithLabelValues("transaction_status", "poll").Inc()
		return err
	}

	newStatus, changed := MapRemoteStatus(remote.Status)
	if !changed {
		s.logger.Debug("Remote status leaves transaction unchanged",
			zap.String("transaction_id", tx.ID),
			zap.String("remote_status", remote.Status))
		return nil
	}

	params := store.TransitionParams{
		Status:        newStatus,
		PaymentMethod: remote.PaymentMethodType,
	}
	if newStatus == models.StatusRejected {
		params.ErrorMessage = "Payment was rejected by the payment gateway"
	}

	_, err = s.payments.FinalizeFromSweep(ctx, tx.ID, params)
	if errors.Is(err, models.ErrTransactionFinal) {
		// Lost the race to a client-driven update. The committed
		// transition wins and this poll result is discarded.
		s.logger.Debug("Transaction already finalized, skipping",
			zap.String("transaction_id", tx.ID))
		return nil
	}
	if err != nil {
		return err
	}

	util.StatusSweepUpdatedTotal.WithLabelValues(newStatus).Inc()
	s.logger.Info("Transaction status reconciled from gateway",
		zap.String("transaction_id", tx.ID),
		zap.String("status", newStatus),
		zap.String("remote_status", remote.Status))
	return nil
}

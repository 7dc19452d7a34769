package service

import (
	"fmt"
	"testing"

	"payment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountFor(t *testing.T) {
	ps := &PaymentService{}

	// 1999 minor units (19.99) x 2
	product := &models.Product{ID: "p1", Price: 1999}
	assert.Equal(t, int64(3998), ps.amountFor(product, 2))

	assert.Equal(t, int64(1999), ps.amountFor(product, 1))
	assert.Equal(t, int64(0), ps.amountFor(&models.Product{Price: 0}, 5))
}

func TestNewSessionToken(t *testing.T) {
	token, err := newSessionToken()
	require.NoError(t, err)

	// 32 random bytes hex-encoded
	assert.Len(t, token, 64)

	other, err := newSessionToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestInitiationFailureReason(t *testing.T) {
	assert.Equal(t, "insufficient_stock", initiationFailureReason(models.ErrInsufficientStock))
	assert.Equal(t, "product_not_found", initiationFailureReason(models.ErrProductNotFound))
	assert.Equal(t, "invalid_quantity", initiationFailureReason(models.ErrInvalidQuantity))
	assert.Equal(t, "internal", initiationFailureReason(fmt.Errorf("connection reset")))

	// Wrapped errors still classify
	wrapped := fmt.Errorf("initiate: %w", models.ErrInsufficientStock)
	assert.Equal(t, "insufficient_stock", initiationFailureReason(wrapped))
}

func TestGatewayErrorKind(t *testing.T) {
	assert.Equal(t, "validation", errorKind(fmt.Errorf("%w: amount", models.ErrGatewayValidation)))
	assert.Equal(t, "unavailable", errorKind(fmt.Errorf("%w: timeout", models.ErrGatewayUnavailable)))
	assert.Equal(t, "generic", errorKind(fmt.Errorf("%w: boom", models.ErrGateway)))
	assert.Equal(t, "generic", errorKind(fmt.Errorf("other")))
}

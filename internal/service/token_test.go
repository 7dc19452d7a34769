package service

import (
	"testing"
	"time"

	"payment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClaims() PaymentTokenClaims {
	return PaymentTokenClaims{
		TransactionID:  "tx-123",
		Amount:         250000,
		ProductID:      "prod-9",
		ExpirationDate: "2025-01-01T12:00:00Z",
		SessionID:      "sess-42",
		UserEmail:      "shopper@example.com",
	}
}

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("token-secret", 30*time.Minute)

	token, err := svc.Generate(testClaims())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Verify(token)
	require.NoError(t, err)

	assert.Equal(t, "tx-123", claims.TransactionID)
	assert.Equal(t, int64(250000), claims.Amount)
	assert.Equal(t, "prod-9", claims.ProductID)
	assert.Equal(t, "sess-42", claims.SessionID)
	assert.Equal(t, "shopper@example.com", claims.UserEmail)
}

func TestTokenWrongSecret(t *testing.T) {
	issuer := NewTokenService("token-secret", 30*time.Minute)
	verifier := NewTokenService("other-secret", 30*time.Minute)

	token, err := issuer.Generate(testClaims())
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestTokenExpired(t *testing.T) {
	svc := NewTokenService("token-secret", -time.Minute)

	token, err := svc.Generate(testClaims())
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestTokenGarbage(t *testing.T) {
	svc := NewTokenService("token-secret", 30*time.Minute)

	_, err := svc.Verify("not.a.token")
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestTokenMissingSecret(t *testing.T) {
	svc := NewTokenService("", 30*time.Minute)

	_, err := svc.Generate(testClaims())
	assert.ErrorIs(t, err, models.ErrSignatureSecret)
}

package service

import (
	"fmt"
	"time"

	"payment-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// PaymentTokenClaims is the payload of the bearer credential issued at
// purchase initiation. Possession of a valid token is what authorizes a
// client-driven status update on the bound transaction.
type PaymentTokenClaims struct {
	TransactionID  string `json:"transactionId"`
	Amount         int64  `json:"amount"`
	ProductID      string `json:"productId"`
	ExpirationDate string `json:"expirationDate"`
	SessionID      string `json:"sessionId"`
	UserEmail      string `json:"userEmail"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies short-lived payment tokens.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
}

// NewTokenService creates a token service with an immutable signing secret
func NewTokenService(secret string, lifetime time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), lifetime: lifetime}
}

// Generate signs a payment token binding the session to its transaction
func (t *TokenService) Generate(claims PaymentTokenClaims) (string, error) {
	if len(t.secret) == 0 {
		return "", models.ErrSignatureSecret
	}

	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.lifetime)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign payment token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a payment token, returning its claims
func (t *TokenService) Verify(tokenString string) (*PaymentTokenClaims, error) {
	claims := &PaymentTokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, models.ErrInvalidToken
	}
	return claims, nil
}

package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"payment-service/internal/models"
)

// SignatureParams are the fields bound together by an integrity signature.
type SignatureParams struct {
	Reference      string
	AmountInCents  int64
	Currency       string
	ExpirationDate string
}

// SignatureService computes and verifies the one-way integrity digest the
// payment gateway checks before accepting a transaction.
type SignatureService struct {
	secret string
}

// NewSignatureService creates a signature service with an immutable secret
func NewSignatureService(secret string) *SignatureService {
	return &SignatureService{secret: secret}
}

// Generate returns the hex-encoded SHA-256 digest over the concatenation of
// reference, amount, currency, expiration date and the shared secret.
func (s *SignatureService) Generate(params SignatureParams) (string, error) {
	if s.secret == "" {
		return "", models.ErrSignatureSecret
	}

	concat := fmt.Sprintf("%s%d%s%s%s",
		params.Reference, params.AmountInCents, params.Currency,
		params.ExpirationDate, s.secret)

	sum := sha256.Sum256([]byte(concat))
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the signature for params and compares it against the
// provided one in constant time. A malformed or wrong-length signature is a
// mismatch, not an error.
func (s *SignatureService) Verify(params SignatureParams, provided string) (bool, error) {
	expected, err := s.Generate(params)
	if err != nil {
		return false, err
	}

	expectedBytes, err := hex.DecodeString(expected)
	if err != nil {
		return false, err
	}
	providedBytes, err := hex.DecodeString(provided)
	if err != nil || len(providedBytes) != len(expectedBytes) {
		return false, nil
	}

	return subtle.ConstantTimeCompare(expectedBytes, providedBytes) == 1, nil
}

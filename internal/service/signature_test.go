package service

import (
	"testing"

	"payment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() SignatureParams {
	return SignatureParams{
		Reference:      "8c5c2f3a-4a3f-4a1f-9a3e-2f7d2f6f9b11",
		AmountInCents:  399800,
		Currency:       "COP",
		ExpirationDate: "2025-01-01T12:00:00Z",
	}
}

func TestSignatureRoundTrip(t *testing.T) {
	svc := NewSignatureService("test-secret")

	sig, err := svc.Generate(testParams())
	require.NoError(t, err)
	assert.Len(t, sig, 64) // hex-encoded SHA-256

	ok, err := svc.Verify(testParams(), sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignatureDeterministic(t *testing.T) {
	svc := NewSignatureService("test-secret")

	first, err := svc.Generate(testParams())
	require.NoError(t, err)
	second, err := svc.Generate(testParams())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSignatureMutationFailsVerification(t *testing.T) {
	svc := NewSignatureService("test-secret")

	sig, err := svc.Generate(testParams())
	require.NoError(t, err)

	// Flip a single hex character
	mutated := []byte(sig)
	if mutated[0] == 'a' {
		mutated[0] = 'b'
	} else {
		mutated[0] = 'a'
	}

	ok, err := svc.Verify(testParams(), string(mutated))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignatureChangedParamsFailVerification(t *testing.T) {
	svc := NewSignatureService("test-secret")

	sig, err := svc.Generate(testParams())
	require.NoError(t, err)

	tampered := testParams()
	tampered.AmountInCents = 1

	ok, err := svc.Verify(tampered, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignatureMalformedProvided(t *testing.T) {
	svc := NewSignatureService("test-secret")

	ok, err := svc.Verify(testParams(), "not-hex-at-all")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Verify(testParams(), "deadbeef") // wrong length
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignatureMissingSecret(t *testing.T) {
	svc := NewSignatureService("")

	_, err := svc.Generate(testParams())
	assert.ErrorIs(t, err, models.ErrSignatureSecret)

	_, err = svc.Verify(testParams(), "deadbeef")
	assert.ErrorIs(t, err, models.ErrSignatureSecret)
}

func TestSignatureDiffersPerSecret(t *testing.T) {
	a, err := NewSignatureService("secret-a").Generate(testParams())
	require.NoError(t, err)
	b, err := NewSignatureService("secret-b").Generate(testParams())
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

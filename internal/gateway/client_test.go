package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "pub_test_key", "prv_test_key", 5*time.Second), srv
}

func TestGetMerchantAcceptanceTokens(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/merchants/pub_test_key", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": {
				"presigned_acceptance": {
					"acceptance_token": "eyJhbGciOi.end-user",
					"permalink": "https://terms.example/eu",
					"type": "END_USER_POLICY"
				},
				"presigned_personal_data_auth": {
					"acceptance_token": "eyJhbGciOi.personal",
					"permalink": "https://terms.example/pd",
					"type": "PERSONAL_DATA_AUTH"
				}
			}
		}`))
	})

	tokens, err := client.GetMerchantAcceptanceTokens(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "eyJhbGciOi.end-user", tokens.EndUserAcceptanceToken)
	assert.Equal(t, "https://terms.example/eu", tokens.EndUserTermsURL)
	assert.Equal(t, "PERSONAL_DATA_AUTH", tokens.PersonalDataTermsType)
}

func TestGetTransactionStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/gw-123", r.URL.Path)
		assert.Equal(t, "Bearer prv_test_key", r.Header.Get("Authorization"))

		w.Write([]byte(`{"data": {"id": "gw-123", "status": "APPROVED", "payment_method_type": "CARD"}}`))
	})

	data, err := client.GetTransactionStatus(context.Background(), "gw-123")
	require.NoError(t, err)

	assert.Equal(t, "gw-123", data.ID)
	assert.Equal(t, "APPROVED", data.Status)
	assert.Equal(t, "CARD", data.PaymentMethodType)
}

func TestCreatePaymentRequiresAcceptanceToken(t *testing.T) {
	called := false
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.CreatePayment(context.Background(), &CreatePaymentRequest{
		AmountInCents: 100,
		Currency:      "COP",
	})

	assert.ErrorIs(t, err, models.ErrAcceptanceTokenRequired)
	assert.False(t, called, "missing consent must never reach the gateway")
}

func TestCreatePaymentSendsPublicKey(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transactions", r.URL.Path)
		assert.Equal(t, "Bearer pub_test_key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data": {"id": "gw-9", "status": "PENDING"}}`))
	})

	req := &CreatePaymentRequest{
		AcceptanceToken: "tok",
		AmountInCents:   5000,
		Currency:        "COP",
		Reference:       "ref-1",
		Signature:       "sig",
	}
	data, err := client.CreatePayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "gw-9", data.ID)
	assert.Equal(t, "PENDING", data.Status)
}

func TestValidationErrorClassification(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{
			"error": {
				"type": "INPUT_VALIDATION_ERROR",
				"messages": {
					"amount_in_cents": ["must be greater than 0"],
					"currency": ["is not supported"]
				}
			}
		}`))
	})

	_, err := client.CreatePayment(context.Background(), &CreatePaymentRequest{AcceptanceToken: "tok"})
	require.Error(t, err)

	assert.ErrorIs(t, err, models.ErrGatewayValidation)
	assert.Contains(t, err.Error(), "amount_in_cents: must be greater than 0")
	assert.Contains(t, err.Error(), "currency: is not supported")
}

func TestGenericErrorClassification(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"type": "INVALID_ACCESS_TOKEN", "message": "bad key"}}`))
	})

	_, err := client.GetTransactionStatus(context.Background(), "gw-1")
	require.Error(t, err)

	assert.ErrorIs(t, err, models.ErrGateway)
	assert.NotErrorIs(t, err, models.ErrGatewayValidation)
	assert.Contains(t, err.Error(), "INVALID_ACCESS_TOKEN")
	assert.Contains(t, err.Error(), "bad key")
}

func TestUnstructuredErrorClassification(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`upstream exploded`))
	})

	_, err := client.GetTransactionStatus(context.Background(), "gw-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrGateway)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse subsequent connections

	client := NewClient(srv.URL, "pub", "prv", time.Second)
	_, err := client.GetTransactionStatus(context.Background(), "gw-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrGatewayUnavailable)
}

func TestTimeoutIsUnavailable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	client.httpClient.Timeout = 20 * time.Millisecond

	_, err := client.GetTransactionStatus(context.Background(), "gw-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrGatewayUnavailable)
}

func TestTokenizeCard(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tokens/cards", r.URL.Path)
		assert.Equal(t, "Bearer pub_test_key", r.Header.Get("Authorization"))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data": {"id": "tok_abc", "brand": "VISA", "last_four": "4242"}}`))
	})

	data, err := client.TokenizeCard(context.Background(), &CardTokenRequest{
		Number: "4242424242424242", CVC: "123", ExpMonth: "12", ExpYear: "29", HolderID: "J DOE",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok_abc", data.ID)
	assert.Equal(t, "4242", data.LastFour)
}

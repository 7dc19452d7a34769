package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"payment-service/internal/models"
)

// Client talks to the external card-payment gateway. It holds no state
// beyond configuration; every call is independently retryable by the
// caller.
type Client struct {
	baseURL    string
	publicKey  string
	privateKey string
	httpClient *http.Client
}

// NewClient creates a gateway client with a bounded request timeout
func NewClient(baseURL, publicKey, privateKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		publicKey:  publicKey,
		privateKey: privateKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// TransactionData is the gateway's view of a payment transaction
type TransactionData struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	StatusMessage     string `json:"status_message,omitempty"`
	Reference         string `json:"reference"`
	AmountInCents     int64  `json:"amount_in_cents"`
	Currency          string `json:"currency"`
	PaymentMethodType string `json:"payment_method_type"`
	CreatedAt         string `json:"created_at"`
}

type transactionResponse struct {
	Data TransactionData `json:"data"`
}

// AcceptanceTokens carries the merchant's presigned consent tokens the
// client must echo back when creating a payment
type AcceptanceTokens struct {
	EndUserAcceptanceToken      string `json:"end_user_acceptance_token"`
	EndUserTermsURL             string `json:"end_user_terms_url"`
	EndUserTermsType            string `json:"end_user_terms_type"`
	PersonalDataAcceptanceToken string `json:"personal_data_acceptance_token"`
	PersonalDataTermsURL        string `json:"personal_data_terms_url"`
	PersonalDataTermsType       string `json:"personal_data_terms_type"`
}

type presignedToken struct {
	AcceptanceToken string `json:"acceptance_token"`
	Permalink       string `json:"permalink"`
	Type            string `json:"type"`
}

type merchantResponse struct {
	Data struct {
		PresignedAcceptance       presignedToken `json:"presigned_acceptance"`
		PresignedPersonalDataAuth presignedToken `json:"presigned_personal_data_auth"`
	} `json:"data"`
}

// CreatePaymentRequest is the outbound payment-creation payload
type CreatePaymentRequest struct {
	AcceptanceToken string `json:"acceptance_token"`
	AmountInCents   int64  `json:"amount_in_cents"`
	Currency        string `json:"currency"`
	CustomerEmail   string `json:"customer_email"`
	Reference       string `json:"reference"`
	Signature       string `json:"signature"`
	ExpirationTime  string `json:"expiration_time,omitempty"`
	PaymentMethod   struct {
		Type         string `json:"type"`
		Token        string `json:"token,omitempty"`
		Installments int    `json:"installments,omitempty"`
	} `json:"payment_method"`
}

// CardTokenRequest is the card-tokenization payload. The raw card data
// passes through to the gateway and is never persisted here.
type CardTokenRequest struct {
	Number   string `json:"number"`
	CVC      string `json:"cvc"`
	ExpMonth string `json:"exp_month"`
	ExpYear  string `json:"exp_year"`
	HolderID string `json:"card_holder"`
}

// CardTokenData is the tokenized card reference returned by the gateway
type CardTokenData struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	LastFour  string `json:"last_four"`
	ExpiresAt string `json:"expires_at"`
}

type cardTokenResponse struct {
	Data CardTokenData `json:"data"`
}

// gatewayError is the structured error payload the gateway returns on
// non-2xx responses
type gatewayError struct {
	Error struct {
		Type     string              `json:"type"`
		Message  string              `json:"message"`
		Messages map[string][]string `json:"messages"`
	} `json:"error"`
}

// GetMerchantAcceptanceTokens fetches the presigned consent tokens for this
// merchant's public key
func (c *Client) GetMerchantAcceptanceTokens(ctx context.Context) (*AcceptanceTokens, error) {
	var resp merchantResponse
	if err := c.do(ctx, http.MethodGet, "/merchants/"+c.publicKey, "", nil, &resp); err != nil {
		return nil, err
	}

	return &AcceptanceTokens{
		EndUserAcceptanceToken:      resp.Data.PresignedAcceptance.AcceptanceToken,
		EndUserTermsURL:             resp.Data.PresignedAcceptance.Permalink,
		EndUserTermsType:            resp.Data.PresignedAcceptance.Type,
		PersonalDataAcceptanceToken: resp.Data.PresignedPersonalDataAuth.AcceptanceToken,
		PersonalDataTermsURL:        resp.Data.PresignedPersonalDataAuth.Permalink,
		PersonalDataTermsType:       resp.Data.PresignedPersonalDataAuth.Type,
	}, nil
}

// GetTransactionStatus polls the gateway for the current state of a remote
// transaction
func (c *Client) GetTransactionStatus(ctx context.Context, remoteID string) (*TransactionData, error) {
	var resp transactionResponse
	if err := c.do(ctx, http.MethodGet, "/transactions/"+remoteID, c.privateKey, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// CreatePayment creates a payment transaction at the gateway. The
// acceptance token proves user consent and must come from the client; it is
// never defaulted here.
func (c *Client) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*TransactionData, error) {
	if req.AcceptanceToken == "" {
		return nil, models.ErrAcceptanceTokenRequired
	}

	var resp transactionResponse
	if err := c.do(ctx, http.MethodPost, "/transactions", c.publicKey, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// TokenizeCard exchanges raw card data for a single-use gateway token
func (c *Client) TokenizeCard(ctx context.Context, req *CardTokenRequest) (*CardTokenData, error) {
	var resp cardTokenResponse
	if err := c.do(ctx, http.MethodPost, "/tokens/cards", c.publicKey, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// do executes one request and decodes the response into out. Transport
// failures map to ErrGatewayUnavailable; non-2xx responses are classified
// from the gateway's structured error payload.
func (c *Client) do(ctx context.Context, method, path, bearer string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal gateway request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", models.ErrGatewayUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.classifyError(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%w: malformed response body: %v", models.ErrGateway, err)
		}
	}
	return nil
}

// classifyError turns a non-2xx gateway response into a typed error with a
// human-readable message
func (c *Client) classifyError(status int, raw []byte) error {
	var payload gatewayError
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error.Type == "" {
		return fmt.Errorf("%w: unexpected status %d", models.ErrGateway, status)
	}

	if payload.Error.Type == "INPUT_VALIDATION_ERROR" && len(payload.Error.Messages) > 0 {
		fields := make([]string, 0, len(payload.Error.Messages))
		for field, msgs := range payload.Error.Messages {
			fields = append(fields, fmt.Sprintf("%s: %s", field, strings.Join(msgs, ", ")))
		}
		sort.Strings(fields)
		return fmt.Errorf("%w: %s", models.ErrGatewayValidation, strings.Join(fields, "; "))
	}

	msg := payload.Error.Message
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Errorf("%w: %s: %s", models.ErrGateway, payload.Error.Type, msg)
}

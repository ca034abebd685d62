// Package gateway wraps the payment provider's REST API: auth tokens, remote
// orders, payment keys and transaction lookups.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MikeMC777/autoparts-payments/internal/config"
)

const (
	paymentKeyExpiry = 3600
	maxBody          = 1 << 20
)

type Client struct {
	BaseURL       string
	APIKey        string
	IntegrationID string
	IframeURL     string
	IframeID      string
	Currency      string

	HTTP *http.Client
}

func NewClient(cfg config.Gateway) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:        strings.TrimSpace(cfg.APIKey),
		IntegrationID: strings.TrimSpace(cfg.IntegrationID),
		IframeURL:     strings.TrimRight(cfg.IframeURL, "/"),
		IframeID:      strings.TrimSpace(cfg.IframeID),
		Currency:      cfg.Currency,
		HTTP:          &http.Client{Timeout: timeout},
	}
}

// post sends a JSON body and returns the status and (bounded) response body.
func (c *Client) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	res, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(res.Body, maxBody))
	return res.StatusCode, b, nil
}

func ok(status int) bool { return status >= 200 && status < 300 }

// AuthToken exchanges the API key for a short-lived bearer token.
func (c *Client) AuthToken(ctx context.Context) (string, error) {
	if c.APIKey == "" {
		return "", &AuthError{Err: errors.New("PAYMOB_API_KEY is not configured")}
	}
	status, body, err := c.post(ctx, "/auth/tokens", map[string]string{"api_key": c.APIKey})
	if err != nil {
		return "", &AuthError{Err: err}
	}
	if !ok(status) {
		return "", &AuthError{Status: status, Body: string(body)}
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil || strings.TrimSpace(out.Token) == "" {
		return "", &AuthError{Status: status, Body: string(body), Err: errors.New("malformed auth response")}
	}
	return out.Token, nil
}

func (c *Client) CreateOrder(ctx context.Context, token string, in OrderRequest) (*RemoteOrder, error) {
	items := in.Items
	if items == nil {
		items = []Item{}
	}
	payload := map[string]any{
		"auth_token":      token,
		"delivery_needed": false,
		"amount_cents":    in.AmountCents,
		"currency":        c.Currency,
		"items":           items,
	}
	status, body, err := c.post(ctx, "/ecommerce/orders", payload)
	if err != nil {
		return nil, &OrderError{Stage: "order", Err: err}
	}
	if !ok(status) {
		return nil, &OrderError{Stage: "order", Status: status, Body: string(body)}
	}
	var out RemoteOrder
	if err := json.Unmarshal(body, &out); err != nil || out.ID == 0 {
		return nil, &OrderError{Stage: "order", Status: status, Body: string(body), Err: errors.New("response missing order id")}
	}
	return &out, nil
}

func (c *Client) PaymentKey(ctx context.Context, token string, in PaymentKeyRequest) (string, error) {
	integrationID, err := strconv.ParseInt(c.IntegrationID, 10, 64)
	if err != nil {
		return "", &OrderError{Stage: "payment_key", Err: fmt.Errorf("invalid PAYMOB_INTEGRATION_ID %q", c.IntegrationID)}
	}
	payload := map[string]any{
		"auth_token":     token,
		"amount_cents":   in.AmountCents,
		"expiration":     paymentKeyExpiry,
		"order_id":       in.OrderID,
		"billing_data":   in.Billing,
		"currency":       c.Currency,
		"integration_id": integrationID,
	}
	status, body, err := c.post(ctx, "/acceptance/payment_keys", payload)
	if err != nil {
		return "", &OrderError{Stage: "payment_key", Err: err}
	}
	if !ok(status) {
		return "", &OrderError{Stage: "payment_key", Status: status, Body: string(body)}
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil || strings.TrimSpace(out.Token) == "" {
		return "", &OrderError{Stage: "payment_key", Status: status, Body: string(body), Err: errors.New("response missing token")}
	}
	return out.Token, nil
}

// VerifyTransaction asks the provider for the authoritative state of a
// transaction. It fetches its own auth token.
func (c *Client) VerifyTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	id := strings.TrimSpace(transactionID)
	if id == "" {
		return nil, &VerificationError{Err: errors.New("transaction id is required")}
	}
	token, err := c.AuthToken(ctx)
	if err != nil {
		return nil, &VerificationError{TransactionID: id, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/acceptance/transactions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, &VerificationError{TransactionID: id, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return nil, &VerificationError{TransactionID: id, Err: err}
	}
	if !ok(status) {
		return nil, &VerificationError{TransactionID: id, Status: status, Body: string(body)}
	}

	var raw struct {
		ID          json.RawMessage `json:"id"`
		Success     bool            `json:"success"`
		IsRefunded  bool            `json:"is_refunded"`
		Pending     bool            `json:"pending"`
		AmountCents int64           `json:"amount_cents"`
		Order       struct {
			ID int64 `json:"id"`
		} `json:"order"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &VerificationError{TransactionID: id, Status: status, Body: string(body), Err: err}
	}
	txID := strings.Trim(string(raw.ID), `"`)
	if txID == "" || txID == "null" {
		txID = id
	}
	return &Transaction{
		ID:          txID,
		OrderID:     raw.Order.ID,
		Success:     raw.Success,
		IsRefunded:  raw.IsRefunded,
		Pending:     raw.Pending,
		AmountCents: raw.AmountCents,
	}, nil
}

// PaymentURL builds the hosted checkout link for a payment token. No network.
func (c *Client) PaymentURL(token string) string {
	return fmt.Sprintf("%s/%s?payment_token=%s", c.IframeURL, c.IframeID, url.QueryEscape(token))
}

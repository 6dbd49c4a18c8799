// File: internal/infra/adapters/payment/razorpay_gateway.go
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"amc-subscription/internal/domain/ports/adapter"
	"amc-subscription/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

// RazorpayGateway implements adapter.PaymentGateway against the Razorpay REST API.
type RazorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

func NewRazorpayGateway(keyID, keySecret, baseURL string, timeout time.Duration) (*RazorpayGateway, error) {
	if keyID == "" || keySecret == "" {
		return nil, errors.New("razorpay key id/secret empty")
	}
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid razorpay base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RazorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (g *RazorpayGateway) Name() string  { return "razorpay" }
func (g *RazorpayGateway) KeyID() string { return g.keyID }

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder calls POST /v1/orders. Any non-2xx answer is an error.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, req adapter.GatewayOrderRequest) (_ *adapter.GatewayOrder, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOutbound(g.Name(), "create_order", err == nil, time.Since(start)) }()

	if req.AmountMinor <= 0 {
		return nil, errors.New("razorpay: amount must be positive")
	}
	b, err := json.Marshal(razorpayOrderRequest{
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr razorpayError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Description != "" {
			return nil, fmt.Errorf("razorpay create order: status %d: %s: %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Description)
		}
		return nil, fmt.Errorf("razorpay create order: status %d", resp.StatusCode)
	}

	var out razorpayOrder
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("razorpay create order: decode: %w", err)
	}
	if out.ID == "" {
		return nil, errors.New("razorpay create order: empty order id")
	}
	return &adapter.GatewayOrder{
		ID:          out.ID,
		AmountMinor: out.Amount,
		Currency:    out.Currency,
		Receipt:     out.Receipt,
		Status:      out.Status,
	}, nil
}

// VerifySignature checks the checkout signature: hex(HMAC-SHA256(secret, order_id|payment_id)).
func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifyCheckoutSignature(g.keySecret, orderID, paymentID, signature)
}

// CheckoutSignature computes the signature the checkout widget returns.
func CheckoutSignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCheckoutSignature compares in constant time.
func VerifyCheckoutSignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := CheckoutSignature(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

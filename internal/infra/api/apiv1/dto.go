package apiv1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// flexString accepts a JSON string or number. Order form ids arrive as
// either depending on the checkout page.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number")
	}
	*f = flexString(n.String())
	return nil
}

// flexCount accepts a JSON integer or a numeric string. Anything else decodes
// to -1 so validation reports it instead of the JSON decoder.
type flexCount int

func (f *flexCount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		*f = -1
		return nil
	}
	*f = flexCount(n)
	return nil
}

type CreateOrderRequest struct {
	AmcFormID     flexString `json:"amcFormId" validate:"required"`
	SystemCount   flexCount  `json:"systemCount" validate:"gt=0"`
	CustomerName  string     `json:"customerName" validate:"required"`
	CustomerEmail string     `json:"customerEmail" validate:"required"`
	CustomerPhone string     `json:"customerPhone" validate:"required"`
}

type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

type CreateOrderResponse struct {
	Success        bool    `json:"success"`
	OrderID        string  `json:"orderId"`
	Amount         int64   `json:"amount"`
	AmountInPaise  int64   `json:"amountInPaise"`
	Currency       string  `json:"currency"`
	SystemCount    int     `json:"systemCount"`
	PricePerSystem int64   `json:"pricePerSystem"`
	KeyID          string  `json:"keyId"`
	Prefill        Prefill `json:"prefill"`
}

type VerifyPaymentRequest struct {
	RazorpayOrderID   string     `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string     `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string     `json:"razorpay_signature" validate:"required"`
	AmcFormID         flexString `json:"amc_form_id" validate:"required"`
}

type VerifyPaymentResponse struct {
	Success           bool                `json:"success"`
	Verified          bool                `json:"verified"`
	AmcFormID         string              `json:"amcFormId"`
	PaymentID         string              `json:"paymentId"`
	OrderID           string              `json:"orderId"`
	Amount            int64               `json:"amount"`
	SystemCount       int                 `json:"systemCount"`
	SubscriptionStart *openapi_types.Date `json:"subscriptionStart,omitempty"`
	SubscriptionEnd   *openapi_types.Date `json:"subscriptionEnd,omitempty"`
	InvoiceNumber     string              `json:"invoiceNumber,omitempty"`
	AlreadyProcessed  bool                `json:"alreadyProcessed"`
}

type ErrorResponse struct {
	Success  bool   `json:"success"`
	Verified *bool  `json:"verified,omitempty"`
	Error    string `json:"error"`
}

// validationMessage turns the first validator failure into a client message.
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gt":
		return fe.Field() + " must be a positive integer"
	default:
		return fe.Field() + " is invalid"
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Report json names so messages match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

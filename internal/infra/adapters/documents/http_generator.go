// File: internal/infra/adapters/documents/http_generator.go
package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"amc-subscription/internal/domain/model"
	"amc-subscription/internal/domain/ports/adapter"
	"amc-subscription/internal/infra/metrics"
)

var _ adapter.DocumentGenerator = (*HTTPGenerator)(nil)

const tokenTTL = 5 * time.Minute

// ErrPermanent marks a generator answer that retrying cannot fix (4xx other than 408/429).
var ErrPermanent = errors.New("document generator rejected job")

// Credential yields the bearer token for one outbound call.
type Credential interface {
	Token(job *model.DocumentJob) (string, error)
}

// StaticToken is a pre-shared service token.
type StaticToken string

func (s StaticToken) Token(*model.DocumentJob) (string, error) { return string(s), nil }

// JobClaims scope a minted token to a single job.
type JobClaims struct {
	OrderFormID string `json:"amc_form_id"`
	PaymentID   string `json:"payment_id"`
	jwt.RegisteredClaims
}

// SignedToken mints a short-lived HS256 token per call.
type SignedToken struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewSignedToken(secret, issuer string) *SignedToken {
	return &SignedToken{secret: []byte(secret), issuer: issuer, now: time.Now}
}

func (s *SignedToken) Token(job *model.DocumentJob) (string, error) {
	now := s.now()
	claims := JobClaims{
		OrderFormID: job.OrderFormID,
		PaymentID:   job.PaymentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   string(job.Kind),
			ID:        job.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// HTTPGenerator POSTs document jobs to the document/email service.
type HTTPGenerator struct {
	url    string
	cred   Credential
	client *http.Client
}

func NewHTTPGenerator(url string, cred Credential, timeout time.Duration) *HTTPGenerator {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGenerator{url: url, cred: cred, client: &http.Client{Timeout: timeout}}
}

type generateRequest struct {
	JobID         string `json:"job_id"`
	Kind          string `json:"kind"`
	OrderFormID   string `json:"amc_form_id"`
	PaymentID     string `json:"payment_id"`
	InvoiceNumber string `json:"invoice_number,omitempty"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, job *model.DocumentJob) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveOutbound("documents", string(job.Kind), err == nil, time.Since(start)) }()

	b, err := json.Marshal(generateRequest{
		JobID:         job.ID,
		Kind:          string(job.Kind),
		OrderFormID:   job.OrderFormID,
		PaymentID:     job.PaymentID,
		InvoiceNumber: job.InvoiceNumber,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", job.ID)
	if g.cred != nil {
		tok, err := g.cred.Token(job)
		if err != nil {
			return fmt.Errorf("document credential: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("document generator: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("document generator: status %d", resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d", ErrPermanent, resp.StatusCode)
	}
}

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool { return errors.Is(err, ErrPermanent) }

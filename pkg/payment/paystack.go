// Package payment talks to a Paystack-compatible payment provider.
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrVerifyFailed = errors.New("payment verification failed")
)

// Client calls the provider's REST API. BaseURL is overridable for tests.
type Client struct {
	BaseURL    string
	SecretKey  string
	WebhookKey string
	HTTP       *http.Client
}

func NewClient(baseURL, secretKey, webhookKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		SecretKey:  secretKey,
		WebhookKey: webhookKey,
		HTTP:       &http.Client{Timeout: 10 * time.Second},
	}
}

// InitializeResult is the subset of the provider's initialize response the
// checkout flow needs.
type InitializeResult struct {
	AuthorizationURL string
	Reference        string
}

// Transaction is the verified state of a provider transaction.
type Transaction struct {
	Reference string
	Status    string // success, failed, abandoned
	Amount    int64  // smallest currency unit
}

// Initialize starts a provider transaction for the given reference and
// amount. Amount 0 with a card-authorization channel is used for trials.
func (c *Client) Initialize(ctx context.Context, email, reference string, amountCents int64, callbackURL string) (*InitializeResult, error) {
	body := map[string]any{
		"email":        email,
		"amount":       amountCents,
		"reference":    reference,
		"callback_url": callbackURL,
	}
	var parsed struct {
		Status bool `json:"status"`
		Data   struct {
			AuthorizationURL string `json:"authorization_url"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/transaction/initialize", body, &parsed); err != nil {
		return nil, err
	}
	if !parsed.Status {
		return nil, ErrVerifyFailed
	}
	return &InitializeResult{AuthorizationURL: parsed.Data.AuthorizationURL, Reference: parsed.Data.Reference}, nil
}

// Verify fetches the transaction state for a reference.
func (c *Client) Verify(ctx context.Context, reference string) (*Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verify %s: unexpected status %d", reference, res.StatusCode)
	}

	var parsed struct {
		Status bool `json:"status"`
		Data   struct {
			Reference string `json:"reference"`
			Status    string `json:"status"`
			Amount    int64  `json:"amount"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if !parsed.Status {
		return nil, ErrVerifyFailed
	}
	return &Transaction{Reference: parsed.Data.Reference, Status: parsed.Data.Status, Amount: parsed.Data.Amount}, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", path, res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// WebhookEvent is the provider's webhook envelope. Only charge.success is
// acted on; other events are acknowledged and ignored.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
	} `json:"data"`
}

const EventChargeSuccess = "charge.success"

// VerifySignature checks the x-paystack-signature header: HMAC-SHA512 of the
// raw body keyed with the webhook secret. An empty configured key disables
// verification (local development only).
func (c *Client) VerifySignature(body []byte, signature string) bool {
	if c.WebhookKey == "" {
		return true
	}
	mac := hmac.New(sha512.New, []byte(c.WebhookKey))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}

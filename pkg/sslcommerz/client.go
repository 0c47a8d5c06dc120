package sslcommerz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/haatbari/haatbari-backend/pkg/errors"
)

const (
	defaultBaseURL             = "https://sandbox.sslcommerz.com"
	sessionPath                = "/gwprocess/v4/api.php"
	validationPath             = "/validator/api/validationserverAPI.php"
	responseBodyReadLimit      = int64(4096)
	statusSuccess              = "SUCCESS"
	statusValid                = "VALID"
	statusValidated            = "VALIDATED"
	defaultTimeout             = 15 * time.Second
	errStoreCredentialsMissing = "store credentials are required"
)

// Client wraps the SSLCommerz hosted-checkout APIs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	storeID    string
	storePass  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the gateway base URL (sandbox vs live).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout overrides the default HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient builds an SSLCommerz client for the given store credentials.
func NewClient(storeID, storePass string, opts ...Option) (*Client, error) {
	id := strings.TrimSpace(storeID)
	pass := strings.TrimSpace(storePass)
	if id == "" || pass == "" {
		return nil, pkgerrors.New(pkgerrors.CodePaymentUnavailable, errStoreCredentialsMissing)
	}

	client := &Client{
		storeID:    id,
		storePass:  pass,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// SessionRequest describes a hosted-checkout session to initiate.
type SessionRequest struct {
	TransactionID string
	AmountCents   int64
	Currency      string
	SuccessURL    string
	FailURL       string
	CancelURL     string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	CustomerCity  string
}

// Session is the initiated hosted-checkout session.
type Session struct {
	SessionKey  string
	RedirectURL string
}

// ValidationResult is the provider-side view of a completed transaction.
type ValidationResult struct {
	Status        string
	TransactionID string
	AmountCents   int64
	Currency      string
	ValidatedAt   time.Time
}

// Valid reports whether the provider confirmed the transaction.
func (r ValidationResult) Valid() bool {
	return r.Status == statusValid || r.Status == statusValidated
}

// CreateSession initiates a hosted-checkout session and returns the
// redirect URL the shopper must be sent to.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodePaymentUnavailable, "sslcommerz client not configured")
	}
	if strings.TrimSpace(req.TransactionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction ID is required")
	}
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	form := url.Values{}
	form.Set("store_id", c.storeID)
	form.Set("store_passwd", c.storePass)
	form.Set("tran_id", req.TransactionID)
	form.Set("total_amount", formatCents(req.AmountCents))
	form.Set("currency", req.Currency)
	form.Set("success_url", req.SuccessURL)
	form.Set("fail_url", req.FailURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("cus_name", req.CustomerName)
	form.Set("cus_email", req.CustomerEmail)
	form.Set("cus_phone", req.CustomerPhone)
	form.Set("cus_city", req.CustomerCity)
	form.Set("product_category", "general")
	form.Set("product_profile", "general")
	form.Set("shipping_method", "NO")
	form.Set("product_name", req.TransactionID)

	endpoint := strings.TrimRight(c.baseURL, "/") + sessionPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentUnavailable, err, "build session request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentUnavailable, err, "execute session request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentUnavailable,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "session request failed")
	}

	var apiResp struct {
		Status         string `json:"status"`
		FailedReason   string `json:"failedreason"`
		SessionKey     string `json:"sessionkey"`
		GatewayPageURL string `json:"GatewayPageURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentUnavailable, err, "decode session response")
	}

	if !strings.EqualFold(apiResp.Status, statusSuccess) {
		reason := strings.TrimSpace(apiResp.FailedReason)
		if reason == "" {
			reason = "unknown reason"
		}
		return nil, pkgerrors.New(pkgerrors.CodePaymentUnavailable, "session rejected: "+reason)
	}
	if apiResp.SessionKey == "" || apiResp.GatewayPageURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodePaymentUnavailable, "session response missing redirect data")
	}

	return &Session{
		SessionKey:  apiResp.SessionKey,
		RedirectURL: apiResp.GatewayPageURL,
	}, nil
}

// ValidateTransaction re-checks a notified transaction against the
// provider's validation API.
func (c *Client) ValidateTransaction(ctx context.Context, validationID string) (*ValidationResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodePaymentUnavailable, "sslcommerz client not configured")
	}
	trimmed := strings.TrimSpace(validationID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation ID is required")
	}

	query := url.Values{}
	query.Set("val_id", trimmed)
	query.Set("store_id", c.storeID)
	query.Set("store_passwd", c.storePass)
	query.Set("format", "json")

	endpoint := strings.TrimRight(c.baseURL, "/") + validationPath + "?" + query.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentUnavailable, err, "build validation request")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentUnavailable, err, "execute validation request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentUnavailable,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "validation request failed")
	}

	var apiResp struct {
		Status   string `json:"status"`
		TranID   string `json:"tran_id"`
		Amount   string `json:"amount"`
		Currency string `json:"currency_type"`
		TranDate string `json:"tran_date"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentUnavailable, err, "decode validation response")
	}

	cents, err := parseCents(apiResp.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentUnavailable, err, "parse validated amount")
	}

	result := &ValidationResult{
		Status:        strings.ToUpper(strings.TrimSpace(apiResp.Status)),
		TransactionID: apiResp.TranID,
		AmountCents:   cents,
		Currency:      apiResp.Currency,
	}
	if ts, err := time.Parse("2006-01-02 15:04:05", apiResp.TranDate); err == nil {
		result.ValidatedAt = ts
	}

	return result, nil
}

// formatCents renders an integer minor-unit amount as the two-decimal
// string the gateway expects.
func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// parseCents reads a gateway decimal amount back into minor units.
func parseCents(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty amount")
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, err
	}
	return int64(f*100 + 0.5), nil
}

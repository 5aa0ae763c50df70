package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	SandboxBaseURL = "https://api-m.sandbox.paypal.com"
	LiveBaseURL    = "https://api-m.paypal.com"

	maxMemoLength = 2000
)

var ErrNotConfigured = errors.New("paypal is not configured")

type Config struct {
	ClientID     string
	ClientSecret string
	// Env selects the API host: "live" or anything else for sandbox.
	Env string
	// BaseURL overrides Env; used in tests.
	BaseURL string
}

func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if strings.ToLower(c.Env) == "live" {
		return LiveBaseURL
	}
	return SandboxBaseURL
}

// InvoiceRequest describes a single-line invoice.
type InvoiceRequest struct {
	Amount     float64
	Currency   string
	PayerEmail string
	Memo       string
}

type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal %s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	newID   func() string
}

// NewClient returns ErrNotConfigured when credentials are missing. Tokens are
// fetched with client credentials and cached until shortly before expiry.
func NewClient(cfg Config) (*Client, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	base := cfg.baseURL()
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: 15 * time.Second})
	httpClient := cc.Client(ctx)
	httpClient.Timeout = 30 * time.Second

	return &Client{
		base:    base,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		newID:   func() string { return uuid.NewString() },
	}, nil
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type invoiceBody struct {
	Detail struct {
		CurrencyCode string `json:"currency_code"`
		Note         string `json:"note,omitempty"`
		Term         string `json:"term"`
	} `json:"detail"`
	Invoicer          struct{}    `json:"invoicer"`
	PrimaryRecipients []recipient `json:"primary_recipients"`
	Items             []item      `json:"items"`
}

type recipient struct {
	BillingInfo struct {
		EmailAddress string `json:"email_address"`
	} `json:"billing_info"`
}

type item struct {
	Name       string `json:"name"`
	Quantity   string `json:"quantity"`
	UnitAmount money  `json:"unit_amount"`
}

func buildInvoice(req InvoiceRequest) invoiceBody {
	var body invoiceBody
	body.Detail.CurrencyCode = req.Currency
	body.Detail.Note = truncate(req.Memo, maxMemoLength)
	body.Detail.Term = "Due upon receipt"
	body.PrimaryRecipients = []recipient{}
	if req.PayerEmail != "" {
		var r recipient
		r.BillingInfo.EmailAddress = req.PayerEmail
		body.PrimaryRecipients = append(body.PrimaryRecipients, r)
	}
	body.Items = []item{{
		Name:       "Service",
		Quantity:   "1",
		UnitAmount: money{CurrencyCode: req.Currency, Value: fmt.Sprintf("%.2f", req.Amount)},
	}}
	return body
}

// CreateInvoice creates a draft invoice and returns its ID.
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (string, error) {
	if req.Amount <= 0 {
		return "", errors.New("paypal: amount must be positive")
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	req.Currency = strings.ToUpper(req.Currency)

	payload, err := json.Marshal(buildInvoice(req))
	if err != nil {
		return "", err
	}

	var created struct {
		ID   string `json:"id"`
		Href string `json:"href"`
	}
	headers := map[string]string{
		"PayPal-Request-Id": c.newID(),
		"Prefer":            "return=representation",
	}
	if err := c.do(ctx, "create invoice", http.MethodPost, "/v2/invoicing/invoices", payload, headers, &created, http.StatusCreated, http.StatusOK); err != nil {
		return "", err
	}

	id := created.ID
	if id == "" && created.Href != "" {
		id = created.Href[strings.LastIndex(created.Href, "/")+1:]
	}
	if id == "" {
		return "", errors.New("paypal: create invoice returned no id")
	}
	return id, nil
}

// SendInvoice emails a draft invoice to its recipient.
func (c *Client) SendInvoice(ctx context.Context, invoiceID string) error {
	payload := []byte(`{"send_to_recipient":true}`)
	return c.do(ctx, "send invoice", http.MethodPost, "/v2/invoicing/invoices/"+invoiceID+"/send", payload, nil, nil, http.StatusAccepted, http.StatusOK)
}

// CreateAndSend runs CreateInvoice then SendInvoice. The invoice ID is
// returned even when sending fails so it can be retried by hand.
func (c *Client) CreateAndSend(ctx context.Context, req InvoiceRequest) (string, error) {
	id, err := c.CreateInvoice(ctx, req)
	if err != nil {
		return "", err
	}
	if err := c.SendInvoice(ctx, id); err != nil {
		return id, err
	}
	return id, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload []byte, headers map[string]string, out any, accept ...int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paypal %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("paypal %s: read body: %w", op, err)
	}
	if !statusIn(resp.StatusCode, accept) {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(body), 300)}
	}
	if out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("paypal %s: decode: %w", op, err)
		}
	}
	return nil
}

func statusIn(code int, accept []int) bool {
	for _, a := range accept {
		if code == a {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

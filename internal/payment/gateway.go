// Package payment confirms customer payments against the gateway's recent
// transactions and issues payment links.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ireland-samantha/shopkeeper-bot/internal/domain"
)

// ErrNoLink is returned when the gateway accepted a preference but sent no
// checkout URL.
var ErrNoLink = errors.New("payment: no checkout link")

// Gateway is the payment provider.
type Gateway interface {
	// ListRecentPayments returns transactions created within window, most
	// recent first.
	ListRecentPayments(ctx context.Context, window time.Duration) ([]domain.Payment, error)
	// CreatePaymentLink returns a checkout URL charging for item.
	CreatePaymentLink(ctx context.Context, item domain.PaymentItem, payer domain.Payer) (string, error)
}

// HTTPGateway talks to a MercadoPago-compatible REST API.
type HTTPGateway struct {
	baseURL  string
	token    string
	currency string
	client   *http.Client
	now      func() time.Time
}

// NewHTTPGateway creates a gateway client. A nil client gets a 15 second
// timeout.
func NewHTTPGateway(baseURL, token string, client *http.Client) (*HTTPGateway, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("payment: base URL must not be empty")
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("payment: access token must not be empty")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPGateway{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		currency: "ARS",
		client:   client,
		now:      time.Now,
	}, nil
}

type searchResponse struct {
	Results []struct {
		ID                json.Number `json:"id"`
		TransactionAmount float64     `json:"transaction_amount"`
		Status            string      `json:"status"`
		DateCreated       string      `json:"date_created"`
	} `json:"results"`
}

// ListRecentPayments searches payments created in the last window.
func (g *HTTPGateway) ListRecentPayments(ctx context.Context, window time.Duration) ([]domain.Payment, error) {
	now := g.now().UTC()
	q := url.Values{}
	q.Set("sort", "date_created")
	q.Set("criteria", "desc")
	q.Set("range", "date_created")
	q.Set("begin_date", now.Add(-window).Format(time.RFC3339))
	q.Set("end_date", now.Format(time.RFC3339))
	q.Set("limit", "50")

	var resp searchResponse
	if err := g.do(ctx, http.MethodGet, "/v1/payments/search?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("payment: ListRecentPayments: %w", err)
	}

	payments := make([]domain.Payment, 0, len(resp.Results))
	for _, r := range resp.Results {
		ts, err := time.Parse(time.RFC3339, r.DateCreated)
		if err != nil {
			continue
		}
		payments = append(payments, domain.Payment{
			ID:        r.ID.String(),
			Amount:    r.TransactionAmount,
			Status:    r.Status,
			Timestamp: ts,
		})
	}
	return payments, nil
}

type preferenceItem struct {
	ID         string  `json:"id,omitempty"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type preferenceRequest struct {
	Items             []preferenceItem `json:"items"`
	Payer             map[string]any   `json:"payer,omitempty"`
	ExternalReference string           `json:"external_reference,omitempty"`
}

type preferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

// CreatePaymentLink creates a checkout preference and returns its URL.
func (g *HTTPGateway) CreatePaymentLink(ctx context.Context, item domain.PaymentItem, payer domain.Payer) (string, error) {
	qty := item.Quantity
	if qty <= 0 {
		qty = 1
	}
	req := preferenceRequest{
		Items: []preferenceItem{{
			ID:         item.Reference,
			Title:      item.Title,
			Quantity:   qty,
			UnitPrice:  item.Amount,
			CurrencyID: g.currency,
		}},
		ExternalReference: item.Reference,
	}
	if payer.Name != "" {
		req.Payer = map[string]any{"name": payer.Name}
	}

	var resp preferenceResponse
	if err := g.do(ctx, http.MethodPost, "/checkout/preferences", req, &resp); err != nil {
		return "", fmt.Errorf("payment: CreatePaymentLink: %w", err)
	}
	if resp.InitPoint == "" {
		return "", fmt.Errorf("payment: CreatePaymentLink: %w", ErrNoLink)
	}
	return resp.InitPoint, nil
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

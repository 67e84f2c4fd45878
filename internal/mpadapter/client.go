package mpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	billing "club-ledger/internal/billing/domain"
)

// Client is a minimal checkout-preference client for the payment gateway.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient constructs a gateway client.
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("mpadapter: empty base url")
	}
	if token == "" {
		return nil, errors.New("mpadapter: empty access token")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type preferenceItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id,omitempty"`
}

type backURLs struct {
	Success string `json:"success,omitempty"`
	Pending string `json:"pending,omitempty"`
	Failure string `json:"failure,omitempty"`
}

type preferenceRequest struct {
	Items             []preferenceItem `json:"items"`
	ExternalReference string           `json:"external_reference"`
	BackURLs          *backURLs        `json:"back_urls,omitempty"`
	Expires           bool             `json:"expires"`
	ExpirationDateTo  string           `json:"expiration_date_to,omitempty"`
	Metadata          map[string]any   `json:"metadata,omitempty"`
}

type preferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

// CreateLink creates a checkout preference for the charge and returns its
// payment URL.
func (c *Client) CreateLink(ctx context.Context, req billing.LinkRequest) (string, error) {
	if req.Ref.ID <= 0 {
		return "", errors.New("mpadapter: empty charge reference")
	}
	if !req.Amount.IsPositive() {
		return "", fmt.Errorf("mpadapter: non-positive amount %s", req.Amount.StringFixed(2))
	}
	body := preferenceRequest{
		Items: []preferenceItem{{
			ID:         req.Ref.String(),
			Title:      req.Title,
			Quantity:   1,
			UnitPrice:  req.Amount.InexactFloat64(),
			CurrencyID: req.Currency,
		}},
		ExternalReference: externalReference(req),
		Metadata: map[string]any{
			"charge_kind": string(req.Ref.Kind),
			"charge_id":   req.Ref.ID,
			"member_id":   req.MemberID,
		},
	}
	if req.BackURL != "" {
		body.BackURLs = &backURLs{Success: req.BackURL, Pending: req.BackURL, Failure: req.BackURL}
	}
	if !req.ExpiresAt.IsZero() {
		body.Expires = true
		body.ExpirationDateTo = req.ExpiresAt.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}

	var resp preferenceResponse
	if err := c.doJSON(ctx, http.MethodPost, "/checkout/preferences", body, &resp); err != nil {
		return "", err
	}
	if resp.InitPoint == "" {
		return "", fmt.Errorf("mpadapter: preference %s has no init_point", resp.ID)
	}
	return resp.InitPoint, nil
}

func externalReference(req billing.LinkRequest) string {
	if req.ReferenceCode != "" {
		return req.ReferenceCode
	}
	return req.Ref.String()
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mpadapter: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

package mpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	billing "club-ledger/internal/billing/domain"
)

func TestCreateLink_PostsPreference(t *testing.T) {
	var got preferenceRequest
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pref-1","init_point":"https://pay.example/checkout?pref=pref-1"}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/", "secret")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	link, err := client.CreateLink(context.Background(), billing.LinkRequest{
		Ref:           billing.ChargeRef{Kind: billing.KindDue, ID: 7},
		ReferenceCode: "C123",
		MemberID:      3,
		Title:         "Due 2025-03",
		Amount:        decimal.RequireFromString("2500.00"),
		Currency:      "ARS",
		BackURL:       "https://club.example/paid",
		ExpiresAt:     time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	if link != "https://pay.example/checkout?pref=pref-1" {
		t.Fatalf("unexpected link %q", link)
	}
	if auth != "Bearer secret" || path != "/checkout/preferences" {
		t.Fatalf("unexpected request auth=%q path=%q", auth, path)
	}
	if len(got.Items) != 1 || got.Items[0].UnitPrice != 2500 || got.Items[0].Quantity != 1 || got.Items[0].CurrencyID != "ARS" {
		t.Fatalf("unexpected items %+v", got.Items)
	}
	if got.ExternalReference != "C123" {
		t.Fatalf("expected reference code as external reference, got %q", got.ExternalReference)
	}
	if !got.Expires || !strings.HasPrefix(got.ExpirationDateTo, "2025-03-04T09:00:00") {
		t.Fatalf("unexpected expiry %v %q", got.Expires, got.ExpirationDateTo)
	}
	if got.BackURLs == nil || got.BackURLs.Success != "https://club.example/paid" {
		t.Fatalf("unexpected back urls %+v", got.BackURLs)
	}
}

func TestCreateLink_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, "secret")
	_, err := client.CreateLink(context.Background(), billing.LinkRequest{
		Ref:    billing.ChargeRef{Kind: billing.KindExtra, ID: 1},
		Amount: decimal.NewFromInt(10),
	})
	if err == nil || !strings.Contains(err.Error(), "http 502") {
		t.Fatalf("expected http error, got %v", err)
	}
}

func TestCreateLink_MissingInitPoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"pref-2"}`))
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, "secret")
	if _, err := client.CreateLink(context.Background(), billing.LinkRequest{
		Ref:    billing.ChargeRef{Kind: billing.KindDue, ID: 1},
		Amount: decimal.NewFromInt(10),
	}); err == nil {
		t.Fatalf("expected error for missing init_point")
	}
}

func TestCreateLink_RejectsNonPositiveAmount(t *testing.T) {
	client, _ := NewClient("http://unused", "secret")
	if _, err := client.CreateLink(context.Background(), billing.LinkRequest{
		Ref: billing.ChargeRef{Kind: billing.KindDue, ID: 1},
	}); err == nil {
		t.Fatalf("expected error for zero amount")
	}
}

func TestNewClient_Validates(t *testing.T) {
	if _, err := NewClient("", "x"); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if _, err := NewClient("http://x", ""); err == nil {
		t.Fatalf("expected error for empty token")
	}
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var testSecret = []byte("test-secret")

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func mustToken(t *testing.T, subject string, role Role) string {
	t.Helper()
	token, err := IssueJWT(testSecret, subject, role, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	handler := NewMiddleware(testSecret, NewDefaultPolicy(nil, nil), nil).Wrap(okHandler())
	resp := serve(handler, http.MethodGet, "/api/v1/ledger/1", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if resp.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("expected WWW-Authenticate challenge")
	}
}

func TestAuthMiddleware_RoleMatrix(t *testing.T) {
	cases := []struct {
		role   Role
		method string
		path   string
		want   int
	}{
		{RoleViewer, http.MethodGet, "/api/v1/reports/delinquency", http.StatusOK},
		{RoleViewer, http.MethodPost, "/api/v1/fees/simulate", http.StatusForbidden},
		{RoleViewer, http.MethodGet, "/api/v1/ledger/1/statement.pdf", http.StatusForbidden},
		{RoleCashier, http.MethodPost, "/api/v1/fees/simulate", http.StatusOK},
		{RoleCashier, http.MethodPost, "/api/v1/fees/commit", http.StatusForbidden},
		{RoleCashier, http.MethodPatch, "/api/v1/category/2/amount", http.StatusForbidden},
		{RoleCashier, http.MethodPost, "/api/v1/charges/due/4/payments", http.StatusOK},
		{RoleCashier, http.MethodPost, "/api/v1/ledger/payment-links/bulk", http.StatusForbidden},
		{RoleTreasurer, http.MethodPost, "/api/v1/fees/commit", http.StatusOK},
		{RoleTreasurer, http.MethodPatch, "/api/v1/category/2/amount", http.StatusOK},
	}
	handler := NewMiddleware(testSecret, NewDefaultPolicy(nil, nil), nil).Wrap(okHandler())
	for _, tc := range cases {
		resp := serve(handler, tc.method, tc.path, mustToken(t, "user-1", tc.role))
		if resp.Code != tc.want {
			t.Fatalf("%s %s %s: expected %d, got %d", tc.role, tc.method, tc.path, tc.want, resp.Code)
		}
	}
}

func TestAuthMiddleware_IdentityInContext(t *testing.T) {
	var got Identity
	handler := NewMiddleware(testSecret, NewDefaultPolicy(nil, nil), nil).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	resp := serve(handler, http.MethodPost, "/api/v1/charges/due/4/payments", mustToken(t, "cashier-7", RoleCashier))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got.Subject != "cashier-7" || got.Role != RoleCashier {
		t.Fatalf("unexpected identity %+v", got)
	}
}

func TestAuthMiddleware_QueryTokenOnlyForExports(t *testing.T) {
	handler := NewMiddleware(testSecret, NewDefaultPolicy(nil, nil), nil).Wrap(okHandler())
	token := mustToken(t, "cashier-7", RoleCashier)

	if resp := serve(handler, http.MethodGet, "/api/v1/ledger/1/statement.pdf?access_token="+token, ""); resp.Code != http.StatusOK {
		t.Fatalf("export with query token: expected 200, got %d", resp.Code)
	}
	if resp := serve(handler, http.MethodGet, "/api/v1/ledger/1?access_token="+token, ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("json endpoint with query token: expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_LogsForbidden(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := NewMiddleware(testSecret, NewDefaultPolicy(nil, nil), zap.New(core)).Wrap(okHandler())
	serve(handler, http.MethodPost, "/api/v1/fees/commit", mustToken(t, "clerk-2", RoleViewer))

	entries := logs.FilterMessage("request forbidden").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 forbidden log, got %d", len(entries))
	}
	if entries[0].ContextMap()["subject"] != "clerk-2" {
		t.Fatalf("unexpected log fields %v", entries[0].ContextMap())
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	handler := NewMiddleware(testSecret, NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil), nil).Wrap(okHandler())
	if resp := serve(handler, http.MethodGet, "/healthz", ""); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestParseJWT_Rejects(t *testing.T) {
	sign := func(claims Claims) string {
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return signed
	}
	expires := jwt.NewNumericDate(time.Now().Add(time.Hour))
	cases := map[string]string{
		"unknown role":  sign(Claims{Role: "root", RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: expires}}),
		"no subject":    sign(Claims{Role: "viewer", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: expires}}),
		"no expiry":     sign(Claims{Role: "viewer", RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}}),
		"expired":       sign(Claims{Role: "viewer", RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}}),
		"wrong secret":  mustTokenWith(t, []byte("other"), "u", RoleViewer),
		"garbage token": "not-a-jwt",
	}
	for name, token := range cases {
		if _, err := ParseJWT(token, testSecret); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseRole(t *testing.T) {
	if role, ok := ParseRole(" Treasurer "); !ok || role != RoleTreasurer {
		t.Fatalf("expected treasurer, got %q %v", role, ok)
	}
	if !RoleTreasurer.Satisfies(RoleCashier) || RoleViewer.Satisfies(RoleCashier) || Role("").Satisfies(RoleViewer) {
		t.Fatalf("unexpected role ordering")
	}
}

func mustTokenWith(t *testing.T, secret []byte, subject string, role Role) string {
	t.Helper()
	token, err := IssueJWT(secret, subject, role, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

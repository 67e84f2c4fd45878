package interfaces_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"club-ledger/internal/audit"
	billingapp "club-ledger/internal/billing/application"
	billing "club-ledger/internal/billing/domain"
	"club-ledger/internal/billing/infrastructure/memory"
	"club-ledger/internal/billing/infrastructure/refcode"
	"club-ledger/internal/billing/interfaces"
)

type countingGateway struct{ calls atomic.Int64 }

func (g *countingGateway) CreateLink(_ context.Context, req billing.LinkRequest) (string, error) {
	n := g.calls.Add(1)
	return fmt.Sprintf("https://pay.example/%s/%d?n=%d", req.Ref.Kind, req.Ref.ID, n), nil
}

type testServer struct {
	mux     *http.ServeMux
	audit   *audit.MemoryLog
	gateway *countingGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	store.PutPaymentMethod(billing.PaymentMethod{ID: 1, Name: "cash"})
	store.PutCategory(billing.Category{ID: 1, Name: "menor", Applicability: billing.ApplicabilityMinor, Condition: billing.ConditionActive, Price: decimal.RequireFromString("1500"), AgeThreshold: 18})
	store.PutCategory(billing.Category{ID: 2, Name: "mayor", Applicability: billing.ApplicabilityAdult, Condition: billing.ConditionActive, Price: decimal.RequireFromString("2500"), AgeThreshold: 18})
	store.PutMember(billing.Member{
		ID:              1,
		GivenName:       "Daniel",
		Surname:         "Eberhardt",
		DocumentID:      "30111222",
		State:           billing.MemberStateActive,
		BirthDate:       time.Date(1980, time.June, 1, 0, 0, 0, 0, time.UTC),
		CategoryID:      2,
		PaymentMethodID: 1,
	})

	refs, err := refcode.NewIssuer(1)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	cfg := billingapp.DefaultConfig()
	fees, err := billingapp.NewFeeGenerationService(store, store, store, refs, cfg.Policy(), nil, nil)
	if err != nil {
		t.Fatalf("fee service: %v", err)
	}
	ledger, err := billingapp.NewLedgerService(store, store, refs, nil, nil)
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}
	gateway := &countingGateway{}
	links, err := billingapp.NewPaymentLinkService(store, gateway, cfg, nil, nil)
	if err != nil {
		t.Fatalf("link service: %v", err)
	}
	reports, err := billingapp.NewReportService(store, store)
	if err != nil {
		t.Fatalf("report service: %v", err)
	}
	catalog, err := billingapp.NewCatalogService(store, nil)
	if err != nil {
		t.Fatalf("catalog service: %v", err)
	}

	log := audit.NewMemoryLog()
	mux := http.NewServeMux()
	feeHandler, err := interfaces.NewFeeHandler(fees, log)
	if err != nil {
		t.Fatalf("fee handler: %v", err)
	}
	ledgerHandler, err := interfaces.NewLedgerHandler(ledger, links, log)
	if err != nil {
		t.Fatalf("ledger handler: %v", err)
	}
	chargeHandler, err := interfaces.NewChargeHandler(ledger, log)
	if err != nil {
		t.Fatalf("charge handler: %v", err)
	}
	memberHandler, err := interfaces.NewMemberHandler(reports, ledger, log)
	if err != nil {
		t.Fatalf("member handler: %v", err)
	}
	catalogHandler, err := interfaces.NewCatalogHandler(catalog, log)
	if err != nil {
		t.Fatalf("catalog handler: %v", err)
	}
	reportHandler, err := interfaces.NewReportHandler(reports)
	if err != nil {
		t.Fatalf("report handler: %v", err)
	}
	mux.Handle("/api/v1/fees/", feeHandler)
	mux.Handle("/api/v1/ledger", ledgerHandler)
	mux.Handle("/api/v1/ledger/", ledgerHandler)
	mux.Handle("/api/v1/charges/", chargeHandler)
	mux.Handle("/api/v1/members/", memberHandler)
	mux.Handle("/api/v1/categories", catalogHandler)
	mux.Handle("/api/v1/category/", catalogHandler)
	mux.Handle("/api/v1/disciplines", catalogHandler)
	mux.Handle("/api/v1/payment-methods", catalogHandler)
	mux.Handle("/api/v1/reports/", reportHandler)
	return &testServer{mux: mux, audit: log, gateway: gateway}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.mux.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", resp.Body.String(), err)
	}
}

func (s *testServer) hasAudit(action string) bool {
	for _, entry := range s.audit.Entries() {
		if entry.Action == action {
			return true
		}
	}
	return false
}

type batchResponse struct {
	Committed bool           `json:"committed"`
	Counts    map[string]int `json:"counts"`
	Generated int            `json:"generated"`
	Billable  string         `json:"billable"`
}

type ledgerResponse struct {
	Member struct {
		ID int64 `json:"id"`
	} `json:"member"`
	Months []struct {
		Period  string `json:"period"`
		Entries []struct {
			Type     string `json:"type"`
			Kind     string `json:"kind"`
			ChargeID int64  `json:"charge_id"`
		} `json:"entries"`
	} `json:"months"`
	TotalBruto  string `json:"total_bruto"`
	TotalPagado string `json:"total_pagado"`
	TotalSaldo  string `json:"total_saldo"`
}

// commitMarch bills the fixture member and returns the due charge id.
func (s *testServer) commitMarch(t *testing.T) int64 {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/fees/commit", map[string]any{"period": "2025-03"})
	if resp.Code != http.StatusOK {
		t.Fatalf("commit status %d: %s", resp.Code, resp.Body.String())
	}
	var ledger ledgerResponse
	resp = s.do(t, http.MethodGet, "/api/v1/ledger/1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("ledger status %d", resp.Code)
	}
	decode(t, resp, &ledger)
	for _, month := range ledger.Months {
		for _, entry := range month.Entries {
			if entry.Type == billing.EntryCharge && entry.Kind == string(billing.KindDue) {
				return entry.ChargeID
			}
		}
	}
	t.Fatalf("no due charge in ledger")
	return 0
}

func TestFeeHandler_SimulateCommitRuns(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodPost, "/api/v1/fees/simulate", map[string]any{"period": "2025-03"})
	if resp.Code != http.StatusOK {
		t.Fatalf("simulate status %d: %s", resp.Code, resp.Body.String())
	}
	var sim batchResponse
	decode(t, resp, &sim)
	if sim.Committed || sim.Counts["normal"] != 1 || sim.Billable != "2500.00" {
		t.Fatalf("unexpected simulation: %+v", sim)
	}
	if srv.hasAudit("fees.commit") {
		t.Fatalf("simulation must not be audited as a commit")
	}

	resp = srv.do(t, http.MethodPost, "/api/v1/fees/commit", map[string]any{"period": "2025-03"})
	if resp.Code != http.StatusOK {
		t.Fatalf("commit status %d: %s", resp.Code, resp.Body.String())
	}
	var committed batchResponse
	decode(t, resp, &committed)
	if !committed.Committed || committed.Generated != 1 {
		t.Fatalf("unexpected commit: %+v", committed)
	}
	if !srv.hasAudit("fees.commit") {
		t.Fatalf("commit not audited")
	}

	resp = srv.do(t, http.MethodPost, "/api/v1/fees/commit", map[string]any{"period": "2025-03"})
	var again batchResponse
	decode(t, resp, &again)
	if again.Generated != 0 || again.Counts["already-billed"] != 1 {
		t.Fatalf("second commit should bill nothing: %+v", again)
	}

	resp = srv.do(t, http.MethodGet, "/api/v1/fees/runs", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("runs status %d", resp.Code)
	}
	var runs []map[string]any
	decode(t, resp, &runs)
	if len(runs) == 0 {
		t.Fatalf("expected tracked runs")
	}
}

func TestFeeHandler_RejectsBadInput(t *testing.T) {
	srv := newTestServer(t)
	if resp := srv.do(t, http.MethodPost, "/api/v1/fees/simulate", map[string]any{"period": "2025-13"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("bad period: expected 400, got %d", resp.Code)
	}
	scope := map[string]any{"kind": "extra"}
	if resp := srv.do(t, http.MethodPost, "/api/v1/fees/commit", map[string]any{"period": "2025-03", "scope": scope}); resp.Code != http.StatusBadRequest {
		t.Fatalf("extra scope: expected 400, got %d", resp.Code)
	}
	if resp := srv.do(t, http.MethodGet, "/api/v1/fees/commit", nil); resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET commit: expected 405, got %d", resp.Code)
	}
}

func TestLedgerHandler_LedgerAndStatement(t *testing.T) {
	srv := newTestServer(t)
	srv.commitMarch(t)

	var ledger ledgerResponse
	resp := srv.do(t, http.MethodGet, "/api/v1/ledger?document=30111222", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("ledger by document status %d", resp.Code)
	}
	decode(t, resp, &ledger)
	if ledger.Member.ID != 1 || ledger.TotalBruto != "2500.00" || ledger.TotalSaldo != "2500.00" {
		t.Fatalf("unexpected ledger: %+v", ledger)
	}

	if resp := srv.do(t, http.MethodGet, "/api/v1/ledger/99", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("unknown member: expected 404, got %d", resp.Code)
	}

	resp = srv.do(t, http.MethodGet, "/api/v1/ledger/1/statement.pdf", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("pdf status %d", resp.Code)
	}
	if resp.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("pdf content-type mismatch")
	}
	if !bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("pdf body is not a pdf")
	}

	resp = srv.do(t, http.MethodGet, "/api/v1/ledger/1/statement.xlsx", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("xlsx status %d", resp.Code)
	}
	book, err := excelize.OpenReader(bytes.NewReader(resp.Body.Bytes()))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer func() { _ = book.Close() }()
	if doc, _ := book.GetCellValue("statement", "B2"); doc != "30111222" {
		t.Fatalf("expected document in statement!B2, got %q", doc)
	}
}

func TestLedgerHandler_PaymentLinkIsIdempotent(t *testing.T) {
	srv := newTestServer(t)
	chargeID := srv.commitMarch(t)

	type linkResponse struct {
		Link   string `json:"link"`
		Minted bool   `json:"minted"`
	}
	body := map[string]any{"chargeKind": "due", "chargeId": chargeID}
	var first, second linkResponse
	resp := srv.do(t, http.MethodPost, "/api/v1/ledger/payment-link", body)
	if resp.Code != http.StatusOK {
		t.Fatalf("link status %d: %s", resp.Code, resp.Body.String())
	}
	decode(t, resp, &first)
	decode(t, srv.do(t, http.MethodPost, "/api/v1/ledger/payment-link", map[string]any{"kind": "due", "id": chargeID}), &second)

	if !first.Minted || second.Minted || first.Link == "" || first.Link != second.Link {
		t.Fatalf("expected one minted link reused: %+v %+v", first, second)
	}
	if srv.gateway.calls.Load() != 1 {
		t.Fatalf("expected 1 gateway call, got %d", srv.gateway.calls.Load())
	}

	resp = srv.do(t, http.MethodPost, "/api/v1/ledger/payment-links/bulk", map[string]any{"period": "2025-03"})
	if resp.Code != http.StatusOK {
		t.Fatalf("bulk status %d", resp.Code)
	}
	var bulk struct {
		Links  []map[string]any `json:"links"`
		Errors []map[string]any `json:"errors"`
	}
	decode(t, resp, &bulk)
	if len(bulk.Links) != 1 || len(bulk.Errors) != 0 || srv.gateway.calls.Load() != 1 {
		t.Fatalf("bulk should reuse the stored link: %+v", bulk)
	}

	if resp := srv.do(t, http.MethodPost, "/api/v1/ledger/payment-link", map[string]any{"chargeKind": "due", "chargeId": 999}); resp.Code != http.StatusNotFound {
		t.Fatalf("unknown charge: expected 404, got %d", resp.Code)
	}
}

func TestChargeHandler_RecordPayment(t *testing.T) {
	srv := newTestServer(t)
	chargeID := srv.commitMarch(t)
	path := fmt.Sprintf("/api/v1/charges/due/%d/payments", chargeID)

	if resp := srv.do(t, http.MethodPost, path, map[string]any{"amount": "abc"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("bad amount: expected 400, got %d", resp.Code)
	}
	if resp := srv.do(t, http.MethodPost, path, map[string]any{"amount": "5000"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("overpayment: expected 400, got %d", resp.Code)
	}

	resp := srv.do(t, http.MethodPost, path, map[string]any{"amount": "1.000,00", "date": "2025-03-05", "note": "cash"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("payment status %d: %s", resp.Code, resp.Body.String())
	}
	var out struct {
		Charge struct {
			Paid        string `json:"paid"`
			Outstanding string `json:"outstanding"`
			State       string `json:"state"`
		} `json:"charge"`
		Payment struct {
			Amount string `json:"amount"`
			Date   string `json:"date"`
		} `json:"payment"`
	}
	decode(t, resp, &out)
	if out.Charge.Paid != "1000.00" || out.Charge.Outstanding != "1500.00" || out.Payment.Date != "2025-03-05" {
		t.Fatalf("unexpected payment response: %+v", out)
	}

	if resp := srv.do(t, http.MethodPost, path, map[string]any{"amount": 1500}); resp.Code != http.StatusCreated {
		t.Fatalf("numeric amount: expected 201, got %d", resp.Code)
	}
	if resp := srv.do(t, http.MethodPost, path, map[string]any{"amount": "1"}); resp.Code != http.StatusConflict {
		t.Fatalf("paid charge: expected 409, got %d", resp.Code)
	}
	if !srv.hasAudit("charges.payment.record") {
		t.Fatalf("payment not audited")
	}
}

func TestMemberHandler_SearchAndExtras(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodGet, "/api/v1/members/search?query=eberhardt+d&pageSize=10", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("search status %d", resp.Code)
	}
	var page struct {
		Items      []map[string]any `json:"items"`
		TotalItems int              `json:"total_items"`
	}
	decode(t, resp, &page)
	if page.TotalItems != 1 || len(page.Items) != 1 {
		t.Fatalf("unexpected search page: %+v", page)
	}

	resp = srv.do(t, http.MethodPost, "/api/v1/members/1/extras", map[string]any{"period": "2025-03", "description": "Locker", "amount": "300"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("extra status %d: %s", resp.Code, resp.Body.String())
	}
	var charge struct {
		Kind          string `json:"kind"`
		Amount        string `json:"amount"`
		ReferenceCode string `json:"reference_code"`
	}
	decode(t, resp, &charge)
	if charge.Kind != "extra" || charge.Amount != "300.00" || charge.ReferenceCode == "" {
		t.Fatalf("unexpected extra: %+v", charge)
	}

	resp = srv.do(t, http.MethodGet, "/api/v1/charges/lookup?reference="+charge.ReferenceCode, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("lookup status %d", resp.Code)
	}
	if resp := srv.do(t, http.MethodPost, "/api/v1/members/1/extras", map[string]any{"period": "2025-03", "amount": "300"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("missing description: expected 400, got %d", resp.Code)
	}

	resp = srv.do(t, http.MethodGet, "/api/v1/members/1/audit", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("audit trail status %d", resp.Code)
	}
	var trail []struct {
		Action string `json:"action"`
	}
	decode(t, resp, &trail)
	if len(trail) != 1 || trail[0].Action != "members.extra.create" {
		t.Fatalf("unexpected audit trail: %+v", trail)
	}
}

func TestCatalogHandler_UpdatePrice(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodPatch, "/api/v1/category/2/amount", map[string]any{"amount": "2.800,00"})
	if resp.Code != http.StatusOK {
		t.Fatalf("patch status %d: %s", resp.Code, resp.Body.String())
	}
	var category struct {
		Price string `json:"price"`
	}
	decode(t, resp, &category)
	if category.Price != "2800.00" {
		t.Fatalf("expected 2800.00, got %s", category.Price)
	}
	if !srv.hasAudit("category.price.update") {
		t.Fatalf("price update not audited")
	}
	if resp := srv.do(t, http.MethodPatch, "/api/v1/category/2/amount", map[string]any{"amount": "1.50.000"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("ambiguous amount: expected 400, got %d", resp.Code)
	}
	if resp := srv.do(t, http.MethodPatch, "/api/v1/category/99/amount", map[string]any{"amount": "10"}); resp.Code != http.StatusNotFound {
		t.Fatalf("unknown category: expected 404, got %d", resp.Code)
	}

	resp = srv.do(t, http.MethodGet, "/api/v1/categories", nil)
	var categories []map[string]any
	decode(t, resp, &categories)
	if len(categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(categories))
	}
}

func TestReportHandler_DelinquencyAndExports(t *testing.T) {
	srv := newTestServer(t)
	srv.commitMarch(t)

	resp := srv.do(t, http.MethodGet, "/api/v1/reports/delinquency?query=eberhardt&from=2025-01&to=2025-12", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("delinquency status %d: %s", resp.Code, resp.Body.String())
	}
	var page struct {
		Rows   []map[string]any `json:"rows"`
		Totals struct {
			Members     int    `json:"members"`
			Outstanding string `json:"outstanding"`
		} `json:"totals"`
	}
	decode(t, resp, &page)
	if len(page.Rows) != 1 || page.Totals.Members != 1 || page.Totals.Outstanding != "2500.00" {
		t.Fatalf("unexpected delinquency page: %+v", page)
	}

	if resp := srv.do(t, http.MethodGet, "/api/v1/reports/delinquency?from=2025-06&to=2025-01", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("inverted range: expected 400, got %d", resp.Code)
	}
	if resp := srv.do(t, http.MethodGet, "/api/v1/reports/delinquency?state=lost", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("unknown state: expected 400, got %d", resp.Code)
	}

	resp = srv.do(t, http.MethodGet, "/api/v1/reports/delinquency/1", nil)
	var detail struct {
		Charges     []map[string]any `json:"charges"`
		Outstanding string           `json:"outstanding"`
	}
	decode(t, resp, &detail)
	if len(detail.Charges) != 1 || detail.Outstanding != "2500.00" {
		t.Fatalf("unexpected member detail: %+v", detail)
	}

	resp = srv.do(t, http.MethodGet, "/api/v1/reports/consolidated?min_unpaid=1", nil)
	var consolidated struct {
		Rows     []map[string]any `json:"rows"`
		ByMethod []struct {
			PaymentMethod string `json:"payment_method"`
		} `json:"by_payment_method"`
	}
	decode(t, resp, &consolidated)
	if len(consolidated.Rows) != 1 || len(consolidated.ByMethod) != 1 || consolidated.ByMethod[0].PaymentMethod != "cash" {
		t.Fatalf("unexpected consolidated report: %+v", consolidated)
	}

	resp = srv.do(t, http.MethodGet, "/api/v1/reports/delinquency.xlsx", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("xlsx status %d", resp.Code)
	}
	if !strings.Contains(resp.Header().Get("Content-Type"), "spreadsheetml") {
		t.Fatalf("xlsx content-type mismatch")
	}
	book, err := excelize.OpenReader(bytes.NewReader(resp.Body.Bytes()))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer func() { _ = book.Close() }()
	surname, err := book.GetCellValue("members", "B2")
	if err != nil || surname != "Eberhardt" {
		t.Fatalf("expected Eberhardt in members!B2, got %q (%v)", surname, err)
	}
}

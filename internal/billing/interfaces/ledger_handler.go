package interfaces

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"club-ledger/internal/audit"
	billingapp "club-ledger/internal/billing/application"
	billing "club-ledger/internal/billing/domain"
	"club-ledger/internal/observability/metrics"
)

// LedgerHandler serves member statements and payment links.
type LedgerHandler struct {
	ledger      *billingapp.LedgerService
	links       *billingapp.PaymentLinkService
	auditLogger audit.Logger
}

// NewLedgerHandler constructs a LedgerHandler.
func NewLedgerHandler(ledger *billingapp.LedgerService, links *billingapp.PaymentLinkService, auditLogger audit.Logger) (*LedgerHandler, error) {
	if ledger == nil {
		return nil, errors.New("ledger handler: nil ledger service")
	}
	if links == nil {
		return nil, errors.New("ledger handler: nil payment link service")
	}
	return &LedgerHandler{ledger: ledger, links: links, auditLogger: auditLogger}, nil
}

// ServeHTTP routes /api/v1/ledger and /api/v1/ledger/*.
func (h *LedgerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/ledger" || r.URL.Path == "/api/v1/ledger/" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleByDocument(w, r)
		return
	}
	parts := pathParts(r.URL.Path, "/api/v1/ledger/")
	switch {
	case len(parts) == 1 && parts[0] == "payment-link" && r.Method == http.MethodPost:
		h.handlePaymentLink(w, r)
	case len(parts) == 2 && parts[0] == "payment-links" && parts[1] == "bulk" && r.Method == http.MethodPost:
		h.handleBulk(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleLedger(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "statement.pdf" && r.Method == http.MethodGet:
		h.handleStatementPDF(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "statement.xlsx" && r.Method == http.MethodGet:
		h.handleStatementXLSX(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *LedgerHandler) handleLedger(w http.ResponseWriter, r *http.Request, rawID string) {
	memberID, err := parseID(rawID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	ledger, err := h.ledger.Ledger(r.Context(), memberID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerDTO(ledger))
}

func (h *LedgerHandler) handleByDocument(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.ledger.LedgerByDocument(r.Context(), documentQuery(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerDTO(ledger))
}

func (h *LedgerHandler) handleStatementPDF(w http.ResponseWriter, r *http.Request, rawID string) {
	memberID, err := parseID(rawID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	ledger, err := h.ledger.Ledger(r.Context(), memberID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	start := time.Now()
	data, err := BuildLedgerPDF(ledger, time.Now().UTC())
	if err != nil {
		metrics.ObserveExport("pdf", metrics.ResultError, time.Since(start))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport("pdf", metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=statement-%d.pdf", memberID))
	_, _ = w.Write(data)
}

func (h *LedgerHandler) handleStatementXLSX(w http.ResponseWriter, r *http.Request, rawID string) {
	memberID, err := parseID(rawID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	ledger, err := h.ledger.Ledger(r.Context(), memberID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	start := time.Now()
	data, err := BuildLedgerXLSX(ledger)
	if err != nil {
		metrics.ObserveExport("xlsx", metrics.ResultError, time.Since(start))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport("xlsx", metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=statement-%d.xlsx", memberID))
	_, _ = w.Write(data)
}

type paymentLinkRequest struct {
	ChargeKind string `json:"chargeKind"`
	ChargeID   int64  `json:"chargeId"`
	Kind       string `json:"kind"`
	ID         int64  `json:"id"`
}

func (req paymentLinkRequest) ref() (billing.ChargeRef, error) {
	kind := req.ChargeKind
	if kind == "" {
		kind = req.Kind
	}
	id := req.ChargeID
	if id == 0 {
		id = req.ID
	}
	parsed, err := billing.ParseChargeKind(kind)
	if err != nil {
		return billing.ChargeRef{}, err
	}
	return billing.ChargeRef{Kind: parsed, ID: id}, nil
}

func (h *LedgerHandler) handlePaymentLink(w http.ResponseWriter, r *http.Request) {
	var req paymentLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ref, err := req.ref()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	res, err := h.links.Issue(r.Context(), ref)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"link": res.Link, "minted": res.Minted})
	if res.Minted {
		logAudit(r, h.auditLogger, "ledger.payment_link.issue", "charge", ref.String(), 0, map[string]any{
			"kind":      string(ref.Kind),
			"charge_id": ref.ID,
		})
	}
}

type bulkLinkDTO struct {
	Kind     string `json:"kind"`
	ChargeID int64  `json:"charge_id"`
	Link     string `json:"link,omitempty"`
	Minted   bool   `json:"minted,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (h *LedgerHandler) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Period string `json:"period"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	period, err := billing.ParsePeriod(req.Period)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	result, err := h.links.IssueBulk(r.Context(), period)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	links := make([]bulkLinkDTO, 0, len(result.Links))
	minted := 0
	for _, l := range result.Links {
		if l.Minted {
			minted++
		}
		links = append(links, bulkLinkDTO{Kind: string(l.Ref.Kind), ChargeID: l.Ref.ID, Link: l.Link, Minted: l.Minted})
	}
	failures := make([]bulkLinkDTO, 0, len(result.Errors))
	for _, e := range result.Errors {
		failures = append(failures, bulkLinkDTO{Kind: string(e.Ref.Kind), ChargeID: e.Ref.ID, Error: e.Error})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period":  period.String(),
		"message": strconv.Itoa(len(links)) + " links ready, " + strconv.Itoa(len(failures)) + " failed",
		"links":   links,
		"errors":  failures,
	})
	logAudit(r, h.auditLogger, "ledger.payment_link.bulk", "period", period.String(), 0, map[string]any{
		"links":  len(links),
		"minted": minted,
		"failed": len(failures),
	})
}

// documentQuery trims a document filter value.
func documentQuery(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("document"))
}

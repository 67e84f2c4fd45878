package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"club-ledger/internal/audit"
	billingapp "club-ledger/internal/billing/application"
	billing "club-ledger/internal/billing/domain"
	"club-ledger/internal/money"
)

// ChargeHandler serves the point-of-sale lookup and payment recording.
type ChargeHandler struct {
	ledger      *billingapp.LedgerService
	auditLogger audit.Logger
}

// NewChargeHandler constructs a ChargeHandler.
func NewChargeHandler(ledger *billingapp.LedgerService, auditLogger audit.Logger) (*ChargeHandler, error) {
	if ledger == nil {
		return nil, errors.New("charge handler: nil ledger service")
	}
	return &ChargeHandler{ledger: ledger, auditLogger: auditLogger}, nil
}

// ServeHTTP routes /api/v1/charges/*.
func (h *ChargeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/api/v1/charges/")
	switch {
	case len(parts) == 1 && parts[0] == "lookup" && r.Method == http.MethodGet:
		h.handleLookup(w, r)
	case len(parts) == 3 && parts[2] == "payments" && r.Method == http.MethodPost:
		h.handlePayment(w, r, parts[0], parts[1])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ChargeHandler) handleLookup(w http.ResponseWriter, r *http.Request) {
	charge, member, err := h.ledger.LookupCharge(r.Context(), r.URL.Query().Get("reference"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := map[string]any{"charge": toChargeDTO(*charge)}
	if member != nil {
		resp["member"] = toMemberSummaryDTO(member.Summary())
	}
	writeJSON(w, http.StatusOK, resp)
}

type paymentRequest struct {
	Amount json.RawMessage `json:"amount"`
	Date   string          `json:"date"`
	Note   string          `json:"note"`
}

func (h *ChargeHandler) handlePayment(w http.ResponseWriter, r *http.Request, rawKind, rawID string) {
	kind, err := billing.ParseChargeKind(rawKind)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	id, err := parseID(rawID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	var req paymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := billingapp.PaymentInput{Amount: amountText(req.Amount), Note: req.Note}
	if date := strings.TrimSpace(req.Date); date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		in.Date = parsed.UTC()
	}
	ref := billing.ChargeRef{Kind: kind, ID: id}
	charge, payment, err := h.ledger.RecordPayment(r.Context(), ref, in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"charge":  toChargeDTO(charge),
		"payment": toPaymentDTO(payment),
	})
	logAudit(r, h.auditLogger, "charges.payment.record", "charge", ref.String(), charge.MemberID, map[string]any{
		"amount": money.Format(payment.Amount),
		"state":  string(charge.State),
	})
}

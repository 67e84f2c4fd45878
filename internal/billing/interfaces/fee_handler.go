package interfaces

import (
	"errors"
	"net/http"

	"club-ledger/internal/audit"
	billingapp "club-ledger/internal/billing/application"
	billing "club-ledger/internal/billing/domain"
)

// FeeHandler serves fee simulation, commit and run listing.
type FeeHandler struct {
	service     *billingapp.FeeGenerationService
	auditLogger audit.Logger
}

// NewFeeHandler constructs a FeeHandler.
func NewFeeHandler(service *billingapp.FeeGenerationService, auditLogger audit.Logger) (*FeeHandler, error) {
	if service == nil {
		return nil, errors.New("fee handler: nil service")
	}
	return &FeeHandler{service: service, auditLogger: auditLogger}, nil
}

type feeRunRequest struct {
	Period string   `json:"period"`
	Scope  scopeDTO `json:"scope"`
}

// ServeHTTP routes /api/v1/fees/*.
func (h *FeeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/fees/simulate":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSimulate(w, r)
	case "/api/v1/fees/commit":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleCommit(w, r)
	case "/api/v1/fees/runs":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, toRunDTOs(h.service.Runs()))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *FeeHandler) decodeRun(w http.ResponseWriter, r *http.Request) (billing.Period, billing.Scope, bool) {
	var req feeRunRequest
	if !decodeJSON(w, r, &req) {
		return billing.Period{}, billing.Scope{}, false
	}
	period, err := billing.ParsePeriod(req.Period)
	if err != nil {
		respondServiceError(w, err)
		return billing.Period{}, billing.Scope{}, false
	}
	return period, req.Scope.scope(), true
}

func (h *FeeHandler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	period, scope, ok := h.decodeRun(w, r)
	if !ok {
		return
	}
	batch, err := h.service.Simulate(r.Context(), period, scope)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(batch))
}

func (h *FeeHandler) handleCommit(w http.ResponseWriter, r *http.Request) {
	period, scope, ok := h.decodeRun(w, r)
	if !ok {
		return
	}
	batch, err := h.service.Commit(r.Context(), period, scope)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(batch))
	logAudit(r, h.auditLogger, "fees.commit", "fee_run", batch.ID, scope.MemberID, map[string]any{
		"period":        period.String(),
		"kind":          string(batch.Scope.Kind),
		"discipline_id": scope.DisciplineID,
		"generated":     batch.Generated,
		"skipped":       len(batch.Skipped),
	})
}

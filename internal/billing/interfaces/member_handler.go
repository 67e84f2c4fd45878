package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"

	"club-ledger/internal/audit"
	billingapp "club-ledger/internal/billing/application"
	"club-ledger/internal/money"
)

// MemberHandler serves member search, extra charges and the member audit trail.
type MemberHandler struct {
	reports *billingapp.ReportService
	ledger  *billingapp.LedgerService
	audit   audit.Store
}

// NewMemberHandler constructs a MemberHandler.
func NewMemberHandler(reports *billingapp.ReportService, ledger *billingapp.LedgerService, auditStore audit.Store) (*MemberHandler, error) {
	if reports == nil || ledger == nil {
		return nil, errors.New("member handler: nil service")
	}
	if auditStore == nil {
		return nil, errors.New("member handler: nil audit store")
	}
	return &MemberHandler{reports: reports, ledger: ledger, audit: auditStore}, nil
}

// ServeHTTP routes /api/v1/members/*.
func (h *MemberHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/api/v1/members/")
	switch {
	case len(parts) == 1 && parts[0] == "search" && r.Method == http.MethodGet:
		h.handleSearch(w, r)
	case len(parts) == 2 && parts[1] == "extras" && r.Method == http.MethodPost:
		h.handleExtra(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "audit" && r.Method == http.MethodGet:
		h.handleAuditTrail(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *MemberHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	page, err := queryPagination(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	result, err := h.reports.SearchMembers(r.Context(), r.URL.Query().Get("query"), page)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	items := make([]memberSummaryDTO, 0, len(result.Items))
	for _, m := range result.Items {
		items = append(items, toMemberSummaryDTO(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":       items,
		"page":        result.Page,
		"page_size":   result.PageSize,
		"total_items": result.TotalItems,
	})
}

type extraRequest struct {
	Period      string          `json:"period"`
	Description string          `json:"description"`
	Amount      json.RawMessage `json:"amount"`
}

func (h *MemberHandler) handleExtra(w http.ResponseWriter, r *http.Request, rawID string) {
	memberID, err := parseID(rawID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	var req extraRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	charge, err := h.ledger.AddExtra(r.Context(), memberID, billingapp.ExtraInput{
		Period:      req.Period,
		Description: req.Description,
		Amount:      amountText(req.Amount),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChargeDTO(charge))
	logAudit(r, h.audit, "members.extra.create", "charge", charge.Ref().String(), memberID, map[string]any{
		"period": charge.Period.String(),
		"amount": money.Format(charge.Amount),
	})
}

type auditEntryDTO struct {
	ID           string          `json:"id"`
	Actor        string          `json:"actor"`
	Role         string          `json:"role"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	IP           string          `json:"ip,omitempty"`
	CreatedAt    string          `json:"created_at"`
}

func (h *MemberHandler) handleAuditTrail(w http.ResponseWriter, r *http.Request, rawID string) {
	memberID, err := parseID(rawID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	limit, err := queryInt64(r, "limit")
	if err != nil {
		respondServiceError(w, err)
		return
	}
	entries, err := h.audit.ListByMember(r.Context(), memberID, int(limit))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	out := make([]auditEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryDTO{
			ID:           e.ID,
			Actor:        e.Actor,
			Role:         e.Role,
			Action:       e.Action,
			ResourceType: e.ResourceType,
			ResourceID:   e.ResourceID,
			Metadata:     e.Metadata,
			IP:           e.IP,
			CreatedAt:    formatTime(e.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

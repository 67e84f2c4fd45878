package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"club-ledger/internal/audit"
	billingapp "club-ledger/internal/billing/application"
	"club-ledger/internal/money"
)

// CatalogHandler serves reference data and category prices.
type CatalogHandler struct {
	service     *billingapp.CatalogService
	auditLogger audit.Logger
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(service *billingapp.CatalogService, auditLogger audit.Logger) (*CatalogHandler, error) {
	if service == nil {
		return nil, errors.New("catalog handler: nil service")
	}
	return &CatalogHandler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP routes categories, disciplines, payment methods and category price updates.
func (h *CatalogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/categories":
		h.onlyGet(w, r, h.handleCategories)
		return
	case "/api/v1/disciplines":
		h.onlyGet(w, r, h.handleDisciplines)
		return
	case "/api/v1/payment-methods":
		h.onlyGet(w, r, h.handlePaymentMethods)
		return
	}
	parts := pathParts(r.URL.Path, "/api/v1/category/")
	if len(parts) == 2 && parts[1] == "amount" && r.Method == http.MethodPatch {
		h.handleCategoryAmount(w, r, parts[0])
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *CatalogHandler) onlyGet(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	next(w, r)
}

func (h *CatalogHandler) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	out := make([]categoryDTO, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) handleDisciplines(w http.ResponseWriter, r *http.Request) {
	disciplines, err := h.service.Disciplines(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	out := make([]disciplineDTO, 0, len(disciplines))
	for _, d := range disciplines {
		out = append(out, disciplineDTO{ID: d.ID, Name: d.Name, Price: money.Format(d.Price), Active: d.Active})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) handlePaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.service.PaymentMethods(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	out := make([]paymentMethodDTO, 0, len(methods))
	for _, m := range methods {
		out = append(out, paymentMethodDTO{ID: m.ID, Name: m.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) handleCategoryAmount(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	var req struct {
		Amount json.RawMessage `json:"amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	category, previous, err := h.service.UpdateCategoryPrice(r.Context(), id, amountText(req.Amount))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(category))
	logAudit(r, h.auditLogger, "category.price.update", "category", strconv.FormatInt(id, 10), 0, map[string]any{
		"from": money.Format(previous),
		"to":   money.Format(category.Price),
	})
}

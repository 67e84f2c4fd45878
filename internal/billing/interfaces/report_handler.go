package interfaces

import (
	"errors"
	"net/http"
	"strings"
	"time"

	billingapp "club-ledger/internal/billing/application"
	billing "club-ledger/internal/billing/domain"
	"club-ledger/internal/money"
	"club-ledger/internal/observability/metrics"
)

// exportPageSize bounds the rows of one spreadsheet export.
const exportPageSize = billing.MaxPageSize

// ReportHandler serves delinquency reports and their export.
type ReportHandler struct {
	service *billingapp.ReportService
}

// NewReportHandler constructs a ReportHandler.
func NewReportHandler(service *billingapp.ReportService) (*ReportHandler, error) {
	if service == nil {
		return nil, errors.New("report handler: nil service")
	}
	return &ReportHandler{service: service}, nil
}

// ServeHTTP routes /api/v1/reports/*.
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	parts := pathParts(r.URL.Path, "/api/v1/reports/")
	switch {
	case len(parts) == 1 && parts[0] == "delinquency":
		h.handleDelinquency(w, r)
	case len(parts) == 1 && parts[0] == "delinquency.xlsx":
		h.handleDelinquencyXLSX(w, r)
	case len(parts) == 1 && parts[0] == "consolidated":
		h.handleConsolidated(w, r)
	case len(parts) == 2 && parts[0] == "delinquency":
		h.handleMemberDetail(w, r, parts[1])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func delinquencyFilter(r *http.Request) (billing.DelinquencyFilter, error) {
	q := r.URL.Query()
	filter := billing.DelinquencyFilter{Query: q.Get("query")}
	var err error
	if filter.From, err = queryPeriod(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = queryPeriod(r, "to"); err != nil {
		return filter, err
	}
	if state := strings.TrimSpace(q.Get("state")); state != "" {
		if filter.State, err = billing.ParseChargeState(state); err != nil {
			return filter, err
		}
	}
	if kind := strings.TrimSpace(q.Get("kind")); kind != "" {
		if filter.Kind, err = billing.ParseChargeKind(kind); err != nil {
			return filter, err
		}
	}
	if filter.PaymentMethodID, err = queryInt64(r, "payment_method_id"); err != nil {
		return filter, err
	}
	if filter.Pagination, err = queryPagination(r); err != nil {
		return filter, err
	}
	return filter, nil
}

func (h *ReportHandler) handleDelinquency(w http.ResponseWriter, r *http.Request) {
	filter, err := delinquencyFilter(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	page, err := h.service.Delinquency(r.Context(), filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDelinquencyPageDTO(page))
}

func (h *ReportHandler) handleMemberDetail(w http.ResponseWriter, r *http.Request, rawID string) {
	memberID, err := parseID(rawID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	filter, err := delinquencyFilter(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	detail, err := h.service.MemberDetail(r.Context(), memberID, filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"member":      toMemberSummaryDTO(detail.Member),
		"charges":     toChargeDTOs(detail.Charges),
		"outstanding": money.Format(detail.Outstanding),
	})
}

func (h *ReportHandler) handleConsolidated(w http.ResponseWriter, r *http.Request) {
	var filter billing.ConsolidatedFilter
	minUnpaid, err := queryInt64(r, "min_unpaid")
	if err != nil {
		respondServiceError(w, err)
		return
	}
	filter.MinUnpaid = int(minUnpaid)
	if filter.From, err = queryPeriod(r, "from"); err != nil {
		respondServiceError(w, err)
		return
	}
	if filter.PaymentMethodID, err = queryInt64(r, "payment_method_id"); err != nil {
		respondServiceError(w, err)
		return
	}
	report, err := h.service.Consolidated(r.Context(), filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConsolidatedDTO(report))
}

// handleDelinquencyXLSX exports every matching row, walking the pages.
func (h *ReportHandler) handleDelinquencyXLSX(w http.ResponseWriter, r *http.Request) {
	filter, err := delinquencyFilter(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	filter.Page, filter.PageSize = 1, exportPageSize

	start := time.Now()
	var rows []billing.DelinquencyRow
	var totals billing.ReportTotals
	for {
		page, err := h.service.Delinquency(r.Context(), filter)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		totals = page.Totals
		rows = append(rows, page.Rows...)
		if len(page.Rows) < filter.PageSize || len(rows) >= totals.Members {
			break
		}
		filter.Page++
	}

	data, err := BuildDelinquencyXLSX(rows, totals, filter)
	if err != nil {
		metrics.ObserveExport("xlsx", metrics.ResultError, time.Since(start))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport("xlsx", metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=delinquency.xlsx")
	_, _ = w.Write(data)
}

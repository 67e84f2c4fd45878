// Package interfaces exposes the billing services over HTTP.
package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"club-ledger/internal/audit"
	"club-ledger/internal/auth"
	billing "club-ledger/internal/billing/domain"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

// respondServiceError maps billing error kinds to status codes.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, billing.ErrValidation), errors.Is(err, billing.ErrPrecision):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, billing.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, billing.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, billing.ErrUpstream):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func logAudit(r *http.Request, logger audit.Logger, action, resourceType, resourceID string, memberID int64, meta map[string]any) {
	if logger == nil {
		return
	}
	entry := audit.RequestEntry(r, action, resourceType, resourceID, memberID, meta)
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		entry.Actor = id.Subject
		entry.Role = string(id.Role)
	}
	_ = logger.Log(r.Context(), entry)
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, billing.Validationf("invalid id %q", value)
	}
	return id, nil
}

func queryInt64(r *http.Request, key string) (int64, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return 0, billing.Validationf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func queryPeriod(r *http.Request, key string) (billing.Period, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return billing.Period{}, nil
	}
	return billing.ParsePeriod(value)
}

func queryPagination(r *http.Request) (billing.Pagination, error) {
	page, err := queryInt64(r, "page")
	if err != nil {
		return billing.Pagination{}, err
	}
	size, err := queryInt64(r, "pageSize")
	if err != nil {
		return billing.Pagination{}, err
	}
	if size == 0 {
		if size, err = queryInt64(r, "page_size"); err != nil {
			return billing.Pagination{}, err
		}
	}
	return billing.Pagination{Page: int(page), PageSize: int(size)}.Normalize(), nil
}

// pathParts splits the path below prefix.
func pathParts(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

// amountText accepts an amount sent as a JSON string or number.
func amountText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return strings.TrimSpace(string(raw))
}

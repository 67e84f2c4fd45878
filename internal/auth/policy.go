package auth

import (
	"net/http"
	"strings"
)

// Policy maps requests to the role they need.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds the billing policy with unauthenticated exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt reports whether r skips authentication.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// AllowsQueryToken reports whether r is a file download that may carry its
// token as access_token, so exports open from a plain link.
func (p Policy) AllowsQueryToken(r *http.Request) bool {
	return r != nil && r.Method == http.MethodGet && isExport(r.URL.Path)
}

func isExport(path string) bool {
	if path == "/api/v1/reports/delinquency.xlsx" {
		return true
	}
	return strings.HasPrefix(path, "/api/v1/ledger/") &&
		(strings.HasSuffix(path, "/statement.pdf") || strings.HasSuffix(path, "/statement.xlsx"))
}

// RequiredRole resolves the role r needs; ok is false outside the API.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case path == "/api/v1/fees/commit":
		return RoleTreasurer, true
	case path == "/api/v1/fees/simulate":
		return RoleCashier, true
	case path == "/api/v1/ledger/payment-links/bulk":
		return RoleTreasurer, true
	case path == "/api/v1/ledger/payment-link":
		return RoleCashier, true
	case isExport(path):
		return RoleCashier, true
	case strings.HasPrefix(path, "/api/v1/members/") && strings.HasSuffix(path, "/audit"):
		return RoleTreasurer, true
	case strings.HasPrefix(path, "/api/v1/category/"):
		if method == http.MethodGet {
			return RoleViewer, true
		}
		return RoleTreasurer, true
	}

	if strings.HasPrefix(path, "/api/") {
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return RoleViewer, true
		}
		return RoleCashier, true
	}
	return "", false
}

package audit

import (
	"encoding/json"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// RequestEntry starts an entry for a change made through r. The caller fills
// in the actor and role it authenticated.
func RequestEntry(r *http.Request, action, resourceType, resourceID string, memberID int64, meta map[string]any) Entry {
	entry := Entry{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		MemberID:     memberID,
	}
	if len(meta) > 0 {
		if payload, err := json.Marshal(meta); err == nil {
			entry.Metadata = payload
		}
	}
	if r != nil {
		entry.IP = ClientIP(r)
		entry.UserAgent = r.UserAgent()
	}
	return entry
}

// ClientIP returns the first valid address among X-Forwarded-For, X-Real-IP
// and RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if addr, ok := parseAddr(first); ok {
			return addr
		}
	}
	if addr, ok := parseAddr(r.Header.Get("X-Real-IP")); ok {
		return addr
	}
	if addr, ok := parseAddr(r.RemoteAddr); ok {
		return addr
	}
	return r.RemoteAddr
}

func parseAddr(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	if host, _, err := net.SplitHostPort(value); err == nil {
		value = host
	}
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}

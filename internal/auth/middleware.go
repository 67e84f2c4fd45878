package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Middleware authenticates bearer tokens and enforces the role policy.
type Middleware struct {
	secret []byte
	policy Policy
	logger *zap.Logger
}

// NewMiddleware constructs an auth middleware. A nil logger disables denial logs.
func NewMiddleware(secret []byte, policy Policy, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{secret: secret, policy: policy, logger: logger}
}

// Wrap applies authentication and role checks to next.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, ok := m.policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		id, err := ParseJWT(m.token(r), m.secret)
		if err != nil {
			m.logger.Info("request unauthenticated", zap.String("path", r.URL.Path), zap.Error(err))
			w.Header().Set("WWW-Authenticate", `Bearer realm="club-ledger"`)
			deny(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !id.Role.Satisfies(required) {
			m.logger.Info("request forbidden",
				zap.String("path", r.URL.Path),
				zap.String("subject", id.Subject),
				zap.String("role", string(id.Role)),
				zap.String("required", string(required)),
			)
			deny(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// token reads the bearer header, or access_token on download links the
// policy allows it for.
func (m *Middleware) token(r *http.Request) string {
	if token := bearer(r.Header.Get("Authorization")); token != "" {
		return token
	}
	if m.policy.AllowsQueryToken(r) {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func bearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func deny(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

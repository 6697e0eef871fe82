package authapi

import (
	"net"
	"net/http"
	"strings"
)

// audit writes one request-scoped audit line. Identifiers never appear raw; the
// authenticator logs their fingerprints.
func (h *Handler) audit(r *http.Request, action string, attrs ...any) {
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}
	base := []any{"ip", ipString(clientIP(r, h.cfg.TrustProxy))}
	if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
		base = append(base, "user_agent", ua)
	}
	if caller, ok := CallerFromContext(r.Context()); ok {
		base = append(base, "caller_id", caller)
	}
	if rid := r.Header.Get("X-Request-ID"); rid != "" {
		base = append(base, "request_id", rid)
	}
	h.log.Info(action, append(base, attrs...)...)
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

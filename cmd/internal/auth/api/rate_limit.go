package authapi

import (
	"net"
	"net/http"
	"strconv"
	"time"
)

// allowLoginFrom consumes one login attempt for ip. Requests without a usable address
// are not throttled here; the per-identifier throttle still applies.
func (h *Handler) allowLoginFrom(ip net.IP) bool {
	if ip == nil || h.ipThrottle == nil {
		return true
	}
	return h.ipThrottle.Allow("ip:" + ip.String())
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}

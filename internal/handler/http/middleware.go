package http

import (
	"net"
	"net/http"
	"strings"

	"github.com/utafrali/catalog-search/internal/domain"
)

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be application/json"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// actorFromRequest identifies who is searching. The API gateway injects
// X-User-ID after JWT validation; anonymous storefront clients send a
// X-Session-ID instead. Both may be absent, which makes history a no-op.
func actorFromRequest(r *http.Request) domain.Actor {
	return domain.Actor{
		UserID:    r.Header.Get("X-User-ID"),
		SessionID: r.Header.Get("X-Session-ID"),
	}
}

// clientMetaFromRequest captures request metadata stored with search history.
func clientMetaFromRequest(r *http.Request) domain.ClientMeta {
	ip := r.Header.Get("X-Forwarded-For")
	if idx := strings.IndexByte(ip, ','); idx >= 0 {
		ip = strings.TrimSpace(ip[:idx])
	}
	if ip == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}
	return domain.ClientMeta{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}

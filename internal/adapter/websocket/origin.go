package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

type originPolicy struct {
	any       bool
	origins   map[string]struct{}
	localhost bool
}

// NewCheckOrigin returns the upgrader's origin check. Requests without an Origin header
// (non-browser clients) pass, as does any configured origin; "*" admits everything.
// isDevelopment additionally admits localhost on any port.
func NewCheckOrigin(allowed []string, isDevelopment bool) func(r *http.Request) bool {
	p := originPolicy{origins: make(map[string]struct{}, len(allowed)), localhost: isDevelopment}
	for _, o := range allowed {
		if strings.TrimSpace(o) == "*" {
			p.any = true
			continue
		}
		if key, ok := originKey(o); ok {
			p.origins[key] = struct{}{}
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if p.allows(origin) {
			return true
		}
		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func (p originPolicy) allows(origin string) bool {
	if origin == "" || p.any {
		return true
	}
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || u.Host == "" {
		return false
	}
	if _, ok := p.origins[strings.ToLower(u.Scheme+"://"+u.Host)]; ok {
		return true
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return p.localhost
	}
	return false
}

// originKey reduces an origin or URL to lowercase scheme://host[:port].
func originKey(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), true
}

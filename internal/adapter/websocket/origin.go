package websocket

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// NewCheckOrigin builds the upgrader's origin policy. Clients that send no
// Origin header (telemetry scripts, curl) pass, as does the ground station's
// own origin. allowLoopback additionally admits browsers on this machine.
func NewCheckOrigin(appURL string, allowLoopback bool) func(r *http.Request) bool {
	own, hasOwn := normalizeOrigin(appURL)

	return func(r *http.Request) bool {
		raw := r.Header.Get("Origin")
		if raw == "" {
			return true
		}

		origin, ok := normalizeOrigin(raw)
		switch {
		case !ok:
		case hasOwn && origin == own:
			return true
		case allowLoopback && isLoopback(origin):
			return true
		}

		slog.Warn("WebSocket origin rejected", "origin", raw, "remote_addr", r.RemoteAddr)
		return false
	}
}

// normalizeOrigin reduces a URL to lowercase scheme://host[:port].
func normalizeOrigin(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), true
}

func isLoopback(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

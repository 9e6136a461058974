package client

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultRealtimePath is where the socket server listens when only the REST
// base URL is configured.
const DefaultRealtimePath = "/socket"

// ResolveRealtimeURL determines the websocket URL for the realtime channel.
//
// An explicit override wins when set; it may omit the scheme, in which case
// ws:// is assumed. Otherwise the URL is derived from the REST base URL:
//   - http:// becomes ws:// and https:// becomes wss://
//   - the API path (e.g. /api) is dropped and DefaultRealtimePath is used
func ResolveRealtimeURL(apiBaseURL, override string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		if !strings.Contains(override, "://") {
			override = "ws://" + override
		}
		u, err := url.Parse(override)
		if err != nil {
			return "", fmt.Errorf("invalid realtime url %q: %w", override, err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return "", fmt.Errorf("unsupported realtime scheme %q", u.Scheme)
		}
		if u.Host == "" {
			return "", fmt.Errorf("missing host in realtime url %q", override)
		}
		return u.String(), nil
	}

	base := strings.TrimSpace(apiBaseURL)
	if base == "" {
		return "", fmt.Errorf("api base url is empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid api base url %q: %w", base, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in api base url %q", base)
	}

	u.Scheme = applyRealtimeScheme(u.Scheme)
	u.Path = DefaultRealtimePath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// applyRealtimeScheme maps an HTTP scheme onto its websocket counterpart
func applyRealtimeScheme(scheme string) string {
	switch strings.ToLower(scheme) {
	case "https", "wss":
		return "wss"
	default:
		return "ws"
	}
}

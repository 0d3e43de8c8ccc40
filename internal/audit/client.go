package audit

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller address: first X-Forwarded-For hop, then X-Real-IP, then the socket peer.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Client describes the caller's user agent.
type Client struct {
	Browser    string
	OS         string
	DeviceType string
	Device     string
}

type uaRule struct {
	token string
	name  string
}

// Order matters: Edge and Opera carry "Chrome", Chrome carries "Safari".
var browserRules = []uaRule{
	{"Edg/", "Edge"},
	{"OPR/", "Opera"},
	{"Opera", "Opera"},
	{"SamsungBrowser", "Samsung Internet"},
	{"Firefox/", "Firefox"},
	{"Chrome/", "Chrome"},
	{"CriOS", "Chrome"},
	{"Safari/", "Safari"},
	{"PostmanRuntime", "Postman"},
	{"curl/", "curl"},
}

var osRules = []uaRule{
	{"Windows", "Windows"},
	{"iPhone", "iOS"},
	{"iPad", "iOS"},
	{"Android", "Android"},
	{"Mac OS X", "macOS"},
	{"CrOS", "ChromeOS"},
	{"Linux", "Linux"},
}

var deviceRules = []uaRule{
	{"iPhone", "iPhone"},
	{"iPad", "iPad"},
	{"Pixel", "Pixel"},
	{"SM-", "Samsung"},
	{"Macintosh", "Mac"},
}

// ParseUserAgent classifies a User-Agent header by substring matching.
func ParseUserAgent(ua string) Client {
	c := Client{
		Browser:    match(ua, browserRules, "Unknown"),
		OS:         match(ua, osRules, "Unknown"),
		DeviceType: "desktop",
		Device:     match(ua, deviceRules, ""),
	}
	switch {
	case ua == "":
		c.DeviceType = "unknown"
	case strings.Contains(ua, "iPad") || strings.Contains(ua, "Tablet"):
		c.DeviceType = "tablet"
	case strings.Contains(ua, "Mobi") || strings.Contains(ua, "iPhone") || strings.Contains(ua, "Android"):
		c.DeviceType = "mobile"
	case c.Browser == "Postman" || c.Browser == "curl":
		c.DeviceType = "api-client"
	}
	return c
}

func match(ua string, rules []uaRule, fallback string) string {
	for _, r := range rules {
		if strings.Contains(ua, r.token) {
			return r.name
		}
	}
	return fallback
}

package auth

import (
	"net/http"
	"strings"
)

const (
	// CookieToken carries the church app credential.
	CookieToken = "token"
	// CookieAdminToken carries the admin portal credential.
	CookieAdminToken = "admin_token"
	// HeaderClientApp declares which client application sent the request.
	HeaderClientApp = "X-Client-App"
	// ClientAdminPortal is the HeaderClientApp value of the admin portal.
	ClientAdminPortal = "admin-portal"
)

// IsAdminPortal reports whether the caller declares itself the admin portal.
func IsAdminPortal(r *http.Request) bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Get(HeaderClientApp)), ClientAdminPortal)
}

// ExtractCredential returns the bearer credential for r. The admin portal prefers its own cookie so a
// browser holding both sessions never authenticates as the church-app principal.
func ExtractCredential(r *http.Request) string {
	if IsAdminPortal(r) {
		if tok := cookieValue(r, CookieAdminToken); tok != "" {
			return tok
		}
	}
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return cookieValue(r, CookieToken)
}

func cookieValue(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}

package proxy

import (
	"net/http"
	"time"
)

const (
	// CookieName is the bearer credential cookie issued to the browser.
	CookieName = "auth_token"

	// credentialTTL is the fixed validity window of the rotated credential.
	credentialTTL = 15 * 24 * time.Hour
)

// CredentialStore reads and writes the rotating bearer token as an HttpOnly
// cookie. The token itself is opaque: issued by the upstream authority and
// never inspected here. The cookie is scoped per caller session and mutated
// only by that caller's own request, so no locking is needed.
type CredentialStore struct {
	// Secure marks issued cookies Secure. Enable whenever the deployment
	// terminates TLS in front of the gateway.
	Secure bool
}

// Read returns the caller's bearer token, if any.
func (cs CredentialStore) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Issue sets or refreshes the credential cookie with the fixed 15-day window.
func (cs CredentialStore) Issue(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(credentialTTL / time.Second),
		HttpOnly: true,
		Secure:   cs.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear destroys the credential cookie, used when the caller logs out.
func (cs CredentialStore) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cs.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

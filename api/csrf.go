package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/jmcleod/lockbox/internal/uuid"
)

const (
	csrfCookieName = "lockbox_csrf"
	csrfHeaderName = "X-CSRF-Token"
)

// CSRFMiddleware enforces double-submit cookie CSRF protection on mutating
// requests that carry a session cookie. Requests without one cannot reach
// session state, so unlock and recovery stay reachable from a fresh client.
func (a *API) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := r.Cookie(sessionCookieName); err != nil {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusForbidden, "missing CSRF token")
			return
		}
		header := r.Header.Get(csrfHeaderName)
		if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
			writeError(w, http.StatusForbidden, "invalid CSRF token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeCSRFCookie issues a fresh CSRF token. The cookie is readable from
// script so a browser client can echo it back in X-CSRF-Token.
func writeCSRFCookie(w http.ResponseWriter, r *http.Request) string {
	token := uuid.New()
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteStrictMode,
	})
	return token
}

func clearCSRFCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    "",
		Path:     "/",
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

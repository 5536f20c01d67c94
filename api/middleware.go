package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jmcleod/lockbox/vault"
)

type contextKey int

const sessionKey contextKey = iota

const sessionCookieName = "lockbox_session"

// SessionMiddleware resolves the session cookie to a live vault session and
// stores it on the request context. A missing, expired or idle-locked
// session is reported as 423 Locked.
func (a *API) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vs, ok := a.sessionFromCookie(r)
		if !ok {
			clearSessionCookie(w, r)
			writeError(w, http.StatusLocked, "vault is locked")
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, vs)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) sessionFromCookie(r *http.Request) (*vault.Session, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	vs, ok := a.sessions.get(cookie.Value)
	if !ok || vs.State() == vault.Locked {
		return nil, false
	}
	return vs, true
}

func writeSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteStrictMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func sessionFromContext(ctx context.Context) *vault.Session {
	vs, _ := ctx.Value(sessionKey).(*vault.Session)
	return vs
}

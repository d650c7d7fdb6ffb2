package auth

import (
	"errors"
	"net/http"

	"fintrack/internal/log"
)

// Resolve attaches the session identity, if any, to the request context.
// Invalid or expired cookies are cleared.
func (m *Manager) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.FromRequest(r)
		switch {
		case err == nil:
			r = r.WithContext(WithIdentity(r.Context(), id))
		case !errors.Is(err, ErrNoSession):
			log.FromContext(r.Context()).WithComponent(log.ComponentAuth).
				Debug("Discarding session cookie", log.FieldError, err.Error())
			m.ClearCookie(w)
		}
		next.ServeHTTP(w, r)
	})
}

// Require sends anonymous requests to loginPath. HTMX requests get an
// HX-Redirect so the whole page navigates instead of swapping a fragment.
func Require(loginPath string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IdentityFrom(r.Context()).IsZero() {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("HX-Request") == "true" {
			w.Header().Set("HX-Redirect", loginPath)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
	})
}

// GuestOnly redirects signed-in users away from the login and registration
// pages.
func GuestOnly(home string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFrom(r.Context()).IsZero() {
			next.ServeHTTP(w, r)
			return
		}
		http.Redirect(w, r, home, http.StatusSeeOther)
	})
}

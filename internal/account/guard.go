// Package account serves the destinations a session lands on after login.
package account

import (
	"net/http"
	"net/url"

	"github.com/edunirix/portal/internal/session"
)

// RequireUser redirects requests without an authenticated Store to the login
// page, carrying the original path in the next parameter.
func RequireUser(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store := session.StoreFromContext(r.Context())
			if store == nil || !store.Authenticated() {
				target := loginPath
				if r.Method == http.MethodGet {
					target += "?next=" + url.QueryEscape(r.URL.RequestURI())
				}
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package filter

import (
	"net/http"

	"github.com/three-plus-three/casauth/session"
)

// SessionLogoutHandler invalidates the local session of the caller and
// redirects to redirectURL. The CAS session is left alone.
func SessionLogoutHandler(sessions *session.Manager, redirectURL string) http.Handler {
	if redirectURL == "" {
		redirectURL = "/"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, ok := sessions.Peek(r); ok {
			if err := s.Invalidate(); err != nil && err != session.ErrNoSession {
				http.Error(w, "logout fail, "+err.Error(), http.StatusInternalServerError)
				return
			}
		}
		sessions.ClearCookie(w)
		http.Redirect(w, r, redirectURL, http.StatusFound)
	})
}

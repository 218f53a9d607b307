// Package echo_cas plugs the CAS filter into an echo application.
package echo_cas

import (
	"github.com/labstack/echo"

	"github.com/three-plus-three/casauth/filter"
	"github.com/three-plus-three/casauth/session"
)

// CAS returns the CAS authentication middleware.
//
//	e := echo.New()
//	e.Use(echo_cas.CAS(auth))
func CAS(auth *filter.Authentication) echo.MiddlewareFunc {
	return echo.WrapMiddleware(auth.Middleware)
}

// ResourceID returns the resource id of the current user, or the default
// resource id for anonymous users.
func ResourceID(c echo.Context) int64 {
	return filter.CurrentResourceID(c.Request())
}

// LogoutRequestHandler answers the logout notifications of the CAS server on
// a dedicated route.
func LogoutRequestHandler(auth *filter.Authentication) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth.HandleLogoutRequest(c.Response(), c.Request())
		return nil
	}
}

// SessionLogout invalidates the local session and redirects to redirectURL.
func SessionLogout(sessions *session.Manager, redirectURL string) echo.HandlerFunc {
	return echo.WrapHandler(filter.SessionLogoutHandler(sessions, redirectURL))
}

package pubcompose

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (a *App) handleLoginPage(c echo.Context) error {
	if a.Config.AccessPassword == "" || IsAuthenticated(c) {
		return c.Redirect(http.StatusSeeOther, "/compose/")
	}
	return Render(c, a.Views.Login(a.site(), false, CsrfToken(c)))
}

func (a *App) handleLogin(c echo.Context) error {
	if a.Config.AccessPassword == "" {
		return c.Redirect(http.StatusSeeOther, "/compose/")
	}
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AccessPassword)) == 1 {
		a.loginLimiter.Forget(ip)
		if err := setAuthenticated(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/compose/")
	}
	a.loginLimiter.Record(ip)
	a.Logger.Warn("failed login", "ip", ip)
	return RenderStatus(c, http.StatusUnauthorized, a.Views.Login(a.site(), true, CsrfToken(c)))
}

// handleLogout ends the session and discards its draft.
func (a *App) handleLogout(c echo.Context) error {
	if id := sessionDraftID(c); id != "" {
		a.Drafts.Discard(id)
	}
	if err := clearSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/login/")
}

package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/spigell/jobfit/internal/session"
)

const (
	cookieName = "jobfit_session"
	sessionKey = "session"
)

// sessionMiddleware attaches the browser's session, creating one (and its
// cookie) when the cookie is missing or the session has expired.
func (s *Server) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var id string
		if cookie, err := c.Cookie(cookieName); err == nil {
			id = cookie.Value
		}

		sess, created := s.store.GetOrCreate(id)
		if created {
			c.SetCookie(&http.Cookie{
				Name:     cookieName,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		c.Set(sessionKey, sess)
		return next(c)
	}
}

func currentSession(c echo.Context) *session.Session {
	return c.Get(sessionKey).(*session.Session)
}

package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/memoria-app/memoria/internal/apperror"
)

// Context keys for storing session data in the Echo context. Other plugins
// access them through the exported getters below.
const (
	contextKeySession = "auth_session"
	contextKeyUserID  = "auth_user_id"
)

// sessionCookieName is the cookie carrying the session token for browsers.
const sessionCookieName = "memoria_session"

// RequireAuth returns middleware that validates the session and injects the
// session data into the request context. The token comes from the session
// cookie or from an Authorization bearer header; missing or invalid
// sessions get a 401.
func RequireAuth(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := getSessionToken(c)
			if token == "" {
				return apperror.NewUnauthorized("authentication required")
			}

			session, err := service.ValidateSession(c.Request().Context(), token)
			if err != nil {
				clearSessionCookie(c)
				return apperror.NewUnauthorized("session expired or invalid")
			}

			c.Set(contextKeySession, session)
			c.Set(contextKeyUserID, session.UserID)
			return next(c)
		}
	}
}

// GetSession retrieves the authenticated session from the Echo context.
// Returns an error if RequireAuth was not applied to the route.
func GetSession(c echo.Context) (*Session, error) {
	session, ok := c.Get(contextKeySession).(*Session)
	if !ok {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	return session, nil
}

// GetUserID retrieves the authenticated user's ID from the Echo context.
// Returns an error if RequireAuth was not applied to the route.
func GetUserID(c echo.Context) (string, error) {
	id, ok := c.Get(contextKeyUserID).(string)
	if !ok || id == "" {
		return "", apperror.NewUnauthorized("authentication required")
	}
	return id, nil
}

// getSessionToken extracts the session token from the cookie or, failing
// that, from an Authorization bearer header.
func getSessionToken(c echo.Context) string {
	if cookie, err := c.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// setSessionCookie attaches the session token as an HTTP-only cookie.
func setSessionCookie(c echo.Context, token string, maxAge int, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie expires the session cookie.
func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey     contextKey = "user_id"
	UserRoleKey   contextKey = "user_role"
	UserNameKey   contextKey = "user_name"
	SessionIDKey  contextKey = "session_id"
	SessionExpKey contextKey = "session_exp"
)

// tokenFromRequest reads a bearer token from the Authorization header or,
// for websocket upgrades where browsers cannot set headers, from the
// access_token query parameter.
func tokenFromRequest(c echo.Context) (string, *echo.HTTPError) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if tok := c.QueryParam("access_token"); tok != "" && c.Request().Header.Get("Upgrade") != "" {
			return tok, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// SessionMiddleware authenticates requests with a session token issued by
// issuer. revocations may be nil.
func SessionMiddleware(issuer *Issuer, revocations *Revocations) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if IsPublicPath(c.Path()) {
				return next(c)
			}
			tokenStr, httpErr := tokenFromRequest(c)
			if httpErr != nil {
				return httpErr
			}
			claims, err := issuer.Parse(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if revocations != nil && revocations.IsRevoked(claims) {
				return echo.NewHTTPError(http.StatusUnauthorized, "session revoked")
			}

			// Read by the clinic middleware.
			c.Set("jwt_clinic_id", claims.ClinicID)

			var exp time.Time
			if claims.ExpiresAt != nil {
				exp = claims.ExpiresAt.Time
			}
			ctx := WithIdentity(c.Request().Context(), claims.Subject, claims.Role, claims.Name)
			ctx = context.WithValue(ctx, SessionIDKey, claims.ID)
			ctx = context.WithValue(ctx, SessionExpKey, exp)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// DevAuthMiddleware lets unauthenticated requests through as an admin
// "dev-user". Requests that do carry a token are still verified by session.
func DevAuthMiddleware(session echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		verified := session(next)
		return func(c echo.Context) error {
			if IsPublicPath(c.Path()) {
				return next(c)
			}
			if c.Request().Header.Get("Authorization") != "" || c.QueryParam("access_token") != "" {
				return verified(c)
			}
			ctx := WithIdentity(c.Request().Context(), "dev-user", RoleAdmin, "Developer")
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// WithIdentity stores an authenticated identity on ctx.
func WithIdentity(ctx context.Context, userID, role, name string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UserRoleKey, role)
	ctx = context.WithValue(ctx, UserNameKey, name)
	return ctx
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

func NameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(UserNameKey).(string)
	return name
}

// SessionFromContext returns the session id and expiry of the current
// request, if it was authenticated with a token.
func SessionFromContext(ctx context.Context) (string, time.Time) {
	id, _ := ctx.Value(SessionIDKey).(string)
	exp, _ := ctx.Value(SessionExpKey).(time.Time)
	return id, exp
}

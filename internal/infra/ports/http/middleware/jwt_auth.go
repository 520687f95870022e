package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/hirelink/intercall/internal/domain"
	"github.com/hirelink/intercall/internal/infra/appctx"
)

type claims struct {
	Username  string `json:"username"`
	AvatarRef string `json:"avatar_ref,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthMiddleware validates tokens minted by the surrounding platform and
// puts the caller's identity on the request context. This service never
// issues tokens itself.
func JWTAuthMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFromRequest(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing or malformed jwt"})
			}

			token, err := jwt.ParseWithClaims(raw, &claims{}, func(token *jwt.Token) (any, error) {
				return []byte(secret), nil
			})
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or expired jwt"})
			}

			cl, ok := token.Claims.(*claims)
			if !ok || !token.Valid || cl.Subject == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or expired jwt"})
			}

			identity := domain.Identity{
				UserID:    cl.Subject,
				Username:  cl.Username,
				AvatarRef: cl.AvatarRef,
			}

			c.SetRequest(
				c.Request().WithContext(
					appctx.WithIdentity(c.Request().Context(), identity),
				),
			)

			return next(c)
		}
	}
}

func tokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie("jwt"); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	// Browsers cannot set headers on a websocket upgrade.
	return c.QueryParam("token")
}

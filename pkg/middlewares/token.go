package middlewares

import (
	t_token "realtime_chat/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	//QueryToken token in query name
	QueryToken = "auth"

	//CookieToken token in cookie name
	CookieToken = "auth_token"

	//TokenEmail raw login email from the token, c.Locals name
	TokenEmail = "email"
	//TokenName display name from the token, c.Locals name
	TokenName = "name"
)

// JWTMiddleware validates the JWT from the auth query or the auth_token cookie
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Query(QueryToken)

		// 查詢參數沒有 token 時改從 Cookie 取
		if tokenStr == "" {
			tokenStr = c.Cookies(CookieToken)
		}

		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing token",
			})
		}

		claims, err := t_token.ParseJWT(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(TokenEmail, claims.Email)
		c.Locals(TokenName, claims.Name)

		return c.Next()
	}
}

package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/RafaelMassi/CorridaPass/internal/pkg/session"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the session into a UserContext local so
// controllers never touch the session store directly.
func UserContextMiddleware(c *fiber.Ctx) error {
	ctx := usercontext.UserContext{}

	if v := session.GetSessionValue(c, usercontext.KeyUserID); v != nil {
		switch id := v.(type) {
		case uint:
			ctx.UserID = id
		case int:
			ctx.UserID = uint(id)
		case uint64:
			ctx.UserID = uint(id)
		case float64:
			ctx.UserID = uint(id)
		}
	}
	if v, ok := session.GetSessionValue(c, usercontext.KeyUsername).(string); ok {
		ctx.Username = v
	}
	if v, ok := session.GetSessionValue(c, usercontext.KeyRole).(string); ok {
		ctx.Role = v
	}
	ctx.IsLoggedIn = ctx.UserID != 0

	c.Locals(usercontext.ContextLocal, ctx)
	return c.Next()
}

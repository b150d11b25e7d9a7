package usercontext

// Shared Locals/session keys used across controllers and middlewares
const (
	KeyUserID    = "user_id"
	KeyUsername  = "username"
	KeyRole      = "role"
	KeyLoggedIn  = "logged_in"
	ContextLocal = "USER_CONTEXT"
)

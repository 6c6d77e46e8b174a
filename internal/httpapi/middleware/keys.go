package middleware

const (
	UserIDKey    = "user_id"
	RoleKey      = "role"
	RequestIDKey = "request_id"
)

package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// LocalsUserKey is the fiber locals key holding the authenticated *User
var LocalsUserKey = "current_user"

var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// UserFromLocals returns the user stored by the protected route middleware
func UserFromLocals(c *fiber.Ctx) (*User, bool) {
	raw, ok := c.Locals(LocalsUserKey).(*User)
	return raw, ok && raw != nil
}

func setRequestUser(c *fiber.Ctx, user *User) {
	c.Locals(LocalsUserKey, user)
	c.SetUserContext(WithContext(c.UserContext(), user))
}

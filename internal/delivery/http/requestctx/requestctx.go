package requestctx

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	userIDKey   = "userID"
	usernameKey = "username"
)

func SetCaller(c echo.Context, userID uuid.UUID, username string) {
	c.Set(userIDKey, userID)
	c.Set(usernameKey, username)
}

// UserID returns the authenticated caller, or uuid.Nil for anonymous requests.
func UserID(c echo.Context) uuid.UUID {
	if id, ok := c.Get(userIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func Username(c echo.Context) string {
	name, _ := c.Get(usernameKey).(string)
	return name
}

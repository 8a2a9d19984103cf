package errorhandler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"blog/pkg/customerrors"

	"github.com/labstack/echo/v4"
)

// Status maps an error onto its HTTP status and the message shown to the client.
func Status(err error) (int, string) {
	var ve *customerrors.ValidationError
	var he *echo.HTTPError

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.Is(err, customerrors.ErrInvalidToken):
		return http.StatusBadRequest, customerrors.ErrInvalidToken.Error()
	case errors.Is(err, customerrors.ErrInvalidCredentials):
		return http.StatusUnauthorized, customerrors.ErrInvalidCredentials.Error()
	case errors.Is(err, customerrors.ErrUnauthorized):
		return http.StatusUnauthorized, "Authentication credentials were not provided or are invalid."
	case errors.Is(err, customerrors.ErrForbidden):
		return http.StatusForbidden, customerrors.ErrForbidden.Error()
	case errors.Is(err, customerrors.ErrNotFound):
		return http.StatusNotFound, "Not found."
	case errors.Is(err, customerrors.ErrTooManyRequests):
		return http.StatusTooManyRequests, "Request was throttled."
	case errors.As(err, &he):
		if msg, ok := he.Message.(string); ok {
			return he.Code, msg
		}
		return he.Code, fmt.Sprint(he.Message)
	}
	return http.StatusInternalServerError, "Internal Server Error"
}

func HandleError(err error, c echo.Context) {
	code, message := Status(err)

	if code == http.StatusInternalServerError {
		slog.Error("Internal Server Error",
			"err", err,
			"path", c.Path(),
			"method", c.Request().Method,
		)
	} else {
		slog.Warn("Handled error",
			"err", err,
			"path", c.Path(),
			"method", c.Request().Method,
		)
	}

	if c.Response().Committed {
		return
	}

	body := map[string]string{"error": message}
	var ve *customerrors.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		body["field"] = ve.Field
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, body)
	}
	if err != nil {
		slog.Error("write error response", "err", err)
	}
}

package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrorHandler renders errors as {"error": "..."}. Only *echo.HTTPError
// messages reach the client; anything else becomes a generic 500.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := http.StatusText(http.StatusInternalServerError)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			switch m := he.Message.(type) {
			case string:
				msg = m
			case nil:
				msg = http.StatusText(code)
			default:
				msg = fmt.Sprint(m)
			}
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, ErrorResponse{Error: msg})
		}
		if werr != nil {
			rid, _ := c.Get(RequestIDKey).(string)
			logger.Error().Err(werr).Str("request_id", rid).Msg("failed to write error response")
		}
	}
}

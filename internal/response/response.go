package response

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Envelope is the wire shape of every response: {code, message, data}.
// Success carries message "success", failures carry "fail" with the
// error text (or joined validation errors) in data.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func OK(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Envelope{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

// HTTPErrorHandler converts every error escaping a handler into the
// failure envelope. echo.HTTPError messages pass through; anything else
// is reduced to a generic 500.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	data := "internal server error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		switch m := he.Message.(type) {
		case string:
			data = m
		case []string:
			data = strings.Join(m, ",")
		case error:
			data = m.Error()
		}
	}

	_ = c.JSON(code, Envelope{
		Code:    code,
		Message: "fail",
		Data:    data,
	})
}

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Body is the JSON error envelope.
type Body struct {
	Error Detail `json:"error"`
}

// Detail carries the code and message of a rendered error.
type Detail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPErrorHandler renders handler errors. Domain errors keep their code and
// message; echo.HTTPError keeps its status; everything else is logged in full
// and rendered as a generic internal error.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err)
		rid, _ := c.Get("request_id").(string)

		switch {
		case status >= http.StatusInternalServerError && status != http.StatusBadGateway:
			logger.Error().
				Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("unhandled error")
		case status == http.StatusBadGateway:
			logger.Error().
				Err(err).
				Str("request_id", rid).
				Str("code", body.Error.Code).
				Msg("external service failure")
		default:
			logger.Warn().
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Str("code", body.Error.Code).
				Str("message", body.Error.Message).
				Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

func render(err error) (int, Body) {
	if ae, ok := From(err); ok && ae.Kind != KindInternal {
		return ae.Kind.HTTPStatus(), Body{Error: Detail{Code: ae.Code, Message: ae.Message}}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, Body{Error: Detail{Code: codeFromStatus(he.Code), Message: msg}}
	}

	return http.StatusInternalServerError, Body{Error: Detail{
		Code:    "internal_error",
		Message: "Internal server error",
	}}
}

func codeFromStatus(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}

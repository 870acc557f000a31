package echoapi

import (
	"net/http"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/assignment"
	"github.com/trezcool/gradebook/core/attendance"
	"github.com/trezcool/gradebook/core/course"
	"github.com/trezcool/gradebook/core/grade"
	"github.com/trezcool/gradebook/core/user"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound  = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// errorPage is the data of the HTML error page.
type errorPage struct {
	Code    int
	Title   string
	Message string
	Fields  map[string]string
}

func isAPIRequest(ctx echo.Context) bool {
	p := ctx.Request().URL.Path
	return strings.HasPrefix(p, "/api/") || p == "/health"
}

func isNotFound(err error) bool {
	switch err {
	case user.ErrNotFound, course.ErrNotFound, assignment.ErrNotFound, grade.ErrNotFound:
		return true
	}
	return false
}

func isUnauthenticated(herr *echo.HTTPError) bool {
	return herr == middleware.ErrJWTMissing || herr.Code == http.StatusUnauthorized
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// API requests get JSON, pages get the error page (or a redirect to the login page).
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code    int
			message string
			fields  map[string]string
		)

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if isUnauthenticated(origErr) {
				if !isAPIRequest(ctx) {
					clearSessionCookie(ctx)
					if rErr := ctx.Redirect(http.StatusFound, "/login"); rErr != nil {
						ctx.Echo().Logger.Error(rErr)
					}
					return
				}
				code = http.StatusUnauthorized
				message = errUnauthorized.Message.(string)
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if m, ok := origErr.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(code)
			}
		case validator.ValidationErrors:
			fields = make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fields[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
		case *core.ValidationError:
			if len(origErr.Fields) > 0 {
				fields = origErr.FieldMap()
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *core.ArgumentError:
			code = http.StatusBadRequest
			message = origErr.Error()
		case *attendance.UpstreamError:
			code = http.StatusBadGateway
			message = attendance.ErrUpstreamUnavailable.Error()
			logger.Warn(message, err, sessionUser(ctx))
		default:
			if isNotFound(origErr) {
				code = http.StatusNotFound
				message = origErr.Error()
				break
			}
			if origErr == user.ErrEmailExists {
				code = http.StatusBadRequest
				fields = map[string]string{"email": origErr.Error()}
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			message = http.StatusText(http.StatusInternalServerError)
			logger.Error(message, errors.Wrap(err, message), sessionUser(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && fields == nil {
			message = err.Error()
		}

		// Send response
		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead { // Issue #608
			err = ctx.NoContent(code)
		} else if isAPIRequest(ctx) {
			if fields != nil {
				err = ctx.JSON(code, fields)
			} else {
				err = ctx.JSON(code, echo.Map{"error": message})
			}
		} else {
			err = ctx.Render(code, "error", errorPage{
				Code:    code,
				Title:   http.StatusText(code),
				Message: message,
				Fields:  fields,
			})
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

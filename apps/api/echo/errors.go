package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/denis-rodionov/school-trainer-sub000/core"
	"github.com/denis-rodionov/school-trainer-sub000/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// newAppHTTPErrorHandler returns an echo.HTTPErrorHandler that maps our
// error types to responses. Validation failures become 400s with per-field
// messages; anything unrecognized is a 500, logged with the acting user.
// signalShutdown is called when a core.shutdown error surfaces.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch cause := errors.Cause(err).(type) {
		case *echo.HTTPError:
			code, message = unwrapHTTPError(cause)
		case validator.ValidationErrors:
			code, message = http.StatusBadRequest, translateFieldErrors(cause)
		case *core.ValidationError:
			code, message = http.StatusBadRequest, validationErrorBody(cause)
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = claims.Username
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// unwrapHTTPError surfaces a wrapped HTTPError and upgrades a missing JWT
// from echo's default 400 to a 401.
func unwrapHTTPError(herr *echo.HTTPError) (int, interface{}) {
	if herr == middleware.ErrJWTMissing {
		return http.StatusUnauthorized, herr.Message
	}
	if inner, ok := herr.Internal.(*echo.HTTPError); ok {
		herr = inner
	}
	return herr.Code, herr.Message
}

func translateFieldErrors(vErrs validator.ValidationErrors) map[string]string {
	fldErrs := make(map[string]string, len(vErrs))
	for _, vErr := range vErrs {
		fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
	}
	return fldErrs
}

func validationErrorBody(vErr *core.ValidationError) interface{} {
	if vErr.Fields == nil {
		return vErr.Error()
	}
	fldErrs := make(map[string]string, len(vErr.Fields))
	for _, fErr := range vErr.Fields {
		fldErrs[fErr.Field] = fErr.Error
	}
	return fldErrs
}

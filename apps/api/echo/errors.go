package echoapi

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/jamii/core"
	"github.com/trezcool/jamii/core/user"
)

const (
	codeInvalidParam = "rest_invalid_param"
	codeNoRoute      = "rest_no_route"
)

var errNoRoute = core.NewRESTError(codeNoRoute, "No route was found matching the URL and request method.", http.StatusNotFound)

type (
	// restErrorBody is the error document of the REST namespace.
	restErrorBody struct {
		Code    string        `json:"code"`
		Message string        `json:"message"`
		Data    restErrorData `json:"data"`
	}

	restErrorData struct {
		Status int               `json:"status"`
		Params map[string]string `json:"params,omitempty"`
	}
)

func invalidParamsBody(fldErrs map[string]string) restErrorBody {
	names := make([]string, 0, len(fldErrs))
	for name := range fldErrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return restErrorBody{
		Code:    codeInvalidParam,
		Message: fmt.Sprintf("Invalid parameter(s): %s", strings.Join(names, ", ")),
		Data:    restErrorData{Status: http.StatusBadRequest, Params: fldErrs},
	}
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *core.RESTError:
			code = origErr.Status
			message = restErrorBody{Code: origErr.Code, Message: origErr.Message, Data: restErrorData{Status: origErr.Status}}
			if origErr.Err != nil && code >= http.StatusInternalServerError {
				logger.Error(origErr.Error(), errors.Wrap(err, origErr.Code), contextLogUser(ctx))
			}
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			if origErr.Code == http.StatusNotFound || origErr.Code == http.StatusMethodNotAllowed {
				code = errNoRoute.Status
				message = restErrorBody{Code: errNoRoute.Code, Message: errNoRoute.Message, Data: restErrorData{Status: code}}
				break
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = invalidParamsBody(core.TranslateErrors(origErr, translator))
		case *core.ValidationError:
			code = http.StatusBadRequest
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = invalidParamsBody(fldErrs)
			} else {
				message = origErr.Error()
			}
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			logger.Error(msg, errors.Wrap(err, msg), contextLogUser(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code >= http.StatusInternalServerError {
			if _, ok := message.(restErrorBody); !ok {
				message = err.Error()
			}
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
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

// contextLogUser identifies the caller in logs without hitting the database.
func contextLogUser(ctx echo.Context) user.User {
	if usr, ok := ctx.Get(contextUserKey).(*user.User); ok && usr != nil {
		return *usr
	}
	var usr user.User
	if claims, err := getContextClaims(ctx); err == nil {
		usr.ID = claims.UserID()
		usr.Username = claims.Username
		usr.Email = claims.Email
	}
	return usr
}

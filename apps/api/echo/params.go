package echoapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/trezcool/jamii/core"
)

// Contexts
const (
	contextView  = "view"
	contextEmbed = "embed"
	contextEdit  = "edit"
)

var (
	allContexts = []string{contextView, contextEmbed, contextEdit}

	errInvalidJSON = core.NewRESTError("rest_invalid_json", "Invalid JSON body passed.", http.StatusBadRequest)
)

// requestParams merges the query, path and body parameters of a request.
// Body values win over path values, which win over query values.
type requestParams struct {
	values map[string]interface{}
	errs   []core.FieldError
}

func readParams(ctx echo.Context) (*requestParams, error) {
	p := &requestParams{values: make(map[string]interface{})}
	for name, vals := range ctx.QueryParams() {
		if len(vals) > 0 {
			p.values[name] = vals[0]
		}
	}
	for i, name := range ctx.ParamNames() {
		p.values[name] = ctx.ParamValues()[i]
	}

	req := ctx.Request()
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return p, nil
	}

	ctype := req.Header.Get(echo.HeaderContentType)
	switch {
	case strings.HasPrefix(ctype, echo.MIMEApplicationJSON):
		body := make(map[string]interface{})
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil && err != io.EOF {
			return nil, errInvalidJSON
		}
		for name, val := range body {
			p.values[name] = val
		}
	case strings.HasPrefix(ctype, echo.MIMEApplicationForm), strings.HasPrefix(ctype, echo.MIMEMultipartForm):
		form, err := ctx.FormParams()
		if err != nil {
			return nil, errors.Wrap(err, "parsing form")
		}
		for name, vals := range form {
			if len(vals) > 0 {
				p.values[name] = vals[0]
			}
		}
	}
	return p, nil
}

func (p *requestParams) fail(name, format string, args ...interface{}) {
	p.errs = append(p.errs, core.FieldError{Field: name, Error: fmt.Sprintf(format, args...)})
}

// lookup returns the raw value of name; empty strings count as missing.
func (p *requestParams) lookup(name string) (interface{}, bool) {
	v, ok := p.values[name]
	if !ok || v == nil {
		return nil, false
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}

func (p *requestParams) Has(name string) bool {
	_, ok := p.lookup(name)
	return ok
}

func (p *requestParams) String(name, def string) string {
	v, ok := p.lookup(name)
	if !ok {
		return def
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		p.fail(name, "%s is not of type string.", name)
		return def
	}
	return core.CleanString(s)
}

// Int reads an integer; the optional bounds are the minimum and maximum allowed values.
func (p *requestParams) Int(name string, def int, bounds ...int) int {
	v, ok := p.lookup(name)
	if !ok {
		return def
	}
	if s, isStr := v.(string); isStr {
		v = strings.TrimSpace(s)
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		p.fail(name, "%s is not of type integer.", name)
		return def
	}

	switch len(bounds) {
	case 0:
	case 1:
		if i < bounds[0] {
			p.fail(name, "%s must be greater than or equal to %d", name, bounds[0])
			return def
		}
	default:
		if i < bounds[0] || i > bounds[1] {
			p.fail(name, "%s must be between %d (inclusive) and %d (inclusive)", name, bounds[0], bounds[1])
			return def
		}
	}
	return i
}

func (p *requestParams) Bool(name string, def bool) bool {
	v, ok := p.lookup(name)
	if !ok {
		return def
	}
	if f, isFloat := v.(float64); isFloat { // JSON numbers
		v = f != 0
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		p.fail(name, "%s is not of type boolean.", name)
		return def
	}
	return b
}

func (p *requestParams) Enum(name, def string, allowed ...string) string {
	s := p.String(name, def)
	for _, a := range allowed {
		if s == a {
			return s
		}
	}
	p.fail(name, "%s is not one of %s.", name, strings.Join(allowed, ", "))
	return def
}

func (p *requestParams) Context(def string) string {
	return p.Enum("context", def, allContexts...)
}

// Err returns the validation error collecting every invalid parameter, if any.
func (p *requestParams) Err() error {
	if len(p.errs) == 0 {
		return nil
	}
	return core.NewValidationError(errors.New("invalid parameters"), p.errs...)
}

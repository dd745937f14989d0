package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const jsonSchemaDraft = "http://json-schema.org/draft-04/schema#"

type (
	// argument describes a request parameter.
	argument struct {
		Description string      `json:"description,omitempty"`
		Type        string      `json:"type"`
		Default     interface{} `json:"default,omitempty"`
		Enum        []string    `json:"enum,omitempty"`
		Minimum     interface{} `json:"minimum,omitempty"`
		Maximum     interface{} `json:"maximum,omitempty"`
		Required    bool        `json:"required,omitempty"`
	}

	// property describes a field of a resource.
	property struct {
		Context     []string `json:"context"`
		Description string   `json:"description"`
		Type        string   `json:"type"`
		Format      string   `json:"format,omitempty"`
		ReadOnly    bool     `json:"readonly,omitempty"`
	}

	itemSchema struct {
		Schema     string              `json:"$schema"`
		Title      string              `json:"title"`
		Type       string              `json:"type"`
		Properties map[string]property `json:"properties"`
	}

	endpoint struct {
		Methods []string            `json:"methods"`
		Args    map[string]argument `json:"args"`
	}

	// routeOptions is the self-description of a route, served on OPTIONS.
	routeOptions struct {
		Namespace string      `json:"namespace"`
		Methods   []string    `json:"methods"`
		Endpoints []endpoint  `json:"endpoints"`
		Schema    *itemSchema `json:"schema"`
	}
)

func contextArg() argument {
	return argument{
		Description: "Scope under which the request is made; determines fields present in response.",
		Type:        "string",
		Default:     contextView,
		Enum:        allContexts,
	}
}

func newRouteOptions(namespace string, schema *itemSchema, endpoints ...endpoint) routeOptions {
	methods := make([]string, 0, len(endpoints))
	for _, ep := range endpoints {
		methods = append(methods, ep.Methods...)
	}
	return routeOptions{
		Namespace: namespace,
		Methods:   methods,
		Endpoints: endpoints,
		Schema:    schema,
	}
}

func optionsHandler(opts routeOptions) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctx.Response().Header().Set(echo.HeaderAllow, strings.Join(opts.Methods, ", "))
		return ctx.JSON(http.StatusOK, opts)
	}
}

// filter drops the fields of data that are not shown in context. Fields unknown to the schema are kept.
func (s *itemSchema) filter(data map[string]interface{}, context string) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for name, val := range data {
		prop, ok := s.Properties[name]
		if ok && !contains(prop.Context, context) {
			continue
		}
		out[name] = val
	}
	return out
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

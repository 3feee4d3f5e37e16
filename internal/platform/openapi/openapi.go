// Package openapi serves an OpenAPI 3.0 description generated from the
// routes registered on the echo instance.
package openapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// Generator builds the spec from e.Routes() at request time, so it always
// matches what the server actually serves.
type Generator struct {
	e       *echo.Echo
	title   string
	version string
	baseURL string
}

func NewGenerator(e *echo.Echo, title, version, baseURL string) *Generator {
	return &Generator{e: e, title: title, version: version, baseURL: baseURL}
}

// hiddenPrefixes are paths left out of the spec.
var hiddenPrefixes = []string{"/openapi.json", "/docs"}

// GenerateSpec produces the OpenAPI 3.0 spec as a map.
func (g *Generator) GenerateSpec() map[string]interface{} {
	paths := make(map[string]map[string]interface{})
	tags := make(map[string]bool)

	for _, r := range g.e.Routes() {
		if !documented(r) {
			continue
		}
		path, params := openAPIPath(r.Path)
		tag := tagFor(r.Path)
		tags[tag] = true

		op := map[string]interface{}{
			"summary":     r.Method + " " + r.Path,
			"operationId": operationID(r.Method, r.Path),
			"tags":        []string{tag},
			"responses":   responsesFor(r.Method, r.Path),
		}
		if len(params) > 0 {
			op["parameters"] = params
		}
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			op["requestBody"] = map[string]interface{}{
				"required": true,
				"content": map[string]interface{}{
					"application/json": map[string]interface{}{
						"schema": map[string]interface{}{"type": "object"},
					},
				},
			}
		}
		if paths[path] == nil {
			paths[path] = make(map[string]interface{})
		}
		paths[path][strings.ToLower(r.Method)] = op
	}

	tagList := make([]map[string]string, 0, len(tags))
	for t := range tags {
		tagList = append(tagList, map[string]string{"name": t})
	}
	sort.Slice(tagList, func(i, j int) bool { return tagList[i]["name"] < tagList[j]["name"] })

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":   g.title,
			"version": g.version,
		},
		"servers": []map[string]string{{"url": g.baseURL}},
		"tags":    tagList,
		"paths":   paths,
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"OperationOutcome": operationOutcomeSchema(),
				"Coding":           codingSchema(),
			},
			"securitySchemes": map[string]interface{}{
				"abhaBearer": map[string]interface{}{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
		},
	}
}

func documented(r *echo.Route) bool {
	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
	default:
		return false
	}
	if strings.Contains(r.Path, "*") {
		return false
	}
	for _, p := range hiddenPrefixes {
		if strings.HasPrefix(r.Path, p) {
			return false
		}
	}
	return true
}

// openAPIPath rewrites echo's :name segments as {name} and returns the
// matching path parameters.
func openAPIPath(path string) (string, []map[string]interface{}) {
	segs := strings.Split(path, "/")
	var params []map[string]interface{}
	for i, s := range segs {
		if strings.HasPrefix(s, ":") {
			name := s[1:]
			segs[i] = "{" + name + "}"
			params = append(params, map[string]interface{}{
				"name":     name,
				"in":       "path",
				"required": true,
				"schema":   map[string]string{"type": "string"},
			})
		}
	}
	return strings.Join(segs, "/"), params
}

// tagFor groups routes by their first meaningful segment.
func tagFor(path string) string {
	p := strings.TrimPrefix(path, "/api/v1")
	if strings.HasPrefix(p, "/fhir/") {
		p = strings.TrimPrefix(p, "/fhir")
		seg := strings.SplitN(strings.TrimPrefix(p, "/"), "/", 2)[0]
		return "FHIR " + seg
	}
	seg := strings.SplitN(strings.TrimPrefix(p, "/"), "/", 2)[0]
	if seg == "" {
		return "default"
	}
	return seg
}

func operationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, s := range strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '-' || r == '$' || r == ':' || r == '.'
	}) {
		b.WriteString(strings.ToUpper(s[:1]) + s[1:])
	}
	return b.String()
}

func responsesFor(method, path string) map[string]interface{} {
	outcome := map[string]interface{}{
		"description": "OperationOutcome",
		"content": map[string]interface{}{
			"application/fhir+json": map[string]interface{}{
				"schema": map[string]interface{}{"$ref": "#/components/schemas/OperationOutcome"},
			},
		},
	}
	ok := "200"
	if method == http.MethodPost && strings.HasSuffix(path, "/Bundle") {
		ok = "201"
	}
	return map[string]interface{}{
		ok:    map[string]interface{}{"description": "Success"},
		"400": outcome,
		"404": outcome,
	}
}

func codingSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"system":  map[string]interface{}{"type": "string", "format": "uri"},
			"code":    map[string]interface{}{"type": "string"},
			"display": map[string]interface{}{"type": "string"},
		},
	}
}

func operationOutcomeSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"resourceType": map[string]interface{}{"type": "string", "enum": []string{"OperationOutcome"}},
			"issue": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"severity": map[string]interface{}{
							"type": "string",
							"enum": []string{"fatal", "error", "warning", "information"},
						},
						"code":        map[string]interface{}{"type": "string"},
						"diagnostics": map[string]interface{}{"type": "string"},
					},
					"required": []string{"severity", "code"},
				},
			},
		},
		"required": []string{"resourceType", "issue"},
	}
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>NAMASTE Terminology API - Swagger UI</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" >
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/openapi.json",
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [SwaggerUIBundle.presets.apis],
    })
  </script>
</body>
</html>`

// RegisterRoutes serves the spec at /openapi.json and Swagger UI at /docs.
func (g *Generator) RegisterRoutes(e *echo.Echo) {
	e.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec())
	})
	e.GET("/docs", func(c echo.Context) error {
		return c.HTML(http.StatusOK, swaggerUIHTML)
	})
}

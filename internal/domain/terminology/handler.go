package terminology

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/namaste/namaste/internal/platform/fhir"
	"github.com/namaste/namaste/pkg/pagination"
)

// Handler provides REST endpoints for terminology search and lookup.
type Handler struct {
	svc *Service
}

// NewHandler creates a new terminology handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers terminology routes on the API and FHIR groups.
func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	term := api.Group("/terminology")
	term.GET("/systems", h.ListSystems)
	term.GET("/lookup", h.Search)
	term.GET("/:system/concepts/:code", h.GetConcept)

	fhirGroup.GET("/CodeSystem/namaste-:system", h.GetCodeSystem)
}

var errorMappings = []fhir.ErrorMapping{
	fhir.Invalid(ErrValidation),
	fhir.NotFound(ErrConceptNotFound),
}

// ErrorMappings exposes the package's error to OperationOutcome bindings for
// handlers in other packages that surface terminology errors.
func ErrorMappings() []fhir.ErrorMapping { return errorMappings }

// basicResource renders a concept as a FHIR Basic resource for search results.
func basicResource(c *Concept) map[string]interface{} {
	div := c.Definition
	if div == "" {
		div = c.Display
	}
	return map[string]interface{}{
		"resourceType": "Basic",
		"id":           c.ID,
		"code": fhir.CodeableConcept{
			Coding: []fhir.Coding{c.Coding()},
			Text:   c.Display,
		},
		"text": map[string]string{
			"status": "additional",
			"div":    fmt.Sprintf(`<div xmlns="http://www.w3.org/1999/xhtml">%s</div>`, div),
		},
	}
}

// Search handles GET /api/v1/terminology/lookup?q=&system=&_limit=&_offset=
func (h *Handler) Search(c echo.Context) error {
	p := pagination.FromContext(c)
	concepts, total, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"), c.QueryParam("system"), p)
	if err != nil {
		return fhir.ErrorResponse(c, err, errorMappings...)
	}

	resources := make([]interface{}, 0, len(concepts))
	for _, concept := range concepts {
		resources = append(resources, basicResource(concept))
	}
	bundle := fhir.NewSearchBundle(resources, total, c.Request().URL.String())
	filters := c.QueryParams()
	bundle.Link = p.FHIRLinks(c.Path(), filters, total)
	return c.JSON(http.StatusOK, bundle)
}

// GetConcept handles GET /api/v1/terminology/:system/concepts/:code
func (h *Handler) GetConcept(c echo.Context) error {
	concept, err := h.svc.Lookup(c.Request().Context(), c.Param("system"), c.Param("code"))
	if err != nil {
		return fhir.ErrorResponse(c, err, errorMappings...)
	}
	return c.JSON(http.StatusOK, LookupParameters(concept))
}

// LookupParameters renders a concept as the output of a $lookup operation.
func LookupParameters(c *Concept) *fhir.Parameters {
	params := fhir.NewParameters().
		Add(fhir.Parameter{Name: "system", ValueURI: c.System}).
		Add(fhir.CodeParam("code", c.Code)).
		Add(fhir.StringParam("display", c.Display)).
		Add(fhir.CodeParam("status", string(c.Status)))
	if c.Definition != "" {
		params.Add(fhir.StringParam("definition", c.Definition))
	}
	keys := make([]string, 0, len(c.Properties))
	for k := range c.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		params.Add(fhir.Parameter{Name: "property", Part: []fhir.Parameter{
			fhir.CodeParam("code", k),
			fhir.StringParam("value", fmt.Sprint(c.Properties[k])),
		}})
	}
	return params
}

// ListSystems handles GET /api/v1/terminology/systems
func (h *Handler) ListSystems(c echo.Context) error {
	systems, err := h.svc.Systems(c.Request().Context())
	if err != nil {
		return err
	}
	resources := make([]interface{}, 0, len(systems))
	for _, s := range systems {
		resources = append(resources, map[string]interface{}{
			"resourceType": "CodeSystem",
			"id":           s.Alias,
			"url":          s.URI,
			"name":         s.Name,
			"title":        s.Name,
			"status":       "active",
			"description":  s.Description,
			"content":      "complete",
			"count":        s.Count,
		})
	}
	bundle, err := fhir.NewCollectionBundle(resources)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bundle)
}

// GetCodeSystem handles GET /fhir/CodeSystem/namaste-:system
func (h *Handler) GetCodeSystem(c echo.Context) error {
	cs, err := h.svc.CodeSystem(c.Request().Context(), c.Param("system"))
	if err != nil {
		return fhir.ErrorResponse(c, err, fhir.NotFound(ErrValidation))
	}
	return c.JSON(http.StatusOK, cs)
}

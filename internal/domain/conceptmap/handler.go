package conceptmap

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/namaste/namaste/internal/domain/terminology"
	"github.com/namaste/namaste/internal/platform/fhir"
)

// MaxBatchSize caps the number of requests in one batch translation.
const MaxBatchSize = 100

// Handler exposes translation and ConceptMap endpoints.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	api.POST("/translate", h.Translate)
	api.POST("/translate/batch", h.BatchTranslate)
	api.GET("/terminology/:system/concepts/:code/mappings", h.ListMappings)

	fhirGroup.GET("/ConceptMap/namaste-icd11", h.GetConceptMap)
	fhirGroup.GET("/ConceptMap/$translate", h.FHIRTranslate)
	fhirGroup.POST("/ConceptMap/$translate", h.FHIRTranslate)
}

var errorMappings = terminology.ErrorMappings()

// coding is the {system, code} pair used in request bodies.
type coding struct {
	System string `json:"system"`
	Code   string `json:"code"`
}

// translateBody is the body of POST /translate. Flat code/system fields are
// accepted as an alternative to the nested source.
type translateBody struct {
	Source *coding `json:"source"`
	Target string  `json:"target"`
	Code   string  `json:"code"`
	System string  `json:"system"`
}

func (b translateBody) request() TranslateRequest {
	req := TranslateRequest{SourceCode: b.Code, SourceSystem: b.System, TargetSystem: b.Target}
	if b.Source != nil {
		req.SourceCode, req.SourceSystem = b.Source.Code, b.Source.System
	}
	return req
}

// Translate handles POST /api/v1/translate
func (h *Handler) Translate(c echo.Context) error {
	var body translateBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeStructure, "invalid request body"))
	}
	res, err := h.engine.Translate(c.Request().Context(), body.request())
	if err != nil {
		return fhir.ErrorResponse(c, err, errorMappings...)
	}
	return c.JSON(http.StatusOK, res.Parameters())
}

type batchBody struct {
	Items []translateBody `json:"items"`
}

// BatchTranslate handles POST /api/v1/translate/batch and answers with a
// batch-response Bundle whose entries line up with the request items.
func (h *Handler) BatchTranslate(c echo.Context) error {
	var body batchBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeStructure, "invalid request body"))
	}
	if len(body.Items) == 0 {
		return c.JSON(http.StatusBadRequest, fhir.RequiredFieldOutcome("items"))
	}
	if len(body.Items) > MaxBatchSize {
		return c.JSON(http.StatusBadRequest, fhir.ValidationOutcome("items", fmt.Sprintf("at most %d items per batch", MaxBatchSize)))
	}

	reqs := make([]TranslateRequest, len(body.Items))
	for i, it := range body.Items {
		reqs[i] = it.request()
	}
	items := h.engine.BatchTranslate(c.Request().Context(), reqs)

	results := make([]fhir.BatchResult, len(items))
	for i, it := range items {
		if it.Err != nil {
			results[i] = batchError(it.Err)
			continue
		}
		results[i] = fhir.BatchResult{Resource: it.Result.Parameters(), Status: http.StatusOK}
	}
	return c.JSON(http.StatusOK, fhir.NewBatchResponse(results))
}

// batchError renders a failed item. Unknown concepts are the caller's input
// problem inside a batch, so they are reported as 400 rather than 404.
func batchError(err error) fhir.BatchResult {
	if _, outcome, ok := fhir.Classify(err, errorMappings...); ok {
		return fhir.BatchResult{Outcome: outcome, Status: http.StatusBadRequest}
	}
	return fhir.BatchResult{Outcome: fhir.InternalErrorOutcome("translation failed"), Status: http.StatusInternalServerError}
}

// ListMappings handles GET /api/v1/terminology/:system/concepts/:code/mappings
func (h *Handler) ListMappings(c echo.Context) error {
	concept, mappings, err := h.engine.MappingsForConcept(c.Request().Context(), c.Param("system"), c.Param("code"))
	if err != nil {
		return fhir.ErrorResponse(c, err, errorMappings...)
	}
	if mappings == nil {
		mappings = []*Mapping{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"concept":  concept,
		"mappings": mappings,
		"total":    len(mappings),
	})
}

// GetConceptMap handles GET /fhir/ConceptMap/namaste-icd11?source=
func (h *Handler) GetConceptMap(c echo.Context) error {
	cm, err := h.engine.ConceptMap(c.Request().Context(), c.QueryParam("source"))
	if err != nil {
		return fhir.ErrorResponse(c, err, errorMappings...)
	}
	return c.JSON(http.StatusOK, cm)
}

// FHIRTranslate handles GET and POST /fhir/ConceptMap/$translate. GET reads
// code, system and target from the query; POST reads a Parameters body with
// code/system or coding, and targetsystem or target.
func (h *Handler) FHIRTranslate(c echo.Context) error {
	req := TranslateRequest{
		SourceCode:   c.QueryParam("code"),
		SourceSystem: c.QueryParam("system"),
		TargetSystem: firstNonEmpty(c.QueryParam("targetsystem"), c.QueryParam("target")),
	}
	if c.Request().Method == http.MethodPost {
		var params fhir.Parameters
		if err := c.Bind(&params); err != nil {
			return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeStructure, "invalid Parameters body"))
		}
		if params.ResourceType != "" && params.ResourceType != "Parameters" {
			return c.JSON(http.StatusBadRequest, fhir.ValidationOutcome("resourceType", "expected Parameters"))
		}
		req = TranslateRequest{
			SourceCode:   params.String("code"),
			SourceSystem: params.String("system"),
			TargetSystem: firstNonEmpty(params.String("targetsystem"), params.String("target")),
		}
		if p, ok := params.Get("coding"); ok && p.ValueCoding != nil {
			req.SourceCode, req.SourceSystem = p.ValueCoding.Code, p.ValueCoding.System
		}
	}

	res, err := h.engine.Translate(c.Request().Context(), req)
	if err != nil {
		return fhir.ErrorResponse(c, err, errorMappings...)
	}
	return c.JSON(http.StatusOK, res.Parameters())
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

package aimapping

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/namaste/namaste/internal/domain/conceptmap"
	"github.com/namaste/namaste/internal/domain/terminology"
	"github.com/namaste/namaste/internal/platform/fhir"
)

const maxSymptoms = 20

// OriginURL is the extension recording whether an answer came from the model
// or the fallback table.
const OriginURL = "http://terminology.gov.in/namaste/StructureDefinition/mapping-origin"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/map", h.Map)
	api.POST("/translate-language", h.TranslateLanguage)
	api.POST("/analyze-symptoms", h.AnalyzeSymptoms)
	api.GET("/search-similar", h.SearchSimilar)
}

var errorMappings = terminology.ErrorMappings()

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeInvalid, msg))
}

type mapBody struct {
	Concept      string  `json:"concept"`
	Code         string  `json:"code"`
	SourceSystem string  `json:"sourceSystem"`
	TargetSystem string  `json:"targetSystem"`
	Confidence   float64 `json:"confidence"`
	Live         *bool   `json:"live"`
}

// Map handles POST /api/v1/map. Answers under the confidence threshold are
// reported as 404.
func (h *Handler) Map(c echo.Context) error {
	var body mapBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Concept == "" && body.Code == "" {
		return c.JSON(http.StatusBadRequest, fhir.RequiredFieldOutcome("concept"))
	}
	if body.TargetSystem != "" {
		if uri, err := terminology.ResolveSystem(body.TargetSystem); err != nil || uri != terminology.SystemICD11 {
			return badRequest(c, "only ICD-11 is supported as target system")
		}
	}
	if body.Confidence < 0 || body.Confidence > 1 {
		return badRequest(c, "confidence must be between 0 and 1")
	}

	live := body.Live == nil || *body.Live
	res, err := h.svc.Resolve(c.Request().Context(), ResolveRequest{
		Code:      body.Code,
		System:    body.SourceSystem,
		Term:      body.Concept,
		Threshold: body.Confidence,
		Live:      live,
	})
	if err != nil {
		return fhir.ErrorResponse(c, err, errorMappings...)
	}
	if !res.Accepted() {
		return c.JSON(http.StatusNotFound, fhir.NewOperationOutcome(fhir.IssueSeverityWarning, fhir.IssueTypeNotFound,
			fmt.Sprintf("No mapping found with sufficient confidence (%.2f)", res.Threshold)))
	}
	return c.JSON(http.StatusOK, resolutionConceptMap(res, body.Concept))
}

// resolutionConceptMap renders a resolution as a single-element ConceptMap.
func resolutionConceptMap(res *Resolution, concept string) *conceptmap.ConceptMapResource {
	sourceURI, code, display := "", strings.ToLower(strings.Join(strings.Fields(concept), "-")), concept
	if res.Source != nil {
		sourceURI, code, display = res.Source.System, res.Source.Code, res.Source.Display
	}

	var target conceptmap.ConceptMapElementTarget
	var origin conceptmap.Origin
	if res.Result != nil {
		target = conceptmap.ConceptMapElementTarget{
			Code:        res.Result.Target.Code,
			Display:     res.Result.Target.Display,
			Equivalence: res.Result.Equivalence,
			Comment:     res.Result.Comment,
		}
		origin = res.Result.Origin
	} else {
		target = conceptmap.ConceptMapElementTarget{
			Code:        res.Candidate.TargetCode,
			Display:     res.Candidate.TargetDisplay,
			Equivalence: res.Candidate.Equivalence,
			Comment:     res.Candidate.Comment,
		}
		origin = res.Candidate.Origin
	}
	target.Extension = []fhir.Extension{
		fhir.DecimalExtension(conceptmap.MappingConfidenceURL, res.Confidence()),
		{URL: OriginURL, ValueCode: string(origin)},
	}

	return &conceptmap.ConceptMapResource{
		ResourceType: "ConceptMap",
		URL:          conceptmap.ConceptMapURL,
		Version:      terminology.CodeSystemVersion,
		Name:         "NAMASTE_ICD11_Suggestion",
		Title:        "Suggested NAMASTE to ICD-11 mapping",
		Status:       "draft",
		Publisher:    "Ministry of AYUSH, Government of India",
		SourceURI:    sourceURI,
		TargetURI:    terminology.SystemICD11,
		Group: []conceptmap.ConceptMapGroup{{
			Source: sourceURI,
			Target: terminology.SystemICD11,
			Element: []conceptmap.ConceptMapElement{{
				Code:    code,
				Display: display,
				Target:  []conceptmap.ConceptMapElementTarget{target},
			}},
		}},
	}
}

type translateLanguageBody struct {
	Concept        string `json:"concept"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	System         string `json:"system"`
}

// TranslateLanguage handles POST /api/v1/translate-language
func (h *Handler) TranslateLanguage(c echo.Context) error {
	var body translateLanguageBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(body.Concept) == "" || strings.TrimSpace(body.TargetLanguage) == "" {
		return badRequest(c, "concept and targetLanguage are required")
	}
	if body.SourceLanguage == "" {
		body.SourceLanguage = "en"
	}
	if body.System == "" {
		body.System = "ayurveda"
	}

	t := h.svc.Mapper().TranslateTerm(c.Request().Context(), body.Concept, body.SourceLanguage, body.TargetLanguage, body.System)
	params := fhir.NewParameters().Add(fhir.Parameter{Name: "translation", Part: []fhir.Parameter{
		fhir.StringParam("source", t.Term),
		fhir.CodeParam("sourceLanguage", t.SourceLanguage),
		fhir.StringParam("target", t.TranslatedTerm),
		fhir.CodeParam("targetLanguage", t.TargetLanguage),
		fhir.DecimalParam("confidence", t.Confidence),
		fhir.StringParam("culturalContext", t.CulturalContext),
		fhir.CodeParam("origin", string(t.Origin)),
	}})
	return c.JSON(http.StatusOK, params)
}

type analyzeBody struct {
	Symptoms []string `json:"symptoms"`
	Language string   `json:"language"`
	System   string   `json:"system"`
}

// AnalyzeSymptoms handles POST /api/v1/analyze-symptoms
func (h *Handler) AnalyzeSymptoms(c echo.Context) error {
	var body analyzeBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	symptoms := make([]string, 0, len(body.Symptoms))
	for _, s := range body.Symptoms {
		if s = strings.TrimSpace(s); s != "" {
			symptoms = append(symptoms, s)
		}
	}
	if len(symptoms) == 0 {
		return badRequest(c, "symptoms array is required and cannot be empty")
	}
	if len(symptoms) > maxSymptoms {
		return badRequest(c, fmt.Sprintf("at most %d symptoms per request", maxSymptoms))
	}
	if body.Language == "" {
		body.Language = "en"
	}
	if body.System == "" {
		body.System = "ayurveda"
	}

	a := h.svc.Mapper().AnalyzeSymptoms(c.Request().Context(), symptoms, body.Language, body.System)
	parts := []fhir.Parameter{
		fhir.StringParam("symptoms", strings.Join(a.Symptoms, ", ")),
		fhir.CodeParam("system", a.System),
	}
	for _, cond := range a.SuggestedConditions {
		parts = append(parts, fhir.Parameter{Name: "condition", Part: []fhir.Parameter{
			fhir.CodingParam("code", fhir.Coding{Code: cond.Code, Display: cond.Display}),
			fhir.CodeParam("severity", cond.Severity),
			fhir.StringParam("explanation", cond.Explanation),
		}})
	}
	parts = append(parts,
		fhir.StringParam("recommendations", a.Recommendations),
		fhir.CodeParam("origin", string(a.Origin)),
	)
	return c.JSON(http.StatusOK, fhir.NewParameters().Add(fhir.Parameter{Name: "analysis", Part: parts}))
}

// SearchSimilar handles GET /api/v1/search-similar?q=&system=&_limit=
func (h *Handler) SearchSimilar(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if len([]rune(q)) < terminology.MinQueryLength {
		return badRequest(c, fmt.Sprintf("q must be at least %d characters", terminology.MinQueryLength))
	}
	system := c.QueryParam("system")
	if system == "" {
		system = "ayurveda"
	}
	limit := DefaultSimilarLimit
	if v := c.QueryParam("_limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return badRequest(c, "_limit must be a positive integer")
		}
		limit = n
	}

	concepts := h.svc.Mapper().SearchSimilar(c.Request().Context(), q, system, limit)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"query":    q,
		"system":   system,
		"total":    len(concepts),
		"concepts": concepts,
	})
}

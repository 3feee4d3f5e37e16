package fhir

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// requiredByType lists the fields each resource type this server produces
// must carry. Alternatives separated by "|" satisfy the requirement jointly.
var requiredByType = map[string][]string{
	"CodeSystem": {"url", "content"},
	"ConceptMap": {"url", "sourceUri|sourceCanonical", "targetUri|targetCanonical"},
	"Condition":  {"subject", "code"},
}

func present(resource map[string]interface{}, field string) bool {
	v, ok := resource[field]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return s != ""
	}
	return true
}

func anyPresent(resource map[string]interface{}, alternatives []string) bool {
	for _, f := range alternatives {
		if present(resource, f) {
			return true
		}
	}
	return false
}

// ValidateResource checks resourceType and id, then the per-type required
// fields. It returns one error issue per problem; none means valid.
func ValidateResource(resource map[string]interface{}) []OperationOutcomeIssue {
	var issues []OperationOutcomeIssue
	missing := func(expr, msg string) {
		issues = append(issues, OperationOutcomeIssue{
			Severity:    IssueSeverityError,
			Code:        IssueTypeRequired,
			Diagnostics: msg,
			Expression:  []string{expr},
		})
	}

	rt, _ := resource["resourceType"].(string)
	if rt == "" {
		missing("resourceType", "Missing required field: resourceType")
	}
	if !present(resource, "id") {
		missing("id", "Missing required field: id")
	}
	for _, field := range requiredByType[rt] {
		alts := strings.Split(field, "|")
		if anyPresent(resource, alts) {
			continue
		}
		if len(alts) > 1 {
			missing(rt+"."+alts[0], fmt.Sprintf("%s missing one of: %v", rt, alts))
			continue
		}
		missing(rt+"."+field, fmt.Sprintf("%s missing required field: %s", rt, field))
	}
	return issues
}

// ValidateHandler serves the $validate operation.
type ValidateHandler struct{}

func NewValidateHandler() *ValidateHandler { return &ValidateHandler{} }

// RegisterRoutes adds $validate routes to the given FHIR group.
func (h *ValidateHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/$validate", h.Validate)
	g.POST("/:resourceType/$validate", h.Validate)
}

// Validate handles POST /fhir/$validate and POST /fhir/{ResourceType}/$validate.
// A valid resource yields 200 with an informational outcome, otherwise 400.
func (h *ValidateHandler) Validate(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil || len(body) == 0 {
		return c.JSON(http.StatusBadRequest, NewOperationOutcome(IssueSeverityFatal, IssueTypeStructure, "Request body is empty"))
	}
	var resource map[string]interface{}
	if err := json.Unmarshal(body, &resource); err != nil {
		return c.JSON(http.StatusBadRequest, NewOperationOutcome(IssueSeverityFatal, IssueTypeStructure, "Invalid JSON: "+err.Error()))
	}

	issues := ValidateResource(resource)
	if want := c.Param("resourceType"); want != "" {
		if rt, _ := resource["resourceType"].(string); rt != "" && rt != want {
			issues = append(issues, OperationOutcomeIssue{
				Severity:    IssueSeverityError,
				Code:        IssueTypeInvalid,
				Diagnostics: fmt.Sprintf("resourceType %s does not match endpoint %s", rt, want),
				Expression:  []string{"resourceType"},
			})
		}
	}
	if len(issues) > 0 {
		return c.JSON(http.StatusBadRequest, &OperationOutcome{ResourceType: "OperationOutcome", Issue: issues})
	}
	return c.JSON(http.StatusOK, NewOperationOutcome(IssueSeverityInformation, IssueTypeInformational, "Resource is valid"))
}

package bundle

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/namaste/namaste/internal/domain/terminology"
	"github.com/namaste/namaste/internal/platform/fhir"
)

type Handler struct {
	assembler *Assembler
}

func NewHandler(a *Assembler) *Handler {
	return &Handler{assembler: a}
}

func (h *Handler) RegisterRoutes(fhirGroup *echo.Group) {
	fhirGroup.POST("/Bundle", h.Create)
}

type conditionBody struct {
	Code           string `json:"code"`
	NamasteCode    string `json:"namasteCode"`
	System         string `json:"system"`
	ClinicalStatus string `json:"clinicalStatus"`
}

type createBody struct {
	PatientID  string          `json:"patientId"`
	Conditions []conditionBody `json:"conditions"`
}

// Create handles POST /fhir/Bundle
func (h *Handler) Create(c echo.Context) error {
	var body createBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeStructure, "invalid request body"))
	}
	if body.PatientID == "" {
		return c.JSON(http.StatusBadRequest, fhir.RequiredFieldOutcome("patientId"))
	}
	if len(body.Conditions) == 0 {
		return c.JSON(http.StatusBadRequest, fhir.RequiredFieldOutcome("conditions"))
	}

	items := make([]Item, len(body.Conditions))
	for i, cb := range body.Conditions {
		code := cb.Code
		if code == "" {
			code = cb.NamasteCode
		}
		items[i] = Item{Code: code, System: cb.System, ClinicalStatus: cb.ClinicalStatus}
	}

	b, err := h.assembler.Assemble(c.Request().Context(), body.PatientID, items)
	if err != nil {
		return fhir.ErrorResponse(c, err, terminology.ErrorMappings()...)
	}
	return c.JSON(http.StatusCreated, b)
}

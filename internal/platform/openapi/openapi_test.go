package openapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func noop(c echo.Context) error { return c.NoContent(http.StatusOK) }

func newTestEcho() *echo.Echo {
	e := echo.New()
	api := e.Group("/api/v1")
	api.POST("/translate", noop)
	api.GET("/terminology/:system/concepts/:code", noop)
	fhirGroup := e.Group("/fhir")
	fhirGroup.GET("/ConceptMap/$translate", noop)
	fhirGroup.POST("/Bundle", noop)
	return e
}

func TestGenerateSpec_Paths(t *testing.T) {
	e := newTestEcho()
	g := NewGenerator(e, "NAMASTE", "1.0.0", "http://localhost:3000")
	g.RegisterRoutes(e)

	spec := g.GenerateSpec()
	if spec["openapi"] != "3.0.3" {
		t.Errorf("unexpected openapi version %v", spec["openapi"])
	}
	paths := spec["paths"].(map[string]map[string]interface{})

	for _, p := range []string{"/api/v1/translate", "/api/v1/terminology/{system}/concepts/{code}", "/fhir/ConceptMap/$translate", "/fhir/Bundle"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("missing path %s", p)
		}
	}
	if _, ok := paths["/openapi.json"]; ok {
		t.Error("spec must not document itself")
	}

	op := paths["/api/v1/terminology/{system}/concepts/{code}"]["get"].(map[string]interface{})
	params := op["parameters"].([]map[string]interface{})
	if len(params) != 2 || params[0]["name"] != "system" || params[1]["name"] != "code" {
		t.Errorf("unexpected path params %v", params)
	}

	bundle := paths["/fhir/Bundle"]["post"].(map[string]interface{})
	if _, ok := bundle["responses"].(map[string]interface{})["201"]; !ok {
		t.Error("Bundle create should document 201")
	}
}

func TestTagFor(t *testing.T) {
	tests := map[string]string{
		"/api/v1/translate/batch":     "translate",
		"/api/v1/users/profile":       "users",
		"/fhir/ConceptMap/$translate": "FHIR ConceptMap",
		"/health":                     "health",
	}
	for in, want := range tests {
		if got := tagFor(in); got != want {
			t.Errorf("tagFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOperationID(t *testing.T) {
	if got := operationID(http.MethodGet, "/fhir/ConceptMap/$translate"); got != "getFhirConceptMapTranslate" {
		t.Errorf("operationID = %q", got)
	}
}

func TestRegisterRoutes_ServesJSON(t *testing.T) {
	e := newTestEcho()
	NewGenerator(e, "NAMASTE", "1.0.0", "http://localhost:3000").RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["info"].(map[string]interface{})["title"] != "NAMASTE" {
		t.Errorf("unexpected info %v", doc["info"])
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/docs: expected 200, got %d", rec.Code)
	}
}

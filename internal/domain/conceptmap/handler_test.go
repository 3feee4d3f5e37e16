package conceptmap

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/namaste/namaste/internal/platform/fhir"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	eng, _, _ := newTestEngine(t)
	e := echo.New()
	NewHandler(eng).RegisterRoutes(e.Group("/api/v1"), e.Group("/fhir"))
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeParameters(t *testing.T, rec *httptest.ResponseRecorder) *fhir.Parameters {
	t.Helper()
	var p fhir.Parameters
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return &p
}

func matchedCode(p *fhir.Parameters) string {
	match, ok := p.Get("match")
	if !ok {
		return ""
	}
	for _, part := range match.Part {
		if part.Name == "concept" && part.ValueCoding != nil {
			return part.ValueCoding.Code
		}
	}
	return ""
}

func TestHandler_Translate(t *testing.T) {
	e := newTestServer(t)
	rec := do(e, http.MethodPost, "/api/v1/translate", `{"source":{"system":"ayurveda","code":"AY002"},"target":"icd11"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	p := decodeParameters(t, rec)
	if p.ResourceType != "Parameters" || matchedCode(p) != "MG30.0" {
		t.Errorf("unexpected parameters %s", rec.Body.String())
	}
}

func TestHandler_Translate_FlatBody(t *testing.T) {
	e := newTestServer(t)
	rec := do(e, http.MethodPost, "/api/v1/translate", `{"system":"siddha","code":"SI002"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := matchedCode(decodeParameters(t, rec)); got != "MG30.0" {
		t.Errorf("expected MG30.0, got %q", got)
	}
}

func TestHandler_Translate_Errors(t *testing.T) {
	e := newTestServer(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown code", `{"source":{"system":"ayurveda","code":"AY999"}}`, http.StatusNotFound},
		{"unknown system", `{"source":{"system":"homeopathy","code":"AY001"}}`, http.StatusBadRequest},
		{"missing code", `{"source":{"system":"ayurveda"}}`, http.StatusBadRequest},
		{"malformed", `{"source":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/api/v1/translate", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			var outcome fhir.OperationOutcome
			if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil || outcome.ResourceType != "OperationOutcome" {
				t.Errorf("expected OperationOutcome, got %s", rec.Body.String())
			}
		})
	}
}

func TestHandler_BatchTranslate(t *testing.T) {
	e := newTestServer(t)
	body := `{"items":[
		{"source":{"system":"ayurveda","code":"AY001"}},
		{"source":{"system":"ayurveda","code":"NOPE"}},
		{"source":{"system":"unani","code":"UN002"}}
	]}`
	rec := do(e, http.MethodPost, "/api/v1/translate/batch", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var bundle fhir.Bundle
	if err := json.Unmarshal(rec.Body.Bytes(), &bundle); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bundle.Type != fhir.BundleTypeBatchResponse || len(bundle.Entry) != 3 {
		t.Fatalf("unexpected bundle %s", rec.Body.String())
	}
	wantStatus := []string{"200 OK", "400 Bad Request", "200 OK"}
	for i, entry := range bundle.Entry {
		if entry.Response == nil || entry.Response.Status != wantStatus[i] {
			t.Errorf("entry %d: expected %s, got %+v", i, wantStatus[i], entry.Response)
		}
	}
	if !strings.Contains(string(bundle.Entry[2].Resource), "ME84.1") {
		t.Errorf("entry 2 should map to ME84.1: %s", bundle.Entry[2].Resource)
	}
}

func TestHandler_BatchTranslate_Limits(t *testing.T) {
	e := newTestServer(t)
	if rec := do(e, http.MethodPost, "/api/v1/translate/batch", `{"items":[]}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty batch: expected 400, got %d", rec.Code)
	}

	items := make([]string, MaxBatchSize+1)
	for i := range items {
		items[i] = `{"system":"ayurveda","code":"AY001"}`
	}
	rec := do(e, http.MethodPost, "/api/v1/translate/batch", `{"items":[`+strings.Join(items, ",")+`]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized batch: expected 400, got %d", rec.Code)
	}
}

func TestHandler_ListMappings(t *testing.T) {
	e := newTestServer(t)
	rec := do(e, http.MethodGet, "/api/v1/terminology/unani/concepts/UN001/mappings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Total    int        `json:"total"`
		Mappings []*Mapping `json:"mappings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 1 || body.Mappings[0].TargetCode != "MG30.0" {
		t.Errorf("unexpected mappings %s", rec.Body.String())
	}

	if rec := do(e, http.MethodGet, "/api/v1/terminology/unani/concepts/UN999/mappings", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_GetConceptMap(t *testing.T) {
	e := newTestServer(t)
	rec := do(e, http.MethodGet, "/fhir/ConceptMap/namaste-icd11?source=siddha", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var cm ConceptMapResource
	if err := json.Unmarshal(rec.Body.Bytes(), &cm); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cm.ResourceType != "ConceptMap" || len(cm.Group) != 1 || len(cm.Group[0].Element) != 3 {
		t.Errorf("unexpected concept map %s", rec.Body.String())
	}
}

func TestHandler_FHIRTranslate(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodGet, "/fhir/ConceptMap/$translate?code=AY005&system=ayurveda", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := matchedCode(decodeParameters(t, rec)); got != "MF40.1" {
		t.Errorf("GET: expected MF40.1, got %q", got)
	}

	body := `{"resourceType":"Parameters","parameter":[
		{"name":"coding","valueCoding":{"system":"http://terminology.gov.in/namaste/siddha","code":"SI003"}},
		{"name":"targetsystem","valueUri":"http://id.who.int/icd/release/11/mms"}
	]}`
	rec = do(e, http.MethodPost, "/fhir/ConceptMap/$translate", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := matchedCode(decodeParameters(t, rec)); got != "MF50.3" {
		t.Errorf("POST: expected MF50.3, got %q", got)
	}

	rec = do(e, http.MethodPost, "/fhir/ConceptMap/$translate", `{"resourceType":"Patient"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("wrong resource type: expected 400, got %d", rec.Code)
	}
}

package aimapping

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/namaste/namaste/internal/domain/conceptmap"
	"github.com/namaste/namaste/internal/platform/ai"
	"github.com/namaste/namaste/internal/platform/fhir"
)

func newTestServer(t *testing.T, p *fakeProvider) *echo.Echo {
	t.Helper()
	e := echo.New()
	NewHandler(newFixture(t, p).svc).RegisterRoutes(e.Group("/api/v1"))
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Map(t *testing.T) {
	e := newTestServer(t, &fakeProvider{text: aiDigestiveAnswer})
	rec := do(e, http.MethodPost, "/api/v1/map", `{"concept":"Agni Mandya","sourceSystem":"ayurveda"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var cm conceptmap.ConceptMapResource
	if err := json.Unmarshal(rec.Body.Bytes(), &cm); err != nil {
		t.Fatalf("decode: %v", err)
	}
	el := cm.Group[0].Element[0]
	if el.Code != "agni-mandya" || el.Target[0].Code != "MF25.2" {
		t.Errorf("unexpected element %+v", el)
	}
	if len(el.Target[0].Extension) != 2 || el.Target[0].Extension[1].ValueCode != "ai-generated" {
		t.Errorf("expected confidence and origin extensions, got %+v", el.Target[0].Extension)
	}
}

func TestHandler_Map_BelowThreshold(t *testing.T) {
	e := newTestServer(t, &fakeProvider{err: ai.ErrNotConfigured})
	rec := do(e, http.MethodPost, "/api/v1/map", `{"concept":"vata imbalance"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("fallback at 0.3 must not pass 0.7, got %d: %s", rec.Code, rec.Body.String())
	}
	var outcome fhir.OperationOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if outcome.Issue[0].Code != fhir.IssueTypeNotFound {
		t.Errorf("unexpected outcome %+v", outcome)
	}

	rec = do(e, http.MethodPost, "/api/v1/map", `{"concept":"vata imbalance","confidence":0.2}`)
	if rec.Code != http.StatusOK {
		t.Errorf("fallback passes a 0.2 threshold, got %d", rec.Code)
	}
}

func TestHandler_Map_Curated(t *testing.T) {
	e := newTestServer(t, &fakeProvider{err: ai.ErrProviderUnavailable})
	rec := do(e, http.MethodPost, "/api/v1/map", `{"code":"SI003","sourceSystem":"siddha","live":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"MF50.3"`) || !strings.Contains(rec.Body.String(), `"curated"`) {
		t.Errorf("expected curated MF50.3, got %s", rec.Body.String())
	}
}

func TestHandler_Map_Invalid(t *testing.T) {
	e := newTestServer(t, &fakeProvider{})
	tests := []string{
		`{}`,
		`{"concept":"vata","targetSystem":"ayurveda"}`,
		`{"concept":"vata","confidence":1.5}`,
		`{"concept":"vata","sourceSystem":"tibetan"}`,
	}
	for _, body := range tests {
		if rec := do(e, http.MethodPost, "/api/v1/map", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestHandler_TranslateLanguage(t *testing.T) {
	e := newTestServer(t, &fakeProvider{err: ai.ErrProviderUnavailable})
	rec := do(e, http.MethodPost, "/api/v1/translate-language", `{"concept":"kapha","targetLanguage":"ta"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var p fhir.Parameters
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	tr, ok := p.Get("translation")
	if !ok || len(tr.Part) != 7 {
		t.Fatalf("unexpected parameters %s", rec.Body.String())
	}
	if tr.Part[2].ValueString != "kapha" || tr.Part[6].ValueCode != "fallback" {
		t.Errorf("unexpected parts %+v", tr.Part)
	}

	if rec := do(e, http.MethodPost, "/api/v1/translate-language", `{"concept":"kapha"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing targetLanguage: expected 400, got %d", rec.Code)
	}
}

func TestHandler_AnalyzeSymptoms(t *testing.T) {
	e := newTestServer(t, &fakeProvider{err: ai.ErrProviderUnavailable})
	rec := do(e, http.MethodPost, "/api/v1/analyze-symptoms", `{"symptoms":["insomnia"," ","restlessness"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "insomnia, restlessness") || !strings.Contains(body, "Consult a qualified healthcare practitioner") {
		t.Errorf("unexpected analysis %s", body)
	}

	for _, bad := range []string{`{"symptoms":[]}`, `{"symptoms":[" "]}`, `{}`} {
		if rec := do(e, http.MethodPost, "/api/v1/analyze-symptoms", bad); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", bad, rec.Code)
		}
	}
}

func TestHandler_SearchSimilar(t *testing.T) {
	e := newTestServer(t, &fakeProvider{err: ai.ErrNotConfigured})
	rec := do(e, http.MethodGet, "/api/v1/search-similar?q=vata&system=siddha", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Total    int              `json:"total"`
		Concepts []SimilarConcept `json:"concepts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 1 || body.Concepts[0].Code != "siddha_001" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	if rec := do(e, http.MethodGet, "/api/v1/search-similar?q=v", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("short query: expected 400, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/v1/search-similar?q=vata&_limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: expected 400, got %d", rec.Code)
	}
}

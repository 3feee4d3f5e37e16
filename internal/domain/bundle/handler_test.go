package bundle

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/namaste/namaste/internal/platform/fhir"
)

func post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	NewHandler(newTestAssembler(t)).RegisterRoutes(e.Group("/fhir"))
	req := httptest.NewRequest(http.MethodPost, "/fhir/Bundle", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Create(t *testing.T) {
	rec := post(t, `{"patientId":"pat-1","conditions":[{"namasteCode":"SI002","system":"siddha"},{"code":"AY004","system":"ayurveda"}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var b fhir.Bundle
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(b.Entry) != 2 || !strings.Contains(string(b.Entry[1].Resource), `"MF25.2"`) {
		t.Errorf("unexpected bundle %s", rec.Body.String())
	}
	if !strings.HasPrefix(b.Entry[0].FullURL, "urn:uuid:") {
		t.Errorf("expected urn:uuid fullUrl, got %q", b.Entry[0].FullURL)
	}
}

func TestHandler_Create_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing patient", `{"conditions":[{"code":"AY001","system":"ayurveda"}]}`, http.StatusBadRequest},
		{"missing conditions", `{"patientId":"pat-1","conditions":[]}`, http.StatusBadRequest},
		{"unknown concept", `{"patientId":"pat-1","conditions":[{"code":"AY404","system":"ayurveda"}]}`, http.StatusNotFound},
		{"malformed", `{"patientId":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"OperationOutcome"`) {
				t.Errorf("expected OperationOutcome, got %s", rec.Body.String())
			}
		})
	}
}

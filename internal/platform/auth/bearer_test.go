package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/namaste/namaste/internal/platform/fhir"
)

type stubVerifier struct {
	payload *TokenPayload
	err     error
	seen    string
}

func (s *stubVerifier) Verify(_ context.Context, token string) (*TokenPayload, error) {
	s.seen = token
	return s.payload, s.err
}

func serveBearer(t *testing.T, v TokenVerifier, header string) (*httptest.ResponseRecorder, *TokenPayload) {
	t.Helper()
	e := echo.New()
	var got *TokenPayload
	e.GET("/me", func(c echo.Context) error {
		got = PayloadFromContext(c.Request().Context())
		if PayloadFromEcho(c) != got {
			t.Error("echo and request context payloads differ")
		}
		return c.NoContent(http.StatusNoContent)
	}, BearerAuth(v))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, got
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v", tt.header, got, ok)
		}
	}
}

func TestBearerAuth_MissingHeader(t *testing.T) {
	rec, got := serveBearer(t, &stubVerifier{}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}
	if got != nil {
		t.Error("handler must not run")
	}
}

func TestBearerAuth_Rejected(t *testing.T) {
	rec, _ := serveBearer(t, &stubVerifier{err: reject(KindTokenExpired, StateSignatureValid, "expired", nil)}, "Bearer tok")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	var outcome fhir.OperationOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if outcome.ErrorCode() != "ABHA_TOKEN_EXPIRED" {
		t.Errorf("error code = %q", outcome.ErrorCode())
	}
}

func TestBearerAuth_KeyFetchFailed(t *testing.T) {
	rec, _ := serveBearer(t, &stubVerifier{err: reject(KindKeyFetchFailed, StateUnverified, "jwks down", nil)}, "Bearer tok")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") != "" {
		t.Error("upstream failures should not challenge the client")
	}
}

func TestBearerAuth_Success(t *testing.T) {
	v := &stubVerifier{payload: &TokenPayload{ABHANumber: "91234567890123", Mode: ModeVerified}}
	rec, got := serveBearer(t, v, "Bearer tok-9")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if v.seen != "tok-9" {
		t.Errorf("verifier saw %q", v.seen)
	}
	if got == nil || got.ABHANumber != "91234567890123" {
		t.Errorf("payload = %+v", got)
	}
}

package auth

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/namaste/namaste/internal/platform/cache"
)

type stubKeys struct {
	key crypto.PublicKey
	err error
}

func (s stubKeys) Key(context.Context, string) (crypto.PublicKey, error) {
	return s.key, s.err
}

func newTestVerifier(t *testing.T, cfg VerifierConfig) (*Verifier, *JWKSKeyProvider) {
	t.Helper()
	key, _ := signingKeys(t)
	srv := newJWKSServer(t, 0, EncodeRSAPublicKey("k1", &key.PublicKey))
	clock := cache.NewManualClock(fixedNow)
	keys := NewJWKSKeyProvider(JWKSOptions{URL: srv.URL, Clock: clock.Now, Logger: zerolog.Nop()})
	return NewVerifier(cfg, keys, clock.Now, nil, zerolog.Nop()), keys
}

func TestVerifier_ValidToken(t *testing.T) {
	key, _ := signingKeys(t)
	v, _ := newTestVerifier(t, VerifierConfig{Issuer: "https://abha.test", Audience: "namaste"})

	tok := signRS256(t, tokenOpts{kid: "k1", key: key, abha: "91234567890123", issuer: "https://abha.test", exp: fixedNow.Add(time.Hour)})
	p, err := v.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.ABHANumber != "91234567890123" {
		t.Errorf("abha number = %q", p.ABHANumber)
	}
	if p.Mode != ModeVerified || p.IsDemo() {
		t.Errorf("expected verified mode, got %q", p.Mode)
	}
	if !p.ExpiresAt.Equal(fixedNow.Add(time.Hour)) {
		t.Errorf("expires at = %v", p.ExpiresAt)
	}
}

func TestVerifier_Rejections(t *testing.T) {
	key, other := signingKeys(t)
	valid := tokenOpts{kid: "k1", key: key, abha: "91234567890123", issuer: "https://abha.test", exp: fixedNow.Add(time.Hour)}

	tests := []struct {
		name       string
		mutate     func(o *tokenOpts)
		raw        string
		want       error
		wantStatus int
	}{
		{name: "expired by one second", mutate: func(o *tokenOpts) { o.exp = fixedNow.Add(-time.Second) }, want: ErrTokenExpired, wantStatus: http.StatusUnauthorized},
		{name: "expires exactly now", mutate: func(o *tokenOpts) { o.exp = fixedNow }, want: ErrTokenExpired, wantStatus: http.StatusUnauthorized},
		{name: "unknown kid", mutate: func(o *tokenOpts) { o.kid = "rotated" }, want: ErrKeyFetchFailed, wantStatus: http.StatusBadGateway},
		{name: "missing kid", mutate: func(o *tokenOpts) { o.kid = "" }, want: ErrTokenMalformed, wantStatus: http.StatusUnauthorized},
		{name: "wrong signing key", mutate: func(o *tokenOpts) { o.key = other }, want: ErrClaimsInvalid, wantStatus: http.StatusUnauthorized},
		{name: "short abha number", mutate: func(o *tokenOpts) { o.abha = "1234" }, want: ErrClaimsInvalid, wantStatus: http.StatusUnauthorized},
		{name: "abhaNumber spelling on rs256", mutate: func(o *tokenOpts) { o.abha, o.abhaAlt = "", "91234567890123" }, want: ErrClaimsInvalid, wantStatus: http.StatusUnauthorized},
		{name: "not yet valid", mutate: func(o *tokenOpts) { o.nbf = fixedNow.Add(time.Hour) }, want: ErrClaimsInvalid, wantStatus: http.StatusUnauthorized},
		{name: "issued in the future", mutate: func(o *tokenOpts) { o.iat = fixedNow.Add(time.Hour) }, want: ErrClaimsInvalid, wantStatus: http.StatusUnauthorized},
		{name: "issuer mismatch", mutate: func(o *tokenOpts) { o.issuer = "https://evil.test" }, want: ErrClaimsInvalid, wantStatus: http.StatusUnauthorized},
		{name: "garbage", raw: "not.a.jwt", want: ErrTokenMalformed, wantStatus: http.StatusUnauthorized},
		{name: "empty", raw: " ", want: ErrTokenMalformed, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := newTestVerifier(t, VerifierConfig{Issuer: "https://abha.test"})
			tok := tt.raw
			if tt.mutate != nil {
				o := valid
				tt.mutate(&o)
				tok = signRS256(t, o)
			}
			_, err := v.Verify(context.Background(), tok)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			status, outcome := Outcome(err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if !outcome.HasErrors() {
				t.Error("expected error outcome")
			}
		})
	}
}

func TestVerifier_NotBeforeWithinSkew(t *testing.T) {
	key, _ := signingKeys(t)
	v, _ := newTestVerifier(t, VerifierConfig{})

	tok := signRS256(t, tokenOpts{kid: "k1", key: key, abha: "91234567890123", nbf: fixedNow.Add(10 * time.Second), exp: fixedNow.Add(time.Hour)})
	if _, err := v.Verify(context.Background(), tok); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifier_DemoJWTAcceptsAbhaNumberSpelling(t *testing.T) {
	v, _ := newTestVerifier(t, VerifierConfig{DemoMode: true})

	claims := abhaClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   DemoABHANumber,
			IssuedAt:  jwt.NewNumericDate(fixedNow),
			ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
		},
		ABHANumberAlt: DemoABHANumber,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = DemoKeyID
	signed, err := tok.SignedString([]byte(DemoSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	p, err := v.Verify(context.Background(), signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.ABHANumber != DemoABHANumber || p.Mode != ModeDemo {
		t.Errorf("unexpected payload %+v", p)
	}
}

func TestVerifier_ExpiredCode(t *testing.T) {
	key, _ := signingKeys(t)
	v, _ := newTestVerifier(t, VerifierConfig{})
	tok := signRS256(t, tokenOpts{kid: "k1", key: key, abha: "91234567890123", exp: fixedNow.Add(-time.Second)})

	_, err := v.Verify(context.Background(), tok)
	_, outcome := Outcome(err)
	if got := outcome.ErrorCode(); got != "ABHA_TOKEN_EXPIRED" {
		t.Errorf("error code = %q", got)
	}
}

func TestVerifier_UnknownKIDNotCached(t *testing.T) {
	key, _ := signingKeys(t)
	v, keys := newTestVerifier(t, VerifierConfig{})
	tok := signRS256(t, tokenOpts{kid: "rotated", key: key, abha: "91234567890123", exp: fixedNow.Add(time.Hour)})

	if _, err := v.Verify(context.Background(), tok); !errors.Is(err, ErrKeyFetchFailed) {
		t.Fatalf("expected ErrKeyFetchFailed, got %v", err)
	}
	if keys.Cached("rotated") {
		t.Error("unknown kid must not be cached")
	}
	if !keys.Cached("k1") {
		t.Error("keys from the fetch should still be cached")
	}
}

func TestVerifier_KeyServiceTimeout(t *testing.T) {
	key, _ := signingKeys(t)
	v := NewVerifier(VerifierConfig{}, stubKeys{err: fmt.Errorf("%w: slow", ErrKeyFetchTimeout)}, nil, nil, zerolog.Nop())
	tok := signRS256(t, tokenOpts{kid: "k1", key: key, abha: "91234567890123", exp: time.Now().Add(time.Hour)})

	_, err := v.Verify(context.Background(), tok)
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if status, _ := Outcome(err); status != http.StatusServiceUnavailable {
		t.Errorf("status = %d", status)
	}
}

func TestVerifier_DemoSentinel(t *testing.T) {
	v, _ := newTestVerifier(t, VerifierConfig{DemoMode: true})

	for _, tok := range []string{DemoSentinelToken, "demo-anything"} {
		p, err := v.Verify(context.Background(), tok)
		if err != nil {
			t.Fatalf("Verify(%q): %v", tok, err)
		}
		if p.ABHANumber != DemoABHANumber || p.Name != DemoName {
			t.Errorf("unexpected demo identity %+v", p)
		}
		if !p.IsDemo() {
			t.Error("demo payload must be flagged")
		}
		if !p.ExpiresAt.Equal(fixedNow.Add(24 * time.Hour)) {
			t.Errorf("expires at = %v", p.ExpiresAt)
		}
	}
}

func TestVerifier_DemoDisabled(t *testing.T) {
	v, _ := newTestVerifier(t, VerifierConfig{})

	if _, err := v.Verify(context.Background(), DemoSentinelToken); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("sentinel: expected ErrTokenMalformed, got %v", err)
	}

	tok, err := IssueDemoToken("", fixedNow, time.Hour)
	if err != nil {
		t.Fatalf("IssueDemoToken: %v", err)
	}
	if _, err := v.Verify(context.Background(), tok); !errors.Is(err, ErrClaimsInvalid) {
		t.Errorf("demo jwt: expected ErrClaimsInvalid, got %v", err)
	}
}

func TestVerifier_DemoJWT(t *testing.T) {
	v, _ := newTestVerifier(t, VerifierConfig{DemoMode: true, Issuer: "https://abha.test"})

	tok, err := IssueDemoToken("", fixedNow, time.Hour)
	if err != nil {
		t.Fatalf("IssueDemoToken: %v", err)
	}
	p, err := v.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.Mode != ModeDemo || p.ABHANumber != DemoABHANumber {
		t.Errorf("unexpected payload %+v", p)
	}

	expired, err := IssueDemoToken("", fixedNow.Add(-2*time.Hour), time.Hour)
	if err != nil {
		t.Fatalf("IssueDemoToken: %v", err)
	}
	if _, err := v.Verify(context.Background(), expired); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}

	forged, err := IssueDemoToken("some-other-secret", fixedNow, time.Hour)
	if err != nil {
		t.Fatalf("IssueDemoToken: %v", err)
	}
	if _, err := v.Verify(context.Background(), forged); !errors.Is(err, ErrClaimsInvalid) {
		t.Errorf("expected ErrClaimsInvalid, got %v", err)
	}
}

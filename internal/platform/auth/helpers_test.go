package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
	otherKey    *rsa.PrivateKey
)

// fixedNow has no sub-second part so NumericDate round trips exactly.
var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func signingKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	testKeyOnce.Do(func() {
		var err error
		if testKey, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			panic(err)
		}
		if otherKey, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			panic(err)
		}
	})
	return testKey, otherKey
}

type jwksServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newJWKSServer(t *testing.T, delay time.Duration, keys ...JWK) *jwksServer {
	t.Helper()
	s := &jwksServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(JWKSet{Keys: keys})
	}))
	t.Cleanup(s.Close)
	return s
}

type tokenOpts struct {
	kid     string
	key     *rsa.PrivateKey
	abha    string
	abhaAlt string
	issuer  string
	iat     time.Time
	nbf     time.Time
	exp     time.Time
}

func signRS256(t *testing.T, o tokenOpts) string {
	t.Helper()
	iat := o.iat
	if iat.IsZero() {
		iat = fixedNow.Add(-time.Minute)
	}
	claims := abhaClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-" + o.abha,
			Issuer:    o.issuer,
			Audience:  jwt.ClaimStrings{"namaste"},
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(o.exp),
		},
		ABHANumber:    o.abha,
		ABHANumberAlt: o.abhaAlt,
		Name:          "Test User",
	}
	if !o.nbf.IsZero() {
		claims.NotBefore = jwt.NewNumericDate(o.nbf)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if o.kid != "" {
		tok.Header["kid"] = o.kid
	}
	s, err := tok.SignedString(o.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

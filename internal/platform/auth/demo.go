package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DemoSentinelToken = "demo-token-12345"
	DemoTokenPrefix   = "demo-"
	DemoKeyID         = "demo-key-id"
	DemoSecret        = "demo-abha-secret-key-for-testing-only"
	DemoABHANumber    = "12345678901234"
	DemoName          = "Demo ABHA User"
	DemoEmail         = "demo@abha.gov.in"
	DemoMobile        = "9999999999"
	DemoGender        = "M"
	DemoIssuer        = "https://abhasbx.abdm.gov.in"
	DemoAudience      = "abha-demo-app"
	demoLifetime      = 24 * time.Hour
)

func isDemoSentinel(token string) bool {
	return token == DemoSentinelToken || strings.HasPrefix(token, DemoTokenPrefix)
}

// DemoPayload is the fixed identity returned for demo sentinel tokens.
func DemoPayload(now time.Time) *TokenPayload {
	return &TokenPayload{
		Subject:    DemoABHANumber,
		Issuer:     DemoIssuer,
		Audience:   []string{DemoAudience},
		IssuedAt:   now,
		ExpiresAt:  now.Add(demoLifetime),
		ABHANumber: DemoABHANumber,
		Name:       DemoName,
		Email:      DemoEmail,
		Mobile:     DemoMobile,
		Gender:     DemoGender,
		Mode:       ModeDemo,
	}
}

// IssueDemoToken signs a demo ABHA token with HS256 and the demo key id.
// Verifiers accept it only when demo mode is enabled.
func IssueDemoToken(secret string, now time.Time, ttl time.Duration) (string, error) {
	if secret == "" {
		secret = DemoSecret
	}
	if ttl <= 0 {
		ttl = demoLifetime
	}
	claims := abhaClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   DemoABHANumber,
			Issuer:    DemoIssuer,
			Audience:  jwt.ClaimStrings{DemoAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        "demo-jwt-" + uuid.NewString(),
		},
		ABHANumber: DemoABHANumber,
		Name:       DemoName,
		Email:      DemoEmail,
		Mobile:     DemoMobile,
		Gender:     DemoGender,
		Address: map[string]interface{}{
			"state":    "Delhi",
			"district": "Central Delhi",
			"pincode":  "110001",
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = DemoKeyID
	return tok.SignedString([]byte(secret))
}

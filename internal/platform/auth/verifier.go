package auth

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/namaste/namaste/internal/platform/cache"
	"github.com/namaste/namaste/internal/platform/telemetry"
)

// clockSkew tolerates small drift between the issuer's clock and ours when
// checking iat and nbf.
const clockSkew = 30 * time.Second

// VerifierConfig configures token verification. Issuer and Audience are
// enforced only when non-empty.
type VerifierConfig struct {
	Issuer     string
	Audience   string
	DemoMode   bool
	DemoSecret string
}

// TokenVerifier is the contract handlers and middleware depend on.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*TokenPayload, error)
}

// Verifier checks ABHA access tokens. It never caches tokens; only signing
// keys are cached by the KeyProvider.
type Verifier struct {
	cfg     VerifierConfig
	keys    KeyProvider
	now     cache.Clock
	metrics *telemetry.Metrics
	logger  zerolog.Logger
}

func NewVerifier(cfg VerifierConfig, keys KeyProvider, now cache.Clock, metrics *telemetry.Metrics, logger zerolog.Logger) *Verifier {
	if now == nil {
		now = cache.SystemClock
	}
	if cfg.DemoSecret == "" {
		cfg.DemoSecret = DemoSecret
	}
	return &Verifier{cfg: cfg, keys: keys, now: now, metrics: metrics, logger: logger}
}

// DemoMode reports whether demo tokens are accepted.
func (v *Verifier) DemoMode() bool { return v.cfg.DemoMode }

func (v *Verifier) Verify(ctx context.Context, token string) (*TokenPayload, error) {
	p, err := v.verify(ctx, strings.TrimSpace(token))
	if err != nil {
		var ve *VerifyError
		if errors.As(err, &ve) {
			v.metrics.IncTokenVerification(ve.Kind.String(), "")
			v.logger.Debug().
				Str("kind", ve.Kind.String()).
				Str("stage", ve.Stage.String()).
				Str("reason", ve.Reason).
				Msg("token rejected")
		}
		return nil, err
	}
	v.metrics.IncTokenVerification("ok", string(p.Mode))
	return p, nil
}

func (v *Verifier) verify(ctx context.Context, token string) (*TokenPayload, error) {
	if token == "" {
		return nil, reject(KindTokenMalformed, StateUnverified, "empty token", nil)
	}

	// The sentinel is opaque, so it has to be recognised before any decode.
	if v.cfg.DemoMode && isDemoSentinel(token) {
		return DemoPayload(v.now()), nil
	}

	parser := jwt.NewParser()
	unverified, _, err := parser.ParseUnverified(token, &abhaClaims{})
	if err != nil {
		return nil, reject(KindTokenMalformed, StateUnverified, "undecodable token", err)
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, reject(KindTokenMalformed, StateUnverified, "missing kid header", nil)
	}
	alg, _ := unverified.Header["alg"].(string)

	if v.cfg.DemoMode && alg == jwt.SigningMethodHS256.Alg() && kid == DemoKeyID {
		return v.verifyDemoJWT(token)
	}
	if alg != jwt.SigningMethodRS256.Alg() {
		return nil, reject(KindClaimsInvalid, StateUnverified, fmt.Sprintf("unsupported alg %q", alg), nil)
	}

	key, err := v.keys.Key(ctx, kid)
	if err != nil {
		if errors.Is(err, ErrKeyFetchTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, reject(KindServiceUnavailable, StateUnverified, "key service timeout", err)
		}
		return nil, reject(KindKeyFetchFailed, StateUnverified, "resolve signing key", err)
	}

	claims, err := v.checkSignature(token, jwt.SigningMethodRS256.Alg(), key)
	if err != nil {
		return nil, err
	}
	if err := v.checkClaims(claims, true); err != nil {
		return nil, err
	}
	return claims.payload(ModeVerified), nil
}

func (v *Verifier) verifyDemoJWT(token string) (*TokenPayload, error) {
	claims, err := v.checkSignature(token, jwt.SigningMethodHS256.Alg(), []byte(v.cfg.DemoSecret))
	if err != nil {
		return nil, err
	}
	if claims.ABHANumber == "" {
		claims.ABHANumber = claims.ABHANumberAlt
	}
	if err := v.checkClaims(claims, false); err != nil {
		return nil, err
	}
	return claims.payload(ModeDemo), nil
}

// checkSignature verifies only the signature and algorithm. Time-based and
// registered claims are checked afterwards against the injected clock.
func (v *Verifier) checkSignature(token, alg string, key crypto.PublicKey) (*abhaClaims, error) {
	claims := &abhaClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{alg}), jwt.WithoutClaimsValidation())
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, reject(KindTokenMalformed, StateKeyResolved, "undecodable token", err)
		}
		return nil, reject(KindClaimsInvalid, StateKeyResolved, "signature verification failed", err)
	}
	return claims, nil
}

// checkClaims enforces required claims, the ABHA number format, the
// not-before and issued-at times, issuer and audience, then expiry. Expired is
// reported only when nothing else failed.
func (v *Verifier) checkClaims(c *abhaClaims, enforceIssuer bool) error {
	now := v.now()
	var problems []string
	if c.Subject == "" {
		problems = append(problems, "missing sub")
	}
	if c.IssuedAt == nil {
		problems = append(problems, "missing iat")
	}
	if c.ExpiresAt == nil {
		problems = append(problems, "missing exp")
	}
	if c.IssuedAt != nil && c.IssuedAt.Time.After(now.Add(clockSkew)) {
		problems = append(problems, "iat in the future")
	}
	if c.NotBefore != nil && c.NotBefore.Time.After(now.Add(clockSkew)) {
		problems = append(problems, "token not valid before "+c.NotBefore.Time.UTC().Format("2006-01-02T15:04:05Z"))
	}
	switch n := c.ABHANumber; {
	case n == "":
		problems = append(problems, "missing abha_number")
	case !ValidABHANumber(n):
		problems = append(problems, "abha_number must be 14 digits")
	}
	if enforceIssuer {
		if v.cfg.Issuer != "" && c.Issuer != v.cfg.Issuer {
			problems = append(problems, "issuer mismatch")
		}
		if v.cfg.Audience != "" && !containsString(c.Audience, v.cfg.Audience) {
			problems = append(problems, "audience mismatch")
		}
	}
	if len(problems) > 0 {
		return reject(KindClaimsInvalid, StateSignatureValid, strings.Join(problems, ", "), nil)
	}

	if !c.ExpiresAt.Time.After(now) {
		return reject(KindTokenExpired, StateSignatureValid, "token expired at "+c.ExpiresAt.Time.UTC().Format("2006-01-02T15:04:05Z"), nil)
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

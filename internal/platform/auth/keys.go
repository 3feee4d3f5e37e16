package auth

import (
	"context"
	"crypto"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/namaste/namaste/internal/platform/cache"
	"github.com/namaste/namaste/internal/platform/telemetry"
)

// fetchTimeout bounds a shared JWKS fetch independently of its callers.
const fetchTimeout = 10 * time.Second

var (
	// ErrUnknownKID means the JWKS was fetched but does not contain the kid.
	ErrUnknownKID = errors.New("key id not found in jwks")
	// ErrKeyFetchTimeout means the JWKS endpoint did not answer in time.
	ErrKeyFetchTimeout = errors.New("jwks fetch timed out")
)

// KeyProvider resolves a signing key by key id.
type KeyProvider interface {
	Key(ctx context.Context, kid string) (crypto.PublicKey, error)
}

// JWK is a single JSON Web Key.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSet is the body of a JWKS endpoint.
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

type JWKSOptions struct {
	URL        string
	TTL        time.Duration
	Clock      cache.Clock
	HTTPClient *http.Client
	UserAgent  string
	Metrics    *telemetry.Metrics
	Logger     zerolog.Logger
}

// JWKSKeyProvider fetches RSA signing keys from a JWKS endpoint and caches
// every key it sees for TTL. A kid missing from a fresh fetch is never
// cached, so the next lookup refetches. Concurrent misses share one fetch.
type JWKSKeyProvider struct {
	url       string
	userAgent string
	client    *http.Client
	keys      *cache.TTL[string, crypto.PublicKey]
	group     singleflight.Group
	metrics   *telemetry.Metrics
	logger    zerolog.Logger
}

func NewJWKSKeyProvider(opts JWKSOptions) *JWKSKeyProvider {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Clock == nil {
		opts.Clock = cache.SystemClock
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "namaste-terminology/1.0"
	}
	return &JWKSKeyProvider{
		url:       opts.URL,
		userAgent: opts.UserAgent,
		client:    opts.HTTPClient,
		keys:      cache.NewTTL[string, crypto.PublicKey](opts.TTL, opts.Clock),
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

// URL returns the JWKS endpoint.
func (p *JWKSKeyProvider) URL() string { return p.url }

// Cached reports whether kid is currently held in the key cache.
func (p *JWKSKeyProvider) Cached(kid string) bool { return p.keys.Has(kid) }

func (p *JWKSKeyProvider) Key(ctx context.Context, kid string) (crypto.PublicKey, error) {
	if key, ok := p.keys.Get(kid); ok {
		p.metrics.IncCacheLookup("jwks", true)
		return key, nil
	}
	p.metrics.IncCacheLookup("jwks", false)

	// The shared fetch outlives any single caller; each caller stops waiting
	// when its own context ends.
	ch := p.group.DoChan(p.url, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return p.refresh(fetchCtx)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for jwks: %w", ctx.Err())
	}
	if res.Err != nil {
		p.metrics.IncKeyFetch("error")
		return nil, res.Err
	}
	p.metrics.IncKeyFetch("ok")

	key, ok := res.Val.(map[string]crypto.PublicKey)[kid]
	if !ok {
		p.logger.Warn().Str("kid", kid).Msg("kid not present in jwks")
		return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
	}
	return key, nil
}

// refresh fetches the JWKS and caches every usable key in it.
func (p *JWKSKeyProvider) refresh(ctx context.Context) (map[string]crypto.PublicKey, error) {
	start := time.Now()
	set, err := p.fetch(ctx)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]crypto.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kid == "" || k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := parseRSAPublicKey(k)
		if err != nil {
			p.logger.Warn().Err(err).Str("kid", k.Kid).Msg("skipping malformed jwk")
			continue
		}
		keys[k.Kid] = pub
		p.keys.Set(k.Kid, pub)
	}

	p.logger.Debug().
		Int("keys", len(keys)).
		Dur("latency", time.Since(start)).
		Msg("jwks refreshed")
	return keys, nil
}

func (p *JWKSKeyProvider) fetch(ctx context.Context) (*JWKSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrKeyFetchTimeout, err)
		}
		return nil, fmt.Errorf("GET %s: %w", p.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	var set JWKSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}
	return &set, nil
}

// Ping checks that the JWKS endpoint answers. It backs the ABHA health check
// and leaves the key cache untouched.
func (p *JWKSKeyProvider) Ping(ctx context.Context) error {
	_, err := p.fetch(ctx)
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func parseRSAPublicKey(k JWK) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	if len(nBytes) == 0 || len(eBytes) == 0 {
		return nil, errors.New("empty modulus or exponent")
	}
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() < 3 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(e.Int64())}, nil
}

// EncodeRSAPublicKey renders pub as a JWK. Used by tests and tooling that
// need to publish a key set.
func EncodeRSAPublicKey(kid string, pub *rsa.PublicKey) JWK {
	return JWK{
		Kty: "RSA",
		Kid: kid,
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

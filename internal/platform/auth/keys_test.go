package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/namaste/namaste/internal/platform/cache"
)

func newProvider(t *testing.T, srv *jwksServer, clock *cache.ManualClock, client *http.Client) *JWKSKeyProvider {
	t.Helper()
	return NewJWKSKeyProvider(JWKSOptions{
		URL:        srv.URL,
		Clock:      clock.Now,
		HTTPClient: client,
		Logger:     zerolog.Nop(),
	})
}

func TestJWKSKeyProvider_CachesKeys(t *testing.T) {
	key, _ := signingKeys(t)
	srv := newJWKSServer(t, 0, EncodeRSAPublicKey("k1", &key.PublicKey))
	clock := cache.NewManualClock(fixedNow)
	p := newProvider(t, srv, clock, nil)

	for i := 0; i < 3; i++ {
		if _, err := p.Key(context.Background(), "k1"); err != nil {
			t.Fatalf("Key: %v", err)
		}
	}
	if got := srv.hits.Load(); got != 1 {
		t.Errorf("expected 1 fetch, got %d", got)
	}
	if !p.Cached("k1") {
		t.Error("expected k1 to be cached")
	}
}

func TestJWKSKeyProvider_RefetchesAfterTTL(t *testing.T) {
	key, _ := signingKeys(t)
	srv := newJWKSServer(t, 0, EncodeRSAPublicKey("k1", &key.PublicKey))
	clock := cache.NewManualClock(fixedNow)
	p := newProvider(t, srv, clock, nil)

	if _, err := p.Key(context.Background(), "k1"); err != nil {
		t.Fatalf("Key: %v", err)
	}
	clock.Advance(24*time.Hour + time.Second)
	if p.Cached("k1") {
		t.Fatal("expected k1 to have expired")
	}
	if _, err := p.Key(context.Background(), "k1"); err != nil {
		t.Fatalf("Key: %v", err)
	}
	if got := srv.hits.Load(); got != 2 {
		t.Errorf("expected 2 fetches, got %d", got)
	}
}

func TestJWKSKeyProvider_UnknownKIDNotCached(t *testing.T) {
	key, _ := signingKeys(t)
	srv := newJWKSServer(t, 0, EncodeRSAPublicKey("k1", &key.PublicKey))
	p := newProvider(t, srv, cache.NewManualClock(fixedNow), nil)

	for i := 0; i < 2; i++ {
		_, err := p.Key(context.Background(), "missing")
		if !errors.Is(err, ErrUnknownKID) {
			t.Fatalf("expected ErrUnknownKID, got %v", err)
		}
	}
	if p.Cached("missing") {
		t.Error("unknown kid must not be cached")
	}
	if got := srv.hits.Load(); got != 2 {
		t.Errorf("expected a fetch per unknown lookup, got %d", got)
	}
}

func TestJWKSKeyProvider_SkipsUnusableKeys(t *testing.T) {
	key, _ := signingKeys(t)
	enc := EncodeRSAPublicKey("enc", &key.PublicKey)
	enc.Use = "enc"
	srv := newJWKSServer(t, 0,
		enc,
		JWK{Kty: "EC", Kid: "ec"},
		JWK{Kty: "RSA", Kid: "bad", N: "!!", E: "AQAB"},
		EncodeRSAPublicKey("good", &key.PublicKey),
	)
	p := newProvider(t, srv, cache.NewManualClock(fixedNow), nil)

	if _, err := p.Key(context.Background(), "good"); err != nil {
		t.Fatalf("Key: %v", err)
	}
	for _, kid := range []string{"enc", "ec", "bad"} {
		if p.Cached(kid) {
			t.Errorf("expected %s to be skipped", kid)
		}
	}
}

func TestJWKSKeyProvider_ConcurrentMissesShareFetch(t *testing.T) {
	key, _ := signingKeys(t)
	srv := newJWKSServer(t, 100*time.Millisecond, EncodeRSAPublicKey("k1", &key.PublicKey))
	p := newProvider(t, srv, cache.NewManualClock(fixedNow), nil)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Key(context.Background(), "k1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
	}
	if got := srv.hits.Load(); got != 1 {
		t.Errorf("expected a single shared fetch, got %d", got)
	}
}

func TestJWKSKeyProvider_Timeout(t *testing.T) {
	key, _ := signingKeys(t)
	srv := newJWKSServer(t, time.Second, EncodeRSAPublicKey("k1", &key.PublicKey))
	p := newProvider(t, srv, cache.NewManualClock(fixedNow), &http.Client{Timeout: 50 * time.Millisecond})

	_, err := p.Key(context.Background(), "k1")
	if !errors.Is(err, ErrKeyFetchTimeout) {
		t.Fatalf("expected ErrKeyFetchTimeout, got %v", err)
	}
}

func TestJWKSKeyProvider_UnreachableEndpoint(t *testing.T) {
	p := NewJWKSKeyProvider(JWKSOptions{URL: "http://127.0.0.1:1/jwks", Logger: zerolog.Nop()})
	if _, err := p.Key(context.Background(), "k1"); err == nil {
		t.Fatal("expected error from unreachable endpoint")
	}
}

func TestJWKSKeyProvider_CancelledCallerDoesNotFailOthers(t *testing.T) {
	key, _ := signingKeys(t)
	srv := newJWKSServer(t, 300*time.Millisecond, EncodeRSAPublicKey("k1", &key.PublicKey))
	p := newProvider(t, srv, cache.NewManualClock(fixedNow), nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := p.Key(ctxA, "k1")
		errA <- err
	}()
	// Let A start the shared fetch before B joins it.
	time.Sleep(50 * time.Millisecond)

	errB := make(chan error, 1)
	go func() {
		_, err := p.Key(context.Background(), "k1")
		errB <- err
	}()
	time.Sleep(50 * time.Millisecond)
	cancelA()

	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Errorf("caller A: expected context.Canceled, got %v", err)
	}
	if err := <-errB; err != nil {
		t.Fatalf("caller B with a live context: %v", err)
	}
	if got := srv.hits.Load(); got != 1 {
		t.Errorf("expected a single shared fetch, got %d", got)
	}
	if !p.Cached("k1") {
		t.Error("expected k1 cached after the shared fetch")
	}
}

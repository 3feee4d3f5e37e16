package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/namaste/namaste/internal/platform/auth"
	"github.com/namaste/namaste/internal/platform/cache"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type stubVerifier struct{ err error }

func (v stubVerifier) Verify(context.Context, string) (*auth.TokenPayload, error) {
	return nil, v.err
}

type fixture struct {
	svc   *Service
	store *MemoryStore
	clock *cache.ManualClock
}

func newFixture(t *testing.T, verifier auth.TokenVerifier) *fixture {
	t.Helper()
	clock := cache.NewManualClock(testNow)
	if verifier == nil {
		verifier = auth.NewVerifier(auth.VerifierConfig{DemoMode: true}, nil, clock.Now, nil, zerolog.Nop())
	}
	profiles := auth.NewProfileService(nil, cache.NewMemoryStore(time.Hour, clock.Now), time.Hour, clock.Now, nil, zerolog.Nop())
	store := NewMemoryStore(clock.Now)
	return &fixture{
		svc:   NewService(store, verifier, profiles, clock.Now, zerolog.Nop()),
		store: store,
		clock: clock,
	}
}

func (f *fixture) addUser(t *testing.T, abha, name, email string) {
	t.Helper()
	if err := f.store.Upsert(context.Background(), &User{ABHAID: abha, ABHANumber: abha, Name: name, Email: email}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestService_Login_Demo(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	s, err := f.svc.Login(ctx, auth.DemoSentinelToken)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if s.Mode != auth.ModeDemo {
		t.Errorf("expected demo mode, got %q", s.Mode)
	}
	if s.User.ABHAID != auth.DemoABHANumber || s.User.Name != auth.DemoName {
		t.Errorf("unexpected user %+v", s.User)
	}
	if !s.User.IsActive || s.User.LastLogin == nil || !s.User.LastLogin.Equal(testNow) {
		t.Errorf("expected active user with last login %v, got %+v", testNow, s.User)
	}
	if !s.ExpiresAt.After(testNow) {
		t.Errorf("session expiry %v not after now", s.ExpiresAt)
	}

	stored, err := f.store.FindByABHAID(ctx, auth.DemoABHANumber)
	if err != nil {
		t.Fatalf("FindByABHAID: %v", err)
	}
	if stored.Mobile != auth.DemoMobile || stored.HealthID != "demo@abha" {
		t.Errorf("profile fields not stored: %+v", stored)
	}
}

func TestService_Login_RefreshesProfile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.svc.Login(ctx, auth.DemoSentinelToken); err != nil {
		t.Fatalf("Login: %v", err)
	}
	email := "vaidya@example.in"
	if _, err := f.svc.UpdateContact(ctx, auth.DemoABHANumber, ContactUpdate{Email: &email}); err != nil {
		t.Fatalf("UpdateContact: %v", err)
	}

	f.clock.Advance(time.Hour)
	s, err := f.svc.Login(ctx, auth.DemoSentinelToken)
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	// The demo profile always carries an email, so the refreshed value wins.
	if s.User.Email != auth.DemoEmail {
		t.Errorf("expected profile email, got %q", s.User.Email)
	}
	if !s.User.LastLogin.Equal(testNow.Add(time.Hour)) {
		t.Errorf("last login not advanced: %v", s.User.LastLogin)
	}
}

func TestService_Login_Inactive(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addUser(t, auth.DemoABHANumber, "Demo", "")
	if ok, _ := f.store.Deactivate(ctx, auth.DemoABHANumber); !ok {
		t.Fatal("deactivate seed user")
	}
	if _, err := f.svc.Login(ctx, auth.DemoSentinelToken); !errors.Is(err, ErrUserInactive) {
		t.Fatalf("expected ErrUserInactive, got %v", err)
	}
}

func TestService_Login_Rejected(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Login(context.Background(), "not-a-jwt")
	if !errors.Is(err, auth.ErrTokenMalformed) {
		t.Fatalf("expected malformed token error, got %v", err)
	}
}

func TestService_VerifyToken(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	v, err := f.svc.VerifyToken(ctx, auth.DemoSentinelToken)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if !v.Valid || v.Mode != auth.ModeDemo || v.Profile == nil || !v.Profile.Demo {
		t.Errorf("unexpected verification %+v", v)
	}

	v, err = f.svc.VerifyToken(ctx, "not-a-jwt")
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if v.Valid || v.Code != "ABHA_TOKEN_MALFORMED" {
		t.Errorf("expected invalid malformed verification, got %+v", v)
	}

	if _, err := f.svc.Login(ctx, auth.DemoSentinelToken); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if st, _ := f.svc.Stats(ctx); st.Total != 1 {
		t.Errorf("VerifyToken must not create users; stats %+v", st)
	}
}

func TestService_VerifyToken_KeyServiceDown(t *testing.T) {
	f := newFixture(t, stubVerifier{err: auth.ErrServiceUnavailable})
	if _, err := f.svc.VerifyToken(context.Background(), "x"); !errors.Is(err, auth.ErrServiceUnavailable) {
		t.Fatalf("expected service unavailable error, got %v", err)
	}
}

func TestService_UpdateContact(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addUser(t, "11111111111111", "Asha", "asha@example.in")

	str := func(s string) *string { return &s }
	tests := []struct {
		name    string
		upd     ContactUpdate
		wantErr error
	}{
		{"empty", ContactUpdate{}, ErrInvalidInput},
		{"bad email", ContactUpdate{Email: str("asha-at-example")}, ErrInvalidInput},
		{"bad mobile", ContactUpdate{Mobile: str("12345")}, ErrInvalidInput},
		{"landline prefix", ContactUpdate{Mobile: str("5123456789")}, ErrInvalidInput},
		{"valid mobile", ContactUpdate{Mobile: str("+91 9876543210")}, nil},
		{"valid email", ContactUpdate{Email: str(" asha@ayush.gov.in ")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpdateContact(ctx, "11111111111111", tt.upd)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	u, _ := f.store.FindByABHAID(ctx, "11111111111111")
	if u.Email != "asha@ayush.gov.in" || u.Mobile != "+91 9876543210" {
		t.Errorf("contact not updated: %+v", u)
	}

	email := "x@y.in"
	if _, err := f.svc.UpdateContact(ctx, "99999999999999", ContactUpdate{Email: &email}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestService_StatsAndRecent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addUser(t, "11111111111111", "Asha", "")
	f.addUser(t, "22222222222222", "Bhanu", "")
	f.addUser(t, "33333333333333", "Chitra", "")

	_ = f.store.TouchLastLogin(ctx, "11111111111111", testNow.Add(-10*24*time.Hour))
	_ = f.store.TouchLastLogin(ctx, "22222222222222", testNow.Add(-time.Hour))
	_, _ = f.store.Deactivate(ctx, "33333333333333")

	st, err := f.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := Stats{Total: 3, Active: 2, Inactive: 1, RecentLogins: 1}
	if *st != want {
		t.Errorf("expected %+v, got %+v", want, *st)
	}

	recent, err := f.svc.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].ABHAID != "22222222222222" {
		t.Errorf("expected most recent login first, got %d users", len(recent))
	}
	if recent, _ = f.svc.Recent(ctx, 1); len(recent) != 1 {
		t.Errorf("limit not applied: %d", len(recent))
	}
}

func TestService_Search(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addUser(t, "11111111111111", "Asha Verma", "asha@example.in")
	f.addUser(t, "22222222222222", "Bhanu Rao", "bhanu@ayush.in")

	if _, err := f.svc.Search(ctx, "  ", 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for blank query, got %v", err)
	}
	for q, want := range map[string]string{
		"asha":   "11111111111111",
		"ayush":  "22222222222222",
		"222222": "22222222222222",
	} {
		got, err := f.svc.Search(ctx, q, 0)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		if len(got) != 1 || got[0].ABHAID != want {
			t.Errorf("Search(%q): expected %s, got %d users", q, want, len(got))
		}
	}
}

func TestService_Deactivate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.addUser(t, "11111111111111", "Asha", "")

	if err := f.svc.Deactivate(ctx, "11111111111111", "11111111111111"); !errors.Is(err, ErrSelfDeactivation) {
		t.Errorf("expected ErrSelfDeactivation, got %v", err)
	}
	if err := f.svc.Deactivate(ctx, auth.DemoABHANumber, "11111111111111"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if err := f.svc.Deactivate(ctx, auth.DemoABHANumber, "11111111111111"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("second deactivate: expected ErrUserNotFound, got %v", err)
	}
	if err := f.svc.Deactivate(ctx, auth.DemoABHANumber, "00000000000000"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing user: expected ErrUserNotFound, got %v", err)
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, def, want int }{
		{0, 10, 10},
		{-3, 20, 20},
		{7, 10, 7},
		{500, 10, MaxListLimit},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in, tt.def); got != tt.want {
			t.Errorf("clampLimit(%d, %d) = %d, want %d", tt.in, tt.def, got, tt.want)
		}
	}
}

package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/namaste/namaste/internal/platform/auth"
	"github.com/namaste/namaste/internal/platform/cache"
)

const (
	DefaultRecentLimit = 10
	DefaultSearchLimit = 20
	MaxListLimit       = 50
	// StatsWindow is how far back a login counts as recent.
	StatsWindow = 7 * 24 * time.Hour
)

// ProfileSource resolves and forgets ABHA profiles. *auth.ProfileService
// satisfies it.
type ProfileSource interface {
	Profile(ctx context.Context, accessToken string, p *auth.TokenPayload) *auth.Profile
	Invalidate(ctx context.Context, abhaNumber string) error
}

// Session is returned by a successful login.
type Session struct {
	User      *User         `json:"user"`
	Token     string        `json:"token"`
	Mode      auth.Mode     `json:"mode"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Profile   *auth.Profile `json:"profile"`
}

// Verification is the answer to a token check. Code is set only when the
// token was rejected.
type Verification struct {
	Valid   bool          `json:"valid"`
	Mode    auth.Mode     `json:"mode,omitempty"`
	Profile *auth.Profile `json:"profile,omitempty"`
	Code    string        `json:"code,omitempty"`
	Message string        `json:"message,omitempty"`
}

type Service struct {
	store    Store
	verifier auth.TokenVerifier
	profiles ProfileSource
	now      cache.Clock
	logger   zerolog.Logger
}

func NewService(store Store, verifier auth.TokenVerifier, profiles ProfileSource, now cache.Clock, logger zerolog.Logger) *Service {
	if now == nil {
		now = cache.SystemClock
	}
	return &Service{store: store, verifier: verifier, profiles: profiles, now: now, logger: logger}
}

// Login verifies token, resolves the profile and records the user. A
// deactivated account is refused with ErrUserInactive.
func (s *Service) Login(ctx context.Context, token string) (*Session, error) {
	payload, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	profile := s.profiles.Profile(ctx, token, payload)

	u := FromProfile(profile, payload)
	existing, err := s.store.FindByABHAID(ctx, u.ABHAID)
	switch {
	case err == nil && !existing.IsActive:
		return nil, fmt.Errorf("%w: %s", ErrUserInactive, u.ABHAID)
	case err != nil && !errors.Is(err, ErrUserNotFound):
		return nil, err
	}

	if err := s.store.Upsert(ctx, u); err != nil {
		return nil, err
	}
	at := s.now()
	if err := s.store.TouchLastLogin(ctx, u.ABHAID, at); err != nil {
		return nil, err
	}
	u.LastLogin = &at

	s.logger.Info().
		Str("abha_id", u.ABHAID).
		Str("mode", string(payload.Mode)).
		Bool("minimal_profile", profile.Minimal).
		Msg("user logged in")

	return &Session{
		User:      u,
		Token:     strings.TrimSpace(token),
		Mode:      payload.Mode,
		ExpiresAt: payload.ExpiresAt,
		Profile:   profile,
	}, nil
}

// VerifyToken checks token without touching the user store. Rejected
// credentials produce a Verification with Valid false; failures of the key
// service are returned as errors.
func (s *Service) VerifyToken(ctx context.Context, token string) (*Verification, error) {
	payload, err := s.verifier.Verify(ctx, token)
	if err != nil {
		var ve *auth.VerifyError
		if errors.As(err, &ve) && ve.Kind.HTTPStatus() < 500 {
			return &Verification{Code: ve.Kind.Code(), Message: ve.Error()}, nil
		}
		return nil, err
	}
	return &Verification{
		Valid:   true,
		Mode:    payload.Mode,
		Profile: s.profiles.Profile(ctx, token, payload),
	}, nil
}

func (s *Service) Profile(ctx context.Context, abhaID string) (*User, error) {
	return s.store.FindByABHAID(ctx, abhaID)
}

// UpdateContact validates and stores new contact details, then drops the
// cached ABHA profile so the next read is fresh.
func (s *Service) UpdateContact(ctx context.Context, abhaID string, upd ContactUpdate) (*User, error) {
	if upd.Email == nil && upd.Mobile == nil {
		return nil, fmt.Errorf("%w: email or mobile is required", ErrInvalidInput)
	}
	if upd.Email != nil {
		e := strings.TrimSpace(*upd.Email)
		if !ValidEmail(e) {
			return nil, fmt.Errorf("%w: invalid email format", ErrInvalidInput)
		}
		upd.Email = &e
	}
	if upd.Mobile != nil {
		m := strings.TrimSpace(*upd.Mobile)
		if !ValidMobile(m) {
			return nil, fmt.Errorf("%w: invalid mobile number format", ErrInvalidInput)
		}
		upd.Mobile = &m
	}

	u, err := s.store.UpdateContact(ctx, abhaID, upd)
	if err != nil {
		return nil, err
	}
	if err := s.profiles.Invalidate(ctx, u.ABHANumber); err != nil {
		s.logger.Warn().Err(err).Str("abha_id", abhaID).Msg("profile cache invalidation failed")
	}
	return u, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.store.Stats(ctx, s.now().Add(-StatsWindow))
}

func clampLimit(limit, def int) int {
	switch {
	case limit <= 0:
		return def
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

func (s *Service) Recent(ctx context.Context, limit int) ([]*User, error) {
	return s.store.Recent(ctx, clampLimit(limit, DefaultRecentLimit))
}

func (s *Service) Search(ctx context.Context, query string, limit int) ([]*User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrInvalidInput)
	}
	return s.store.Search(ctx, query, clampLimit(limit, DefaultSearchLimit))
}

// Deactivate disables target on behalf of actor. Users cannot deactivate
// themselves.
func (s *Service) Deactivate(ctx context.Context, actor, target string) error {
	if actor == target {
		return ErrSelfDeactivation
	}
	ok, err := s.store.Deactivate(ctx, target)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w or already inactive: %s", ErrUserNotFound, target)
	}
	s.logger.Info().Str("abha_id", target).Str("by", actor).Msg("user deactivated")
	return nil
}

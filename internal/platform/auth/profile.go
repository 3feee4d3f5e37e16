package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/namaste/namaste/internal/platform/cache"
	"github.com/namaste/namaste/internal/platform/telemetry"
)

// Address is the postal address attached to an ABHA profile.
type Address struct {
	Line     string `json:"line,omitempty"`
	District string `json:"district,omitempty"`
	State    string `json:"state,omitempty"`
	Pincode  string `json:"pincode,omitempty"`
}

// Practitioner is present when the ABHA profile lists professional
// qualifications.
type Practitioner struct {
	ID                 string   `json:"id"`
	Specialty          string   `json:"specialty"`
	System             string   `json:"system"`
	Qualifications     []string `json:"qualifications,omitempty"`
	RegistrationNumber string   `json:"registrationNumber,omitempty"`
}

// Profile is the normalised ABHA account profile.
type Profile struct {
	ID                 string        `json:"id"`
	ABHAID             string        `json:"abhaId"`
	ABHANumber         string        `json:"abhaNumber"`
	ABHAAddress        string        `json:"abhaAddress,omitempty"`
	Name               string        `json:"name"`
	FirstName          string        `json:"firstName,omitempty"`
	LastName           string        `json:"lastName,omitempty"`
	Gender             string        `json:"gender,omitempty"`
	DateOfBirth        string        `json:"dateOfBirth,omitempty"`
	Mobile             string        `json:"mobile,omitempty"`
	Email              string        `json:"email,omitempty"`
	Address            *Address      `json:"address,omitempty"`
	Practitioner       *Practitioner `json:"practitioner,omitempty"`
	VerificationStatus string        `json:"verificationStatus"`
	Minimal            bool          `json:"minimal,omitempty"`
	Demo               bool          `json:"demo,omitempty"`
	LastUpdated        time.Time     `json:"lastUpdated"`
}

// MinimalProfile is served when the profile endpoint cannot be reached.
func MinimalProfile(abhaNumber string, now time.Time) *Profile {
	return &Profile{
		ID:                 abhaNumber,
		ABHAID:             abhaNumber,
		ABHANumber:         abhaNumber,
		Name:               "ABHA User",
		VerificationStatus: "verified",
		Minimal:            true,
		LastUpdated:        now,
	}
}

// DemoProfile is synthesised from the demo identity without any network call.
func DemoProfile(now time.Time) *Profile {
	return &Profile{
		ID:          "demo-abha-user",
		ABHAID:      DemoABHANumber,
		ABHANumber:  DemoABHANumber,
		ABHAAddress: "demo@abha",
		Name:        DemoName,
		FirstName:   "Demo",
		LastName:    "User",
		Gender:      DemoGender,
		Mobile:      DemoMobile,
		Email:       DemoEmail,
		Practitioner: &Practitioner{
			ID:                 "practitioner-demo-abha",
			Specialty:          "Traditional Medicine",
			System:             "ayurveda",
			Qualifications:     []string{"BAMS"},
			RegistrationNumber: "AYUSH/DEMO/12345",
		},
		VerificationStatus: "verified",
		Demo:               true,
		LastUpdated:        now,
	}
}

// ProfileFetcher retrieves the raw account profile for a token.
type ProfileFetcher interface {
	Fetch(ctx context.Context, accessToken, abhaNumber string) (*Profile, error)
}

// rawProfile is the ABHA account endpoint's response body.
type rawProfile struct {
	HealthIDNumber string `json:"healthIdNumber"`
	ABHANumber     string `json:"abha_number"`
	ABHAAddress    string `json:"abha_address"`
	Name           string `json:"name"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Gender         string `json:"gender"`
	DateOfBirth    string `json:"dateOfBirth"`
	Mobile         string `json:"mobile"`
	Email          string `json:"email"`
	Address        *struct {
		Line     string `json:"line"`
		District string `json:"district"`
		State    string `json:"state"`
		Pincode  string `json:"pincode"`
	} `json:"address"`
	KYCStatus                  string   `json:"kycStatus"`
	ProfessionalQualifications []string `json:"professionalQualifications"`
	RegistrationNumber         string   `json:"registrationNumber"`
}

func (r *rawProfile) normalize(abhaNumber string, now time.Time) *Profile {
	p := &Profile{
		ID:                 r.HealthIDNumber,
		ABHAID:             r.ABHANumber,
		ABHANumber:         r.ABHANumber,
		ABHAAddress:        r.ABHAAddress,
		Name:               r.Name,
		FirstName:          r.FirstName,
		LastName:           r.LastName,
		Gender:             r.Gender,
		DateOfBirth:        r.DateOfBirth,
		Mobile:             r.Mobile,
		Email:              r.Email,
		VerificationStatus: r.KYCStatus,
		LastUpdated:        now,
	}
	if p.ABHANumber == "" {
		p.ABHAID, p.ABHANumber = abhaNumber, abhaNumber
	}
	if p.ID == "" {
		p.ID = p.ABHANumber
	}
	if p.VerificationStatus == "" {
		p.VerificationStatus = "verified"
	}
	if r.Address != nil {
		p.Address = &Address{Line: r.Address.Line, District: r.Address.District, State: r.Address.State, Pincode: r.Address.Pincode}
	}
	if len(r.ProfessionalQualifications) > 0 {
		p.Practitioner = &Practitioner{
			ID:                 "practitioner-" + p.ABHANumber,
			Specialty:          "Traditional Medicine",
			System:             "ayurveda",
			Qualifications:     r.ProfessionalQualifications,
			RegistrationNumber: r.RegistrationNumber,
		}
	}
	return p
}

// HTTPProfileFetcher calls the ABHA account profile endpoint.
type HTTPProfileFetcher struct {
	url    string
	client *http.Client
	now    cache.Clock
}

func NewHTTPProfileFetcher(url string, client *http.Client, now cache.Clock) *HTTPProfileFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if now == nil {
		now = cache.SystemClock
	}
	return &HTTPProfileFetcher{url: url, client: client, now: now}
}

func (f *HTTPProfileFetcher) Fetch(ctx context.Context, accessToken, abhaNumber string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-ABHA-Number", abhaNumber)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("profile endpoint returned status %d", resp.StatusCode)
	}

	var raw rawProfile
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return raw.normalize(abhaNumber, f.now()), nil
}

// ProfileService serves profiles through a cache keyed by ABHA number. It
// never fails: fetch errors degrade to MinimalProfile, which is not cached.
type ProfileService struct {
	fetcher ProfileFetcher
	store   cache.Store
	ttl     time.Duration
	now     cache.Clock
	metrics *telemetry.Metrics
	logger  zerolog.Logger
}

func NewProfileService(fetcher ProfileFetcher, store cache.Store, ttl time.Duration, now cache.Clock, metrics *telemetry.Metrics, logger zerolog.Logger) *ProfileService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if now == nil {
		now = cache.SystemClock
	}
	return &ProfileService{fetcher: fetcher, store: store, ttl: ttl, now: now, metrics: metrics, logger: logger}
}

func profileKey(abhaNumber string) string { return "profile:" + abhaNumber }

func (s *ProfileService) Profile(ctx context.Context, accessToken string, p *TokenPayload) *Profile {
	if p.IsDemo() {
		return DemoProfile(s.now())
	}
	key := profileKey(p.ABHANumber)

	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Msg("profile cache read failed")
	}
	if ok {
		var cached Profile
		if err := json.Unmarshal(raw, &cached); err == nil {
			s.metrics.IncCacheLookup("profile", true)
			return &cached
		}
	}
	s.metrics.IncCacheLookup("profile", false)

	prof, err := s.fetcher.Fetch(ctx, accessToken, p.ABHANumber)
	if err != nil {
		s.logger.Warn().Err(err).Msg("profile fetch failed, serving minimal profile")
		return MinimalProfile(p.ABHANumber, s.now())
	}

	if b, err := json.Marshal(prof); err == nil {
		if err := s.store.Set(ctx, key, b, s.ttl); err != nil {
			s.logger.Warn().Err(err).Msg("profile cache write failed")
		}
	}
	return prof
}

// Invalidate drops a cached profile, e.g. after the user edits contact data.
func (s *ProfileService) Invalidate(ctx context.Context, abhaNumber string) error {
	return s.store.Delete(ctx, profileKey(abhaNumber))
}

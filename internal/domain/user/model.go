package user

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/namaste/namaste/internal/platform/auth"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserInactive     = errors.New("user account is deactivated")
	ErrInvalidInput     = errors.New("invalid input")
	ErrSelfDeactivation = errors.New("cannot deactivate your own account")
)

// User is a person who signed in with an ABHA token. ABHAID is the primary
// key; in practice it equals the 14-digit ABHA number.
type User struct {
	ABHAID      string        `db:"abha_id" json:"abhaId"`
	ABHANumber  string        `db:"abha_number" json:"abhaNumber"`
	Name        string        `db:"name" json:"name"`
	Email       string        `db:"email" json:"email,omitempty"`
	Mobile      string        `db:"mobile" json:"mobile,omitempty"`
	Gender      string        `db:"gender" json:"gender,omitempty"`
	DateOfBirth string        `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	Address     *auth.Address `db:"address" json:"address,omitempty"`
	HealthID    string        `db:"health_id" json:"healthId,omitempty"`
	Profile     *auth.Profile `db:"profile" json:"-"`
	LastLogin   *time.Time    `db:"last_login" json:"lastLogin,omitempty"`
	IsActive    bool          `db:"is_active" json:"isActive"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updatedAt"`
}

// FromProfile builds the user record for a verified login.
func FromProfile(p *auth.Profile, payload *auth.TokenPayload) *User {
	u := &User{
		ABHAID:      p.ABHAID,
		ABHANumber:  p.ABHANumber,
		Name:        p.Name,
		Email:       p.Email,
		Mobile:      p.Mobile,
		Gender:      p.Gender,
		DateOfBirth: p.DateOfBirth,
		Address:     p.Address,
		HealthID:    p.ABHAAddress,
		Profile:     p,
		IsActive:    true,
	}
	if u.ABHANumber == "" {
		u.ABHANumber = payload.ABHANumber
	}
	if u.ABHAID == "" {
		u.ABHAID = u.ABHANumber
	}
	if u.Name == "" {
		u.Name = strings.TrimSpace(p.FirstName + " " + p.LastName)
	}
	if u.Name == "" {
		u.Name = payload.Name
	}
	if u.Email == "" {
		u.Email = payload.Email
	}
	if u.Mobile == "" {
		u.Mobile = payload.Mobile
	}
	return u
}

// ContactUpdate carries the fields a user may change on their own profile.
// Nil fields are left untouched.
type ContactUpdate struct {
	Email  *string `json:"email"`
	Mobile *string `json:"mobile"`
}

var (
	emailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mobileRe = regexp.MustCompile(`^(\+91[\-\s]?|0)?[6-9]\d{9}$`)
)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool { return emailRe.MatchString(s) }

// ValidMobile accepts Indian mobile numbers with an optional +91 or 0 prefix.
func ValidMobile(s string) bool { return mobileRe.MatchString(s) }

// Stats summarises the user table. RecentLogins counts users who logged in
// within the last seven days.
type Stats struct {
	Total        int `json:"totalUsers"`
	Active       int `json:"activeUsers"`
	Inactive     int `json:"inactiveUsers"`
	RecentLogins int `json:"recentLogins"`
}

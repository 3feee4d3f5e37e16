package auth

import (
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// State is a step of the verification pipeline.
type State int

const (
	StateUnverified State = iota
	StateKeyResolved
	StateSignatureValid
	StateClaimsValid
	StateVerified
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateUnverified:
		return "unverified"
	case StateKeyResolved:
		return "key_resolved"
	case StateSignatureValid:
		return "signature_valid"
	case StateClaimsValid:
		return "claims_valid"
	case StateVerified:
		return "verified"
	case StateRejected:
		return "rejected"
	}
	return "unknown"
}

// Mode tells verified ABHA identities apart from demo identities.
type Mode string

const (
	ModeVerified Mode = "verified"
	ModeDemo     Mode = "demo"
)

var abhaNumberPattern = regexp.MustCompile(`^\d{14}$`)

// ValidABHANumber reports whether n is a 14-digit ABHA number.
func ValidABHANumber(n string) bool { return abhaNumberPattern.MatchString(n) }

// TokenPayload is the identity extracted from a verified token.
type TokenPayload struct {
	Subject    string                 `json:"sub"`
	Issuer     string                 `json:"iss,omitempty"`
	Audience   []string               `json:"aud,omitempty"`
	IssuedAt   time.Time              `json:"iat"`
	ExpiresAt  time.Time              `json:"exp"`
	ABHANumber string                 `json:"abhaNumber"`
	Name       string                 `json:"name,omitempty"`
	Email      string                 `json:"email,omitempty"`
	Mobile     string                 `json:"mobile,omitempty"`
	Gender     string                 `json:"gender,omitempty"`
	Address    map[string]interface{} `json:"address,omitempty"`
	Mode       Mode                   `json:"mode"`
}

// IsDemo reports whether the payload came from the demo path.
func (p *TokenPayload) IsDemo() bool { return p != nil && p.Mode == ModeDemo }

// abhaClaims is the wire shape of an ABHA access token. ABHANumberAlt holds
// the abhaNumber spelling, honoured only for demo-signed tokens.
type abhaClaims struct {
	jwt.RegisteredClaims
	ABHANumber    string                 `json:"abha_number,omitempty"`
	ABHANumberAlt string                 `json:"abhaNumber,omitempty"`
	Name          string                 `json:"name,omitempty"`
	Email         string                 `json:"email,omitempty"`
	Mobile        string                 `json:"mobile,omitempty"`
	Gender        string                 `json:"gender,omitempty"`
	Address       map[string]interface{} `json:"address,omitempty"`
}

func (c *abhaClaims) payload(mode Mode) *TokenPayload {
	p := &TokenPayload{
		Subject:    c.Subject,
		Issuer:     c.Issuer,
		Audience:   c.Audience,
		ABHANumber: c.ABHANumber,
		Name:       c.Name,
		Email:      c.Email,
		Mobile:     c.Mobile,
		Gender:     c.Gender,
		Address:    c.Address,
		Mode:       mode,
	}
	if c.IssuedAt != nil {
		p.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}

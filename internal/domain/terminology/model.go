package terminology

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/namaste/namaste/internal/platform/fhir"
)

// Code system URIs.
const (
	SystemAyurveda = "http://terminology.gov.in/namaste/ayurveda"
	SystemSiddha   = "http://terminology.gov.in/namaste/siddha"
	SystemUnani    = "http://terminology.gov.in/namaste/unani"
	SystemICD11    = "http://id.who.int/icd/release/11/mms"
)

var (
	// ErrConceptNotFound is returned when no concept has the given system and code.
	ErrConceptNotFound = errors.New("concept not found")
	// ErrValidation wraps every input validation failure in this package.
	ErrValidation = errors.New("validation failed")
)

// Status is the lifecycle state of a concept.
type Status string

const (
	StatusActive     Status = "active"
	StatusInactive   Status = "inactive"
	StatusDeprecated Status = "deprecated"
)

// Concept is a single code in one of the supported code systems. Identity is
// (System, Code).
type Concept struct {
	ID         string                 `db:"id" json:"id"`
	System     string                 `db:"system" json:"system"`
	Code       string                 `db:"code" json:"code"`
	Display    string                 `db:"display" json:"display"`
	Definition string                 `db:"definition" json:"definition,omitempty"`
	Properties map[string]interface{} `db:"properties" json:"properties,omitempty"`
	Status     Status                 `db:"status" json:"status"`
	CreatedAt  time.Time              `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time              `db:"updated_at" json:"updatedAt"`
}

// Coding renders the concept as a FHIR Coding.
func (c *Concept) Coding() fhir.Coding {
	return fhir.Coding{System: c.System, Code: c.Code, Display: c.Display}
}

// IsNAMASTE reports whether the concept belongs to one of the NAMASTE systems.
func (c *Concept) IsNAMASTE() bool { return IsNAMASTE(c.System) }

// SearchOptions narrows a concept search. An empty System searches all systems.
type SearchOptions struct {
	System string
	Limit  int
	Offset int
}

// SystemInfo describes a supported code system.
type SystemInfo struct {
	Alias       string `json:"alias"`
	URI         string `json:"system"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Count       int    `json:"count"`
}

var systems = []SystemInfo{
	{Alias: "ayurveda", URI: SystemAyurveda, Name: "NAMASTE Ayurveda", Description: "Traditional Ayurvedic medicine terminology"},
	{Alias: "siddha", URI: SystemSiddha, Name: "NAMASTE Siddha", Description: "Traditional Siddha medicine terminology"},
	{Alias: "unani", URI: SystemUnani, Name: "NAMASTE Unani", Description: "Traditional Unani medicine terminology"},
	{Alias: "icd11", URI: SystemICD11, Name: "ICD-11 MMS", Description: "WHO International Classification of Diseases 11th Revision"},
}

// Systems returns the supported code systems in a fixed order.
func Systems() []SystemInfo {
	out := make([]SystemInfo, len(systems))
	copy(out, systems)
	return out
}

// ResolveSystem maps an alias or a full URI to the canonical system URI.
func ResolveSystem(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, sys := range systems {
		if strings.EqualFold(s, sys.Alias) || s == sys.URI {
			return sys.URI, nil
		}
	}
	if strings.EqualFold(s, "icd-11") {
		return SystemICD11, nil
	}
	return "", fmt.Errorf("%w: unknown code system %q", ErrValidation, s)
}

// SystemAlias returns the short alias for a system URI, or the URI itself.
func SystemAlias(uri string) string {
	for _, sys := range systems {
		if sys.URI == uri {
			return sys.Alias
		}
	}
	return uri
}

// SystemInfoFor returns the description of a supported system.
func SystemInfoFor(uri string) (SystemInfo, bool) {
	for _, sys := range systems {
		if sys.URI == uri {
			return sys, true
		}
	}
	return SystemInfo{}, false
}

// IsNAMASTE reports whether uri is one of the NAMASTE systems.
func IsNAMASTE(uri string) bool {
	return uri == SystemAyurveda || uri == SystemSiddha || uri == SystemUnani
}

package terminology

import (
	"fmt"
	"sort"
	"time"
)

// CodeSystem is the FHIR CodeSystem resource rendered from the repository.
type CodeSystem struct {
	ResourceType  string              `json:"resourceType"`
	ID            string              `json:"id"`
	URL           string              `json:"url"`
	Version       string              `json:"version"`
	Name          string              `json:"name"`
	Title         string              `json:"title"`
	Status        string              `json:"status"`
	Date          string              `json:"date"`
	Publisher     string              `json:"publisher"`
	Description   string              `json:"description,omitempty"`
	CaseSensitive bool                `json:"caseSensitive"`
	Content       string              `json:"content"`
	Count         int                 `json:"count"`
	Concept       []CodeSystemConcept `json:"concept"`
}

type CodeSystemConcept struct {
	Code       string               `json:"code"`
	Display    string               `json:"display"`
	Definition string               `json:"definition,omitempty"`
	Property   []CodeSystemProperty `json:"property,omitempty"`
}

type CodeSystemProperty struct {
	Code        string `json:"code"`
	ValueString string `json:"valueString"`
}

// CodeSystemVersion is the published version of the generated code systems.
const CodeSystemVersion = "1.0.0"

// NewCodeSystem builds a complete CodeSystem. Properties are rendered as
// string values in key order so output is stable.
func NewCodeSystem(uri string, concepts []*Concept, total int, now time.Time) *CodeSystem {
	alias := SystemAlias(uri)
	info, _ := SystemInfoFor(uri)
	cs := &CodeSystem{
		ResourceType:  "CodeSystem",
		ID:            "namaste-" + alias,
		URL:           uri,
		Version:       CodeSystemVersion,
		Name:          "NAMASTE_" + alias,
		Title:         info.Name,
		Status:        "active",
		Date:          now.UTC().Format(time.RFC3339),
		Publisher:     "Ministry of AYUSH, Government of India",
		Description:   info.Description,
		CaseSensitive: true,
		Content:       "complete",
		Count:         total,
		Concept:       make([]CodeSystemConcept, 0, len(concepts)),
	}
	if uri == SystemICD11 {
		cs.ID, cs.Name, cs.Publisher = "icd11-mms", "ICD11_MMS", "World Health Organization"
	}
	for _, c := range concepts {
		csc := CodeSystemConcept{Code: c.Code, Display: c.Display, Definition: c.Definition}
		keys := make([]string, 0, len(c.Properties))
		for k := range c.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			csc.Property = append(csc.Property, CodeSystemProperty{Code: k, ValueString: fmt.Sprint(c.Properties[k])})
		}
		cs.Concept = append(cs.Concept, csc)
	}
	return cs
}

package conceptmap

import (
	"context"
	"fmt"
	"time"

	"github.com/namaste/namaste/internal/domain/terminology"
	"github.com/namaste/namaste/internal/platform/fhir"
)

// ConceptMapURL is the canonical URL of the generated NAMASTE to ICD-11 map.
const ConceptMapURL = "http://terminology.gov.in/namaste/ConceptMap/namaste-icd11"

// ConceptMapResource is the FHIR ConceptMap rendered from active mappings.
type ConceptMapResource struct {
	ResourceType string            `json:"resourceType"`
	ID           string            `json:"id"`
	URL          string            `json:"url"`
	Version      string            `json:"version"`
	Name         string            `json:"name"`
	Title        string            `json:"title"`
	Status       string            `json:"status"`
	Date         string            `json:"date"`
	Publisher    string            `json:"publisher"`
	SourceURI    string            `json:"sourceUri,omitempty"`
	TargetURI    string            `json:"targetUri"`
	Group        []ConceptMapGroup `json:"group"`
}

type ConceptMapGroup struct {
	Source  string              `json:"source"`
	Target  string              `json:"target"`
	Element []ConceptMapElement `json:"element"`
}

type ConceptMapElement struct {
	Code    string                    `json:"code"`
	Display string                    `json:"display,omitempty"`
	Target  []ConceptMapElementTarget `json:"target"`
}

type ConceptMapElementTarget struct {
	Code        string           `json:"code"`
	Display     string           `json:"display,omitempty"`
	Equivalence Equivalence      `json:"equivalence"`
	Comment     string           `json:"comment,omitempty"`
	Extension   []fhir.Extension `json:"extension,omitempty"`
}

// MappingConfidenceURL is the extension carrying a mapping's confidence.
const MappingConfidenceURL = "http://terminology.gov.in/namaste/StructureDefinition/mapping-confidence"

// UnmappableURL is the extension flagging a coding with no target mapping.
const UnmappableURL = "http://terminology.gov.in/namaste/StructureDefinition/unmappable"

// NewConceptMapResource groups mappings by (source system, target system),
// preserving the order of ms within each source code. displays supplies
// source concept displays keyed by concept id.
func NewConceptMapResource(sourceSystem string, ms []*Mapping, displays map[string]string, now time.Time) *ConceptMapResource {
	cm := &ConceptMapResource{
		ResourceType: "ConceptMap",
		ID:           "namaste-icd11",
		URL:          ConceptMapURL,
		Version:      terminology.CodeSystemVersion,
		Name:         "NAMASTE_ICD11_ConceptMap",
		Title:        "NAMASTE to ICD-11 Concept Map",
		Status:       "active",
		Date:         now.UTC().Format(time.RFC3339),
		Publisher:    "Ministry of AYUSH, Government of India",
		SourceURI:    sourceSystem,
		TargetURI:    terminology.SystemICD11,
		Group:        []ConceptMapGroup{},
	}

	type groupKey struct{ source, target string }
	groupIdx := map[groupKey]int{}
	elemIdx := map[string]int{}
	for _, m := range ms {
		gk := groupKey{m.SourceSystem, m.TargetSystem}
		gi, ok := groupIdx[gk]
		if !ok {
			gi = len(cm.Group)
			groupIdx[gk] = gi
			cm.Group = append(cm.Group, ConceptMapGroup{Source: m.SourceSystem, Target: m.TargetSystem})
		}
		g := &cm.Group[gi]

		ek := fmt.Sprintf("%d|%s", gi, m.SourceCode)
		ei, ok := elemIdx[ek]
		if !ok {
			ei = len(g.Element)
			elemIdx[ek] = ei
			g.Element = append(g.Element, ConceptMapElement{Code: m.SourceCode, Display: displays[m.SourceConceptID]})
		}
		g.Element[ei].Target = append(g.Element[ei].Target, ConceptMapElementTarget{
			Code:        m.TargetCode,
			Display:     m.TargetDisplay,
			Equivalence: m.Equivalence,
			Comment:     m.Comment,
			Extension:   []fhir.Extension{fhir.DecimalExtension(MappingConfidenceURL, m.Confidence)},
		})
	}
	return cm
}

// ConceptMap renders the active mappings from sourceSystem ("" or "all" for
// every NAMASTE system) as a FHIR ConceptMap.
func (e *Engine) ConceptMap(ctx context.Context, sourceSystem string) (*ConceptMapResource, error) {
	uri, err := optionalSystem(sourceSystem)
	if err != nil {
		return nil, err
	}
	ms, err := e.ActiveMappings(ctx, uri)
	if err != nil {
		return nil, err
	}
	displays := make(map[string]string)
	for _, m := range ms {
		if _, ok := displays[m.SourceConceptID]; ok {
			continue
		}
		c, err := e.concepts.FindByID(ctx, m.SourceConceptID)
		if err != nil {
			e.logger.Warn().Err(err).Str("concept_id", m.SourceConceptID).Msg("mapping source concept missing")
			displays[m.SourceConceptID] = ""
			continue
		}
		displays[m.SourceConceptID] = c.Display
	}
	return NewConceptMapResource(uri, ms, displays, time.Now()), nil
}

// Parameters renders a result as the output of ConceptMap $translate.
func (r *Result) Parameters() *fhir.Parameters {
	params := fhir.NewParameters()
	if !r.Mapped() {
		return params.
			Add(fhir.BoolParam("result", false)).
			Add(fhir.StringParam("message", UnmappableMessage)).
			Add(fhir.Parameter{Name: "match", Part: []fhir.Parameter{
				fhir.CodeParam("equivalence", string(EquivalenceUnmappable)),
				fhir.CodingParam("source", r.Source.Coding()),
			}})
	}

	match := []fhir.Parameter{
		fhir.CodeParam("equivalence", string(r.Equivalence)),
		fhir.CodingParam("concept", fhir.Coding{System: r.Target.System, Code: r.Target.Code, Display: r.Target.Display}),
		fhir.DecimalParam("confidence", r.Confidence),
	}
	if r.Comment != "" {
		match = append(match, fhir.StringParam("comment", r.Comment))
	}
	if r.Origin != "" {
		match = append(match, fhir.CodeParam("origin", string(r.Origin)))
	}
	match = append(match, fhir.CodingParam("source", r.Source.Coding()))
	return params.
		Add(fhir.BoolParam("result", true)).
		Add(fhir.StringParam("message", fmt.Sprintf("Mapped %s to %s", r.Source.Code, r.Target.Code))).
		Add(fhir.Parameter{Name: "match", Part: match})
}

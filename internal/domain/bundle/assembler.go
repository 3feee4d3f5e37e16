// Package bundle assembles dual-coded FHIR Conditions for a patient.
package bundle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/namaste/namaste/internal/domain/conceptmap"
	"github.com/namaste/namaste/internal/domain/terminology"
	"github.com/namaste/namaste/internal/platform/cache"
	"github.com/namaste/namaste/internal/platform/fhir"
)

const (
	// MaxItems caps the number of conditions in one bundle.
	MaxItems = 100

	ClinicalStatusSystem     = "http://terminology.hl7.org/CodeSystem/condition-clinical"
	VerificationStatusSystem = "http://terminology.hl7.org/CodeSystem/condition-ver-status"
	ConditionProfile         = "http://hl7.org/fhir/StructureDefinition/Condition"
)

var clinicalStatuses = map[string]string{
	"active":     "Active",
	"recurrence": "Recurrence",
	"relapse":    "Relapse",
	"inactive":   "Inactive",
	"remission":  "Remission",
	"resolved":   "Resolved",
}

// Item names one source concept to record. ClinicalStatus defaults to active.
type Item struct {
	Code           string `json:"code"`
	System         string `json:"system"`
	ClinicalStatus string `json:"clinicalStatus,omitempty"`
}

type Assembler struct {
	engine *conceptmap.Engine
	now    cache.Clock
	newID  func() string
	logger zerolog.Logger
}

func NewAssembler(engine *conceptmap.Engine, now cache.Clock, logger zerolog.Logger) *Assembler {
	if now == nil {
		now = cache.SystemClock
	}
	return &Assembler{engine: engine, now: now, newID: uuid.NewString, logger: logger}
}

type resolvedItem struct {
	concept *terminology.Concept
	status  string
}

func (a *Assembler) resolve(ctx context.Context, items []Item) ([]resolvedItem, error) {
	out := make([]resolvedItem, len(items))
	for i, it := range items {
		status := strings.ToLower(strings.TrimSpace(it.ClinicalStatus))
		if status == "" {
			status = "active"
		}
		if _, ok := clinicalStatuses[status]; !ok {
			return nil, fmt.Errorf("%w: item %d: unknown clinical status %q", terminology.ErrValidation, i, it.ClinicalStatus)
		}
		if strings.TrimSpace(it.Code) == "" {
			return nil, fmt.Errorf("%w: item %d: code is required", terminology.ErrValidation, i)
		}
		uri, err := terminology.ResolveSystem(it.System)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if !terminology.IsNAMASTE(uri) {
			return nil, fmt.Errorf("%w: item %d: source must be a NAMASTE system", terminology.ErrValidation, i)
		}
		c, err := a.engine.Concepts().FindByCode(ctx, strings.TrimSpace(it.Code), uri)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = resolvedItem{concept: c, status: status}
	}
	return out, nil
}

// Assemble builds a collection Bundle with one Condition per item. Every
// concept is resolved before anything is translated; one unknown concept
// fails the whole request.
func (a *Assembler) Assemble(ctx context.Context, patientID string, items []Item) (*fhir.Bundle, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, fmt.Errorf("%w: patient id is required", terminology.ErrValidation)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: at least one condition is required", terminology.ErrValidation)
	}
	if len(items) > MaxItems {
		return nil, fmt.Errorf("%w: at most %d conditions per bundle", terminology.ErrValidation, MaxItems)
	}

	resolved, err := a.resolve(ctx, items)
	if err != nil {
		return nil, err
	}

	reqs := make([]conceptmap.TranslateRequest, len(resolved))
	for i, r := range resolved {
		reqs[i] = conceptmap.TranslateRequest{SourceCode: r.concept.Code, SourceSystem: r.concept.System}
	}
	results := a.engine.BatchTranslate(ctx, reqs)

	now := a.now().UTC()
	resources := make([]interface{}, len(resolved))
	mapped := 0
	for i, r := range resolved {
		if results[i].Err != nil {
			return nil, fmt.Errorf("translate item %d: %w", i, results[i].Err)
		}
		if results[i].Result.Mapped() {
			mapped++
		}
		resources[i] = a.condition(patientID, r, results[i].Result, now)
	}

	b, err := fhir.NewCollectionBundle(resources)
	if err != nil {
		return nil, err
	}
	b.Timestamp = &now
	b.Meta = &fhir.Meta{LastUpdated: &now}
	a.logger.Debug().Str("patient", patientID).Int("conditions", len(resources)).Int("mapped", mapped).Msg("bundle assembled")
	return b, nil
}

// condition renders one item. Mapped items carry both codings with the
// confidence on the source coding; unmapped items carry the source coding
// flagged as unmappable.
func (a *Assembler) condition(patientID string, r resolvedItem, res *conceptmap.Result, now time.Time) *fhir.Condition {
	source := r.concept.Coding()
	code := fhir.CodeableConcept{Text: r.concept.Display}
	if res.Mapped() {
		source.Extension = []fhir.Extension{fhir.DecimalExtension(conceptmap.MappingConfidenceURL, res.Confidence)}
		code.Coding = []fhir.Coding{source, {System: res.Target.System, Code: res.Target.Code, Display: res.Target.Display}}
	} else {
		source.Extension = []fhir.Extension{fhir.BoolExtension(conceptmap.UnmappableURL, true)}
		code.Coding = []fhir.Coding{source}
	}

	return &fhir.Condition{
		ResourceType: "Condition",
		ID:           a.newID(),
		Meta:         &fhir.Meta{LastUpdated: &now, Profile: []string{ConditionProfile}},
		ClinicalStatus: &fhir.CodeableConcept{Coding: []fhir.Coding{{
			System: ClinicalStatusSystem, Code: r.status, Display: clinicalStatuses[r.status],
		}}},
		VerificationStatus: &fhir.CodeableConcept{Coding: []fhir.Coding{{
			System: VerificationStatusSystem, Code: "confirmed", Display: "Confirmed",
		}}},
		Code:         code,
		Subject:      fhir.Reference{Reference: "Patient/" + patientID},
		RecordedDate: now.Format(time.RFC3339),
	}
}

package conceptmap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/namaste/namaste/internal/domain/terminology"
	"github.com/namaste/namaste/internal/platform/telemetry"
)

// DefaultBatchConcurrency bounds BatchTranslate fan-out.
const DefaultBatchConcurrency = 8

// UnmappableMessage is reported when a concept has no mapping into the
// requested target system.
const UnmappableMessage = "No equivalent concept found in target system"

// Engine translates source concepts to target systems using stored mappings.
type Engine struct {
	concepts    terminology.ConceptRepository
	mappings    MappingStore
	concurrency int
	metrics     *telemetry.Metrics
	logger      zerolog.Logger
}

func NewEngine(concepts terminology.ConceptRepository, mappings MappingStore, concurrency int, metrics *telemetry.Metrics, logger zerolog.Logger) *Engine {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	return &Engine{concepts: concepts, mappings: mappings, concurrency: concurrency, metrics: metrics, logger: logger}
}

// Concepts exposes the concept repository the engine resolves against.
func (e *Engine) Concepts() terminology.ConceptRepository { return e.concepts }

type resolvedRequest struct {
	code, source, target string
}

func resolveRequest(req TranslateRequest) (resolvedRequest, error) {
	code := strings.TrimSpace(req.SourceCode)
	if code == "" {
		return resolvedRequest{}, fmt.Errorf("%w: source code is required", terminology.ErrValidation)
	}
	if strings.TrimSpace(req.SourceSystem) == "" {
		return resolvedRequest{}, fmt.Errorf("%w: source system is required", terminology.ErrValidation)
	}
	source, err := terminology.ResolveSystem(req.SourceSystem)
	if err != nil {
		return resolvedRequest{}, err
	}
	target := terminology.SystemICD11
	if strings.TrimSpace(req.TargetSystem) != "" {
		if target, err = terminology.ResolveSystem(req.TargetSystem); err != nil {
			return resolvedRequest{}, err
		}
	}
	return resolvedRequest{code: code, source: source, target: target}, nil
}

// Translate returns the best active mapping of the source concept into the
// target system. A concept without such a mapping yields OutcomeUnmappable
// and a nil error.
func (e *Engine) Translate(ctx context.Context, req TranslateRequest) (*Result, error) {
	res, err := e.translate(ctx, req)
	switch {
	case err == nil:
		e.metrics.IncTranslation(res.Outcome.String())
	case errors.Is(err, terminology.ErrConceptNotFound):
		e.metrics.IncTranslation("not_found")
	case errors.Is(err, terminology.ErrValidation):
		e.metrics.IncTranslation("invalid")
	default:
		e.metrics.IncTranslation("error")
	}
	return res, err
}

func (e *Engine) translate(ctx context.Context, req TranslateRequest) (*Result, error) {
	rr, err := resolveRequest(req)
	if err != nil {
		return nil, err
	}

	source, err := e.concepts.FindByCode(ctx, rr.code, rr.source)
	if err != nil {
		return nil, fmt.Errorf("translate %s|%s: %w", rr.source, rr.code, err)
	}

	active, err := e.mappings.FindActiveForSource(ctx, source.ID)
	if err != nil {
		return nil, fmt.Errorf("translate %s|%s: %w", rr.source, rr.code, err)
	}

	candidates := make([]*Mapping, 0, len(active))
	for _, m := range active {
		if m.TargetSystem == rr.target {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return &Result{
			Source:      source,
			Outcome:     OutcomeUnmappable,
			Equivalence: EquivalenceUnmappable,
			Comment:     UnmappableMessage,
		}, nil
	}

	// Store order is not trusted for the tie-break.
	byRank(candidates)
	best := candidates[0]
	return &Result{
		Source:      source,
		Outcome:     OutcomeMapped,
		Target:      &Target{System: best.TargetSystem, Code: best.TargetCode, Display: best.TargetDisplay},
		Equivalence: best.Equivalence,
		Confidence:  best.Confidence,
		Comment:     best.Comment,
		Origin:      best.Origin,
		MappingID:   best.ID,
	}, nil
}

// BatchTranslate translates every request concurrently. Item i of the result
// always corresponds to reqs[i]; per-item failures are recorded on the item
// and never fail the batch.
func (e *Engine) BatchTranslate(ctx context.Context, reqs []TranslateRequest) []BatchItem {
	items := make([]BatchItem, len(reqs))
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := e.Translate(ctx, req)
			items[i] = BatchItem{Index: i, Request: req, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, it := range items {
		if it.Err != nil {
			failed++
		}
	}
	e.logger.Debug().Int("items", len(items)).Int("failed", failed).Msg("batch translate complete")
	return items
}

// MappingsForConcept returns the concept and all of its mappings in any status.
func (e *Engine) MappingsForConcept(ctx context.Context, system, code string) (*terminology.Concept, []*Mapping, error) {
	uri, err := terminology.ResolveSystem(system)
	if err != nil {
		return nil, nil, err
	}
	concept, err := e.concepts.FindByCode(ctx, strings.TrimSpace(code), uri)
	if err != nil {
		return nil, nil, err
	}
	mappings, err := e.mappings.ListForSource(ctx, concept.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list mappings of %s|%s: %w", uri, code, err)
	}
	return concept, mappings, nil
}

// Proposal is a candidate mapping produced outside the curated set.
type Proposal struct {
	Source      *terminology.Concept
	TargetCode  string
	Equivalence Equivalence
	Confidence  float64
	Comment     string
	Origin      Origin
}

// Propose stores a candidate as a review-status mapping. Proposals never
// become active. The target must be a known ICD-11 concept.
func (e *Engine) Propose(ctx context.Context, p Proposal) (*Mapping, error) {
	if p.Source == nil {
		return nil, fmt.Errorf("%w: proposal source is required", terminology.ErrValidation)
	}
	if !p.Equivalence.Valid() {
		return nil, fmt.Errorf("%w: invalid equivalence %q", terminology.ErrValidation, p.Equivalence)
	}
	target, err := e.concepts.FindByCode(ctx, p.TargetCode, terminology.SystemICD11)
	if err != nil {
		return nil, fmt.Errorf("proposal target: %w", err)
	}
	m := &Mapping{
		SourceConceptID: p.Source.ID,
		TargetConceptID: target.ID,
		SourceSystem:    p.Source.System,
		SourceCode:      p.Source.Code,
		TargetSystem:    target.System,
		TargetCode:      target.Code,
		TargetDisplay:   target.Display,
		Equivalence:     p.Equivalence,
		Confidence:      p.Confidence,
		Comment:         p.Comment,
		Status:          StatusReview,
		Origin:          p.Origin,
	}
	if err := e.mappings.Upsert(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ActiveMappings lists active mappings from sourceSystem ("" for all), sorted
// by source code.
func (e *Engine) ActiveMappings(ctx context.Context, sourceSystem string) ([]*Mapping, error) {
	uri, err := optionalSystem(sourceSystem)
	if err != nil {
		return nil, err
	}
	ms, err := e.mappings.ListActive(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("list active mappings: %w", err)
	}
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].SourceSystem != ms[j].SourceSystem {
			return ms[i].SourceSystem < ms[j].SourceSystem
		}
		return ms[i].SourceCode < ms[j].SourceCode
	})
	return ms, nil
}

func optionalSystem(s string) (string, error) {
	if s == "" || strings.EqualFold(s, "all") {
		return "", nil
	}
	return terminology.ResolveSystem(s)
}

// Seed loads the curated mappings; concepts must be seeded first.
func (e *Engine) Seed(ctx context.Context) (int, error) {
	return Seed(ctx, e.concepts, e.mappings)
}

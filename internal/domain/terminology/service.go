package terminology

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/namaste/namaste/pkg/pagination"
)

// MinQueryLength is the shortest accepted search query.
const MinQueryLength = 2

// Service provides concept search, lookup and code system rendering.
type Service struct {
	repo ConceptRepository
	now  func() time.Time
}

// NewService creates a new terminology service.
func NewService(repo ConceptRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Repository exposes the underlying concept store.
func (s *Service) Repository() ConceptRepository { return s.repo }

// resolveOptional resolves system unless it is empty or "all".
func resolveOptional(system string) (string, error) {
	if system == "" || strings.EqualFold(system, "all") {
		return "", nil
	}
	return ResolveSystem(system)
}

// Search finds active concepts matching query. system is an alias, a URI,
// "all" or empty.
func (s *Service) Search(ctx context.Context, query, system string, p pagination.Params) ([]*Concept, int, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinQueryLength {
		return nil, 0, fmt.Errorf("%w: search query must be at least %d characters long", ErrValidation, MinQueryLength)
	}
	uri, err := resolveOptional(system)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.Search(ctx, query, SearchOptions{System: uri, Limit: p.Limit, Offset: p.Offset})
}

// Lookup returns one concept by system alias or URI and code.
func (s *Service) Lookup(ctx context.Context, system, code string) (*Concept, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: code is required", ErrValidation)
	}
	uri, err := ResolveSystem(system)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByCode(ctx, strings.TrimSpace(code), uri)
}

// Systems lists the supported code systems with their active concept counts.
func (s *Service) Systems(ctx context.Context) ([]SystemInfo, error) {
	counts, err := s.repo.CountBySystem(ctx)
	if err != nil {
		return nil, fmt.Errorf("count concepts: %w", err)
	}
	out := Systems()
	for i := range out {
		out[i].Count = counts[out[i].URI]
	}
	return out, nil
}

// CodeSystem renders every concept of a system as a complete FHIR CodeSystem.
func (s *Service) CodeSystem(ctx context.Context, system string) (*CodeSystem, error) {
	uri, err := ResolveSystem(system)
	if err != nil {
		return nil, err
	}
	concepts, total, err := s.repo.ListBySystem(ctx, uri, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list %s concepts: %w", SystemAlias(uri), err)
	}
	return NewCodeSystem(uri, concepts, total, s.now()), nil
}

// Seed loads the reference concepts.
func (s *Service) Seed(ctx context.Context) (int, error) {
	return Seed(ctx, s.repo)
}

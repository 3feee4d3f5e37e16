package terminology

import "context"

// ConceptRepository stores concepts of every supported code system.
type ConceptRepository interface {
	// FindByCode returns ErrConceptNotFound when the concept is absent.
	FindByCode(ctx context.Context, code, system string) (*Concept, error)
	FindByID(ctx context.Context, id string) (*Concept, error)
	// Search matches query against code, display and definition. The int is
	// the total number of matches before Limit and Offset are applied.
	Search(ctx context.Context, query string, opts SearchOptions) ([]*Concept, int, error)
	ListBySystem(ctx context.Context, system string, limit, offset int) ([]*Concept, int, error)
	CountBySystem(ctx context.Context) (map[string]int, error)
	Upsert(ctx context.Context, c *Concept) error
	BulkInsert(ctx context.Context, concepts []*Concept) (int, error)
}

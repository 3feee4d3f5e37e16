package conceptmap

import "context"

// MappingStore persists mappings. Upsert is keyed on (source concept, target
// concept, status) for every status except retired, so a pair has at most one
// active mapping.
type MappingStore interface {
	// FindActiveForSource returns active mappings of a concept ordered by
	// confidence descending, then creation order.
	FindActiveForSource(ctx context.Context, conceptID string) ([]*Mapping, error)
	// ListForSource returns every mapping of a concept in any status.
	ListForSource(ctx context.Context, conceptID string) ([]*Mapping, error)
	// ListActive returns active mappings whose source is in sourceSystem, or
	// all active mappings when sourceSystem is empty.
	ListActive(ctx context.Context, sourceSystem string) ([]*Mapping, error)
	Get(ctx context.Context, id string) (*Mapping, error)
	Upsert(ctx context.Context, m *Mapping) error
	Retire(ctx context.Context, id string) error
}

package conceptmap

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/namaste/namaste/internal/platform/db"
)

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type mappingStorePG struct{ pool *pgxpool.Pool }

func NewMappingStorePG(pool *pgxpool.Pool) MappingStore { return &mappingStorePG{pool: pool} }

func (s *mappingStorePG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

const mappingCols = `id, source_concept_id, target_concept_id, source_system, source_code,
	target_system, target_code, target_display, equivalence, confidence,
	COALESCE(comment,''), status, origin, seq, created_at, updated_at`

func scanMapping(row pgx.Row) (*Mapping, error) {
	var m Mapping
	var eq, status, origin string
	err := row.Scan(&m.ID, &m.SourceConceptID, &m.TargetConceptID, &m.SourceSystem, &m.SourceCode,
		&m.TargetSystem, &m.TargetCode, &m.TargetDisplay, &eq, &m.Confidence,
		&m.Comment, &status, &origin, &m.Seq, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Equivalence, m.Status, m.Origin = Equivalence(eq), Status(status), Origin(origin)
	return &m, nil
}

func (s *mappingStorePG) list(ctx context.Context, op, sql string, args ...interface{}) ([]*Mapping, error) {
	rows, err := s.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	var out []*Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *mappingStorePG) FindActiveForSource(ctx context.Context, conceptID string) ([]*Mapping, error) {
	return s.list(ctx, "mapping find active",
		`SELECT `+mappingCols+` FROM concept_mappings
		 WHERE source_concept_id = $1 AND status = 'active'
		 ORDER BY confidence DESC, seq ASC`, conceptID)
}

func (s *mappingStorePG) ListForSource(ctx context.Context, conceptID string) ([]*Mapping, error) {
	return s.list(ctx, "mapping list",
		`SELECT `+mappingCols+` FROM concept_mappings
		 WHERE source_concept_id = $1
		 ORDER BY (status = 'active') DESC, confidence DESC, seq ASC`, conceptID)
}

func (s *mappingStorePG) ListActive(ctx context.Context, sourceSystem string) ([]*Mapping, error) {
	return s.list(ctx, "mapping list active",
		`SELECT `+mappingCols+` FROM concept_mappings
		 WHERE status = 'active' AND ($1 = '' OR source_system = $1)
		 ORDER BY source_system, source_code, confidence DESC, seq ASC`, sourceSystem)
}

func (s *mappingStorePG) Get(ctx context.Context, id string) (*Mapping, error) {
	m, err := scanMapping(s.conn(ctx).QueryRow(ctx,
		`SELECT `+mappingCols+` FROM concept_mappings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMappingNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("mapping get: %w", err)
	}
	return m, nil
}

// Upsert inserts m or updates the existing mapping with the same source,
// target and status in one statement.
func (s *mappingStorePG) Upsert(ctx context.Context, m *Mapping) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	err := s.conn(ctx).QueryRow(ctx,
		`INSERT INTO concept_mappings (id, source_concept_id, target_concept_id, source_system, source_code,
			target_system, target_code, target_display, equivalence, confidence, comment, status, origin)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11,''), $12, $13)
		 ON CONFLICT (source_concept_id, target_concept_id, status) WHERE status <> 'retired' DO UPDATE
		 SET target_display = EXCLUDED.target_display,
		     equivalence = EXCLUDED.equivalence,
		     confidence = EXCLUDED.confidence,
		     comment = EXCLUDED.comment,
		     origin = EXCLUDED.origin,
		     updated_at = now()
		 RETURNING id, seq, created_at, updated_at`,
		m.ID, m.SourceConceptID, m.TargetConceptID, m.SourceSystem, m.SourceCode,
		m.TargetSystem, m.TargetCode, m.TargetDisplay, string(m.Equivalence), m.Confidence,
		m.Comment, string(m.Status), string(m.Origin)).
		Scan(&m.ID, &m.Seq, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("mapping upsert %s|%s -> %s: %w", m.SourceSystem, m.SourceCode, m.TargetCode, err)
	}
	return nil
}

func (s *mappingStorePG) Retire(ctx context.Context, id string) error {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE concept_mappings SET status = 'retired', updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mapping retire: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrMappingNotFound, id)
	}
	return nil
}

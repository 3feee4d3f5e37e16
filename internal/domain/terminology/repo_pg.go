package terminology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/namaste/namaste/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type conceptRepoPG struct{ pool *pgxpool.Pool }

func NewConceptRepoPG(pool *pgxpool.Pool) ConceptRepository { return &conceptRepoPG{pool: pool} }

func (r *conceptRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const conceptCols = `id, system, code, display, COALESCE(definition,''), properties, status, created_at, updated_at`

func scanConcept(row pgx.Row) (*Concept, error) {
	var c Concept
	var props []byte
	var status string
	if err := row.Scan(&c.ID, &c.System, &c.Code, &c.Display, &c.Definition, &props, &status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Status = Status(status)
	if len(props) > 0 {
		if err := json.Unmarshal(props, &c.Properties); err != nil {
			return nil, fmt.Errorf("decode properties of %s|%s: %w", c.System, c.Code, err)
		}
	}
	return &c, nil
}

func collectConcepts(rows pgx.Rows) ([]*Concept, error) {
	defer rows.Close()
	var out []*Concept
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *conceptRepoPG) FindByCode(ctx context.Context, code, system string) (*Concept, error) {
	c, err := scanConcept(r.conn(ctx).QueryRow(ctx,
		`SELECT `+conceptCols+` FROM concepts WHERE system = $1 AND code = $2`, system, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s|%s", ErrConceptNotFound, system, code)
	}
	if err != nil {
		return nil, fmt.Errorf("concept get: %w", err)
	}
	return c, nil
}

func (r *conceptRepoPG) FindByID(ctx context.Context, id string) (*Concept, error) {
	c, err := scanConcept(r.conn(ctx).QueryRow(ctx,
		`SELECT `+conceptCols+` FROM concepts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %s", ErrConceptNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("concept get by id: %w", err)
	}
	return c, nil
}

// limitArg turns a non-positive limit into NULL, which Postgres reads as
// LIMIT ALL.
func limitArg(limit int) interface{} {
	if limit <= 0 {
		return nil
	}
	return limit
}

// escapeLike quotes the ILIKE metacharacters in s.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *conceptRepoPG) Search(ctx context.Context, query string, opts SearchOptions) ([]*Concept, int, error) {
	pattern := "%" + escapeLike(query) + "%"
	where := `status = 'active' AND ($1 = '' OR system = $1)
		AND (code ILIKE $2 OR display ILIKE $2 OR definition ILIKE $2)`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT count(*) FROM concepts WHERE `+where, opts.System, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("concept search count: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+conceptCols+` FROM concepts WHERE `+where+`
		 ORDER BY (lower(code) = lower($3)) DESC, display, code
		 LIMIT $4 OFFSET $5`, opts.System, pattern, query, limitArg(opts.Limit), opts.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("concept search: %w", err)
	}
	out, err := collectConcepts(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("concept search scan: %w", err)
	}
	return out, total, nil
}

func (r *conceptRepoPG) ListBySystem(ctx context.Context, system string, limit, offset int) ([]*Concept, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT count(*) FROM concepts WHERE system = $1`, system).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("concept list count: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+conceptCols+` FROM concepts WHERE system = $1 ORDER BY code LIMIT $2 OFFSET $3`,
		system, limitArg(limit), offset)
	if err != nil {
		return nil, 0, fmt.Errorf("concept list: %w", err)
	}
	out, err := collectConcepts(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("concept list scan: %w", err)
	}
	return out, total, nil
}

func (r *conceptRepoPG) CountBySystem(ctx context.Context) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT system, count(*) FROM concepts WHERE status = 'active' GROUP BY system`)
	if err != nil {
		return nil, fmt.Errorf("concept counts: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var system string
		var n int
		if err := rows.Scan(&system, &n); err != nil {
			return nil, err
		}
		counts[system] = n
	}
	return counts, rows.Err()
}

const upsertConceptSQL = `
	INSERT INTO concepts (id, system, code, display, definition, properties, status)
	VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, $7)
	ON CONFLICT (system, code) DO UPDATE
	SET display = EXCLUDED.display,
	    definition = EXCLUDED.definition,
	    properties = EXCLUDED.properties,
	    status = EXCLUDED.status,
	    updated_at = now()
	RETURNING id, created_at, updated_at`

func upsertArgs(c *Concept) ([]interface{}, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = StatusActive
	}
	props := c.Properties
	if props == nil {
		props = map[string]interface{}{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("encode properties: %w", err)
	}
	return []interface{}{c.ID, c.System, c.Code, c.Display, c.Definition, raw, string(c.Status)}, nil
}

func (r *conceptRepoPG) Upsert(ctx context.Context, c *Concept) error {
	args, err := upsertArgs(c)
	if err != nil {
		return err
	}
	if err := r.conn(ctx).QueryRow(ctx, upsertConceptSQL, args...).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("concept upsert %s|%s: %w", c.System, c.Code, err)
	}
	return nil
}

// BulkInsert upserts all concepts in a single round trip inside one
// transaction.
func (r *conceptRepoPG) BulkInsert(ctx context.Context, concepts []*Concept) (int, error) {
	if len(concepts) == 0 {
		return 0, nil
	}
	err := db.InTx(ctx, r.pool, func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, c := range concepts {
			args, err := upsertArgs(c)
			if err != nil {
				return err
			}
			batch.Queue(upsertConceptSQL, args...)
		}
		br := r.conn(ctx).SendBatch(ctx, batch)
		for _, c := range concepts {
			if err := br.QueryRow().Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
				br.Close()
				return fmt.Errorf("concept bulk upsert %s|%s: %w", c.System, c.Code, err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return 0, err
	}
	return len(concepts), nil
}

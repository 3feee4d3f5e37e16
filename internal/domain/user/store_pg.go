package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/namaste/namaste/internal/platform/auth"
	"github.com/namaste/namaste/internal/platform/db"
)

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type userStorePG struct{ pool *pgxpool.Pool }

func NewStorePG(pool *pgxpool.Pool) Store { return &userStorePG{pool: pool} }

func (s *userStorePG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

const userCols = `abha_id, abha_number, name, COALESCE(email,''), COALESCE(mobile,''),
	COALESCE(gender,''), COALESCE(date_of_birth,''), address, COALESCE(health_id,''),
	profile, last_login, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var address, profile []byte
	err := row.Scan(&u.ABHAID, &u.ABHANumber, &u.Name, &u.Email, &u.Mobile,
		&u.Gender, &u.DateOfBirth, &address, &u.HealthID,
		&profile, &u.LastLogin, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(address) > 0 {
		u.Address = &auth.Address{}
		if err := json.Unmarshal(address, u.Address); err != nil {
			return nil, fmt.Errorf("decode address: %w", err)
		}
	}
	if len(profile) > 0 {
		u.Profile = &auth.Profile{}
		if err := json.Unmarshal(profile, u.Profile); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
	}
	return &u, nil
}

// jsonArg marshals v for a JSONB column; nil pointers become NULL.
func jsonArg[T any](v *T) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *userStorePG) list(ctx context.Context, op, sql string, args ...interface{}) ([]*User, error) {
	rows, err := s.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *userStorePG) FindByABHAID(ctx context.Context, abhaID string) (*User, error) {
	u, err := scanUser(s.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE abha_id = $1`, abhaID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, abhaID)
	}
	if err != nil {
		return nil, fmt.Errorf("user find: %w", err)
	}
	return u, nil
}

// Upsert keeps contact details the user edited when the refreshed profile
// has none.
func (s *userStorePG) Upsert(ctx context.Context, u *User) error {
	address, err := jsonArg(u.Address)
	if err != nil {
		return fmt.Errorf("encode address: %w", err)
	}
	profile, err := jsonArg(u.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	err = s.conn(ctx).QueryRow(ctx,
		`INSERT INTO users (abha_id, abha_number, name, email, mobile, gender, date_of_birth,
			address, health_id, profile, is_active)
		 VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), NULLIF($7,''), $8, NULLIF($9,''), $10, true)
		 ON CONFLICT (abha_id) DO UPDATE
		 SET abha_number = EXCLUDED.abha_number,
		     name = EXCLUDED.name,
		     email = COALESCE(EXCLUDED.email, users.email),
		     mobile = COALESCE(EXCLUDED.mobile, users.mobile),
		     gender = COALESCE(EXCLUDED.gender, users.gender),
		     date_of_birth = COALESCE(EXCLUDED.date_of_birth, users.date_of_birth),
		     address = COALESCE(EXCLUDED.address, users.address),
		     health_id = COALESCE(EXCLUDED.health_id, users.health_id),
		     profile = EXCLUDED.profile,
		     updated_at = now()
		 RETURNING is_active, last_login, created_at, updated_at`,
		u.ABHAID, u.ABHANumber, u.Name, u.Email, u.Mobile, u.Gender, u.DateOfBirth,
		address, u.HealthID, profile).
		Scan(&u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("user upsert %s: %w", u.ABHAID, err)
	}
	return nil
}

func (s *userStorePG) UpdateContact(ctx context.Context, abhaID string, upd ContactUpdate) (*User, error) {
	u, err := scanUser(s.conn(ctx).QueryRow(ctx,
		`UPDATE users
		 SET email = COALESCE($2, email), mobile = COALESCE($3, mobile), updated_at = now()
		 WHERE abha_id = $1
		 RETURNING `+userCols, abhaID, upd.Email, upd.Mobile))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, abhaID)
	}
	if err != nil {
		return nil, fmt.Errorf("user update contact: %w", err)
	}
	return u, nil
}

func (s *userStorePG) TouchLastLogin(ctx context.Context, abhaID string, at time.Time) error {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE users SET last_login = $2 WHERE abha_id = $1`, abhaID, at)
	if err != nil {
		return fmt.Errorf("user touch login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, abhaID)
	}
	return nil
}

func (s *userStorePG) Deactivate(ctx context.Context, abhaID string) (bool, error) {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE users SET is_active = false, updated_at = now()
		 WHERE abha_id = $1 AND is_active`, abhaID)
	if err != nil {
		return false, fmt.Errorf("user deactivate: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *userStorePG) Search(ctx context.Context, query string, limit int) ([]*User, error) {
	return s.list(ctx, "user search",
		`SELECT `+userCols+` FROM users
		 WHERE is_active AND (name ILIKE $1 OR abha_number ILIKE $1 OR email ILIKE $1)
		 ORDER BY name
		 LIMIT $2`, "%"+escapeLike(query)+"%", limit)
}

func (s *userStorePG) Recent(ctx context.Context, limit int) ([]*User, error) {
	return s.list(ctx, "user recent",
		`SELECT `+userCols+` FROM users
		 WHERE is_active AND last_login IS NOT NULL
		 ORDER BY last_login DESC
		 LIMIT $1`, limit)
}

func (s *userStorePG) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	var st Stats
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE is_active),
		        count(*) FILTER (WHERE NOT is_active),
		        count(*) FILTER (WHERE last_login >= $1)
		 FROM users`, since).
		Scan(&st.Total, &st.Active, &st.Inactive, &st.RecentLogins)
	if err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	return &st, nil
}

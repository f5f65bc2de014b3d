package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/artisansflow/portal/internal/domain"
)

// ProfileRepository defines persistence access for tenant profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	Ensure(ctx context.Context, profile domain.Profile) (*domain.Profile, error)
	UpdateDisplay(ctx context.Context, id string, display domain.ProfileDisplay) (*domain.Profile, error)
	SetRole(ctx context.Context, id string, role domain.Role) (*domain.Profile, error)
	List(ctx context.Context, limit, offset int) ([]domain.Profile, error)
	Count(ctx context.Context) (int64, error)
}

type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository returns a Postgres-backed implementation.
func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepository{pool: pool}
}

const profileColumns = `id::text, full_name, company, logo_url, role, created_at, updated_at`

func (r *profileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles WHERE id=$1`
	return r.queryOne(ctx, query, id)
}

// Ensure inserts profile unless a row already exists; the stored row is
// returned either way, so a concurrent creator's role wins.
func (r *profileRepository) Ensure(ctx context.Context, profile domain.Profile) (*domain.Profile, error) {
	const query = `
        WITH inserted AS (
            INSERT INTO profiles (id, full_name, company, role)
            VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4)
            ON CONFLICT (id) DO NOTHING
            RETURNING ` + profileColumns + `
        )
        SELECT * FROM inserted
        UNION ALL
        SELECT ` + profileColumns + ` FROM profiles WHERE id=$1
        LIMIT 1`

	return r.queryOne(ctx, query,
		profile.ID,
		profile.FullName,
		profile.Company,
		string(domain.NormalizeRole(string(profile.Role))),
	)
}

// UpdateDisplay upserts the editable attributes. An existing role is kept.
func (r *profileRepository) UpdateDisplay(ctx context.Context, id string, display domain.ProfileDisplay) (*domain.Profile, error) {
	const query = `
        INSERT INTO profiles (id, full_name, company, logo_url, role)
        VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5)
        ON CONFLICT (id) DO UPDATE SET
            full_name = EXCLUDED.full_name,
            company = EXCLUDED.company,
            logo_url = EXCLUDED.logo_url,
            updated_at = NOW()
        RETURNING ` + profileColumns

	return r.queryOne(ctx, query,
		id,
		display.FullName,
		display.Company,
		display.LogoURL,
		string(domain.DefaultRole),
	)
}

func (r *profileRepository) SetRole(ctx context.Context, id string, role domain.Role) (*domain.Profile, error) {
	const query = `
        UPDATE profiles SET role=$1, updated_at=NOW()
        WHERE id=$2
        RETURNING ` + profileColumns

	return r.queryOne(ctx, query, string(role), id)
}

func (r *profileRepository) List(ctx context.Context, limit, offset int) ([]domain.Profile, error) {
	const query = `
        SELECT ` + profileColumns + `
        FROM profiles
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *profile)
	}
	return profiles, rows.Err()
}

func (r *profileRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count)
	return count, err
}

func (r *profileRepository) queryOne(ctx context.Context, query string, args ...any) (*domain.Profile, error) {
	profile, err := scanProfile(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	return profile, err
}

// scanProfile maps a row, turning NULL attributes into empty strings and
// normalising the stored role.
func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var (
		profile                    domain.Profile
		fullName, company, logoURL *string
		role                       *string
		createdAt, updatedAt       time.Time
	)
	if err := row.Scan(&profile.ID, &fullName, &company, &logoURL, &role, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	profile.FullName = deref(fullName)
	profile.Company = deref(company)
	profile.LogoURL = deref(logoURL)
	profile.Role = domain.NormalizeRole(deref(role))
	profile.CreatedAt = createdAt
	profile.UpdatedAt = updatedAt
	return &profile, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

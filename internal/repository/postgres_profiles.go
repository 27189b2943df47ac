package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"agrikonek/internal/domain"
)

type PostgresProfilesRepository struct {
	db *sql.DB
}

func NewPostgresProfilesRepository(db *sql.DB) *PostgresProfilesRepository {
	return &PostgresProfilesRepository{db: db}
}

var _ ProfilesRepository = (*PostgresProfilesRepository)(nil)

const profileColumns = `user_id::text, full_name, email, role, region_id::text, organization_id::text, created_at`

func scanProfile(row interface{ Scan(...any) error }) (*domain.Profile, error) {
	var (
		p      domain.Profile
		region sql.NullString
		org    sql.NullString
	)
	if err := row.Scan(&p.UserID, &p.FullName, &p.Email, &p.Role, &region, &org, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.RegionID = stringPtr(region)
	p.OrganizationID = stringPtr(org)
	return &p, nil
}

func (r *PostgresProfilesRepository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
	if err != nil {
		return nil, classify("get profile", err)
	}
	return p, nil
}

func (r *PostgresProfilesRepository) UpsertProfile(ctx context.Context, p *domain.Profile) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO profiles (user_id, full_name, email, role, region_id, organization_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			region_id = EXCLUDED.region_id,
			organization_id = EXCLUDED.organization_id
		RETURNING created_at
	`, p.UserID, p.FullName, p.Email, p.Role, nullString(p.RegionID), nullString(p.OrganizationID)).Scan(&p.CreatedAt)
	return classify("upsert profile", err)
}

func (r *PostgresProfilesRepository) CreateProfileIfAbsent(ctx context.Context, p *domain.Profile) (*domain.Profile, bool, error) {
	var createdAt time.Time
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO profiles (user_id, full_name, email, role, region_id, organization_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING created_at
	`, p.UserID, p.FullName, p.Email, p.Role, nullString(p.RegionID), nullString(p.OrganizationID)).Scan(&createdAt)
	switch {
	case err == nil:
		cp := *p
		cp.CreatedAt = createdAt
		return &cp, true, nil
	case errors.Is(err, sql.ErrNoRows):
		existing, err := r.GetProfile(ctx, p.UserID)
		return existing, false, err
	default:
		return nil, false, classify("create profile", err)
	}
}

func (r *PostgresProfilesRepository) ListProfilesByRegion(ctx context.Context, regionID string) ([]*domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE region_id = $1 ORDER BY user_id`, regionID)
	if err != nil {
		return nil, classify("list profiles by region", err)
	}
	defer rows.Close()

	out := []*domain.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, classify("scan profile", err)
		}
		out = append(out, p)
	}
	return out, classify("list profiles by region", rows.Err())
}

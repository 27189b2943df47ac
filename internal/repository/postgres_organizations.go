package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"agrikonek/internal/domain"
)

// PostgresOrganizationsRepository organizations, admins and membership on Postgres
type PostgresOrganizationsRepository struct {
	db *sql.DB
}

func NewPostgresOrganizationsRepository(db *sql.DB) *PostgresOrganizationsRepository {
	return &PostgresOrganizationsRepository{db: db}
}

var _ OrganizationsRepository = (*PostgresOrganizationsRepository)(nil)

const orgColumns = `
	o.id::text, o.name, o.region_id::text, o.province_id::text, o.registration_number, o.address,
	o.contact_person, o.contact_email, o.contact_phone, o.status, o.verification_status,
	o.member_count, o.allocated_budget, o.utilized_budget, o.created_at, o.updated_at`

func scanOrganization(row interface{ Scan(...any) error }) (*domain.Organization, error) {
	var (
		o        domain.Organization
		province sql.NullString
	)
	err := row.Scan(&o.ID, &o.Name, &o.RegionID, &province, &o.RegistrationNumber, &o.Address,
		&o.ContactPerson, &o.ContactEmail, &o.ContactPhone, &o.Status, &o.VerificationStatus,
		&o.MemberCount, &o.AllocatedBudget, &o.UtilizedBudget, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.ProvinceID = stringPtr(province)
	return &o, nil
}

func getOrganization(ctx context.Context, q queryer, orgID string, lock bool) (*domain.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations o WHERE o.id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	o, err := scanOrganization(q.QueryRowContext(ctx, query, orgID))
	if err != nil {
		return nil, classify("get organization", err)
	}
	return o, nil
}

func (r *PostgresOrganizationsRepository) GetOrganization(ctx context.Context, orgID string) (*domain.Organization, error) {
	return getOrganization(ctx, r.db, orgID, false)
}

func (r *PostgresOrganizationsRepository) ListOrganizations(ctx context.Context, filter domain.OrganizationFilter) ([]*domain.Organization, error) {
	where := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if filter.RegionID != "" {
		where = append(where, fmt.Sprintf("o.region_id = $%d", argIdx))
		args = append(args, filter.RegionID)
		argIdx++
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("o.status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(o.name ILIKE $%d OR o.registration_number ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+filter.Search+"%")
	}

	query := `SELECT ` + orgColumns + ` FROM organizations o WHERE ` + strings.Join(where, " AND ") + ` ORDER BY o.name`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list organizations", err)
	}
	defer rows.Close()

	out := []*domain.Organization{}
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, classify("scan organization", err)
		}
		out = append(out, o)
	}
	return out, classify("list organizations", rows.Err())
}

func (r *PostgresOrganizationsRepository) CreateOrganization(ctx context.Context, org *domain.Organization) error {
	if org.Status == "" {
		org.Status = domain.OrgPending
	}
	if org.VerificationStatus == "" {
		org.VerificationStatus = domain.VerificationUnverified
	}
	return withTx(ctx, r.db, "create organization", func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO organizations (name, region_id, province_id, registration_number, address,
			                           contact_person, contact_email, contact_phone, status, verification_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id::text, created_at, updated_at
		`, org.Name, org.RegionID, nullString(org.ProvinceID), org.RegistrationNumber, org.Address,
			org.ContactPerson, org.ContactEmail, org.ContactPhone, org.Status, org.VerificationStatus,
		).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
		if err != nil {
			return classify("create organization", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversations (kind, organization_id) VALUES ('organization', $1)`, org.ID); err != nil {
			return classify("create organization: group conversation", err)
		}
		return nil
	})
}

func (r *PostgresOrganizationsRepository) UpdateOrganization(ctx context.Context, orgID string, u domain.OrganizationUpdate) (*domain.Organization, error) {
	if u.Empty() {
		return r.GetOrganization(ctx, orgID)
	}

	sets := []string{}
	args := []any{orgID}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.ProvinceID != nil {
		add("province_id", nullString(u.ProvinceID))
	}
	if u.RegistrationNumber != nil {
		add("registration_number", *u.RegistrationNumber)
	}
	if u.Address != nil {
		add("address", *u.Address)
	}
	if u.ContactPerson != nil {
		add("contact_person", *u.ContactPerson)
	}
	if u.ContactEmail != nil {
		add("contact_email", *u.ContactEmail)
	}
	if u.ContactPhone != nil {
		add("contact_phone", *u.ContactPhone)
	}
	if u.Status != nil {
		add("status", *u.Status)
	}
	if u.VerificationStatus != nil {
		add("verification_status", *u.VerificationStatus)
	}
	sets = append(sets, "updated_at = now()")

	query := `UPDATE organizations o SET ` + strings.Join(sets, ", ") + ` WHERE o.id = $1 RETURNING ` + orgColumns
	o, err := scanOrganization(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, classify("update organization", err)
	}
	return o, nil
}

func (r *PostgresOrganizationsRepository) DeleteOrganization(ctx context.Context, orgID string) error {
	return withTx(ctx, r.db, "delete organization", func(tx *sql.Tx) error {
		if _, err := getOrganization(ctx, tx, orgID, true); err != nil {
			return err
		}
		// admins, then members, then the row itself
		for _, step := range []struct{ op, query string }{
			{"delete organization admins", `DELETE FROM organization_admins WHERE organization_id = $1`},
			{"delete organization members", `DELETE FROM organization_members WHERE organization_id = $1`},
			{"delete organization", `DELETE FROM organizations WHERE id = $1`},
		} {
			if _, err := tx.ExecContext(ctx, step.query, orgID); err != nil {
				return classify(step.op, err)
			}
		}
		return nil
	})
}

func (r *PostgresOrganizationsRepository) AssignAdmin(ctx context.Context, orgID, userID string) (*domain.OrganizationAdmin, error) {
	a := &domain.OrganizationAdmin{OrganizationID: orgID, UserID: userID}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO organization_admins (organization_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (organization_id, user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id::text, created_at
	`, orgID, userID).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return nil, classify("assign admin", err)
	}
	return a, nil
}

func (r *PostgresOrganizationsRepository) ListAdmins(ctx context.Context, orgID string) ([]*domain.OrganizationAdmin, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id::text, organization_id::text, user_id::text, created_at
		FROM organization_admins
		WHERE organization_id = $1
		ORDER BY created_at
	`, orgID)
	if err != nil {
		return nil, classify("list admins", err)
	}
	defer rows.Close()

	out := []*domain.OrganizationAdmin{}
	for rows.Next() {
		var a domain.OrganizationAdmin
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.UserID, &a.CreatedAt); err != nil {
			return nil, classify("scan admin", err)
		}
		out = append(out, &a)
	}
	return out, classify("list admins", rows.Err())
}

func (r *PostgresOrganizationsRepository) GetOrganizationByAdmin(ctx context.Context, userID string) (*domain.Organization, error) {
	o, err := scanOrganization(r.db.QueryRowContext(ctx, `
		SELECT `+orgColumns+`
		FROM organizations o
		JOIN organization_admins a ON a.organization_id = o.id
		WHERE a.user_id = $1
		ORDER BY a.created_at
		LIMIT 1
	`, userID))
	if err != nil {
		return nil, classify("get organization by admin", err)
	}
	return o, nil
}

func (r *PostgresOrganizationsRepository) IsAdmin(ctx context.Context, orgID, userID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM organization_admins WHERE organization_id = $1 AND user_id = $2)`,
		orgID, userID).Scan(&ok)
	return ok, classify("is admin", err)
}

const memberColumns = `
	m.id::text, m.farmer_id::text, m.organization_id::text, m.role, m.status, m.join_date,
	m.application_reason, m.experience_level, m.farm_description, m.created_at, m.updated_at`

func scanMember(row interface{ Scan(...any) error }, extra ...any) (*domain.OrganizationMember, error) {
	var (
		m    domain.OrganizationMember
		join sql.NullTime
	)
	dest := []any{&m.ID, &m.FarmerID, &m.OrganizationID, &m.Role, &m.Status, &join,
		&m.ApplicationReason, &m.ExperienceLevel, &m.FarmDescription, &m.CreatedAt, &m.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if join.Valid {
		m.JoinDate = &join.Time
	}
	return &m, nil
}

func (r *PostgresOrganizationsRepository) CreateApplication(ctx context.Context, m *domain.OrganizationMember) error {
	if m.Role == "" {
		m.Role = "member"
	}
	m.Status = domain.MemberPending
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO organization_members (farmer_id, organization_id, role, status,
		                                  application_reason, experience_level, farm_description)
		VALUES ($1, $2, $3, 'pending', $4, $5, $6)
		RETURNING id::text, created_at, updated_at
	`, m.FarmerID, m.OrganizationID, m.Role, m.ApplicationReason, m.ExperienceLevel, m.FarmDescription,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	return classify("create application", err)
}

func (r *PostgresOrganizationsRepository) GetMember(ctx context.Context, memberID string) (*domain.OrganizationMember, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM organization_members m WHERE m.id = $1`, memberID))
	if err != nil {
		return nil, classify("get member", err)
	}
	return m, nil
}

func (r *PostgresOrganizationsRepository) ListMembers(ctx context.Context, orgID string, status domain.MemberStatus) ([]*domain.OrganizationMember, error) {
	query := `SELECT ` + memberColumns + ` FROM organization_members m WHERE m.organization_id = $1`
	args := []any{orgID}
	if status != "" {
		query += ` AND m.status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY m.created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list members", err)
	}
	defer rows.Close()

	out := []*domain.OrganizationMember{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, classify("scan member", err)
		}
		out = append(out, m)
	}
	return out, classify("list members", rows.Err())
}

func (r *PostgresOrganizationsRepository) ActiveMembership(ctx context.Context, userID string) (*domain.OrganizationMember, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx, `
		SELECT `+memberColumns+`
		FROM organization_members m
		JOIN farmer_profiles f ON f.id = m.farmer_id
		WHERE f.user_id = $1 AND m.status = 'active'
		ORDER BY m.join_date DESC NULLS LAST
		LIMIT 1
	`, userID))
	if err != nil {
		return nil, classify("active membership", err)
	}
	return m, nil
}

func (r *PostgresOrganizationsRepository) IsActiveMember(ctx context.Context, orgID, userID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM organization_members m
			JOIN farmer_profiles f ON f.id = m.farmer_id
			WHERE m.organization_id = $1 AND f.user_id = $2 AND m.status = 'active'
		)
	`, orgID, userID).Scan(&ok)
	return ok, classify("is active member", err)
}

func (r *PostgresOrganizationsRepository) DecideApplication(ctx context.Context, d MemberDecision) (*MemberDecisionResult, error) {
	if d.Target != domain.MemberActive && d.Target != domain.MemberRejected {
		return nil, fmt.Errorf("decide application: target %q: %w", d.Target, domain.ErrInvalidArgument)
	}

	res := &MemberDecisionResult{}
	err := withTx(ctx, r.db, "decide application", func(tx *sql.Tx) error {
		m, err := scanMember(tx.QueryRowContext(ctx, `
			SELECT `+memberColumns+`, f.user_id::text
			FROM organization_members m
			JOIN farmer_profiles f ON f.id = m.farmer_id
			WHERE m.id = $1
			FOR UPDATE OF m
		`, d.MemberID), &res.FarmerUserID)
		if err != nil {
			return classify("decide application: load", err)
		}
		res.Member = m

		if m.Status == d.Target {
			res.Organization, err = getOrganization(ctx, tx, m.OrganizationID, false)
			return err
		}
		if m.Status != domain.MemberPending {
			return fmt.Errorf("decide application: %s -> %s: %w", m.Status, d.Target, domain.ErrInvalidTransition)
		}

		var join sql.NullTime
		err = tx.QueryRowContext(ctx, `
			UPDATE organization_members
			SET status = $2,
			    join_date = CASE WHEN $2::text = 'active' THEN now() ELSE join_date END,
			    updated_at = now()
			WHERE id = $1
			RETURNING join_date, updated_at
		`, m.ID, d.Target).Scan(&join, &m.UpdatedAt)
		if err != nil {
			return classify("decide application: update member", err)
		}
		m.Status = d.Target
		if join.Valid {
			m.JoinDate = &join.Time
		}

		if d.Target == domain.MemberActive {
			org, err := scanOrganization(tx.QueryRowContext(ctx, `
				UPDATE organizations o SET member_count = member_count + 1, updated_at = now()
				WHERE o.id = $1
				RETURNING `+orgColumns, m.OrganizationID))
			if err != nil {
				return classify("decide application: member count", err)
			}
			res.Organization = org
			if _, err := tx.ExecContext(ctx, `UPDATE profiles SET organization_id = $2 WHERE user_id = $1`, res.FarmerUserID, m.OrganizationID); err != nil {
				return classify("decide application: profile cache", err)
			}
			if _, err := tx.ExecContext(ctx, `UPDATE farmer_profiles SET organization_id = $2, updated_at = now() WHERE id = $1`, m.FarmerID, m.OrganizationID); err != nil {
				return classify("decide application: farmer profile", err)
			}
		} else {
			if res.Organization, err = getOrganization(ctx, tx, m.OrganizationID, false); err != nil {
				return err
			}
		}

		if d.Notice != nil {
			if n := d.Notice(res.Organization); n != nil {
				n.UserID = res.FarmerUserID
				if res.Notification, err = insertNotification(ctx, tx, *n); err != nil {
					return err
				}
			}
		}
		res.Changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

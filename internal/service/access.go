package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"agrikonek/internal/domain"
	"agrikonek/internal/repository"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func v() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseClock(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// check runs struct validation and reports failures as ErrInvalidArgument
func check(req any) error {
	err := v().Struct(req)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]string, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return fmt.Errorf("%w: invalid %s", domain.ErrInvalidArgument, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
}

// currentSession the caller identity; missing session is ErrUnauthorized
func currentSession(ctx context.Context) (domain.Session, error) {
	s, ok := domain.SessionFrom(ctx)
	if !ok {
		return domain.Session{}, domain.ErrUnauthorized
	}
	return s, nil
}

// fiscalYear defaults to the current calendar year
func fiscalYear(year int, now time.Time) int {
	if year > 0 {
		return year
	}
	return now.Year()
}

// access role and scope checks shared by the services
type access struct {
	profiles repository.ProfilesRepository
	orgs     repository.OrganizationsRepository
}

func (a access) superadmin(ctx context.Context) (domain.Session, error) {
	s, err := currentSession(ctx)
	if err != nil {
		return s, err
	}
	if !s.IsSuperadmin() {
		return s, fmt.Errorf("%w: superadmin only", domain.ErrForbidden)
	}
	return s, nil
}

// orgAdmin superadmins or admins of orgID
func (a access) orgAdmin(ctx context.Context, orgID string) (domain.Session, error) {
	s, err := currentSession(ctx)
	if err != nil || s.IsSuperadmin() {
		return s, err
	}
	ok, err := a.orgs.IsAdmin(ctx, orgID, s.UserID)
	if err != nil {
		return s, err
	}
	if !ok {
		return s, fmt.Errorf("%w: not an administrator of organization %s", domain.ErrForbidden, orgID)
	}
	return s, nil
}

// regionAdmin superadmins or regional admins mapped to regionID
func (a access) regionAdmin(ctx context.Context, regionID string) (domain.Session, error) {
	s, err := currentSession(ctx)
	if err != nil || s.IsSuperadmin() {
		return s, err
	}
	if s.Role != domain.RoleRegionalAdmin {
		return s, fmt.Errorf("%w: regional admin only", domain.ErrForbidden)
	}
	p, err := a.profiles.GetProfile(ctx, s.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s, fmt.Errorf("%w: no profile", domain.ErrForbidden)
		}
		return s, err
	}
	if p.RegionID == nil || *p.RegionID != regionID {
		return s, fmt.Errorf("%w: region %s is outside your assignment", domain.ErrForbidden, regionID)
	}
	return s, nil
}

// orgReader superadmins, admins of orgID, the regional admin of its region, or active members
func (a access) orgReader(ctx context.Context, org *domain.Organization) (domain.Session, error) {
	s, err := a.orgAdmin(ctx, org.ID)
	if err == nil || !errors.Is(err, domain.ErrForbidden) {
		return s, err
	}
	if s2, err := a.regionAdmin(ctx, org.RegionID); err == nil {
		return s2, nil
	}
	ok, err := a.orgs.IsActiveMember(ctx, org.ID, s.UserID)
	if err != nil {
		return s, err
	}
	if !ok {
		return s, fmt.Errorf("%w: not a member of organization %s", domain.ErrForbidden, org.ID)
	}
	return s, nil
}

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }

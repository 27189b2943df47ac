package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"agrikonek/internal/domain"
	"agrikonek/internal/repository"
)

// BudgetService organization allocations, expenses and the budget request workflow
type BudgetService interface {
	AllocateOrganizationBudget(ctx context.Context, req AllocateBudgetRequest) (*domain.OrganizationBudget, error)
	GetOrganizationBudget(ctx context.Context, orgID string, fiscalYear int) (*domain.OrganizationBudget, error)
	RecordExpense(ctx context.Context, req RecordExpenseRequest) (*domain.OrganizationBudget, error)
	ListExpenses(ctx context.Context, orgID string, fiscalYear int) ([]*domain.BudgetExpense, error)

	RequestBudgetIncrease(ctx context.Context, req BudgetIncreaseRequest) (*domain.BudgetRequest, error)
	ListBudgetRequests(ctx context.Context, filter domain.BudgetRequestFilter) ([]*domain.BudgetRequest, error)
	ProcessBudgetRequest(ctx context.Context, req ProcessRequest) (*domain.ProcessOutcome, error)
}

type AllocateBudgetRequest struct {
	OrganizationID string `json:"organization_id" validate:"required"`
	FiscalYear     int    `json:"fiscal_year" validate:"omitempty,gte=2000,lte=2100"`
	Amount         int64  `json:"amount" validate:"gte=0"`
}

type RecordExpenseRequest struct {
	OrganizationID string    `json:"organization_id" validate:"required"`
	FiscalYear     int       `json:"fiscal_year" validate:"omitempty,gte=2000,lte=2100"`
	Amount         int64     `json:"amount" validate:"gt=0"`
	Description    string    `json:"description" validate:"required,max=500"`
	Category       string    `json:"category" validate:"required,max=64"`
	ExpenseDate    time.Time `json:"expense_date"`
}

type BudgetIncreaseRequest struct {
	OrganizationID string `json:"organization_id" validate:"required"`
	FiscalYear     int    `json:"fiscal_year" validate:"omitempty,gte=2000,lte=2100"`
	Amount         int64  `json:"amount" validate:"gt=0"`
	Reason         string `json:"reason" validate:"required,max=2000"`
}

type ProcessRequest struct {
	RequestID string                     `json:"request_id" validate:"required"`
	Status    domain.BudgetRequestStatus `json:"status" validate:"required,oneof=approved rejected"`
	Notes     *string                    `json:"notes,omitempty"`
}

type budgetService struct {
	budgets  repository.BudgetsRepository
	orgs     repository.OrganizationsRepository
	profiles repository.ProfilesRepository
	access   access
	notifier Notifier
	now      func() time.Time
	logger   *zap.Logger
}

func NewBudgetService(repos *repository.Repositories, notifier Notifier, logger *zap.Logger) BudgetService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &budgetService{
		budgets:  repos.Budgets,
		orgs:     repos.Organizations,
		profiles: repos.Profiles,
		access:   access{profiles: repos.Profiles, orgs: repos.Organizations},
		notifier: notifier,
		now:      time.Now,
		logger:   logger,
	}
}

// AllocateOrganizationBudget superadmins or the regional admin of the organization's region
func (s *budgetService) AllocateOrganizationBudget(ctx context.Context, req AllocateBudgetRequest) (*domain.OrganizationBudget, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	org, err := s.orgs.GetOrganization(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}
	sess, err := s.access.regionAdmin(ctx, org.RegionID)
	if err != nil {
		return nil, err
	}
	b, err := s.budgets.AllocateOrganizationBudget(ctx, org.ID, fiscalYear(req.FiscalYear, s.now()), req.Amount)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Organization budget allocated",
		zap.String("organization_id", org.ID),
		zap.Int("fiscal_year", b.FiscalYear),
		zap.Int64("total_allocation", b.TotalAllocation),
		zap.Int64("remaining_balance", b.RemainingBalance),
		zap.String("by", sess.UserID),
	)
	return b, nil
}

func (s *budgetService) GetOrganizationBudget(ctx context.Context, orgID string, year int) (*domain.OrganizationBudget, error) {
	if err := s.canRead(ctx, orgID); err != nil {
		return nil, err
	}
	return s.budgets.GetOrganizationBudget(ctx, orgID, fiscalYear(year, s.now()))
}

func (s *budgetService) RecordExpense(ctx context.Context, req RecordExpenseRequest) (*domain.OrganizationBudget, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	sess, err := s.access.orgAdmin(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}
	date := req.ExpenseDate
	if date.IsZero() {
		date = s.now()
	}
	recorder := sess.UserID
	exp := &domain.BudgetExpense{
		OrganizationID: req.OrganizationID,
		FiscalYear:     fiscalYear(req.FiscalYear, date),
		Amount:         req.Amount,
		Description:    strings.TrimSpace(req.Description),
		Category:       strings.ToLower(strings.TrimSpace(req.Category)),
		ExpenseDate:    date,
		RecordedBy:     &recorder,
	}
	b, err := s.budgets.RecordExpense(ctx, exp)
	if err != nil {
		s.logger.Warn("Expense rejected",
			zap.String("organization_id", req.OrganizationID),
			zap.Int64("amount", req.Amount),
			zap.Error(err),
		)
		return nil, err
	}
	s.logger.Info("Expense recorded",
		zap.String("organization_id", req.OrganizationID),
		zap.String("expense_id", exp.ID),
		zap.Int64("amount", exp.Amount),
		zap.Int64("remaining_balance", b.RemainingBalance),
	)
	return b, nil
}

func (s *budgetService) ListExpenses(ctx context.Context, orgID string, year int) ([]*domain.BudgetExpense, error) {
	if err := s.canRead(ctx, orgID); err != nil {
		return nil, err
	}
	return s.budgets.ListExpenses(ctx, orgID, fiscalYear(year, s.now()))
}

func (s *budgetService) RequestBudgetIncrease(ctx context.Context, req BudgetIncreaseRequest) (*domain.BudgetRequest, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	sess, err := s.access.orgAdmin(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}
	org, err := s.orgs.GetOrganization(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	br := &domain.BudgetRequest{
		OrganizationID:  org.ID,
		RegionID:        org.RegionID,
		FiscalYear:      fiscalYear(req.FiscalYear, now),
		RequestedAmount: req.Amount,
		Reason:          strings.TrimSpace(req.Reason),
		Status:          domain.RequestPending,
		RequestDate:     now,
	}
	if err := s.budgets.CreateBudgetRequest(ctx, br); err != nil {
		return nil, err
	}
	s.logger.Info("Budget increase requested",
		zap.String("request_id", br.ID),
		zap.String("organization_id", org.ID),
		zap.Int64("amount", br.RequestedAmount),
		zap.String("by", sess.UserID),
	)
	return br, nil
}

// ListBudgetRequests narrows the filter to what the caller may see
func (s *budgetService) ListBudgetRequests(ctx context.Context, filter domain.BudgetRequestFilter) ([]*domain.BudgetRequest, error) {
	sess, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	switch sess.Role {
	case domain.RoleSuperadmin:
	case domain.RoleRegionalAdmin:
		p, err := s.profiles.GetProfile(ctx, sess.UserID)
		if err != nil {
			return nil, err
		}
		if p.RegionID == nil {
			return []*domain.BudgetRequest{}, nil
		}
		filter.RegionID = *p.RegionID
	default:
		org, err := s.orgs.GetOrganizationByAdmin(ctx, sess.UserID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: not an organization administrator", domain.ErrForbidden)
		}
		if err != nil {
			return nil, err
		}
		filter.OrganizationID = org.ID
	}
	switch filter.Status {
	case "", domain.RequestPending, domain.RequestApproved, domain.RequestRejected:
	default:
		return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidArgument, filter.Status)
	}
	return s.budgets.ListBudgetRequests(ctx, filter)
}

func (s *budgetService) ProcessBudgetRequest(ctx context.Context, req ProcessRequest) (*domain.ProcessOutcome, error) {
	if err := check(req); err != nil {
		return nil, err
	}
	br, err := s.budgets.GetBudgetRequest(ctx, req.RequestID)
	if err != nil {
		return nil, err
	}
	sess, err := s.access.regionAdmin(ctx, br.RegionID)
	if err != nil {
		return nil, err
	}
	out, err := s.budgets.ProcessBudgetRequest(ctx, repository.RequestDecision{
		RequestID:  req.RequestID,
		Status:     req.Status,
		Notes:      req.Notes,
		ApproverID: sess.UserID,
		At:         s.now(),
		Notice:     budgetNotice,
	})
	if err != nil {
		return nil, err
	}
	if out.Changed {
		s.notifier.Enqueue(out.Notified...)
		s.logger.Info("Budget request processed",
			zap.String("request_id", req.RequestID),
			zap.String("status", string(req.Status)),
			zap.Int("notified", len(out.Notified)),
			zap.String("by", sess.UserID),
		)
	}
	return out, nil
}

func (s *budgetService) canRead(ctx context.Context, orgID string) error {
	org, err := s.orgs.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	_, err = s.access.orgReader(ctx, org)
	return err
}

func budgetNotice(br *domain.BudgetRequest) repository.NoticeFunc {
	link := "/budgets/requests/" + br.ID
	return func(string) *domain.NewNotification {
		return &domain.NewNotification{
			Title:    "Regional budget increased",
			Message:  fmt.Sprintf("A budget request of %s for fiscal year %d was approved.", formatPeso(br.RequestedAmount), br.FiscalYear),
			Category: domain.CategoryBudget,
			Priority: domain.NotifyHigh,
			Link:     &link,
		}
	}
}

// formatPeso renders centavos as "PHP 1,234.56"
func formatPeso(centavos int64) string {
	sign := ""
	if centavos < 0 {
		sign = "-"
		centavos = -centavos
	}
	whole := fmt.Sprintf("%d", centavos/100)
	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return fmt.Sprintf("%sPHP %s.%02d", sign, b.String(), centavos%100)
}

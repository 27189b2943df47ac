package service

import (
	"go.uber.org/zap"

	"agrikonek/internal/repository"
	"agrikonek/internal/seed"
)

// Services every service the HTTP layer routes to
type Services struct {
	Profiles      ProfileService
	Regions       RegionService
	Organizations OrganizationService
	Budgets       BudgetService
	Notifications NotificationService
	Messages      MessageService
	Farmers       FarmerService
	Reports       ReportService
}

// New wires the services over one repository bundle; fallback may be nil
func New(repos *repository.Repositories, fallback *seed.Provider, notifier Notifier, logger *zap.Logger) *Services {
	return &Services{
		Profiles:      NewProfileService(repos, logger.Named("profiles")),
		Regions:       NewRegionService(repos, fallback, logger.Named("regions")),
		Organizations: NewOrganizationService(repos, notifier, logger.Named("organizations")),
		Budgets:       NewBudgetService(repos, notifier, logger.Named("budgets")),
		Notifications: NewNotificationService(repos, notifier, logger.Named("notifications")),
		Messages:      NewMessageService(repos, notifier, logger.Named("messages")),
		Farmers:       NewFarmerService(repos, logger.Named("farmers")),
		Reports:       NewReportService(repos, logger.Named("reports")),
	}
}

package repository

import (
	"database/sql"
)

// Repositories every store the services need, backed by one database (or one MemoryDB)
type Repositories struct {
	Regions       RegionsRepository
	Profiles      ProfilesRepository
	Organizations OrganizationsRepository
	Budgets       BudgetsRepository
	Notifications NotificationsRepository
	Messages      MessagesRepository
	Farmers       FarmersRepository
	Reports       ReportsRepository
}

// New Postgres-backed repositories
func New(db *sql.DB) *Repositories {
	return &Repositories{
		Regions:       NewPostgresRegionsRepository(db),
		Profiles:      NewPostgresProfilesRepository(db),
		Organizations: NewPostgresOrganizationsRepository(db),
		Budgets:       NewPostgresBudgetsRepository(db),
		Notifications: NewPostgresNotificationsRepository(db),
		Messages:      NewPostgresMessagesRepository(db),
		Farmers:       NewPostgresFarmersRepository(db),
		Reports:       NewPostgresReportsRepository(db),
	}
}

// NewMemory DB-less repositories sharing one MemoryDB
func NewMemory(db *MemoryDB) *Repositories {
	return &Repositories{
		Regions:       NewMemoryRegionsRepo(db),
		Profiles:      NewMemoryProfilesRepo(db),
		Organizations: NewMemoryOrganizationsRepo(db),
		Budgets:       NewMemoryBudgetsRepo(db),
		Notifications: NewMemoryNotificationsRepo(db),
		Messages:      NewMemoryMessagesRepo(db),
		Farmers:       NewMemoryFarmersRepo(db),
		Reports:       NewMemoryReportsRepo(db),
	}
}

package repository

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"agrikonek/internal/domain"
)

// MemoryDB backs every Memory*Repo when the DB is disabled (and in tests).
// One mutex guards all tables, so a multi-table workflow is atomic exactly like a transaction.
type MemoryDB struct {
	mu  sync.RWMutex
	now func() time.Time
	seq int64

	islandGroups  []domain.IslandGroup
	regions       map[string]*domain.Region
	provinces     map[string]*domain.Province
	agri          map[string]*domain.AgriculturalData
	annual        map[int]*domain.AnnualBudget
	regionBudgets map[string]*domain.RegionBudget // regionID|year

	profiles   map[string]*domain.Profile
	orgs       map[string]*domain.Organization
	admins     map[string]*domain.OrganizationAdmin
	farmers    map[string]*domain.FarmerProfile
	members    map[string]*domain.OrganizationMember
	orgBudgets map[string]*domain.OrganizationBudget // orgID|year
	expenses   []*domain.BudgetExpense
	requests   map[string]*domain.BudgetRequest

	notifications map[string]*domain.Notification
	prefs         map[string]*domain.NotificationPreferences

	conversations map[string]*domain.Conversation
	messages      []memMessage
	reads         map[string]time.Time // conversationID|userID

	plots      map[string]*domain.FarmPlot
	crops      map[string]*domain.Crop
	activities map[string]*domain.CropActivity
	resources  map[string]*domain.FarmResource
	tasks      map[string]*domain.FarmingTask
}

type memMessage struct {
	seq int64
	msg domain.Message
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		now: time.Now,
		islandGroups: []domain.IslandGroup{
			{ID: "luzon-island", Name: "Luzon"},
			{ID: "visayas-island", Name: "Visayas"},
			{ID: "mindanao-island", Name: "Mindanao"},
		},
		regions:       map[string]*domain.Region{},
		provinces:     map[string]*domain.Province{},
		agri:          map[string]*domain.AgriculturalData{},
		annual:        map[int]*domain.AnnualBudget{},
		regionBudgets: map[string]*domain.RegionBudget{},
		profiles:      map[string]*domain.Profile{},
		orgs:          map[string]*domain.Organization{},
		admins:        map[string]*domain.OrganizationAdmin{},
		farmers:       map[string]*domain.FarmerProfile{},
		members:       map[string]*domain.OrganizationMember{},
		orgBudgets:    map[string]*domain.OrganizationBudget{},
		requests:      map[string]*domain.BudgetRequest{},
		notifications: map[string]*domain.Notification{},
		prefs:         map[string]*domain.NotificationPreferences{},
		conversations: map[string]*domain.Conversation{},
		reads:         map[string]time.Time{},
		plots:         map[string]*domain.FarmPlot{},
		crops:         map[string]*domain.Crop{},
		activities:    map[string]*domain.CropActivity{},
		resources:     map[string]*domain.FarmResource{},
		tasks:         map[string]*domain.FarmingTask{},
	}
}

// SetClock replaces time.Now; tests use it to get deterministic timestamps
func (m *MemoryDB) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func yearKey(id string, year int) string { return fmt.Sprintf("%s|%d", id, year) }

func pairKey(a, b string) string { return a + "|" + b }

func newID() string { return uuid.NewString() }

// insertNotificationLocked caller holds m.mu
func (m *MemoryDB) insertNotificationLocked(n domain.NewNotification) *domain.Notification {
	if n.Priority == "" {
		n.Priority = domain.NotifyMedium
	}
	row := &domain.Notification{
		ID:        newID(),
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Category:  n.Category,
		Priority:  n.Priority,
		Link:      n.Link,
		Metadata:  n.Metadata,
		CreatedAt: m.now(),
	}
	m.notifications[row.ID] = row
	cp := *row
	return &cp
}

func constraint(op, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", op, domain.ErrConstraintViolation, fmt.Sprintf(format, args...))
}

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
}

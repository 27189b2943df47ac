package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"agrikonek/internal/domain"
	"agrikonek/internal/repository"
)

type channelLog struct {
	mu     sync.Mutex
	pushed []string
	mailed []string
	audit  []string
	fail   error
}

func (c *channelLog) Push(_ context.Context, n *domain.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushed = append(c.pushed, n.ID)
	return c.fail
}

func (c *channelLog) Send(_ context.Context, to string, n *domain.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mailed = append(c.mailed, to)
	return nil
}

func (c *channelLog) PublishJSON(_ context.Context, kind string, _ any) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audit = append(c.audit, kind)
	return "1-0", nil
}

func TestPlanDelivery(t *testing.T) {
	manila, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)
	night := time.Date(2025, 6, 1, 23, 30, 0, 0, manila)
	noon := time.Date(2025, 6, 1, 12, 0, 0, 0, manila)

	start, end := "22:00", "06:00"
	quiet := domain.DefaultPreferences("u")
	quiet.QuietHoursStart, quiet.QuietHoursEnd = &start, &end

	pushOnly := domain.DefaultPreferences("u")
	pushOnly.EmailEnabled = false

	muted := domain.DefaultPreferences("u")
	muted.CategoryPreferences[domain.CategoryBudget] = false

	budget := func(p domain.NotificationPriority) *domain.Notification {
		return &domain.Notification{Category: domain.CategoryBudget, Priority: p}
	}

	tests := []struct {
		name  string
		prefs domain.NotificationPreferences
		n     *domain.Notification
		at    time.Time
		want  DeliveryPlan
	}{
		{"defaults", domain.DefaultPreferences("u"), budget(domain.NotifyMedium), noon, DeliveryPlan{Push: true, Email: true}},
		{"push only", pushOnly, budget(domain.NotifyMedium), noon, DeliveryPlan{Push: true}},
		{"quiet hours", quiet, budget(domain.NotifyHigh), night, DeliveryPlan{Reason: "quiet_hours"}},
		{"outside quiet hours", quiet, budget(domain.NotifyHigh), noon, DeliveryPlan{Push: true, Email: true}},
		{"urgent bypasses quiet hours", quiet, budget(domain.NotifyUrgent), night, DeliveryPlan{Push: true, Email: true}},
		{"category muted", muted, budget(domain.NotifyUrgent), noon, DeliveryPlan{Reason: "category_disabled"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlanDelivery(tt.prefs, tt.n, tt.at))
		})
	}
}

func newDispatchEnv(t *testing.T, log *channelLog) (*repository.Repositories, *Dispatcher) {
	t.Helper()
	repos := repository.NewMemory(repository.NewMemoryDB())
	require.NoError(t, repos.Profiles.UpsertProfile(context.Background(), &domain.Profile{
		UserID: "u-1", Email: "maria@example.ph", Role: domain.RoleFarmer,
	}))
	d := NewDispatcher(repos, DispatcherConfig{Workers: 2, Queue: 16, Push: log, Mail: log, Audit: log}, zap.NewNop())
	return repos, d
}

func TestDispatcher_DeliversAndDrainsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	log := &channelLog{}
	repos, d := newDispatchEnv(t, log)
	// quiet hours never apply at noon in Manila, so pin the clock
	d.now = func() time.Time { return time.Date(2025, 6, 1, 4, 0, 0, 0, time.UTC) }

	for i := 0; i < 5; i++ {
		n, err := repos.Notifications.CreateNotification(context.Background(), domain.NewNotification{
			UserID: "u-1", Title: "t", Message: "m", Category: domain.CategoryBudget, Priority: domain.NotifyMedium,
		})
		require.NoError(t, err)
		d.Enqueue(n)
	}
	d.Close()
	d.Close()

	assert.Len(t, log.pushed, 5)
	assert.Len(t, log.mailed, 5)
	assert.Equal(t, "maria@example.ph", log.mailed[0])
	assert.Len(t, log.audit, 5)

	// enqueue after close is ignored
	d.Enqueue(&domain.Notification{ID: "late", UserID: "u-1"})
	assert.Len(t, log.pushed, 5)
}

func TestDispatcher_RespectsPreferences(t *testing.T) {
	defer goleak.VerifyNone(t)

	log := &channelLog{fail: errors.New("broker down")}
	repos, d := newDispatchEnv(t, log)
	d.now = func() time.Time { return time.Date(2025, 6, 1, 4, 0, 0, 0, time.UTC) }

	prefs := domain.DefaultPreferences("u-1")
	prefs.EmailEnabled = false
	prefs.CategoryPreferences[domain.CategoryMessage] = false
	require.NoError(t, repos.Notifications.UpsertPreferences(context.Background(), &prefs))

	d.Enqueue(
		&domain.Notification{ID: "a", UserID: "u-1", Category: domain.CategoryBudget, Priority: domain.NotifyLow},
		&domain.Notification{ID: "b", UserID: "u-1", Category: domain.CategoryMessage, Priority: domain.NotifyLow},
		nil,
	)
	d.Close()

	assert.Equal(t, []string{"a"}, log.pushed, "push failure is logged, not retried here")
	assert.Empty(t, log.mailed)
	assert.Len(t, log.audit, 2, "skipped deliveries are audited too")
}

func TestDispatcher_FullQueueDrops(t *testing.T) {
	defer goleak.VerifyNone(t)

	repos := repository.NewMemory(repository.NewMemoryDB())
	block := make(chan struct{})
	d := NewDispatcher(repos, DispatcherConfig{Workers: 1, Queue: 1, Push: blockingPusher(block)}, zap.NewNop())

	for i := 0; i < 10; i++ {
		d.Enqueue(&domain.Notification{ID: "n", UserID: "u", Category: domain.CategoryAlert, Priority: domain.NotifyUrgent})
	}
	close(block)
	d.Close()
}

type blockingPusher chan struct{}

func (b blockingPusher) Push(ctx context.Context, _ *domain.Notification) error {
	select {
	case <-b:
	case <-ctx.Done():
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"agrikonek/internal/delivery"
	"agrikonek/internal/domain"
	"agrikonek/internal/repository"
)

// Notifier hands committed notifications to the external channels
type Notifier interface {
	Enqueue(ns ...*domain.Notification)
}

// AuditLog is satisfied by *redisx.StreamPublisher
type AuditLog interface {
	PublishJSON(ctx context.Context, kind string, data any) (string, error)
}

// DeliveryPlan which external channels a notification goes to
type DeliveryPlan struct {
	Push   bool   `json:"push"`
	Email  bool   `json:"email"`
	Reason string `json:"reason,omitempty"`
}

// PlanDelivery applies channel switches, the category filter and quiet hours.
// The in-app row exists regardless; urgent notifications ignore quiet hours.
func PlanDelivery(prefs domain.NotificationPreferences, n *domain.Notification, now time.Time) DeliveryPlan {
	if !prefs.CategoryEnabled(n.Category) {
		return DeliveryPlan{Reason: "category_disabled"}
	}
	if n.Priority != domain.NotifyUrgent && prefs.InQuietHours(now) {
		return DeliveryPlan{Reason: "quiet_hours"}
	}
	p := DeliveryPlan{Push: prefs.PushEnabled, Email: prefs.EmailEnabled}
	if !p.Push && !p.Email {
		p.Reason = "channels_disabled"
	}
	return p
}

type deliveryRecord struct {
	NotificationID string                      `json:"notification_id"`
	UserID         string                      `json:"user_id"`
	Category       domain.NotificationCategory `json:"category"`
	Priority       domain.NotificationPriority `json:"priority"`
	Plan           DeliveryPlan                `json:"plan"`
	PushError      string                      `json:"push_error,omitempty"`
	EmailError     string                      `json:"email_error,omitempty"`
	At             time.Time                   `json:"at"`
}

// DispatcherConfig channels are optional; nil disables the channel
type DispatcherConfig struct {
	Workers int
	Queue   int
	Timeout time.Duration
	Push    delivery.Pusher
	Mail    delivery.Mailer
	Audit   AuditLog
}

// Dispatcher bounded worker pool delivering notifications after commit
type Dispatcher struct {
	notifications repository.NotificationsRepository
	profiles      repository.ProfilesRepository
	cfg           DispatcherConfig

	queue  chan *domain.Notification
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool

	now    func() time.Time
	logger *zap.Logger
}

func NewDispatcher(repos *repository.Repositories, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Queue <= 0 {
		cfg.Queue = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	d := &Dispatcher{
		notifications: repos.Notifications,
		profiles:      repos.Profiles,
		cfg:           cfg,
		queue:         make(chan *domain.Notification, cfg.Queue),
		now:           time.Now,
		logger:        logger,
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

// Enqueue never blocks; a full queue drops the external delivery (the in-app row is already stored)
func (d *Dispatcher) Enqueue(ns ...*domain.Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	for _, n := range ns {
		if n == nil {
			continue
		}
		select {
		case d.queue <- n:
		default:
			d.logger.Warn("Notification queue full, external delivery dropped",
				zap.String("notification_id", n.ID),
				zap.String("user_id", n.UserID),
			)
		}
	}
}

// Close stops accepting work and waits for queued deliveries to finish
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for n := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		d.deliver(ctx, n)
		cancel()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n *domain.Notification) {
	prefs := domain.DefaultPreferences(n.UserID)
	stored, err := d.notifications.GetPreferences(ctx, n.UserID)
	switch {
	case err == nil:
		prefs = *stored
	case !errors.Is(err, domain.ErrNotFound):
		d.logger.Warn("Preferences unavailable, external delivery skipped",
			zap.String("notification_id", n.ID), zap.Error(err))
		return
	}

	plan := PlanDelivery(prefs, n, d.now())
	if plan.Push && d.cfg.Push == nil {
		plan.Push = false
	}
	if plan.Email && d.cfg.Mail == nil {
		plan.Email = false
	}
	rec := deliveryRecord{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Category:       n.Category,
		Priority:       n.Priority,
		Plan:           plan,
		At:             d.now().UTC(),
	}

	var g errgroup.Group
	if plan.Push {
		g.Go(func() error {
			if err := d.cfg.Push.Push(ctx, n); err != nil {
				rec.PushError = err.Error()
				d.logger.Warn("Push delivery failed", zap.String("notification_id", n.ID), zap.Error(err))
				return err
			}
			return nil
		})
	}
	if plan.Email {
		g.Go(func() error {
			p, err := d.profiles.GetProfile(ctx, n.UserID)
			if err == nil {
				err = d.cfg.Mail.Send(ctx, p.Email, n)
			}
			if err != nil {
				rec.EmailError = err.Error()
				d.logger.Warn("Email delivery failed", zap.String("notification_id", n.ID), zap.Error(err))
				return err
			}
			return nil
		})
	}
	_ = g.Wait()

	if d.cfg.Audit != nil {
		if _, err := d.cfg.Audit.PublishJSON(ctx, "notification.delivery", rec); err != nil {
			d.logger.Warn("Failed to append delivery record", zap.String("notification_id", n.ID), zap.Error(err))
		}
	}
	d.logger.Debug("Notification dispatched",
		zap.String("notification_id", n.ID),
		zap.Bool("push", plan.Push),
		zap.Bool("email", plan.Email),
		zap.String("reason", plan.Reason),
	)
}

type nopNotifier struct{}

func (nopNotifier) Enqueue(...*domain.Notification) {}

package domain

import (
	"encoding/json"
	"fmt"
	"time"
	_ "time/tzdata" // zone database for LoadLocation on minimal images
)

type NotificationCategory string

const (
	CategorySystem  NotificationCategory = "system"
	CategoryBudget  NotificationCategory = "budget"
	CategoryMessage NotificationCategory = "message"
	CategoryAlert   NotificationCategory = "alert"
)

func (c NotificationCategory) Valid() bool {
	switch c {
	case CategorySystem, CategoryBudget, CategoryMessage, CategoryAlert:
		return true
	}
	return false
}

type NotificationPriority string

const (
	NotifyLow    NotificationPriority = "low"
	NotifyMedium NotificationPriority = "medium"
	NotifyHigh   NotificationPriority = "high"
	NotifyUrgent NotificationPriority = "urgent"
)

func (p NotificationPriority) Valid() bool {
	switch p {
	case NotifyLow, NotifyMedium, NotifyHigh, NotifyUrgent:
		return true
	}
	return false
}

// Notification (notifications). Only the owner marks it read or removes it.
type Notification struct {
	ID        string               `json:"id" db:"id"`
	UserID    string               `json:"user_id" db:"user_id"`
	Title     string               `json:"title" db:"title"`
	Message   string               `json:"message" db:"message"`
	Category  NotificationCategory `json:"category" db:"category"`
	Priority  NotificationPriority `json:"priority" db:"priority"`
	IsRead    bool                 `json:"is_read" db:"is_read"`
	Link      *string              `json:"link,omitempty" db:"link"`
	Metadata  json.RawMessage      `json:"metadata,omitempty" db:"metadata"` // JSONB
	CreatedAt time.Time            `json:"created_at" db:"created_at"`
}

// NewNotification input for inserts
type NewNotification struct {
	UserID   string
	Title    string
	Message  string
	Category NotificationCategory
	Priority NotificationPriority
	Link     *string
	Metadata json.RawMessage
}

// NotificationPreferences (notification_preferences), 1:1 with the user
type NotificationPreferences struct {
	UserID              string                        `json:"user_id" db:"user_id"`
	EmailEnabled        bool                          `json:"email_enabled" db:"email_enabled"`
	PushEnabled         bool                          `json:"push_enabled" db:"push_enabled"`
	CategoryPreferences map[NotificationCategory]bool `json:"category_preferences" db:"category_preferences"`     // JSONB
	QuietHoursStart     *string                       `json:"quiet_hours_start,omitempty" db:"quiet_hours_start"` // "HH:MM"
	QuietHoursEnd       *string                       `json:"quiet_hours_end,omitempty" db:"quiet_hours_end"`     // "HH:MM"
	Timezone            string                        `json:"timezone" db:"timezone"`
	UpdatedAt           time.Time                     `json:"updated_at" db:"updated_at"`
}

// DefaultPreferences applies when the user never saved any
func DefaultPreferences(userID string) NotificationPreferences {
	return NotificationPreferences{
		UserID:              userID,
		EmailEnabled:        true,
		PushEnabled:         true,
		CategoryPreferences: map[NotificationCategory]bool{},
		Timezone:            "Asia/Manila",
	}
}

// CategoryEnabled missing categories count as enabled
func (p NotificationPreferences) CategoryEnabled(c NotificationCategory) bool {
	if v, ok := p.CategoryPreferences[c]; ok {
		return v
	}
	return true
}

// ParseClock parses "HH:MM" into minutes after midnight
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid clock %q, want HH:MM", ErrInvalidArgument, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// InQuietHours reports whether now, in the user's timezone, is inside [start, end).
// A window with start > end wraps midnight. start == end means no quiet hours.
func (p NotificationPreferences) InQuietHours(now time.Time) bool {
	if p.QuietHoursStart == nil || p.QuietHoursEnd == nil {
		return false
	}
	start, err := ParseClock(*p.QuietHoursStart)
	if err != nil {
		return false
	}
	end, err := ParseClock(*p.QuietHoursEnd)
	if err != nil || start == end {
		return false
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	m := local.Hour()*60 + local.Minute()
	if start < end {
		return m >= start && m < end
	}
	return m >= start || m < end
}

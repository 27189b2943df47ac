package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestInQuietHours(t *testing.T) {
	prefs := DefaultPreferences("u1")
	prefs.Timezone = "UTC"

	at := func(h, m int) time.Time { return time.Date(2024, 5, 1, h, m, 0, 0, time.UTC) }

	assert.False(t, prefs.InQuietHours(at(23, 0)), "no window configured")

	prefs.QuietHoursStart = strptr("22:00")
	prefs.QuietHoursEnd = strptr("06:00")
	assert.True(t, prefs.InQuietHours(at(23, 30)))
	assert.True(t, prefs.InQuietHours(at(5, 59)))
	assert.False(t, prefs.InQuietHours(at(6, 0)))
	assert.False(t, prefs.InQuietHours(at(12, 0)))

	prefs.QuietHoursStart = strptr("12:00")
	prefs.QuietHoursEnd = strptr("13:00")
	assert.True(t, prefs.InQuietHours(at(12, 30)))
	assert.False(t, prefs.InQuietHours(at(13, 0)))

	prefs.QuietHoursEnd = strptr("12:00")
	assert.False(t, prefs.InQuietHours(at(12, 0)), "empty window")
}

func TestInQuietHours_Timezone(t *testing.T) {
	prefs := DefaultPreferences("u1") // Asia/Manila, UTC+8
	prefs.QuietHoursStart = strptr("22:00")
	prefs.QuietHoursEnd = strptr("06:00")

	// 15:00 UTC is 23:00 in Manila
	assert.True(t, prefs.InQuietHours(time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)))
	// 04:00 UTC is 12:00 in Manila
	assert.False(t, prefs.InQuietHours(time.Date(2024, 5, 1, 4, 0, 0, 0, time.UTC)))
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("07:45")
	require.NoError(t, err)
	assert.Equal(t, 7*60+45, m)

	_, err = ParseClock("7pm")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCategoryEnabled(t *testing.T) {
	p := DefaultPreferences("u1")
	assert.True(t, p.CategoryEnabled(CategoryBudget))
	p.CategoryPreferences[CategoryBudget] = false
	assert.False(t, p.CategoryEnabled(CategoryBudget))
	assert.True(t, p.CategoryEnabled(CategoryAlert))
}

func TestSessionContext(t *testing.T) {
	_, ok := SessionFrom(context.Background())
	assert.False(t, ok)

	ctx := WithSession(context.Background(), Session{UserID: "u1", Role: RoleFarmer})
	s, ok := SessionFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", s.UserID)
	assert.False(t, s.IsSuperadmin())

	_, ok = SessionFrom(WithSession(context.Background(), Session{Role: RoleFarmer}))
	assert.False(t, ok, "session without user id is not a session")
}

func TestOrderedPairAndOther(t *testing.T) {
	lo, hi := OrderedPair("b", "a")
	assert.Equal(t, "a", lo)
	assert.Equal(t, "b", hi)

	c := Conversation{Kind: ConversationDirect, UserLow: &lo, UserHigh: &hi}
	assert.Equal(t, "b", c.Other("a"))
	assert.Equal(t, []string{"a", "b"}, c.Participants())

	org := Conversation{Kind: ConversationOrganization}
	assert.Nil(t, org.Participants())
}

func TestRecordKind(t *testing.T) {
	assert.True(t, RecordCrop.Valid())
	assert.False(t, RecordKind("barns").Valid())
	assert.True(t, RecordTask.ValidStatus("in_progress"))
	assert.False(t, RecordTask.ValidStatus("harvested"))
	assert.Equal(t, "crop_activities", RecordActivity.Table())
}

func TestMemberStatusTerminal(t *testing.T) {
	assert.False(t, MemberPending.Terminal())
	assert.True(t, MemberActive.Terminal())
	assert.True(t, MemberRejected.Terminal())
}

package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"habitsync/internal/habitica"
)

var testNow = time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

func testCtx() Context {
	return Context{
		Tags:   habitica.TagIndex{"t1": "work", "t2": "health"},
		Now:    testNow,
		Logger: zap.NewNop(),
	}
}

func TestTransform_HabitStatusIsConstant(t *testing.T) {
	for _, completed := range []bool{true, false} {
		for _, due := range []bool{true, false} {
			raw := habitica.RawTask{ID: "h1", Type: habitica.KindHabit, Up: true, Completed: completed, IsDue: due}
			rec := Transform(raw, testCtx())
			assert.Equal(t, habitica.StatusHabit, rec.Status)
		}
	}
}

func TestTransform_RewardStatusAndCost(t *testing.T) {
	raw := habitica.RawTask{ID: "r1", Type: habitica.KindReward, Value: 25}
	rec := Transform(raw, testCtx())
	assert.Equal(t, habitica.StatusReward, rec.Status)
	assert.Equal(t, 25.0, rec.Cost)
}

func TestTransform_TodoStatusMachine(t *testing.T) {
	past := testNow.Add(-24 * time.Hour).Format(time.RFC3339)
	future := testNow.Add(24 * time.Hour).Format(time.RFC3339)

	tests := []struct {
		name      string
		date      string
		completed bool
		want      habitica.Status
	}{
		{"no due date", "", false, habitica.StatusGrey},
		{"no due date completed", "", true, habitica.StatusGrey},
		{"completed", future, true, habitica.StatusDone},
		{"completed past date", past, true, habitica.StatusDone},
		{"overdue", past, false, habitica.StatusRed},
		{"upcoming", future, false, habitica.StatusDue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := habitica.RawTask{ID: "td", Type: habitica.KindTodo, Date: tt.date, Completed: tt.completed}
			rec := Transform(raw, testCtx())
			assert.Equal(t, tt.want, rec.Status)
		})
	}
}

func TestTransform_TodoBareDateFormat(t *testing.T) {
	raw := habitica.RawTask{ID: "td", Type: habitica.KindTodo, Date: "2030-01-15"}
	rec := Transform(raw, testCtx())
	require.NotNil(t, rec.DueDate)
	assert.Equal(t, habitica.StatusDue, rec.Status)
}

func TestTransform_DailyStatusMachine(t *testing.T) {
	tests := []struct {
		name      string
		due       bool
		completed bool
		want      habitica.Status
	}{
		{"not due", false, false, habitica.StatusGrey},
		{"not due completed", false, true, habitica.StatusGrey},
		{"due incomplete", true, false, habitica.StatusDue},
		{"due completed", true, true, habitica.StatusSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := habitica.RawTask{ID: "d", Type: habitica.KindDaily, IsDue: tt.due, Completed: tt.completed}
			rec := Transform(raw, testCtx())
			assert.Equal(t, tt.want, rec.Status)
		})
	}
}

// Every kind/flag combination must land on a status from that kind's closed
// set; no combination may leave the status unset.
func TestTransform_StatusNeverEmpty(t *testing.T) {
	closed := map[habitica.Kind][]habitica.Status{
		habitica.KindHabit:  {habitica.StatusHabit},
		habitica.KindDaily:  {habitica.StatusGrey, habitica.StatusDue, habitica.StatusSuccess},
		habitica.KindTodo:   {habitica.StatusGrey, habitica.StatusDue, habitica.StatusDone, habitica.StatusRed},
		habitica.KindReward: {habitica.StatusReward},
	}
	for kind, statuses := range closed {
		for _, due := range []bool{true, false} {
			for _, completed := range []bool{true, false} {
				raw := habitica.RawTask{ID: "x", Type: kind, IsDue: due, Completed: completed}
				rec := Transform(raw, testCtx())
				assert.NotEmpty(t, rec.Status)
				assert.Contains(t, statuses, rec.Status, "%s due=%v completed=%v", kind, due, completed)
			}
		}
	}
}

func TestTransform_UnknownKindFallsBack(t *testing.T) {
	raw := habitica.RawTask{ID: "x", Type: "mystery", Text: "?", Value: 2}
	rec := Transform(raw, testCtx())
	assert.Equal(t, habitica.StatusUnknown, rec.Status)
	assert.Equal(t, "?", rec.Text)
	assert.Equal(t, habitica.BandGood, rec.Band)
}

func TestTransform_ResolvesTagNames(t *testing.T) {
	raw := habitica.RawTask{ID: "h", Type: habitica.KindHabit, Tags: []string{"t1", "missing", "t2"}}
	rec := Transform(raw, testCtx())
	assert.Equal(t, []string{"work", "health"}, rec.TagNames)
	assert.Equal(t, []string{"t1", "missing", "t2"}, rec.TagIDs)
}

func TestTransform_ChecklistRatio(t *testing.T) {
	raw := habitica.RawTask{ID: "d", Type: habitica.KindDaily, Checklist: []habitica.ChecklistItem{
		{ID: "1", Completed: true},
		{ID: "2", Completed: false},
		{ID: "3", Completed: true},
		{ID: "4", Completed: false},
	}}
	rec := Transform(raw, testCtx())
	assert.Equal(t, 0.5, rec.ChecklistRatio)

	empty := Transform(habitica.RawTask{ID: "d2", Type: habitica.KindDaily}, testCtx())
	assert.Equal(t, 1.0, empty.ChecklistRatio)
}

func TestTransform_DamageOnlyWhenExposed(t *testing.T) {
	due := habitica.RawTask{ID: "d", Type: habitica.KindDaily, IsDue: true}

	t.Run("due incomplete awake", func(t *testing.T) {
		rec := Transform(due, testCtx())
		require.NotNil(t, rec.DamageToSelf)
	})
	t.Run("sleeping", func(t *testing.T) {
		ctx := testCtx()
		ctx.User.Sleeping = true
		rec := Transform(due, ctx)
		assert.Nil(t, rec.DamageToSelf)
		assert.Nil(t, rec.DamageToParty)
	})
	t.Run("stealth charge", func(t *testing.T) {
		ctx := testCtx()
		ctx.User.Stealth = 1
		rec := Transform(due, ctx)
		assert.Nil(t, rec.DamageToSelf)
	})
	t.Run("completed", func(t *testing.T) {
		raw := due
		raw.Completed = true
		rec := Transform(raw, testCtx())
		assert.Nil(t, rec.DamageToSelf)
	})
	t.Run("not due", func(t *testing.T) {
		raw := due
		raw.IsDue = false
		rec := Transform(raw, testCtx())
		assert.Nil(t, rec.DamageToSelf)
	})
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		value float64
		want  habitica.ValueBand
	}{
		{-30, habitica.BandWorst},
		{-20, habitica.BandBad},
		{-10, habitica.BandWeak},
		{-1, habitica.BandNeutral},
		{0, habitica.BandNeutral},
		{1, habitica.BandGood},
		{5, habitica.BandStrong},
		{10, habitica.BandBest},
		{50, habitica.BandBest},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, habitica.BandFor(tt.value), "value %v", tt.value)
	}
}

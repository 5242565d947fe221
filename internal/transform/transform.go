// Package transform converts raw task payloads into typed records with
// derived status, value band, checklist ratio, and projected damage.
//
// Transform is deterministic: the same raw task and context always produce
// the same record. All per-refresh state it needs (tag index, user context)
// arrives through Context; nothing is read from globals.
package transform

import (
	"time"

	"go.uber.org/zap"

	"habitsync/internal/habitica"
)

// Context is the per-refresh environment shared by every Transform call of
// one cycle.
type Context struct {
	Tags   habitica.TagIndex
	User   habitica.UserContext
	Now    time.Time
	Logger *zap.Logger
}

// Transform builds the derived record for one raw task. Dispatch over the
// four kinds is exhaustive; an unrecognized kind produces a base record with
// StatusUnknown and a logged warning rather than an error.
func Transform(raw habitica.RawTask, ctx Context) habitica.TaskRecord {
	rec := baseRecord(raw, ctx)

	switch raw.Type {
	case habitica.KindHabit:
		buildHabit(raw, &rec)
	case habitica.KindDaily:
		buildDaily(raw, ctx, &rec)
	case habitica.KindTodo:
		buildTodo(raw, ctx, &rec)
	case habitica.KindReward:
		buildReward(raw, &rec)
	default:
		rec.Status = habitica.StatusUnknown
		if ctx.Logger != nil {
			ctx.Logger.Warn("unrecognized task kind",
				zap.String("task", raw.ID),
				zap.String("kind", string(raw.Type)))
		}
	}
	return rec
}

// baseRecord copies the kind-independent fields and resolves tag names.
func baseRecord(raw habitica.RawTask, ctx Context) habitica.TaskRecord {
	names := make([]string, 0, len(raw.Tags))
	for _, id := range raw.Tags {
		if name, ok := ctx.Tags[id]; ok {
			names = append(names, name)
		}
	}
	return habitica.TaskRecord{
		ID:        raw.ID,
		Text:      raw.Text,
		Notes:     raw.Notes,
		Kind:      raw.Type,
		Attribute: raw.Attribute,
		TagIDs:    raw.Tags,
		TagNames:  names,
		Value:     raw.Value,
		Band:      habitica.BandFor(raw.Value),
		Priority:  raw.Priority,
		Challenge: raw.Challenge,
		CreatedAt: raw.CreatedAt,
	}
}

func buildHabit(raw habitica.RawTask, rec *habitica.TaskRecord) {
	rec.Status = habitica.StatusHabit
	rec.Up = raw.Up
	rec.Down = raw.Down
	rec.CounterUp = raw.CounterUp
	rec.CounterDown = raw.CounterDown
}

func buildReward(raw habitica.RawTask, rec *habitica.TaskRecord) {
	rec.Status = habitica.StatusReward
	rec.Cost = raw.Value
}

func buildTodo(raw habitica.RawTask, ctx Context, rec *habitica.TaskRecord) {
	rec.Completed = raw.Completed
	rec.Checklist = raw.Checklist
	rec.ChecklistRatio = checklistRatio(raw.Checklist)

	if raw.Date != "" {
		if due, err := parseDueDate(raw.Date); err == nil {
			rec.DueDate = &due
		} else if ctx.Logger != nil {
			ctx.Logger.Warn("unparseable todo due date",
				zap.String("task", raw.ID), zap.String("date", raw.Date))
		}
	}

	switch {
	case rec.DueDate == nil:
		rec.Status = habitica.StatusGrey
	case raw.Completed:
		rec.Status = habitica.StatusDone
	case rec.DueDate.Before(ctx.Now):
		rec.Status = habitica.StatusRed
	default:
		rec.Status = habitica.StatusDue
	}
}

func buildDaily(raw habitica.RawTask, ctx Context, rec *habitica.TaskRecord) {
	rec.IsDue = raw.IsDue
	rec.Completed = raw.Completed
	rec.Streak = raw.Streak
	rec.Frequency = raw.Frequency
	rec.EveryX = raw.EveryX
	rec.Checklist = raw.Checklist
	rec.ChecklistRatio = checklistRatio(raw.Checklist)

	switch {
	case !raw.IsDue:
		rec.Status = habitica.StatusGrey
	case raw.Completed:
		rec.Status = habitica.StatusSuccess
	default:
		rec.Status = habitica.StatusDue
	}

	if raw.IsDue && !raw.Completed && !ctx.User.Sleeping && ctx.User.Stealth <= 0 {
		self, party := ProjectDamage(raw.Value, raw.Priority, raw.Checklist, ctx.User)
		rec.DamageToSelf = self
		rec.DamageToParty = party
	}
}

// checklistRatio is the completed fraction of the checklist; 1.0 when there
// are no items, so an itemless daily mitigates nothing.
func checklistRatio(items []habitica.ChecklistItem) float64 {
	if len(items) == 0 {
		return 1.0
	}
	done := 0
	for _, it := range items {
		if it.Completed {
			done++
		}
	}
	return float64(done) / float64(len(items))
}

// parseDueDate accepts the two shapes the API emits for todo due dates:
// RFC 3339 timestamps and bare YYYY-MM-DD dates.
func parseDueDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

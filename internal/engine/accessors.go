package engine

import (
	"sort"
	"strings"
	"time"

	"habitsync/internal/habitica"
	"habitsync/internal/stats"
)

// TaskFilter narrows the Tasks accessor. Zero values match everything.
type TaskFilter struct {
	Kind   habitica.Kind
	Status habitica.Status
	TagID  string
	Text   string // case-insensitive substring of the task text
}

func (f TaskFilter) matches(rec *habitica.TaskRecord) bool {
	if f.Kind != "" && rec.Kind != f.Kind {
		return false
	}
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if f.TagID != "" {
		found := false
		for _, id := range rec.TagIDs {
			if id == f.TagID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Text != "" && !strings.Contains(strings.ToLower(rec.Text), strings.ToLower(f.Text)) {
		return false
	}
	return true
}

// Tasks returns copies of the records matching f, in the service's task
// order within each kind (habit, daily, todo, reward).
func (e *Engine) Tasks(f TaskFilter) []habitica.TaskRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []habitica.TaskRecord
	for _, kind := range []habitica.Kind{habitica.KindHabit, habitica.KindDaily, habitica.KindTodo, habitica.KindReward} {
		for _, id := range e.st.byKind[kind] {
			rec := e.st.records[id]
			if rec != nil && f.matches(rec) {
				out = append(out, *rec)
			}
		}
	}
	return out
}

// Task returns the record with the given id.
func (e *Engine) Task(id string) (habitica.TaskRecord, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.st.records[id]
	if !ok {
		return habitica.TaskRecord{}, false
	}
	return *rec, true
}

// User returns the raw user payload of the last successful refresh, or
// false before the first one.
func (e *Engine) User() (habitica.RawUser, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.st.user == nil {
		return habitica.RawUser{}, false
	}
	return *e.st.user, true
}

// UserContext returns the derived user view of the last successful refresh.
func (e *Engine) UserContext() habitica.UserContext {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st.userCtx
}

// Stats returns the aggregate snapshot of the last successful refresh. The
// returned maps are copies; mutating them does not touch engine state.
func (e *Engine) Stats() stats.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st.snapshot.Clone()
}

// TagFilter narrows the Tags accessor.
type TagFilter struct {
	Name string // case-insensitive substring
}

// Tags returns the tag list of the last successful refresh.
func (e *Engine) Tags(f TagFilter) []habitica.Tag {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]habitica.Tag, 0, len(e.st.tags))
	for _, t := range e.st.tags {
		if f.Name != "" && !strings.Contains(strings.ToLower(t.Name), strings.ToLower(f.Name)) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ChallengeFilter narrows the Challenges accessor.
type ChallengeFilter struct {
	Name string // case-insensitive substring of name or short name
}

// Challenges returns the cached challenge list, sorted by name. Empty until
// LoadChallenges has run.
func (e *Engine) Challenges(f ChallengeFilter) []habitica.Challenge {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]habitica.Challenge, 0, len(e.st.challenges))
	for _, c := range e.st.challenges {
		if f.Name != "" {
			needle := strings.ToLower(f.Name)
			if !strings.Contains(strings.ToLower(c.Name), needle) &&
				!strings.Contains(strings.ToLower(c.ShortName), needle) {
				continue
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RefreshedAt reports when the last successful refresh finished, or zero
// before the first one.
func (e *Engine) RefreshedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st.refreshedAt
}

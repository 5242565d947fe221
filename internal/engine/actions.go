package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"habitsync/internal/habitica"
)

// Actions follow one shape: a single gateway call, an optional narrow
// optimistic patch for immediate feedback, then a fire-and-forget background
// refresh. The action's return does not await the refresh.
//
// The optimistic patch can race the background refresh: if the refresh reads
// server state before the mutation has propagated, older data wins until the
// following cycle. That window is accepted; the server is authoritative and
// the next cycle converges. See DESIGN.md.

// scheduleRefresh kicks off a background cycle. A cycle already in flight
// makes the new attempt a no-op, which is fine: the running cycle will pick
// up the mutation or the one after will.
func (e *Engine) scheduleRefresh() {
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		if err := e.Refresh(context.Background()); err != nil && !errors.Is(err, ErrRefreshInFlight) {
			e.logger.Warn("background refresh failed", zap.Error(err))
		}
	}()
}

// ToggleSleep flips the user's rest-in-the-inn state and returns the new
// sleeping value.
func (e *Engine) ToggleSleep(ctx context.Context) (bool, error) {
	data, err := e.gw.Post(ctx, "/user/sleep", nil)
	if err != nil {
		return false, err
	}
	var sleeping bool
	if err := json.Unmarshal(data, &sleeping); err != nil {
		return false, fmt.Errorf("failed to decode sleep state: %w", err)
	}

	e.mu.Lock()
	if e.st.user != nil {
		patched := *e.st.user
		patched.Preferences.Sleep = sleeping
		next := *e.st
		next.user = &patched
		next.snapshot.Sleeping = sleeping
		e.st = &next
	}
	e.mu.Unlock()

	e.scheduleRefresh()
	return sleeping, nil
}

// ScoreTask scores a task up or down. For dailies and todos scored up, the
// record is optimistically marked completed.
func (e *Engine) ScoreTask(ctx context.Context, id string, up bool) error {
	direction := "down"
	if up {
		direction = "up"
	}
	if _, err := e.gw.Post(ctx, "/tasks/"+url.PathEscape(id)+"/score/"+direction, nil); err != nil {
		return err
	}

	if up {
		e.mu.Lock()
		if rec, ok := e.st.records[id]; ok {
			patched := *rec
			switch patched.Kind {
			case habitica.KindDaily:
				patched.Completed = true
				patched.Status = habitica.StatusSuccess
				patched.DamageToSelf = nil
				patched.DamageToParty = nil
			case habitica.KindTodo:
				patched.Completed = true
				patched.Status = habitica.StatusDone
			}
			next := *e.st
			records := make(map[string]*habitica.TaskRecord, len(e.st.records))
			for k, v := range e.st.records {
				records[k] = v
			}
			records[id] = &patched
			next.records = records
			e.st = &next
		}
		e.mu.Unlock()
	}

	e.scheduleRefresh()
	return nil
}

// AddTodo creates a new todo with a client-generated id so the caller can
// reference it before the next refresh lands.
func (e *Engine) AddTodo(ctx context.Context, text, notes string) (string, error) {
	id := uuid.NewString()
	body := map[string]string{
		"id":    id,
		"type":  string(habitica.KindTodo),
		"text":  text,
		"notes": notes,
	}
	if _, err := e.gw.Post(ctx, "/tasks/user", body); err != nil {
		return "", err
	}
	e.scheduleRefresh()
	return id, nil
}

// DeleteTask removes a task. The record disappears from the exposed state
// immediately.
func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	if _, err := e.gw.Delete(ctx, "/tasks/"+url.PathEscape(id)); err != nil {
		return err
	}

	e.mu.Lock()
	if _, ok := e.st.records[id]; ok {
		next := *e.st
		records := make(map[string]*habitica.TaskRecord, len(e.st.records))
		for k, v := range e.st.records {
			if k != id {
				records[k] = v
			}
		}
		byKind := make(map[habitica.Kind][]string, len(e.st.byKind))
		for kind, ids := range e.st.byKind {
			kept := make([]string, 0, len(ids))
			for _, tid := range ids {
				if tid != id {
					kept = append(kept, tid)
				}
			}
			byKind[kind] = kept
		}
		next.records = records
		next.byKind = byKind
		e.st = &next
	}
	e.mu.Unlock()

	e.scheduleRefresh()
	return nil
}

// LeaveChallenge leaves a challenge. keep controls what happens to its
// tasks: "keep-all" or "remove-all".
func (e *Engine) LeaveChallenge(ctx context.Context, challengeID, keep string) error {
	path := "/challenges/" + url.PathEscape(challengeID) + "/leave"
	if keep != "" {
		path += "?keep=" + url.QueryEscape(keep)
	}
	if _, err := e.gw.Post(ctx, path, nil); err != nil {
		return err
	}
	e.scheduleRefresh()
	return nil
}

// UnlinkTask detaches a single task from its broken challenge. keep is
// "keep" or "remove".
func (e *Engine) UnlinkTask(ctx context.Context, taskID, keep string) error {
	if keep == "" {
		keep = "keep"
	}
	path := "/tasks/unlink-one/" + url.PathEscape(taskID) + "?keep=" + url.QueryEscape(keep)
	if _, err := e.gw.Post(ctx, path, nil); err != nil {
		return err
	}
	e.scheduleRefresh()
	return nil
}

// DeleteTag removes a tag. It disappears from the exposed tag list
// immediately; task records keep their resolved names until the refresh.
func (e *Engine) DeleteTag(ctx context.Context, tagID string) error {
	if _, err := e.gw.Delete(ctx, "/tags/"+url.PathEscape(tagID)); err != nil {
		return err
	}

	e.mu.Lock()
	next := *e.st
	tags := make([]habitica.Tag, 0, len(e.st.tags))
	for _, t := range e.st.tags {
		if t.ID != tagID {
			tags = append(tags, t)
		}
	}
	next.tags = tags
	e.st = &next
	e.mu.Unlock()

	e.scheduleRefresh()
	return nil
}

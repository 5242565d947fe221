// Package engine owns all client-side state and drives the refresh cycle:
// it fans out the per-cycle API fetches, rebuilds the typed model through the
// transformer and aggregator, and publishes one notification per cycle to
// whoever is presenting the data.
//
// State is swapped, never mutated across cycles: readers always see either
// the previous complete snapshot or the new one. The only exception is the
// narrow optimistic patch an action applies while its background refresh is
// still in flight (see actions.go).
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"habitsync/internal/habitica"
	"habitsync/internal/stats"
	"habitsync/internal/transform"
)

// ErrRefreshInFlight is returned when Refresh is called while another cycle
// is running. Attempts are dropped, never queued.
var ErrRefreshInFlight = errors.New("refresh already in progress")

// Gateway is the slice of the API client the engine uses.
type Gateway interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
	Put(ctx context.Context, path string, body any) (json.RawMessage, error)
	Delete(ctx context.Context, path string) (json.RawMessage, error)
}

// ContentSource is the slice of the content cache the engine uses.
type ContentSource interface {
	GearFlat(ctx context.Context) (map[string]habitica.Gear, error)
	Quests(ctx context.Context) (map[string]habitica.Quest, error)
	Invalidate()
}

// RefreshEvent is pushed to subscribers after every cycle, successful or
// aborted. Err carries the critical failure on an abort so the presentation
// layer can show a stale-data indicator.
type RefreshEvent struct {
	At  time.Time
	Err error
}

// state is one complete, immutable view of the synced data.
type state struct {
	records     map[string]*habitica.TaskRecord
	byKind      map[habitica.Kind][]string
	user        *habitica.RawUser
	userCtx     habitica.UserContext
	party       *habitica.RawParty
	tags        []habitica.Tag
	tagIndex    habitica.TagIndex
	snapshot    stats.Snapshot
	challenges  []habitica.Challenge
	refreshedAt time.Time
}

// Engine is the refresh orchestrator. Construct with New and share one
// instance; all methods are safe for concurrent use.
type Engine struct {
	gw       Gateway
	content  ContentSource
	logger   *zap.Logger
	cacheDir string
	now      func() time.Time

	mu sync.RWMutex
	st *state

	refreshMu  sync.Mutex
	refreshing bool

	subMu   sync.Mutex
	subs    map[int]chan RefreshEvent
	nextSub int

	bg sync.WaitGroup
}

// New builds an Engine. cacheDir is where the challenge list cache lives.
func New(gw Gateway, content ContentSource, cacheDir string, logger *zap.Logger) *Engine {
	return &Engine{
		gw:       gw,
		content:  content,
		logger:   logger,
		cacheDir: cacheDir,
		now:      time.Now,
		st:       &state{},
		subs:     make(map[int]chan RefreshEvent),
	}
}

// Subscribe registers for refresh notifications. The returned cancel func
// must be called when the subscriber goes away. Events are delivered
// best-effort: a subscriber that is not draining its channel misses events
// rather than blocking a cycle.
func (e *Engine) Subscribe() (<-chan RefreshEvent, func()) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	id := e.nextSub
	e.nextSub++
	ch := make(chan RefreshEvent, 4)
	e.subs[id] = ch
	return ch, func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		if c, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(c)
		}
	}
}

func (e *Engine) notify(ev RefreshEvent) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Wait blocks until all background refreshes scheduled by actions have
// finished. Intended for shutdown and tests.
func (e *Engine) Wait() { e.bg.Wait() }

// Refresh runs one full cycle. It returns ErrRefreshInFlight, without
// touching state or the network, if another cycle is running. Exactly one
// RefreshEvent is emitted per accepted cycle, whether it succeeds or aborts.
func (e *Engine) Refresh(ctx context.Context) error {
	e.refreshMu.Lock()
	if e.refreshing {
		e.refreshMu.Unlock()
		return ErrRefreshInFlight
	}
	e.refreshing = true
	e.refreshMu.Unlock()

	defer func() {
		e.refreshMu.Lock()
		e.refreshing = false
		e.refreshMu.Unlock()
	}()

	err := e.refresh(ctx)
	e.notify(RefreshEvent{At: e.now(), Err: err})
	return err
}

// fetchResults collects the fan-out outcomes. Each fetch records its own
// error; nothing aborts mid-flight.
type fetchResults struct {
	user    *habitica.RawUser
	userErr error

	tasks    []habitica.RawTask
	tasksErr error

	tags    []habitica.Tag
	tagsErr error

	party    *habitica.RawParty
	partyErr error

	gear       map[string]habitica.Gear
	quests     map[string]habitica.Quest
	contentErr error
}

func (e *Engine) refresh(ctx context.Context) error {
	start := e.now()
	var res fetchResults
	var wg sync.WaitGroup

	wg.Add(5)
	go func() {
		defer wg.Done()
		res.user, res.userErr = fetchJSON[habitica.RawUser](ctx, e.gw, "/user")
	}()
	go func() {
		defer wg.Done()
		res.tasks, res.tasksErr = fetchList[habitica.RawTask](ctx, e.gw, "/tasks/user")
	}()
	go func() {
		defer wg.Done()
		res.tags, res.tagsErr = fetchList[habitica.Tag](ctx, e.gw, "/tags")
	}()
	go func() {
		defer wg.Done()
		res.party, res.partyErr = fetchJSON[habitica.RawParty](ctx, e.gw, "/groups/party")
	}()
	go func() {
		defer wg.Done()
		e.content.Invalidate()
		res.gear, res.contentErr = e.content.GearFlat(ctx)
		if res.contentErr == nil {
			res.quests, res.contentErr = e.content.Quests(ctx)
		}
	}()
	wg.Wait()

	// User, task list, and content are critical: without them no coherent
	// model can be built, so the previous state stays exposed.
	switch {
	case res.userErr != nil:
		return fmt.Errorf("user fetch failed: %w", res.userErr)
	case res.tasksErr != nil:
		return fmt.Errorf("task fetch failed: %w", res.tasksErr)
	case res.contentErr != nil:
		return fmt.Errorf("content fetch failed: %w", res.contentErr)
	}

	// Tags and party are non-critical: fall back to empty defaults.
	if res.tagsErr != nil {
		e.logger.Warn("tag fetch failed, continuing without tags", zap.Error(res.tagsErr))
		res.tags = nil
	}
	if res.partyErr != nil {
		e.logger.Warn("party fetch failed, continuing without party", zap.Error(res.partyErr))
		res.party = nil
	}

	next := e.rebuild(&res)

	e.mu.Lock()
	next.challenges = e.st.challenges
	e.st = next
	e.mu.Unlock()

	e.logger.Info("refresh complete",
		zap.Int("tasks", next.snapshot.TotalTasks),
		zap.Duration("elapsed", e.now().Sub(start)))
	return nil
}

// rebuild constructs a complete new state from the fetch results. It never
// touches the currently exposed state.
func (e *Engine) rebuild(res *fetchResults) *state {
	tagIndex := habitica.BuildTagIndex(res.tags)
	userCtx := transform.BuildUserContext(res.user, res.party, res.gear, res.quests)

	tctx := transform.Context{
		Tags:   tagIndex,
		User:   userCtx,
		Now:    e.now(),
		Logger: e.logger,
	}

	records := make(map[string]*habitica.TaskRecord, len(res.tasks))
	byKind := make(map[habitica.Kind][]string)
	for i := range res.tasks {
		rec, ok := e.transformOne(res.tasks[i], tctx)
		if !ok {
			continue
		}
		records[rec.ID] = rec
		byKind[rec.Kind] = append(byKind[rec.Kind], rec.ID)
	}

	questActive := res.party != nil && res.party.Quest.Active
	return &state{
		records:     records,
		byKind:      byKind,
		user:        res.user,
		userCtx:     userCtx,
		party:       res.party,
		tags:        res.tags,
		tagIndex:    tagIndex,
		snapshot:    stats.Aggregate(byKind, records, res.user, questActive),
		refreshedAt: e.now(),
	}
}

// transformOne shields the cycle from a single malformed record: a panic in
// the transform skips that record and the rest of the list proceeds.
func (e *Engine) transformOne(raw habitica.RawTask, tctx transform.Context) (rec *habitica.TaskRecord, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("skipping task that failed to transform",
				zap.String("task", raw.ID), zap.Any("panic", r))
			rec, ok = nil, false
		}
	}()
	r := transform.Transform(raw, tctx)
	return &r, true
}

// fetchJSON gets path and decodes the payload into T.
func fetchJSON[T any](ctx context.Context, gw Gateway, path string) (*T, error) {
	data, err := gw.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &v, nil
}

// fetchList gets path and decodes the payload into a slice of T.
func fetchList[T any](ctx context.Context, gw Gateway, path string) ([]T, error) {
	data, err := gw.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	var v []T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return v, nil
}

// Package content caches the Habitica static content catalog (gear stats,
// quest definitions, spells). The catalog is large and changes rarely, so it
// is loaded lazily: from disk when a previous run left a copy, otherwise from
// the API, written back for next time.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"habitsync/internal/habitica"
)

const cacheFileName = "content.json"

// Fetcher is the slice of the gateway the store needs.
type Fetcher interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
}

// catalog is the decoded shape of the content document. Only the sections
// habitsync consumes are typed; everything else stays raw.
type catalog struct {
	Gear struct {
		Flat map[string]habitica.Gear `json:"flat"`
	} `json:"gear"`
	Quests map[string]habitica.Quest `json:"quests"`
	Spells json.RawMessage           `json:"spells"`

	raw json.RawMessage
}

// Store is the lazy, disk-backed content cache. Concurrent first accesses
// share a single fetch via singleflight; Invalidate drops the in-memory copy
// without touching disk or the network until the next access.
type Store struct {
	dir     string
	fetcher Fetcher
	logger  *zap.Logger

	mu     sync.RWMutex
	loaded *catalog
	group  singleflight.Group
}

// NewStore builds a Store caching under dir.
func NewStore(dir string, fetcher Fetcher, logger *zap.Logger) *Store {
	return &Store{dir: dir, fetcher: fetcher, logger: logger}
}

// Section returns the named top-level section of the catalog as raw JSON,
// loading the catalog first if needed.
func (s *Store) Section(ctx context.Context, name string) (json.RawMessage, error) {
	c, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(c.raw, &sections); err != nil {
		return nil, fmt.Errorf("failed to index content sections: %w", err)
	}
	sec, ok := sections[name]
	if !ok {
		return nil, fmt.Errorf("content has no section %q", name)
	}
	return sec, nil
}

// GearFlat returns the flat equipment catalog keyed by gear key.
func (s *Store) GearFlat(ctx context.Context) (map[string]habitica.Gear, error) {
	c, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return c.Gear.Flat, nil
}

// Quests returns the quest definitions keyed by quest key.
func (s *Store) Quests(ctx context.Context) (map[string]habitica.Quest, error) {
	c, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return c.Quests, nil
}

// Spells returns the spell catalog as raw JSON. No field of it feeds a
// computation, so it stays undecoded.
func (s *Store) Spells(ctx context.Context) (json.RawMessage, error) {
	c, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return c.Spells, nil
}

// Invalidate drops the in-memory catalog. The next access reloads from disk
// or the API.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.loaded = nil
	s.mu.Unlock()
}

// Bust removes the on-disk copy as well, forcing the next load to hit the
// API. Used when the cached catalog predates a game-content release.
func (s *Store) Bust() error {
	s.Invalidate()
	err := os.Remove(s.path())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove content cache: %w", err)
	}
	return nil
}

func (s *Store) path() string { return filepath.Join(s.dir, cacheFileName) }

func (s *Store) load(ctx context.Context) (*catalog, error) {
	s.mu.RLock()
	c := s.loaded
	s.mu.RUnlock()
	if c != nil {
		return c, nil
	}

	v, err, _ := s.group.Do("content", func() (any, error) {
		// A racing caller may have finished the load while we queued.
		s.mu.RLock()
		c := s.loaded
		s.mu.RUnlock()
		if c != nil {
			return c, nil
		}

		c, err := s.loadOnce(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.loaded = c
		s.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*catalog), nil
}

// loadOnce reads the catalog from disk, falling back to the API on a missing
// or corrupt file. A successful API fetch is written back for next time.
func (s *Store) loadOnce(ctx context.Context) (*catalog, error) {
	if data, err := os.ReadFile(s.path()); err == nil {
		if c, err := decodeCatalog(data); err == nil {
			s.logger.Debug("content loaded from disk", zap.Int("bytes", len(data)))
			return c, nil
		}
		s.logger.Warn("content cache file corrupt, refetching", zap.String("path", s.path()))
	}

	data, err := s.fetcher.Get(ctx, "/content")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content: %w", err)
	}
	c, err := decodeCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err == nil {
		if err := os.WriteFile(s.path(), data, 0o644); err != nil {
			s.logger.Warn("could not write content cache", zap.Error(err))
		}
	}
	s.logger.Info("content fetched from api", zap.Int("bytes", len(data)))
	return c, nil
}

func decodeCatalog(data []byte) (*catalog, error) {
	var c catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Gear.Flat == nil && c.Quests == nil {
		return nil, fmt.Errorf("content document missing gear and quest sections")
	}
	c.raw = json.RawMessage(data)
	return &c, nil
}

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"habitsync/internal/habitica"
)

const challengeCacheFile = "challenges.json"

// LoadChallenges fills the challenge list, reading the local cache file
// unless force is set, and otherwise paging through the API (one request per
// page, each paced by the gateway). A successful API fetch rewrites the
// cache so the paginated walk is not repeated next run.
func (e *Engine) LoadChallenges(ctx context.Context, force bool) error {
	path := filepath.Join(e.cacheDir, challengeCacheFile)

	if !force {
		if data, err := os.ReadFile(path); err == nil {
			var cached []habitica.Challenge
			if err := json.Unmarshal(data, &cached); err == nil {
				e.setChallenges(cached)
				e.logger.Debug("challenges loaded from cache", zap.Int("count", len(cached)))
				return nil
			}
			e.logger.Warn("challenge cache corrupt, refetching", zap.String("path", path))
		}
	}

	var all []habitica.Challenge
	for page := 0; ; page++ {
		data, err := e.gw.Get(ctx, fmt.Sprintf("/challenges/user?page=%d", page))
		if err != nil {
			return fmt.Errorf("challenge fetch failed on page %d: %w", page, err)
		}
		var batch []habitica.Challenge
		if err := json.Unmarshal(data, &batch); err != nil {
			return fmt.Errorf("failed to decode challenge page %d: %w", page, err)
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
	}

	e.setChallenges(all)

	if err := os.MkdirAll(e.cacheDir, 0o755); err == nil {
		if data, err := json.MarshalIndent(all, "", "  "); err == nil {
			if err := os.WriteFile(path, data, 0o644); err != nil {
				e.logger.Warn("could not write challenge cache", zap.Error(err))
			}
		}
	}
	e.logger.Info("challenges fetched", zap.Int("count", len(all)))
	return nil
}

func (e *Engine) setChallenges(cs []habitica.Challenge) {
	e.mu.Lock()
	next := *e.st
	next.challenges = cs
	e.st = &next
	e.mu.Unlock()
}

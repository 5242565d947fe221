package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func challengePages(path string) (json.RawMessage, error) {
	switch {
	case strings.HasSuffix(path, "page=0"):
		return json.RawMessage(`[{"id": "c1", "name": "Read More", "memberCount": 40}]`), nil
	case strings.HasSuffix(path, "page=1"):
		return json.RawMessage(`[{"id": "c2", "name": "Couch to 5k", "memberCount": 12}]`), nil
	case strings.HasSuffix(path, "page=2"):
		return json.RawMessage(`[]`), nil
	}
	return nil, fmt.Errorf("unexpected path %s", path)
}

func TestLoadChallenges_PagesUntilEmpty(t *testing.T) {
	gw := &mockGateway{getFunc: challengePages}
	dir := t.TempDir()
	e := New(gw, defaultContent(), dir, zap.NewNop())

	require.NoError(t, e.LoadChallenges(context.Background(), false))

	cs := e.Challenges(ChallengeFilter{})
	require.Len(t, cs, 2)
	// Sorted by name.
	assert.Equal(t, "Couch to 5k", cs[0].Name)
	assert.Equal(t, "Read More", cs[1].Name)

	// The walk is persisted for next run.
	data, err := os.ReadFile(filepath.Join(dir, challengeCacheFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Read More")
}

func TestLoadChallenges_CacheAvoidsRefetch(t *testing.T) {
	gw := &mockGateway{getFunc: challengePages}
	dir := t.TempDir()

	first := New(gw, defaultContent(), dir, zap.NewNop())
	require.NoError(t, first.LoadChallenges(context.Background(), false))
	pagesFetched := gw.calls("/challenges/user?page=0")
	require.Equal(t, 1, pagesFetched)

	// A fresh engine over the same cache dir reads the file, not the API.
	second := New(gw, defaultContent(), dir, zap.NewNop())
	require.NoError(t, second.LoadChallenges(context.Background(), false))
	assert.Equal(t, 1, gw.calls("/challenges/user?page=0"))
	assert.Len(t, second.Challenges(ChallengeFilter{}), 2)
}

func TestLoadChallenges_ForceRefetches(t *testing.T) {
	gw := &mockGateway{getFunc: challengePages}
	dir := t.TempDir()
	e := New(gw, defaultContent(), dir, zap.NewNop())

	require.NoError(t, e.LoadChallenges(context.Background(), false))
	require.NoError(t, e.LoadChallenges(context.Background(), true))
	assert.Equal(t, 2, gw.calls("/challenges/user?page=0"))
}

func TestChallenges_NameFilter(t *testing.T) {
	gw := &mockGateway{getFunc: challengePages}
	e := New(gw, defaultContent(), t.TempDir(), zap.NewNop())
	require.NoError(t, e.LoadChallenges(context.Background(), false))

	assert.Len(t, e.Challenges(ChallengeFilter{Name: "read"}), 1)
	assert.Empty(t, e.Challenges(ChallengeFilter{Name: "swim"}))
}

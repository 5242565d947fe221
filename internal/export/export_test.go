package export

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitsync/internal/habitica"
	"habitsync/internal/stats"
)

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	when := time.Date(2026, 8, 23, 9, 30, 0, 0, time.UTC)

	path, err := Write(dir, Document{
		ExportedAt: when,
		Stats:      stats.Snapshot{TotalTasks: 2},
		Tasks: []habitica.TaskRecord{
			{ID: "a", Text: "one", Kind: habitica.KindHabit, Status: habitica.StatusHabit},
			{ID: "b", Text: "two", Kind: habitica.KindTodo, Status: habitica.StatusGrey},
		},
		Tags: []habitica.Tag{{ID: "t1", Name: "work"}},
	})
	require.NoError(t, err)
	assert.Contains(t, path, "habitsync-20260823-093000.json")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 2, doc.Stats.TotalTasks)
	require.Len(t, doc.Tasks, 2)
	assert.Equal(t, "one", doc.Tasks[0].Text)
}

// Package export writes snapshots of the synced data to JSON files.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"habitsync/internal/habitica"
	"habitsync/internal/stats"
)

// Document is the on-disk shape of one export.
type Document struct {
	ExportedAt time.Time             `json:"exported_at"`
	Stats      stats.Snapshot        `json:"stats"`
	Tasks      []habitica.TaskRecord `json:"tasks"`
	Tags       []habitica.Tag        `json:"tags"`
}

// Write dumps doc as indented JSON into dir, named by timestamp, and
// returns the file path.
func Write(dir string, doc Document) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	name := fmt.Sprintf("habitsync-%s.json", doc.ExportedAt.Format("20060102-150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

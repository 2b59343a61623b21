package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joshharrison/loomplan/internal/project"
)

// fileState is the on-disk form of a ledger.
type fileState struct {
	SavedAt time.Time `json:"saved_at"`
	Entries []Entry   `json:"entries"`
}

// Save persists the ledger's entries to path, creating its directory.
func (l *Ledger) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(fileState{SavedAt: time.Now(), Entries: l.Entries()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Load reads a ledger saved by Save. Entries are replayed as history, so
// capacity is re-checked against the current resources.
func Load(path string, resources []project.Resource, plans []Plan) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var fs fileState
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("parse ledger: %w", err)
	}

	return Restore(resources, plans, fs.Entries)
}

// Exists checks if a ledger file exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

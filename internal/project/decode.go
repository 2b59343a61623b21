package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is the snapshot format version written by Encode.
const CurrentVersion = "1"

var (
	// ErrUnsupportedVersion indicates a snapshot written by a newer format.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
	// ErrInvalidInput indicates a snapshot that fails basic validation.
	ErrInvalidInput = errors.New("invalid snapshot input")
)

// LoadFile reads and decodes a snapshot from a YAML or JSON file.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Decode(data)
}

// Decode parses a snapshot. JSON input is version-checked before it is
// decoded; anything else is treated as YAML.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if gjson.ValidBytes(data) {
		if v := gjson.GetBytes(data, "version"); v.Exists() && !supportedVersion(v.String()) {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, v.String())
		}
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse snapshot json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse snapshot yaml: %w", err)
		}
		if !supportedVersion(s.Version) {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, s.Version)
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Encode writes the snapshot as indented JSON stamped with CurrentVersion.
func Encode(s *Snapshot) ([]byte, error) {
	out := *s
	out.Version = CurrentVersion
	return json.MarshalIndent(&out, "", "  ")
}

func supportedVersion(v string) bool {
	return v == "" || v == CurrentVersion
}

// Validate checks field-level constraints that do not need the graph.
func (s *Snapshot) Validate() error {
	for _, a := range s.Activities {
		if a.Duration < 0 {
			return fmt.Errorf("%w: activity %d has negative duration %d", ErrInvalidInput, a.ID, a.Duration)
		}
		if a.ElapsedDuration != nil && *a.ElapsedDuration < 0 {
			return fmt.Errorf("%w: activity %d has negative elapsed duration %d", ErrInvalidInput, a.ID, *a.ElapsedDuration)
		}
	}
	seen := make(map[int]bool, len(s.Resources))
	for _, r := range s.Resources {
		if seen[r.ID] {
			return fmt.Errorf("%w: duplicate resource id %d", ErrInvalidInput, r.ID)
		}
		seen[r.ID] = true
		if r.UnitCost < 0 {
			return fmt.Errorf("%w: resource %d has negative unit cost", ErrInvalidInput, r.ID)
		}
	}
	return nil
}

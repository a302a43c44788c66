package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Store supplies the class roster.
type Store interface {
	Load() (map[string]Class, error)
}

// FileStore reads classes from a JSON file keyed by class name:
//
//	{"CS 3110": {"section": "cs3110", "start_time": "09:00:00", ...}}
type FileStore struct {
	Path string
}

// NewFileStore returns a store backed by the given JSON file.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads and decodes the roster. A missing or malformed file is a fatal
// configuration error for the run.
func (s *FileStore) Load() (map[string]Class, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read classes file %s: %w", s.Path, err)
	}

	raw := make(map[string]Class)
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse classes file %s: %w", s.Path, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("classes file %s defines no classes", s.Path)
	}

	classes := make(map[string]Class, len(raw))
	for name, c := range raw {
		if c.Section == "" {
			return nil, fmt.Errorf("class %q: missing section", name)
		}
		c.Name = name
		classes[name] = c
	}
	return classes, nil
}

// Names returns the class names in sorted order, for stable log output.
func Names(classes map[string]Class) []string {
	names := make([]string, 0, len(classes))
	for name := range classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

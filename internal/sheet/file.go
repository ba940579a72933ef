package sheet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// File is a workbook persisted as a single JSON document. The whole file is
// rewritten after every mutation.
type File struct {
	*Memory
	path string
}

// NewFile opens the workbook stored at path, creating an empty one if the
// file does not exist yet
func NewFile(path string) (*File, error) {
	f := &File{Memory: NewMemory(), path: path}
	f.Memory.save = f.save

	// Load existing data if file exists
	if _, err := os.Stat(path); err == nil {
		if err := f.load(); err != nil {
			return nil, fmt.Errorf("failed to load workbook: %w", err)
		}
	}

	return f, nil
}

// save writes the workbook to file. Called with the memory lock held.
func (f *File) save() error {
	data, err := json.MarshalIndent(f.Memory.sheets, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workbook: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func (f *File) load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	sheets := make(map[string]*sheetData)
	if err := json.Unmarshal(data, &sheets); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	for name, s := range sheets {
		if s.Rows == nil {
			s.Rows = make([][]string, 0)
		}
		f.Memory.sheets[name] = s
	}
	return nil
}

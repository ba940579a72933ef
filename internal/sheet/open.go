package sheet

import (
	"fmt"
	"path/filepath"
)

// Store kinds accepted by Open
const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
	StoreMemory = "memory"
)

// Open returns the workbook of the given kind rooted at dataDir
func Open(kind, dataDir string) (Workbook, error) {
	switch kind {
	case StoreSQLite, "":
		return NewSQLite(filepath.Join(dataDir, "rsvp.db"))
	case StoreFile:
		return NewFile(filepath.Join(dataDir, "rsvp.json"))
	case StoreMemory:
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store %q", kind)
}

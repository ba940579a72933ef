// Package sheet provides the row-oriented table store the RSVP service reads
// and writes. A Workbook holds named tables; each Table has a header row and
// data rows addressed by 1-based index, header excluded.
package sheet

import (
	"context"
	"errors"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrRowOutOfRange = errors.New("row out of range")
)

// Table is a single sheet of a workbook
type Table interface {
	// Name returns the sheet name
	Name() string

	// Header returns a copy of the header row
	Header(ctx context.Context) ([]string, error)

	// LoadRows returns every data row in table order. Index i of the result
	// is data row i+1.
	LoadRows(ctx context.Context) ([][]string, error)

	// WriteRow overwrites cells of data row row starting at zero-based
	// column col. The row grows as needed. Rows that do not exist return
	// ErrRowOutOfRange.
	WriteRow(ctx context.Context, row, col int, values []string) error

	// AppendRow adds a data row after the last one
	AppendRow(ctx context.Context, values []string) error
}

// Workbook is a collection of named tables
type Workbook interface {
	// Table opens an existing sheet or returns ErrTableNotFound
	Table(ctx context.Context, name string) (Table, error)

	// EnsureTable creates the sheet with the given header unless it already
	// exists. An existing sheet keeps its header.
	EnsureTable(ctx context.Context, name string, header []string) (Table, error)

	Close() error
}

// mergeCells writes values into cells starting at col, growing cells as needed
func mergeCells(cells []string, col int, values []string) []string {
	if need := col + len(values); need > len(cells) {
		grown := make([]string, need)
		copy(grown, cells)
		cells = grown
	}
	copy(cells[col:], values)
	return cells
}

func cloneRow(row []string) []string {
	out := make([]string, len(row))
	copy(out, row)
	return out
}

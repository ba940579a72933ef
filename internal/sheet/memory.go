package sheet

import (
	"context"
	"fmt"
	"sync"
)

type sheetData struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Memory is an in-process workbook. All tables share one lock.
type Memory struct {
	mu     sync.RWMutex
	sheets map[string]*sheetData

	// save is called with the lock held after every mutation. On error the
	// mutation is undone.
	save func() error
}

// NewMemory creates an empty in-memory workbook
func NewMemory() *Memory {
	return &Memory{sheets: make(map[string]*sheetData)}
}

// Seed replaces the content of a sheet, creating it if needed
func (m *Memory) Seed(name string, header []string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data := &sheetData{Header: cloneRow(header), Rows: make([][]string, 0, len(rows))}
	for _, row := range rows {
		data.Rows = append(data.Rows, cloneRow(row))
	}
	m.sheets[name] = data
}

func (m *Memory) Table(ctx context.Context, name string) (Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.sheets[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return &memoryTable{wb: m, name: name}, nil
}

func (m *Memory) EnsureTable(ctx context.Context, name string, header []string) (Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sheets[name]; !ok {
		m.sheets[name] = &sheetData{Header: cloneRow(header), Rows: make([][]string, 0)}
		if err := m.persist(); err != nil {
			delete(m.sheets, name)
			return nil, err
		}
	}
	return &memoryTable{wb: m, name: name}, nil
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) persist() error {
	if m.save == nil {
		return nil
	}
	return m.save()
}

func (m *Memory) sheet(name string) (*sheetData, error) {
	data, ok := m.sheets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return data, nil
}

type memoryTable struct {
	wb   *Memory
	name string
}

func (t *memoryTable) Name() string {
	return t.name
}

func (t *memoryTable) Header(ctx context.Context) ([]string, error) {
	t.wb.mu.RLock()
	defer t.wb.mu.RUnlock()

	data, err := t.wb.sheet(t.name)
	if err != nil {
		return nil, err
	}
	return cloneRow(data.Header), nil
}

func (t *memoryTable) LoadRows(ctx context.Context) ([][]string, error) {
	t.wb.mu.RLock()
	defer t.wb.mu.RUnlock()

	data, err := t.wb.sheet(t.name)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(data.Rows))
	for i, row := range data.Rows {
		rows[i] = cloneRow(row)
	}
	return rows, nil
}

func (t *memoryTable) WriteRow(ctx context.Context, row, col int, values []string) error {
	t.wb.mu.Lock()
	defer t.wb.mu.Unlock()

	data, err := t.wb.sheet(t.name)
	if err != nil {
		return err
	}
	if row < 1 || row > len(data.Rows) || col < 0 {
		return fmt.Errorf("%w: %s row %d", ErrRowOutOfRange, t.name, row)
	}
	old := data.Rows[row-1]
	data.Rows[row-1] = mergeCells(cloneRow(old), col, values)
	if err := t.wb.persist(); err != nil {
		data.Rows[row-1] = old
		return err
	}
	return nil
}

func (t *memoryTable) AppendRow(ctx context.Context, values []string) error {
	t.wb.mu.Lock()
	defer t.wb.mu.Unlock()

	data, err := t.wb.sheet(t.name)
	if err != nil {
		return err
	}
	data.Rows = append(data.Rows, cloneRow(values))
	if err := t.wb.persist(); err != nil {
		data.Rows = data.Rows[:len(data.Rows)-1]
		return err
	}
	return nil
}

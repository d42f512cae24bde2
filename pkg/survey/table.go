package survey

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Table is a decoded CSV source keyed by participant ID.
type Table struct {
	Name   string
	Header []string
	// Order preserves the row order of the file.
	Order []string
	Rows  map[string][]string

	columns map[string]int
}

// ReadTable decodes a CSV stream. The header must contain an ID column and
// every ID must be unique within the file.
func ReadTable(r io.Reader, name string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidInput, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s header: %v", ErrInvalidInput, name, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &Table{
		Name:    name,
		Header:  make([]string, len(header)),
		Rows:    make(map[string][]string),
		columns: make(map[string]int, len(header)),
	}
	for i, col := range header {
		col = strings.TrimSpace(col)
		if _, dup := t.columns[col]; dup {
			return nil, fmt.Errorf("%w: %s has duplicate column %q", ErrInvalidInput, name, col)
		}
		t.Header[i] = col
		t.columns[col] = i
	}

	idIdx, ok := t.columns[IDColumn]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %q column", ErrInvalidInput, name, IDColumn)
	}

	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidInput, name, err)
		}
		id := strings.TrimSpace(record[idIdx])
		if id == "" {
			return nil, fmt.Errorf("%w: %s line %d: empty %s", ErrInvalidInput, name, line, IDColumn)
		}
		if _, dup := t.Rows[id]; dup {
			return nil, fmt.Errorf("%w: %s line %d: duplicate %s %q", ErrInvalidInput, name, line, IDColumn, id)
		}
		t.Rows[id] = record
		t.Order = append(t.Order, id)
	}
	return t, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Order) }

// HasColumn reports whether the header carries col.
func (t *Table) HasColumn(col string) bool {
	_, ok := t.columns[col]
	return ok
}

// Columns returns the header without the ID column.
func (t *Table) Columns() []string {
	out := make([]string, 0, len(t.Header))
	for _, col := range t.Header {
		if col != IDColumn {
			out = append(out, col)
		}
	}
	return out
}

// Value returns the raw cell for (id, col).
func (t *Table) Value(id, col string) (string, bool) {
	row, ok := t.Rows[id]
	if !ok {
		return "", false
	}
	idx, ok := t.columns[col]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(row[idx]), true
}

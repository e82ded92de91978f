package sheet

import (
	"fmt"
	"strings"

	"sheetclean/internal/util"
)

// Table is an in-memory sheet. A nil cell is a missing value and is distinct
// from a present empty string. Transforms return new tables; rows are never
// shared between the input and the result.
type Table struct {
	Columns []string
	Rows    [][]*string
}

type MissingColumnError struct {
	Column    string
	Available []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("column %q not found (available: %s)", e.Column, strings.Join(e.Available, ", "))
}

func New(columns []string, rows [][]*string) Table {
	t := Table{Columns: append([]string(nil), columns...), Rows: make([][]*string, 0, len(rows))}
	for _, row := range rows {
		t.Rows = append(t.Rows, fitRow(row, len(columns)))
	}
	return t
}

// ColumnIndex resolves a column by exact name first, then by trimmed
// case-insensitive name. Returns -1 when absent.
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	want := util.NormalizeColumnName(name)
	for i, c := range t.Columns {
		if util.NormalizeColumnName(c) == want {
			return i
		}
	}
	return -1
}

func (t Table) MustColumnIndex(name string) (int, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return -1, &MissingColumnError{Column: name, Available: append([]string(nil), t.Columns...)}
	}
	return idx, nil
}

func (t Table) Column(name string) ([]*string, error) {
	idx, err := t.MustColumnIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]*string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

func (t Table) Clone() Table {
	return New(t.Columns, t.Rows)
}

// DropColumns removes the named columns. Unknown names are ignored.
func (t Table) DropColumns(names ...string) Table {
	drop := map[int]struct{}{}
	for _, name := range names {
		if idx := t.ColumnIndex(name); idx >= 0 {
			drop[idx] = struct{}{}
		}
	}

	out := Table{Columns: make([]string, 0, len(t.Columns)), Rows: make([][]*string, 0, len(t.Rows))}
	for i, c := range t.Columns {
		if _, ok := drop[i]; !ok {
			out.Columns = append(out.Columns, c)
		}
	}
	for _, row := range t.Rows {
		kept := make([]*string, 0, len(out.Columns))
		for i, cell := range row {
			if _, ok := drop[i]; !ok {
				kept = append(kept, cell)
			}
		}
		out.Rows = append(out.Rows, kept)
	}
	return out
}

// AppendColumns adds columns at the end. cells[r] holds the new values for
// row r and must have len(names) entries.
func (t Table) AppendColumns(names []string, cells [][]*string) (Table, error) {
	if len(cells) != len(t.Rows) {
		return Table{}, fmt.Errorf("append columns: %d value rows for %d table rows", len(cells), len(t.Rows))
	}
	for _, name := range names {
		if t.ColumnIndex(name) >= 0 {
			return Table{}, fmt.Errorf("append columns: column %q already exists", name)
		}
	}

	out := Table{Columns: append(append([]string(nil), t.Columns...), names...), Rows: make([][]*string, 0, len(t.Rows))}
	for r, row := range t.Rows {
		if len(cells[r]) != len(names) {
			return Table{}, fmt.Errorf("append columns: row %d has %d values, want %d", r, len(cells[r]), len(names))
		}
		merged := make([]*string, 0, len(out.Columns))
		merged = append(merged, row...)
		merged = append(merged, cells[r]...)
		out.Rows = append(out.Rows, merged)
	}
	return out, nil
}

func (t Table) ReplaceColumn(name string, values []*string) (Table, error) {
	idx, err := t.MustColumnIndex(name)
	if err != nil {
		return Table{}, err
	}
	if len(values) != len(t.Rows) {
		return Table{}, fmt.Errorf("replace column %q: %d values for %d rows", name, len(values), len(t.Rows))
	}
	out := t.Clone()
	for r := range out.Rows {
		out.Rows[r][idx] = values[r]
	}
	return out, nil
}

func fitRow(row []*string, width int) []*string {
	out := make([]*string, width)
	copy(out, row)
	return out
}

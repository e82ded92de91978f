package pipeline

import (
	"fmt"
	"strings"

	"sheetclean/internal/sheet"
)

// Expander reshapes a delimited multi-value column into numbered columns
// <Prefix>1..<Prefix>K, K being the longest list in the table.
type Expander struct {
	Delimiter string
	Cleaner   func(string) string
	Prefix    string
	// TrimTokens strips surrounding whitespace from every token.
	TrimTokens bool
	// KeepEmptyTokens keeps tokens that are empty after trimming, e.g. the
	// middle of "a,,b". The degenerate single empty token is always dropped.
	KeepEmptyTokens bool
}

// Expansion is the first phase of an expansion: every record's token list
// keyed by ID, plus the column names sized to the longest list.
type Expansion struct {
	Field   string
	Prefix  string
	Columns []string
	Lists   map[string][]string
}

type DuplicateIDError struct {
	ID        string
	FirstRow  int
	SecondRow int
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate ID %q in data rows %d and %d", e.ID, e.FirstRow, e.SecondRow)
}

type MissingIDError struct {
	Row int
}

func (e *MissingIDError) Error() string {
	return fmt.Sprintf("missing ID in data row %d", e.Row)
}

// Split turns one raw cell into its ordered token list. A missing cell and
// an empty cell both yield an empty list.
func (e Expander) Split(raw *string) []string {
	if raw == nil {
		return nil
	}
	s := *raw
	if e.Cleaner != nil {
		s = e.Cleaner(s)
	}
	delim := e.Delimiter
	if delim == "" {
		delim = ","
	}

	parts := strings.Split(s, delim)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if e.TrimTokens {
			p = strings.TrimSpace(p)
		}
		if p == "" && !e.KeepEmptyTokens {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 1 && out[0] == "" {
		return nil
	}
	return out
}

// Expand computes every record's list and the global column count. IDs are
// validated first; nothing is reshaped on a duplicate or blank ID.
func (e Expander) Expand(t sheet.Table, idColumn, field string) (Expansion, error) {
	ids, err := ValidateIDs(t, idColumn)
	if err != nil {
		return Expansion{}, err
	}
	values, err := t.Column(field)
	if err != nil {
		return Expansion{}, err
	}

	x := Expansion{Field: field, Prefix: e.Prefix, Lists: make(map[string][]string, len(ids))}
	longest := 0
	for i, id := range ids {
		tokens := e.Split(values[i])
		x.Lists[id] = tokens
		if len(tokens) > longest {
			longest = len(tokens)
		}
	}

	x.Columns = make([]string, longest)
	for k := 1; k <= longest; k++ {
		x.Columns[k-1] = fmt.Sprintf("%s%d", e.Prefix, k)
	}
	return x, nil
}

// Cells returns the fixed-width row of expanded cells for one ID. Positions
// past the record's own list are nil.
func (x Expansion) Cells(id string) []*string {
	out := make([]*string, len(x.Columns))
	for i, token := range x.Lists[normalizeID(id)] {
		v := token
		out[i] = &v
	}
	return out
}

// ByID is the ID -> expanded cells mapping.
func (x Expansion) ByID() map[string][]*string {
	out := make(map[string][]*string, len(x.Lists))
	for id := range x.Lists {
		out[id] = x.Cells(id)
	}
	return out
}

// Merge joins the expanded columns onto t by ID, drops the source column and
// keeps every other column in place. Rows of t with no list get nil cells.
func (x Expansion) Merge(t sheet.Table, idColumn string) (sheet.Table, error) {
	ids, err := ValidateIDs(t, idColumn)
	if err != nil {
		return sheet.Table{}, err
	}
	if _, err := t.MustColumnIndex(x.Field); err != nil {
		return sheet.Table{}, err
	}

	cells := make([][]*string, len(ids))
	for i, id := range ids {
		cells[i] = x.Cells(id)
	}
	return t.DropColumns(x.Field).AppendColumns(x.Columns, cells)
}

// Apply runs both phases against the same table.
func (e Expander) Apply(t sheet.Table, idColumn, field string) (sheet.Table, Expansion, error) {
	x, err := e.Expand(t, idColumn, field)
	if err != nil {
		return sheet.Table{}, Expansion{}, err
	}
	out, err := x.Merge(t, idColumn)
	if err != nil {
		return sheet.Table{}, Expansion{}, err
	}
	return out, x, nil
}

// ValidateIDs returns the normalized ID of every row, failing on the first
// blank or repeated one.
func ValidateIDs(t sheet.Table, idColumn string) ([]string, error) {
	values, err := t.Column(idColumn)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]int, len(values))
	ids := make([]string, len(values))
	for i, v := range values {
		if v == nil || normalizeID(*v) == "" {
			return nil, &MissingIDError{Row: i + 1}
		}
		id := normalizeID(*v)
		if first, ok := seen[id]; ok {
			return nil, &DuplicateIDError{ID: id, FirstRow: first, SecondRow: i + 1}
		}
		seen[id] = i + 1
		ids[i] = id
	}
	return ids, nil
}

func normalizeID(v string) string {
	return strings.TrimSpace(v)
}

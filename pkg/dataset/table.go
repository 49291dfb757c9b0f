package dataset

import (
	"errors"
	"fmt"
	"math"
)

// Table is an in-memory labeled numeric table. Cells are row-major float64
// with NaN marking missing values. Labels holds the class of each row and is
// carried separately from the feature columns.
type Table struct {
	Columns []string
	Rows    [][]float64
	Labels  []string

	// Source names the file or operation the table came from.
	Source string
}

// NewTable allocates an empty table with the given columns.
func NewTable(columns []string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// NumCols returns the column count.
func (t *Table) NumCols() int {
	return len(t.Columns)
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// Column copies out the values of column i.
func (t *Table) Column(i int) []float64 {
	out := make([]float64, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// LabelAll assigns the same class label to every row.
func (t *Table) LabelAll(class string) {
	t.Labels = make([]string, len(t.Rows))
	for i := range t.Labels {
		t.Labels[i] = class
	}
}

// Classes returns the distinct labels in first-seen order.
func (t *Table) Classes() []string {
	seen := make(map[string]bool, 4)
	var out []string
	for _, l := range t.Labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Labels:  append([]string(nil), t.Labels...),
		Source:  t.Source,
	}
	out.Rows = make([][]float64, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]float64(nil), row...)
	}
	return out
}

// Select returns a copy of t restricted to the given rows, in order.
func (t *Table) Select(rows []int) *Table {
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Source:  t.Source,
	}
	out.Rows = make([][]float64, len(rows))
	for i, r := range rows {
		out.Rows[i] = append([]float64(nil), t.Rows[r]...)
	}
	if t.Labels != nil {
		out.Labels = make([]string, len(rows))
		for i, r := range rows {
			out.Labels[i] = t.Labels[r]
		}
	}
	return out
}

// Merge combines tables into one. The merged column set is the union of the
// inputs' columns in first-seen order; cells for columns a source table lacks
// are NaN. Every input row appears exactly once, so the merged row count is
// the sum of the inputs'. Labels are concatenated in the same order.
func Merge(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, errors.New("merge: no tables")
	}

	var columns []string
	pos := make(map[string]int)
	total := 0
	for _, t := range tables {
		for _, c := range t.Columns {
			if _, ok := pos[c]; !ok {
				pos[c] = len(columns)
				columns = append(columns, c)
			}
		}
		total += len(t.Rows)
	}

	out := &Table{
		Columns: columns,
		Rows:    make([][]float64, 0, total),
		Labels:  make([]string, 0, total),
		Source:  "merged",
	}
	for _, t := range tables {
		if len(t.Labels) != len(t.Rows) {
			return nil, fmt.Errorf("merge: %s: %d labels for %d rows", t.Source, len(t.Labels), len(t.Rows))
		}
		idx := make([]int, len(t.Columns))
		for i, c := range t.Columns {
			idx[i] = pos[c]
		}
		for r, row := range t.Rows {
			merged := make([]float64, len(columns))
			for i := range merged {
				merged[i] = math.NaN()
			}
			for i, v := range row {
				merged[idx[i]] = v
			}
			out.Rows = append(out.Rows, merged)
			out.Labels = append(out.Labels, t.Labels[r])
		}
	}
	return out, nil
}

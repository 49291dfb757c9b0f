package preprocess

import (
	"github.com/hed1ad/icsguardml/pkg/dataset"
)

// ColumnFilter restricts a table to the declared numeric feature columns,
// in declaration order. Identifier and free-text columns never reach the
// model because they are simply not declared.
//
// The filter is stateless: Fit only checks that every declared column is
// present.
type ColumnFilter struct {
	numeric []string
}

// NewColumnFilter declares the numeric feature columns to keep.
func NewColumnFilter(numeric []string) *ColumnFilter {
	return &ColumnFilter{numeric: append([]string(nil), numeric...)}
}

func (f *ColumnFilter) Name() string { return "column_filter" }

// Fit verifies the declared columns against the table.
func (f *ColumnFilter) Fit(t *dataset.Table) error {
	return f.check(t)
}

// Apply returns the table cut down to the declared columns.
func (f *ColumnFilter) Apply(t *dataset.Table) (*dataset.Table, error) {
	if err := f.check(t); err != nil {
		return nil, err
	}

	idx := make([]int, len(f.numeric))
	for i, c := range f.numeric {
		idx[i], _ = t.ColumnIndex(c)
	}

	out := &dataset.Table{
		Columns: append([]string(nil), f.numeric...),
		Labels:  append([]string(nil), t.Labels...),
		Source:  t.Source,
	}
	out.Rows = make([][]float64, len(t.Rows))
	for r, row := range t.Rows {
		cut := make([]float64, len(idx))
		for i, c := range idx {
			cut[i] = row[c]
		}
		out.Rows[r] = cut
	}
	return out, nil
}

func (f *ColumnFilter) check(t *dataset.Table) error {
	var missing []string
	for _, c := range f.numeric {
		if _, ok := t.ColumnIndex(c); !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &dataset.SchemaError{Table: t.Source, Missing: missing}
	}
	return nil
}

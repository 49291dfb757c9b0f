package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadTable reads a CSV file into a Table. The first record is the header.
// numeric lists the columns that must be present and parse as float64;
// columns outside the list are dropped unread. A nil list declares every
// header column numeric.
//
// Empty cells and "nan" tokens load as NaN. Any other cell that fails to
// parse in a declared column is an error naming the row and column.
func ReadTable(path string, numeric []string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := readTable(csv.NewReader(f), numeric)
	if err != nil {
		var se *SchemaError
		if errors.As(err, &se) && se.Table == "" {
			se.Table = filepath.Base(path)
			return nil, se
		}
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	t.Source = filepath.Base(path)
	return t, nil
}

func readTable(r *csv.Reader, numeric []string) (*Table, error) {
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	keep, missing := selectColumns(header, numeric)
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing, Detail: "declared columns absent from header"}
	}

	t := NewTable(nil)
	t.Columns = make([]string, len(keep))
	for i, c := range keep {
		t.Columns[i] = header[c]
	}

	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make([]float64, len(keep))
		for i, c := range keep {
			v, err := parseCell(record[c])
			if err != nil {
				return nil, fmt.Errorf("row %d, column %q: %w", line, header[c], err)
			}
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// selectColumns maps the declared numeric columns onto header positions,
// preserving header order, and reports declared columns the header lacks.
func selectColumns(header, numeric []string) (keep []int, missing []string) {
	if numeric == nil {
		keep = make([]int, len(header))
		for i := range header {
			keep[i] = i
		}
		return keep, nil
	}
	declared := make(map[string]bool, len(numeric))
	for _, c := range numeric {
		declared[c] = true
	}
	found := make(map[string]bool, len(numeric))
	for i, c := range header {
		if declared[c] {
			keep = append(keep, i)
			found[c] = true
		}
	}
	for _, c := range numeric {
		if !found[c] {
			missing = append(missing, c)
		}
	}
	return keep, missing
}

// parseCell converts one CSV cell. Empty cells and nan tokens are missing.
func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse %q", s)
	}
	return v, nil
}

// WriteTable writes a table as CSV with a header row. NaN cells are written
// empty so a round trip preserves missingness.
func WriteTable(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	if err := w.Write(t.Columns); err != nil {
		f.Close()
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			if math.IsNaN(v) {
				record[i] = ""
			} else {
				record[i] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

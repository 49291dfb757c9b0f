package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hed1ad/icsguardml/pkg/logging"
)

// LoadOptions selects which slice of the extracted dataset to load.
type LoadOptions struct {
	// Window is the capture window length in seconds.
	Window int

	// Numeric lists the feature columns every table must provide. Nil
	// accepts every header column.
	Numeric []string

	// Classes, when non-nil, is the exact class set the loaded data must
	// contain.
	Classes []string
}

// LoadWindow loads every class table for one time window and merges them
// into a single labeled table. Each row's label comes from its source file
// name, never from the file contents.
//
// A usable window needs the benign table and at least one attack table;
// anything less returns *DatasetIncompleteError.
func LoadWindow(layout Layout, opts LoadOptions, log *logging.Logger) (*Table, error) {
	if log == nil {
		log = logging.Default()
	}
	log = log.WithComponent("loader")

	if opts.Window < MinWindow || opts.Window > MaxWindow {
		return nil, fmt.Errorf("window %d out of range [%d, %d]", opts.Window, MinWindow, MaxWindow)
	}

	benignPath := filepath.Join(layout.BenignTablesDir(), TableName(ClassBenign, opts.Window))
	attackPaths, err := attackTables(layout.AttackTablesDir(), opts.Window)
	if err != nil {
		return nil, err
	}

	var missing []string
	if _, err := os.Stat(benignPath); err != nil {
		missing = append(missing, ClassBenign)
	}
	if len(attackPaths) == 0 {
		missing = append(missing, "attack")
	}
	if len(missing) > 0 {
		return nil, &DatasetIncompleteError{Window: opts.Window, Missing: missing}
	}

	tables := make([]*Table, 0, 1+len(attackPaths))
	for _, path := range append([]string{benignPath}, attackPaths...) {
		class, _, ok := ParseTableName(filepath.Base(path))
		if !ok {
			return nil, fmt.Errorf("unexpected table name %s", filepath.Base(path))
		}
		t, err := ReadTable(path, opts.Numeric)
		if err != nil {
			return nil, err
		}
		t.LabelAll(class)
		log.Debug("loaded table", "table", t.Source, "class", class, "rows", t.NumRows())
		tables = append(tables, t)
	}

	merged, err := Merge(tables...)
	if err != nil {
		return nil, err
	}
	if opts.Classes != nil {
		if err := checkClassSet(merged.Classes(), opts.Classes); err != nil {
			return nil, err
		}
	}
	log.Info("window loaded",
		"window", opts.Window,
		"rows", merged.NumRows(),
		"columns", merged.NumCols(),
		"classes", len(merged.Classes()))
	return merged, nil
}

// attackTables returns the sorted attack table paths for one window.
func attackTables(dir string, window int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		class, w, ok := ParseTableName(entry.Name())
		if !ok || w != window || class == ClassBenign {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// checkClassSet verifies the loaded classes exactly match the declared set.
func checkClassSet(got, want []string) error {
	gotSet := make(map[string]bool, len(got))
	for _, c := range got {
		gotSet[c] = true
	}
	wantSet := make(map[string]bool, len(want))
	for _, c := range want {
		wantSet[c] = true
	}
	var unexpected, absent []string
	for c := range gotSet {
		if !wantSet[c] {
			unexpected = append(unexpected, c)
		}
	}
	for c := range wantSet {
		if !gotSet[c] {
			absent = append(absent, c)
		}
	}
	if len(unexpected) == 0 && len(absent) == 0 {
		return nil
	}
	sort.Strings(unexpected)
	sort.Strings(absent)
	return &SchemaError{
		Table:  "merged",
		Detail: fmt.Sprintf("class set mismatch: unexpected %v, absent %v", unexpected, absent),
	}
}

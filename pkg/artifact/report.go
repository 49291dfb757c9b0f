package artifact

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/hed1ad/icsguardml/pkg/eval"
)

// ReportFile is the on-disk evaluation report: the metrics plus enough run
// metadata to tie the numbers back to the model that produced them.
type ReportFile struct {
	RunID     string       `json:"run_id"`
	CreatedAt time.Time    `json:"created_at"`
	Window    int          `json:"window"`
	Report    *eval.Report `json:"report"`
}

// WriteReport writes the evaluation report as indented JSON, atomically.
func WriteReport(path string, meta *Metadata, rep *eval.Report) error {
	out := &ReportFile{
		RunID:     meta.RunID,
		CreatedAt: meta.CreatedAt,
		Window:    meta.Window,
		Report:    rep,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(path, append(data, '\n'))
}

// ReadReport loads a report file written by WriteReport.
func ReadReport(path string) (*ReportFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := &ReportFile{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteImportance writes the feature-importance ranking as a two-column
// CSV, highest gain first.
func WriteImportance(path string, ranking []eval.FeatureImportance) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"feature", "gain"}); err != nil {
		return err
	}
	for _, fi := range ranking {
		record := []string{fi.Feature, strconv.FormatFloat(fi.Gain, 'g', -1, 64)}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return atomicWrite(path, buf.Bytes())
}

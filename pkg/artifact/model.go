// Package artifact reads and writes the pipeline's output files: the
// trained-model container, the evaluation report and the feature-importance
// table. These are the contract surface reporting and visualization tooling
// consumes.
package artifact

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

// magicHeader identifies a model container file, version 1.
var magicHeader = []byte("ICSGML01")

// maxMetadataLen bounds the metadata block so a corrupt length field cannot
// drive a huge allocation.
const maxMetadataLen = 1 << 20

// ErrBadContainer means a model file is not a valid container.
var ErrBadContainer = errors.New("invalid model container")

// Hyperparameters records the trainer configuration a model was built with.
type Hyperparameters struct {
	Rounds          int     `json:"rounds"`
	LearningRate    float64 `json:"learning_rate"`
	MaxLeaves       int     `json:"max_leaves"`
	MinSamplesLeaf  int     `json:"min_samples_leaf"`
	FeatureFraction float64 `json:"feature_fraction"`
	RowFraction     float64 `json:"row_fraction"`
	Patience        int     `json:"patience"`
	Seed            int64   `json:"seed"`
}

// Metadata describes a trained model: what it was trained on and how. It
// travels with the opaque model blob inside the container.
type Metadata struct {
	RunID           string          `json:"run_id"`
	CreatedAt       time.Time       `json:"created_at"`
	Window          int             `json:"window"`
	Classes         []string        `json:"classes"`
	Columns         []string        `json:"columns"`
	Hyperparameters Hyperparameters `json:"hyperparameters"`
	SkewThreshold   float64         `json:"skew_threshold"`
	Centering       bool            `json:"centering"`
	TrainRows       int             `json:"train_rows"`
	ValidRows       int             `json:"valid_rows"`
	TestRows        int             `json:"test_rows"`
	BestRound       int             `json:"best_round"`
}

// WriteModel writes a model container: magic header, length-prefixed JSON
// metadata, then the model blob in a zstd frame. The file is written to a
// temp sibling and renamed into place so an interrupted run never leaves a
// truncated container behind.
func WriteModel(path string, meta *Metadata, blob []byte) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return err
	}
	defer enc.Close()
	compressed := enc.EncodeAll(blob, make([]byte, 0, len(blob)/2))

	var buf bytes.Buffer
	buf.Write(magicHeader)
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(metaJSON))); err != nil {
		return err
	}
	buf.Write(metaJSON)
	buf.Write(compressed)

	return atomicWrite(path, buf.Bytes())
}

// ReadModel opens a model container and returns its metadata and the
// decompressed model blob.
func ReadModel(path string) (*Metadata, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	if len(data) < len(magicHeader)+4 || !bytes.Equal(data[:len(magicHeader)], magicHeader) {
		return nil, nil, fmt.Errorf("%s: %w: bad magic", filepath.Base(path), ErrBadContainer)
	}
	rest := data[len(magicHeader):]

	metaLen := binary.LittleEndian.Uint32(rest[:4])
	rest = rest[4:]
	if metaLen > maxMetadataLen || int(metaLen) > len(rest) {
		return nil, nil, fmt.Errorf("%s: %w: metadata length %d", filepath.Base(path), ErrBadContainer, metaLen)
	}

	meta := &Metadata{}
	if err := json.Unmarshal(rest[:metaLen], meta); err != nil {
		return nil, nil, fmt.Errorf("%s: %w: %v", filepath.Base(path), ErrBadContainer, err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, nil, err
	}
	defer dec.Close()
	blob, err := dec.DecodeAll(rest[metaLen:], nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w: %v", filepath.Base(path), ErrBadContainer, err)
	}
	return meta, blob, nil
}

// atomicWrite writes data to a temp file in path's directory and renames it
// over path.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

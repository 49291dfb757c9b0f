package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	cfg.Dataset.Numeric = []string{"pkt_count"}
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
dataset:
  source_dir: /data/dist
  work_dir: /data/work
  window: 5
  numeric: [pkt_count, byte_count]
  classes: [benign, scan]
preprocess:
  skew_threshold: 1.5
  centering: false
train:
  rounds: 50
  patience: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Dataset.Window)
	assert.Equal(t, []string{"pkt_count", "byte_count"}, cfg.Dataset.Numeric)
	assert.Equal(t, 1.5, cfg.Preprocess.SkewThreshold)
	assert.False(t, cfg.Preprocess.CenteringEnabled())

	// Overridden fields change, the rest keep their defaults.
	assert.Equal(t, 50, cfg.Train.Rounds)
	assert.Equal(t, 4, cfg.Train.Patience)
	assert.Equal(t, 0.1, cfg.Train.LearningRate)
	assert.Equal(t, 31, cfg.Train.MaxLeaves)
	assert.Equal(t, 0.70, cfg.Split.Train)
}

func TestCenteringDefaultsToTrue(t *testing.T) {
	path := writeConfig(t, `
dataset:
  numeric: [pkt_count]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Preprocess.CenteringEnabled())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "window out of range",
			body: "dataset:\n  window: 11\n  numeric: [a]\n",
		},
		{
			name: "missing schema",
			body: "dataset:\n  window: 2\n",
		},
		{
			name: "duplicate schema column",
			body: "dataset:\n  numeric: [a, a]\n",
		},
		{
			name: "zero learning rate",
			body: "dataset:\n  numeric: [a]\ntrain:\n  learning_rate: 0\n",
		},
		{
			name: "feature fraction above one",
			body: "dataset:\n  numeric: [a]\ntrain:\n  feature_fraction: 1.2\n",
		},
		{
			name: "zero patience",
			body: "dataset:\n  numeric: [a]\ntrain:\n  patience: 0\n",
		},
		{
			name: "bad log level",
			body: "dataset:\n  numeric: [a]\nlog:\n  level: loud\n",
		},
		{
			name: "split does not sum to one",
			body: "dataset:\n  numeric: [a]\nsplit:\n  train: 0.5\n  valid: 0.2\n  test: 0.2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "dataset: [not: a map\n"))
	assert.Error(t, err)
}

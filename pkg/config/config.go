// Package config loads and validates the YAML run configuration that
// drives the pipeline end to end.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the full run configuration. Zero values are filled from
// Default before a file is applied, so a config file only needs to name
// what it changes.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Dataset    DatasetConfig    `yaml:"dataset"`
	Split      SplitConfig      `yaml:"split"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Train      TrainConfig      `yaml:"train"`
	Output     OutputConfig     `yaml:"output"`
}

// LogConfig selects log verbosity and handler format.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// DatasetConfig names the dataset distribution and the slice to train on.
type DatasetConfig struct {
	// SourceDir holds the top-level distribution archive.
	SourceDir string `yaml:"source_dir" validate:"required"`

	// WorkDir receives the extracted tables. Owned by one run at a time.
	WorkDir string `yaml:"work_dir" validate:"required"`

	// Window is the aggregation interval in seconds.
	Window int `yaml:"window" validate:"min=1,max=10"`

	// Numeric declares the feature columns. Declaring the schema up
	// front catches silent drift between windows at load time.
	Numeric []string `yaml:"numeric" validate:"required,min=1,unique"`

	// Classes, when set, is the exact label set the window must contain.
	Classes []string `yaml:"classes" validate:"omitempty,unique"`
}

// SplitConfig sets the stratified train/valid/test fractions.
type SplitConfig struct {
	Train float64 `yaml:"train" validate:"gt=0,lt=1"`
	Valid float64 `yaml:"valid" validate:"gt=0,lt=1"`
	Test  float64 `yaml:"test" validate:"gt=0,lt=1"`
	Seed  int64   `yaml:"seed"`
}

// PreprocessConfig tunes the feature transform pipeline.
type PreprocessConfig struct {
	// SkewThreshold is the absolute skewness above which a feature gets
	// log-damped.
	SkewThreshold float64 `yaml:"skew_threshold" validate:"gt=0"`

	// Centering controls whether robust scaling subtracts the training
	// median (true) or zero (false). The scale divisor is the same
	// either way.
	Centering *bool `yaml:"centering"`
}

// CenteringEnabled resolves the centering flag, defaulting to true.
func (p PreprocessConfig) CenteringEnabled() bool {
	return p.Centering == nil || *p.Centering
}

// TrainConfig holds the trainer hyperparameters.
type TrainConfig struct {
	Rounds          int     `yaml:"rounds" validate:"min=1"`
	LearningRate    float64 `yaml:"learning_rate" validate:"gt=0"`
	MaxLeaves       int     `yaml:"max_leaves" validate:"min=2"`
	MinSamplesLeaf  int     `yaml:"min_samples_leaf" validate:"min=1"`
	FeatureFraction float64 `yaml:"feature_fraction" validate:"gt=0,lte=1"`
	RowFraction     float64 `yaml:"row_fraction" validate:"gt=0,lte=1"`
	Patience        int     `yaml:"patience" validate:"min=1"`
	Seed            int64   `yaml:"seed"`
}

// OutputConfig names where run artifacts land.
type OutputConfig struct {
	Dir string `yaml:"dir" validate:"required"`
}

// Default returns the configuration used when a file sets nothing.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Dataset: DatasetConfig{
			SourceDir: ".",
			WorkDir:   "work",
			Window:    1,
		},
		Split: SplitConfig{Train: 0.70, Valid: 0.15, Test: 0.15, Seed: 42},
		Preprocess: PreprocessConfig{
			SkewThreshold: 0.75,
		},
		Train: TrainConfig{
			Rounds:          100,
			LearningRate:    0.1,
			MaxLeaves:       31,
			MinSamplesLeaf:  20,
			FeatureFraction: 0.8,
			RowFraction:     0.8,
			Patience:        10,
			Seed:            42,
		},
		Output: OutputConfig{Dir: "artifacts"},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks struct tags plus the cross-field constraints tags cannot
// express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config field %s: failed %q constraint", fe.Namespace(), fe.Tag())
		}
		return err
	}

	if sum := c.Split.Train + c.Split.Valid + c.Split.Test; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("config: split fractions sum to %v, want 1", sum)
	}
	return nil
}

// Package pipeline composes the full batch run: unpack the verified
// dataset, load and split one window, fit the feature transforms on the
// training split, train the boosted ensemble and write the evaluation
// artifacts. Each stage hands an immutable artifact to the next; nothing
// here keeps process-wide mutable state.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hed1ad/icsguardml/pkg/artifact"
	"github.com/hed1ad/icsguardml/pkg/classifiers"
	"github.com/hed1ad/icsguardml/pkg/classifiers/gbdt"
	"github.com/hed1ad/icsguardml/pkg/config"
	"github.com/hed1ad/icsguardml/pkg/dataset"
	"github.com/hed1ad/icsguardml/pkg/eval"
	"github.com/hed1ad/icsguardml/pkg/logging"
	"github.com/hed1ad/icsguardml/pkg/preprocess"
)

// Runner executes pipeline stages against one configuration.
type Runner struct {
	cfg *config.Config
	log *logging.Logger
}

// New creates a runner. A nil logger falls back to the default.
func New(cfg *config.Config, log *logging.Logger) *Runner {
	if log == nil {
		log = logging.Default()
	}
	return &Runner{cfg: cfg, log: log.WithComponent("pipeline")}
}

// Unpack verifies and extracts the dataset distribution into the working
// directory.
func (r *Runner) Unpack(ctx context.Context) (*dataset.Summary, error) {
	sum, _, err := dataset.Unpack(ctx, dataset.UnpackOptions{
		SourceDir: r.cfg.Dataset.SourceDir,
		DestDir:   r.cfg.Dataset.WorkDir,
	}, r.log)
	return sum, err
}

// TrainResult bundles everything a training run produced.
type TrainResult struct {
	Meta           *artifact.Metadata
	Report         *eval.Report
	ModelPath      string
	ReportPath     string
	ImportancePath string
}

// Train runs load → split → transform → train → evaluate → write for the
// configured window and returns the produced artifacts.
func (r *Runner) Train(ctx context.Context) (*TrainResult, error) {
	merged, err := r.loadWindow()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	split := dataset.SplitFractions{
		Train: r.cfg.Split.Train,
		Valid: r.cfg.Split.Valid,
		Test:  r.cfg.Split.Test,
	}
	train, valid, test, err := dataset.Split(merged, split, r.cfg.Split.Seed)
	if err != nil {
		return nil, err
	}
	r.log.Info("split window",
		"train_rows", train.NumRows(),
		"valid_rows", valid.NumRows(),
		"test_rows", test.NumRows())

	pipe := preprocess.Standard(
		r.cfg.Dataset.Numeric,
		r.cfg.Preprocess.SkewThreshold,
		r.cfg.Preprocess.CenteringEnabled(),
	)
	trainT, err := pipe.FitApply(train)
	if err != nil {
		return nil, err
	}
	validT, err := pipe.Apply(valid)
	if err != nil {
		return nil, err
	}
	testT, err := pipe.Apply(test)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	enc := classifiers.NewLabelEncoder(merged.Labels)
	yTrain, err := enc.Encode(trainT.Labels)
	if err != nil {
		return nil, err
	}
	yValid, err := enc.Encode(validT.Labels)
	if err != nil {
		return nil, err
	}

	model := r.newModel()
	r.log.Info("training", "rounds", r.cfg.Train.Rounds, "classes", enc.NumClasses())
	start := time.Now()
	if err := model.FitValidated(trainT.Rows, yTrain, validT.Rows, yValid); err != nil {
		return nil, err
	}
	r.log.Info("training done",
		"best_round", model.BestRound(),
		"elapsed", time.Since(start).Round(time.Millisecond))

	rep, err := r.evaluate(model, enc, trainT.Columns, testT)
	if err != nil {
		return nil, err
	}

	meta := &artifact.Metadata{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Window:    r.cfg.Dataset.Window,
		Classes:   enc.Classes(),
		Columns:   trainT.Columns,
		Hyperparameters: artifact.Hyperparameters{
			Rounds:          r.cfg.Train.Rounds,
			LearningRate:    r.cfg.Train.LearningRate,
			MaxLeaves:       r.cfg.Train.MaxLeaves,
			MinSamplesLeaf:  r.cfg.Train.MinSamplesLeaf,
			FeatureFraction: r.cfg.Train.FeatureFraction,
			RowFraction:     r.cfg.Train.RowFraction,
			Patience:        r.cfg.Train.Patience,
			Seed:            r.cfg.Train.Seed,
		},
		SkewThreshold: r.cfg.Preprocess.SkewThreshold,
		Centering:     r.cfg.Preprocess.CenteringEnabled(),
		TrainRows:     trainT.NumRows(),
		ValidRows:     validT.NumRows(),
		TestRows:      testT.NumRows(),
		BestRound:     model.BestRound(),
	}

	result, err := r.writeArtifacts(model, meta, rep)
	if err != nil {
		return nil, err
	}
	r.log.Info("run complete",
		"run_id", meta.RunID,
		"accuracy", rep.Accuracy,
		"macro_f1", rep.MacroF1,
		"model", result.ModelPath)
	return result, nil
}

// Evaluate re-scores a saved model on the configured window's test split.
// The transforms are refit on the training split exactly as during the
// original run; with the same split seed and schema this reproduces the
// fitted parameters, since fitting reads the training rows alone.
func (r *Runner) Evaluate(ctx context.Context, modelPath string) (*artifact.Metadata, *eval.Report, error) {
	meta, blob, err := artifact.ReadModel(modelPath)
	if err != nil {
		return nil, nil, err
	}
	if meta.Window != r.cfg.Dataset.Window {
		return nil, nil, fmt.Errorf("model was trained on %dsec window, config selects %dsec",
			meta.Window, r.cfg.Dataset.Window)
	}

	model := gbdt.New()
	if err := model.Load(blob); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	merged, err := r.loadWindow()
	if err != nil {
		return nil, nil, err
	}
	split := dataset.SplitFractions{
		Train: r.cfg.Split.Train,
		Valid: r.cfg.Split.Valid,
		Test:  r.cfg.Split.Test,
	}
	train, _, test, err := dataset.Split(merged, split, r.cfg.Split.Seed)
	if err != nil {
		return nil, nil, err
	}

	pipe := preprocess.Standard(meta.Columns, meta.SkewThreshold, meta.Centering)
	if _, err := pipe.FitApply(train); err != nil {
		return nil, nil, err
	}
	testT, err := pipe.Apply(test)
	if err != nil {
		return nil, nil, err
	}

	// The encoder maps classes in sorted name order, so matching class
	// sets guarantee the loaded model's indices line up.
	enc := classifiers.NewLabelEncoder(merged.Labels)
	if got, want := enc.Classes(), meta.Classes; !slicesEqual(got, want) {
		return nil, nil, fmt.Errorf("window classes %v do not match model classes %v", got, want)
	}
	rep, err := r.evaluate(model, enc, testT.Columns, testT)
	if err != nil {
		return nil, nil, err
	}
	return meta, rep, nil
}

// loadWindow loads and merges the configured window's class tables.
func (r *Runner) loadWindow() (*dataset.Table, error) {
	layout := dataset.Layout{Root: r.cfg.Dataset.WorkDir}
	return dataset.LoadWindow(layout, dataset.LoadOptions{
		Window:  r.cfg.Dataset.Window,
		Numeric: r.cfg.Dataset.Numeric,
		Classes: r.cfg.Dataset.Classes,
	}, r.log)
}

// evaluate predicts the test split and builds the report with the feature
// importance ranking attached.
func (r *Runner) evaluate(model *gbdt.GBDT, enc *classifiers.LabelEncoder, columns []string, test *dataset.Table) (*eval.Report, error) {
	predIdx, err := model.Predict(test.Rows)
	if err != nil {
		return nil, err
	}
	pred, err := enc.Decode(predIdx)
	if err != nil {
		return nil, err
	}

	rep, err := eval.Evaluate(test.Labels, pred)
	if err != nil {
		return nil, err
	}

	gains, err := model.FeatureImportance()
	if err != nil {
		return nil, err
	}
	rep.Importance, err = eval.RankImportance(columns, gains)
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func slicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// newModel builds the trainer from the configured hyperparameters.
func (r *Runner) newModel() *gbdt.GBDT {
	return gbdt.New(
		gbdt.WithRounds(r.cfg.Train.Rounds),
		gbdt.WithLearningRate(r.cfg.Train.LearningRate),
		gbdt.WithMaxLeaves(r.cfg.Train.MaxLeaves),
		gbdt.WithMinSamplesLeaf(r.cfg.Train.MinSamplesLeaf),
		gbdt.WithFeatureFraction(r.cfg.Train.FeatureFraction),
		gbdt.WithRowFraction(r.cfg.Train.RowFraction),
		gbdt.WithPatience(r.cfg.Train.Patience),
		gbdt.WithSeed(r.cfg.Train.Seed),
	)
}

// writeArtifacts serializes the model, report and importance ranking into
// the output directory, named by window.
func (r *Runner) writeArtifacts(model *gbdt.GBDT, meta *artifact.Metadata, rep *eval.Report) (*TrainResult, error) {
	blob, err := model.Save()
	if err != nil {
		return nil, err
	}

	dir := r.cfg.Output.Dir
	result := &TrainResult{
		Meta:           meta,
		Report:         rep,
		ModelPath:      filepath.Join(dir, fmt.Sprintf("model_%dsec.icsgml", meta.Window)),
		ReportPath:     filepath.Join(dir, fmt.Sprintf("report_%dsec.json", meta.Window)),
		ImportancePath: filepath.Join(dir, fmt.Sprintf("importance_%dsec.csv", meta.Window)),
	}

	if err := artifact.WriteModel(result.ModelPath, meta, blob); err != nil {
		return nil, err
	}
	if err := artifact.WriteReport(result.ReportPath, meta, rep); err != nil {
		return nil, err
	}
	if err := artifact.WriteImportance(result.ImportancePath, rep.Importance); err != nil {
		return nil, err
	}
	return result, nil
}

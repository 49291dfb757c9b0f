// Package gbdt implements gradient boosted decision trees with a softmax
// objective for multiclass traffic classification. Class imbalance is
// handled by the objective itself: every round fits one regression tree per
// class to the softmax gradients, so rare attack classes keep pulling their
// own trees even when benign rows dominate.
package gbdt

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
)

// defaultLambda is the L2 regularization applied to leaf weights.
const defaultLambda = 1.0

// GBDT is a gradient boosted tree ensemble over dense feature rows.
type GBDT struct {
	mu sync.RWMutex

	// Configuration
	rounds          int
	learningRate    float64
	maxLeaves       int
	minSamplesLeaf  int
	featureFraction float64
	rowFraction     float64
	patience        int
	lambda          float64
	seed            int64

	// Trained model
	trees       [][]*Tree // trees[round][class]
	baseScores  []float64
	numClasses  int
	numFeatures int
	bestRound   int
	trained     bool
}

// Option configures a GBDT.
type Option func(*GBDT)

// WithRounds sets the maximum number of boosting rounds.
func WithRounds(n int) Option {
	return func(m *GBDT) {
		m.rounds = n
	}
}

// WithLearningRate sets the shrinkage applied to every tree's output.
func WithLearningRate(lr float64) Option {
	return func(m *GBDT) {
		m.learningRate = lr
	}
}

// WithMaxLeaves bounds the number of leaves grown per tree.
func WithMaxLeaves(n int) Option {
	return func(m *GBDT) {
		m.maxLeaves = n
	}
}

// WithMinSamplesLeaf sets the smallest row count a leaf may hold.
func WithMinSamplesLeaf(n int) Option {
	return func(m *GBDT) {
		m.minSamplesLeaf = n
	}
}

// WithFeatureFraction sets the share of features sampled each round.
func WithFeatureFraction(f float64) Option {
	return func(m *GBDT) {
		m.featureFraction = f
	}
}

// WithRowFraction sets the share of rows sampled each round.
func WithRowFraction(f float64) Option {
	return func(m *GBDT) {
		m.rowFraction = f
	}
}

// WithPatience sets how many rounds validation loss may stagnate before
// training stops.
func WithPatience(n int) Option {
	return func(m *GBDT) {
		m.patience = n
	}
}

// WithSeed sets the random seed for reproducibility. Training with the
// same seed and data always yields the same ensemble.
func WithSeed(seed int64) Option {
	return func(m *GBDT) {
		m.seed = seed
	}
}

// New creates a GBDT with the given options.
func New(opts ...Option) *GBDT {
	m := &GBDT{
		rounds:          100,
		learningRate:    0.1,
		maxLeaves:       31,
		minSamplesLeaf:  20,
		featureFraction: 1.0,
		rowFraction:     1.0,
		patience:        10,
		lambda:          defaultLambda,
		seed:            42,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Fit trains on the full data with no early stopping: every configured
// round is kept.
func (m *GBDT) Fit(x [][]float64, y []int) error {
	return m.FitValidated(x, y, nil, nil)
}

// FitValidated trains on x/y while watching the multiclass log-loss on the
// held-out validation rows after every round. Once the validation loss has
// not improved for the configured patience, training stops and the ensemble
// is cut back to the best round seen, which is never a stagnated final
// round.
//
// A non-finite training or validation loss aborts with
// *TrainingDivergedError; rounds completed before the divergence remain
// usable.
func (m *GBDT) FitValidated(x [][]float64, y []int, xValid [][]float64, yValid []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	numClasses, err := m.checkFitInputs(x, y, xValid, yValid)
	if err != nil {
		return err
	}
	n := len(x)
	numFeatures := len(x[0])

	// Base scores are smoothed log priors, so the first round starts from
	// the class mix instead of uniform guessing.
	counts := make([]int, numClasses)
	for _, c := range y {
		counts[c]++
	}
	base := make([]float64, numClasses)
	for k := range base {
		base[k] = math.Log(float64(counts[k]+1) / float64(n+numClasses))
	}

	scores := newScoreMatrix(n, base)
	validScores := newScoreMatrix(len(xValid), base)
	probs := newScoreMatrix(n, make([]float64, numClasses))

	grad := make([]float64, n)
	hess := make([]float64, n)
	grower := &treeGrower{
		x:         x,
		grad:      grad,
		hess:      hess,
		maxLeaves: m.maxLeaves,
		minLeaf:   m.minSamplesLeaf,
		lambda:    m.lambda,
		workers:   runtime.GOMAXPROCS(0),
	}

	rng := rand.New(rand.NewSource(m.seed))
	m.trees = nil
	m.trained = false

	stopper := newEarlyStopper(m.patience)
	best := 0

	for round := 0; round < m.rounds; round++ {
		rows := sampleIndices(rng, n, m.rowFraction)
		grower.features = sampleIndices(rng, numFeatures, m.featureFraction)
		sort.Ints(grower.features)

		for i := range probs {
			softmax(scores[i], probs[i])
		}

		roundTrees := make([]*Tree, numClasses)
		for k := 0; k < numClasses; k++ {
			for i := 0; i < n; i++ {
				p := probs[i][k]
				target := 0.0
				if y[i] == k {
					target = 1.0
				}
				grad[i] = p - target
				hess[i] = p * (1 - p)
			}

			tree := grower.grow(rows)
			roundTrees[k] = tree

			for i := 0; i < n; i++ {
				scores[i][k] += m.learningRate * tree.predict(x[i])
			}
			for i := range xValid {
				validScores[i][k] += m.learningRate * tree.predict(xValid[i])
			}
		}
		m.trees = append(m.trees, roundTrees)

		trainLoss := logLoss(scores, y)
		if !isFinite(trainLoss) {
			return m.diverge(round+1, trainLoss, best, numClasses, numFeatures, base)
		}

		if len(xValid) == 0 {
			best = round + 1
			continue
		}

		validLoss := logLoss(validScores, yValid)
		if !isFinite(validLoss) {
			return m.diverge(round+1, validLoss, best, numClasses, numFeatures, base)
		}
		stop := stopper.observe(round+1, validLoss)
		best = stopper.bestRound
		if stop {
			break
		}
	}

	m.trees = m.trees[:best]
	m.bestRound = best
	m.numClasses = numClasses
	m.numFeatures = numFeatures
	m.baseScores = base
	m.trained = true
	return nil
}

// diverge cuts the ensemble back to the last known-good round and reports
// the failure.
func (m *GBDT) diverge(round int, loss float64, best, numClasses, numFeatures int, base []float64) error {
	if best > len(m.trees) {
		best = len(m.trees)
	}
	m.trees = m.trees[:best]
	if best > 0 {
		m.bestRound = best
		m.numClasses = numClasses
		m.numFeatures = numFeatures
		m.baseScores = base
		m.trained = true
	} else {
		m.trained = false
	}
	return &TrainingDivergedError{Round: round, LastLoss: loss}
}

func (m *GBDT) checkFitInputs(x [][]float64, y []int, xValid [][]float64, yValid []int) (int, error) {
	if m.rounds < 1 {
		return 0, errors.New("rounds must be at least 1")
	}
	if m.learningRate <= 0 {
		return 0, errors.New("learning rate must be positive")
	}
	if m.maxLeaves < 2 {
		return 0, errors.New("max leaves must be at least 2")
	}
	if m.featureFraction <= 0 || m.featureFraction > 1 {
		return 0, errors.New("feature fraction must be in (0, 1]")
	}
	if m.rowFraction <= 0 || m.rowFraction > 1 {
		return 0, errors.New("row fraction must be in (0, 1]")
	}
	if m.patience < 1 {
		return 0, errors.New("patience must be at least 1")
	}

	if len(x) == 0 {
		return 0, errors.New("empty training data")
	}
	if len(x) != len(y) {
		return 0, fmt.Errorf("%d rows but %d targets", len(x), len(y))
	}
	width := len(x[0])
	if width == 0 {
		return 0, errors.New("training rows have no features")
	}
	for i, row := range x {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
	}

	numClasses := 0
	for i, c := range y {
		if c < 0 {
			return 0, fmt.Errorf("target %d has negative class %d", i, c)
		}
		if c+1 > numClasses {
			numClasses = c + 1
		}
	}
	if numClasses < 2 {
		return 0, errors.New("need at least two classes")
	}

	if len(xValid) != len(yValid) {
		return 0, fmt.Errorf("%d validation rows but %d targets", len(xValid), len(yValid))
	}
	for i, row := range xValid {
		if len(row) != width {
			return 0, fmt.Errorf("validation row %d has %d features, want %d", i, len(row), width)
		}
		if yValid[i] < 0 || yValid[i] >= numClasses {
			return 0, fmt.Errorf("validation target %d has unseen class %d", i, yValid[i])
		}
	}
	return numClasses, nil
}

// Predict returns the most probable class index per row. Ties resolve to
// the lowest class index.
func (m *GBDT) Predict(x [][]float64) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, errors.New("model not trained")
	}

	out := make([]int, len(x))
	scores := make([]float64, m.numClasses)
	for i, sample := range x {
		if err := m.rawScores(sample, scores); err != nil {
			return nil, err
		}
		best := 0
		for k := 1; k < len(scores); k++ {
			if scores[k] > scores[best] {
				best = k
			}
		}
		out[i] = best
	}
	return out, nil
}

// PredictProba returns per-row probability distributions over the classes.
func (m *GBDT) PredictProba(x [][]float64) ([][]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, errors.New("model not trained")
	}

	out := make([][]float64, len(x))
	scores := make([]float64, m.numClasses)
	for i, sample := range x {
		if err := m.rawScores(sample, scores); err != nil {
			return nil, err
		}
		probs := make([]float64, m.numClasses)
		softmax(scores, probs)
		out[i] = probs
	}
	return out, nil
}

// rawScores computes base plus shrunken tree outputs for one sample.
func (m *GBDT) rawScores(sample []float64, scores []float64) error {
	if len(sample) != m.numFeatures {
		return fmt.Errorf("sample has %d features, model expects %d", len(sample), m.numFeatures)
	}
	copy(scores, m.baseScores)
	for _, round := range m.trees {
		for k, tree := range round {
			scores[k] += m.learningRate * tree.predict(sample)
		}
	}
	return nil
}

// FeatureImportance returns the total split gain per feature index across
// the retained ensemble.
func (m *GBDT) FeatureImportance() ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, errors.New("model not trained")
	}

	acc := make([]float64, m.numFeatures)
	for _, round := range m.trees {
		for _, tree := range round {
			tree.importanceInto(acc)
		}
	}
	return acc, nil
}

// Rounds returns the number of retained boosting rounds.
func (m *GBDT) Rounds() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trees)
}

// BestRound returns the round the retained ensemble corresponds to.
func (m *GBDT) BestRound() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bestRound
}

// NumClasses returns the number of classes the model was trained on.
func (m *GBDT) NumClasses() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.numClasses
}

// Save serializes the trained model.
func (m *GBDT) Save() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, errors.New("model not trained")
	}

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(m.learningRate); err != nil {
		return nil, err
	}
	if err := enc.Encode(m.baseScores); err != nil {
		return nil, err
	}
	if err := enc.Encode(m.numClasses); err != nil {
		return nil, err
	}
	if err := enc.Encode(m.numFeatures); err != nil {
		return nil, err
	}
	if err := enc.Encode(m.bestRound); err != nil {
		return nil, err
	}
	if err := enc.Encode(m.trees); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Load deserializes a trained model.
func (m *GBDT) Load(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := bytes.NewBuffer(data)
	dec := gob.NewDecoder(buf)

	if err := dec.Decode(&m.learningRate); err != nil {
		return err
	}
	if err := dec.Decode(&m.baseScores); err != nil {
		return err
	}
	if err := dec.Decode(&m.numClasses); err != nil {
		return err
	}
	if err := dec.Decode(&m.numFeatures); err != nil {
		return err
	}
	if err := dec.Decode(&m.bestRound); err != nil {
		return err
	}
	if err := dec.Decode(&m.trees); err != nil {
		return err
	}

	m.trained = true
	return nil
}

// newScoreMatrix allocates an n-row matrix, each row a copy of init.
func newScoreMatrix(n int, init []float64) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = append([]float64(nil), init...)
	}
	return out
}

// sampleIndices returns indices 0..n-1 when fraction is 1, otherwise a
// seeded sample of ceil-free floor(fraction*n) distinct indices, at least
// one.
func sampleIndices(rng *rand.Rand, n int, fraction float64) []int {
	if fraction >= 1 {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	k := int(fraction * float64(n))
	if k < 1 {
		k = 1
	}
	return rng.Perm(n)[:k]
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

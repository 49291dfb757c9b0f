package gbdt

import (
	"sort"
	"sync"
)

// Node is one node of a regression tree in flat-array form. A leaf has
// Feature == -1 and carries its output weight in Value; an internal node
// routes samples with value < Threshold to Left and the rest to Right.
// Fields are exported for serialization.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Gain      float64
}

// Tree is a single regression tree fit to gradient and hessian targets.
type Tree struct {
	Nodes []Node
}

// predict returns the leaf weight for one sample.
func (t *Tree) predict(sample []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if sample[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// importanceInto accumulates every split's gain onto its feature.
func (t *Tree) importanceInto(acc []float64) {
	for _, n := range t.Nodes {
		if n.Feature >= 0 {
			acc[n.Feature] += n.Gain
		}
	}
}

// treeGrower builds one tree leaf-wise: the leaf whose best split gains the
// most is split first, until maxLeaves is reached or no leaf can improve.
type treeGrower struct {
	x          [][]float64
	grad, hess []float64
	features   []int // candidate features, ascending
	maxLeaves  int
	minLeaf    int
	lambda     float64
	workers    int
}

// leafCandidate is a current leaf together with its precomputed best split.
type leafCandidate struct {
	rows       []int
	sumG, sumH float64
	node       int
	best       splitResult
}

// splitResult describes the best split found for one leaf. feature is -1
// when no split clears the gain and leaf-size constraints.
type splitResult struct {
	feature   int
	threshold float64
	gain      float64
}

func (g *treeGrower) leafValue(sumG, sumH float64) float64 {
	return -sumG / (sumH + g.lambda)
}

func (g *treeGrower) sums(rows []int) (sumG, sumH float64) {
	for _, r := range rows {
		sumG += g.grad[r]
		sumH += g.hess[r]
	}
	return sumG, sumH
}

// grow builds a tree over the given sample rows.
func (g *treeGrower) grow(rows []int) *Tree {
	t := &Tree{}
	sumG, sumH := g.sums(rows)
	t.Nodes = append(t.Nodes, Node{Feature: -1, Value: g.leafValue(sumG, sumH)})

	cands := []*leafCandidate{{
		rows: rows,
		sumG: sumG,
		sumH: sumH,
		node: 0,
		best: g.bestSplit(rows, sumG, sumH),
	}}

	for leaves := 1; leaves < g.maxLeaves; leaves++ {
		// Earliest-created candidate wins gain ties, so growth order is
		// reproducible.
		pick := -1
		for i, c := range cands {
			if c.best.feature < 0 {
				continue
			}
			if pick < 0 || c.best.gain > cands[pick].best.gain {
				pick = i
			}
		}
		if pick < 0 {
			break
		}
		c := cands[pick]

		var left, right []int
		for _, r := range c.rows {
			if g.x[r][c.best.feature] < c.best.threshold {
				left = append(left, r)
			} else {
				right = append(right, r)
			}
		}
		leftG, leftH := g.sums(left)
		rightG, rightH := g.sums(right)

		leftIdx := len(t.Nodes)
		t.Nodes = append(t.Nodes, Node{Feature: -1, Value: g.leafValue(leftG, leftH)})
		rightIdx := len(t.Nodes)
		t.Nodes = append(t.Nodes, Node{Feature: -1, Value: g.leafValue(rightG, rightH)})

		n := &t.Nodes[c.node]
		n.Feature = c.best.feature
		n.Threshold = c.best.threshold
		n.Left = leftIdx
		n.Right = rightIdx
		n.Gain = c.best.gain
		n.Value = 0

		cands[pick] = &leafCandidate{
			rows: left,
			sumG: leftG,
			sumH: leftH,
			node: leftIdx,
			best: g.bestSplit(left, leftG, leftH),
		}
		cands = append(cands, &leafCandidate{
			rows: right,
			sumG: rightG,
			sumH: rightH,
			node: rightIdx,
			best: g.bestSplit(right, rightG, rightH),
		})
	}
	return t
}

// bestSplit searches every candidate feature for the highest-gain split of
// one leaf. The search runs across features in parallel, but the result is
// independent of scheduling: per-feature results land in a slice indexed by
// feature position and the final argmax scans it in ascending feature
// order, so gain ties always resolve to the lowest feature index.
func (g *treeGrower) bestSplit(rows []int, sumG, sumH float64) splitResult {
	results := make([]splitResult, len(g.features))

	workers := g.workers
	if workers > len(g.features) {
		workers = len(g.features)
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (len(g.features) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(g.features) {
			hi = len(g.features)
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for fi := lo; fi < hi; fi++ {
				results[fi] = g.splitOnFeature(g.features[fi], rows, sumG, sumH)
			}
		}(lo, hi)
	}
	wg.Wait()

	best := splitResult{feature: -1}
	for _, r := range results {
		if r.feature < 0 {
			continue
		}
		if best.feature < 0 || r.gain > best.gain {
			best = r
		}
	}
	return best
}

// splitOnFeature finds the best threshold for one feature by a sorted sweep
// with prefix gradient and hessian sums.
func (g *treeGrower) splitOnFeature(feature int, rows []int, sumG, sumH float64) splitResult {
	type point struct {
		v, g, h float64
	}
	points := make([]point, len(rows))
	for i, r := range rows {
		points[i] = point{v: g.x[r][feature], g: g.grad[r], h: g.hess[r]}
	}
	// An unstable sort is fine: splits only land between distinct values,
	// and prefix sums across a run of equal values do not depend on the
	// run's internal order.
	sort.Slice(points, func(i, j int) bool { return points[i].v < points[j].v })

	parent := sumG * sumG / (sumH + g.lambda)
	best := splitResult{feature: -1}

	var leftG, leftH float64
	for i := 0; i < len(points)-1; i++ {
		leftG += points[i].g
		leftH += points[i].h

		// Only a gap between distinct values is a real threshold.
		if points[i].v == points[i+1].v {
			continue
		}
		nLeft := i + 1
		nRight := len(points) - nLeft
		if nLeft < g.minLeaf || nRight < g.minLeaf {
			continue
		}

		rightG := sumG - leftG
		rightH := sumH - leftH
		gain := 0.5 * (leftG*leftG/(leftH+g.lambda) +
			rightG*rightG/(rightH+g.lambda) - parent)
		if gain <= 0 {
			continue
		}
		if best.feature < 0 || gain > best.gain {
			best = splitResult{
				feature:   feature,
				threshold: points[i].v + (points[i+1].v-points[i].v)/2,
				gain:      gain,
			}
		}
	}
	return best
}

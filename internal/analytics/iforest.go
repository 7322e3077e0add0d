package analytics

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const eulerGamma = 0.5772156649015329

// ForestConfig configures an IsolationForest.
type ForestConfig struct {
	Trees int
	// MaxSamples caps the per-tree sub-sample size.
	MaxSamples int
	// Contamination is the expected share of outliers in the training data.
	Contamination float64
	Seed          int64
}

// DefaultForestConfig mirrors the usual isolation forest defaults.
var DefaultForestConfig = ForestConfig{
	Trees:         100,
	MaxSamples:    256,
	Contamination: 0.1,
	Seed:          42,
}

type isoNode struct {
	feature     int
	threshold   float64
	left, right *isoNode
	size        int // leaf only
}

// IsolationForest is an ensemble of random isolation trees. Points that are
// isolated in fewer splits score lower.
type IsolationForest struct {
	cfg    ForestConfig
	trees  []*isoNode
	psi    int
	offset float64
}

// NewIsolationForest returns an untrained forest.
func NewIsolationForest(cfg ForestConfig) *IsolationForest {
	if cfg.Trees <= 0 {
		cfg.Trees = DefaultForestConfig.Trees
	}
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = DefaultForestConfig.MaxSamples
	}
	return &IsolationForest{cfg: cfg}
}

// Fit grows the trees on X and sets the decision threshold from the
// contamination share. ctx is checked between trees.
func (f *IsolationForest) Fit(ctx context.Context, X [][]float64) error {
	n := len(X)
	if n == 0 {
		return fmt.Errorf("isolation forest: empty training set")
	}
	if f.cfg.Contamination <= 0 || f.cfg.Contamination > 0.5 {
		return fmt.Errorf("isolation forest: contamination must be in (0, 0.5], got %v", f.cfg.Contamination)
	}

	rng := rand.New(rand.NewSource(f.cfg.Seed))
	f.psi = min(f.cfg.MaxSamples, n)
	maxDepth := int(math.Ceil(math.Log2(math.Max(float64(f.psi), 2))))

	f.trees = make([]*isoNode, 0, f.cfg.Trees)
	for t := 0; t < f.cfg.Trees; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		sample := rng.Perm(n)[:f.psi]
		f.trees = append(f.trees, growTree(rng, X, sample, 0, maxDepth))
	}

	scores := f.ScoreSamples(X)
	f.offset = percentile(scores, f.cfg.Contamination*100)
	return nil
}

// ScoreSamples returns the raw anomaly score of each row, in (-1, 0].
func (f *IsolationForest) ScoreSamples(X [][]float64) []float64 {
	norm := averagePathLength(f.psi)
	scores := make([]float64, len(X))
	for i, x := range X {
		var total float64
		for _, tree := range f.trees {
			total += pathLength(tree, x, 0)
		}
		mean := total / float64(len(f.trees))
		if norm == 0 {
			scores[i] = -1
			continue
		}
		scores[i] = -math.Pow(2, -mean/norm)
	}
	return scores
}

// DecisionFunction returns ScoreSamples shifted by the fitted offset.
// Negative values are outliers.
func (f *IsolationForest) DecisionFunction(X [][]float64) []float64 {
	scores := f.ScoreSamples(X)
	for i := range scores {
		scores[i] -= f.offset
	}
	return scores
}

func growTree(rng *rand.Rand, X [][]float64, idx []int, depth, maxDepth int) *isoNode {
	if depth >= maxDepth || len(idx) <= 1 {
		return &isoNode{size: len(idx)}
	}

	// Only features that vary within this node can split it.
	var candidates []int
	lo := make([]float64, len(X[0]))
	hi := make([]float64, len(X[0]))
	for j := range lo {
		lo[j], hi[j] = math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			lo[j] = math.Min(lo[j], X[i][j])
			hi[j] = math.Max(hi[j], X[i][j])
		}
		if hi[j] > lo[j] {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return &isoNode{size: len(idx)}
	}

	feature := candidates[rng.Intn(len(candidates))]
	threshold := lo[feature] + rng.Float64()*(hi[feature]-lo[feature])

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &isoNode{
		feature:   feature,
		threshold: threshold,
		left:      growTree(rng, X, left, depth+1, maxDepth),
		right:     growTree(rng, X, right, depth+1, maxDepth),
	}
}

func pathLength(node *isoNode, x []float64, depth int) float64 {
	for node.left != nil {
		if x[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
		depth++
	}
	return float64(depth) + averagePathLength(node.size)
}

// averagePathLength is the expected path length of an unsuccessful binary
// search tree lookup among n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

// percentile computes the p-th percentile (0-100) with linear interpolation
// between closest ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	pos := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

package outliers

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// AnomalyScorer fits a model on the rows of X and flags the anomalous ones.
// contamination is the expected fraction of anomalous rows.
type AnomalyScorer interface {
	FitPredict(X mat.Matrix, contamination float64) ([]bool, error)
}

// eulerGamma is the Euler–Mascheroni constant
const eulerGamma = 0.5772156649015329

// Forest is an isolation forest AnomalyScorer that isolates rows with random axis
// aligned splits. Anomalies get isolated in fewer splits.
// The same Seed on the same data always gives the same result.
type Forest struct {
	Trees      int
	SampleSize int
	Seed       int64
}

// NewForest returns a new Forest.
func NewForest(trees, sampleSize int, seed int64) *Forest {
	return &Forest{
		Trees:      trees,
		SampleSize: sampleSize,
		Seed:       seed,
	}
}

// FitPredict implements AnomalyScorer. A row is anomalous when its score is
// above the (1 - contamination) percentile of all scores.
func (f *Forest) FitPredict(X mat.Matrix, contamination float64) ([]bool, error) {
	if !(contamination > 0 && contamination <= 0.5) {
		return nil, &InvalidParameterError{Name: "contamination", Value: contamination, Reason: "must be in (0, 0.5]"}
	}

	scores, err := f.Scores(X)
	if err != nil {
		return nil, err
	}

	// Work on negated scores so the threshold is the contamination
	// percentile and anomalies fall strictly below it.
	neg := make([]float64, len(scores))
	for i, s := range scores {
		neg[i] = -s
	}
	offset := Percentile(sortedCopy(neg), 100*contamination)

	flags := make([]bool, len(neg))
	for i, s := range neg {
		flags[i] = s < offset
	}
	return flags, nil
}

// Scores fits a new forest on X and returns the anomaly score of every row.
// Scores are in (0, 1], higher is more anomalous.
func (f *Forest) Scores(X mat.Matrix) ([]float64, error) {
	if f.Trees <= 0 || f.SampleSize <= 0 {
		return nil, errors.New("isolation forest: trees and sample size must be positive")
	}

	nrows, ncols := X.Dims()
	if nrows < 2 {
		return nil, &InsufficientDataError{Reason: "isolation forest needs at least 2 rows"}
	}

	rnd := rand.New(rand.NewSource(f.Seed))
	psi := min(max(f.SampleSize, 2), nrows)
	limit := int(math.Ceil(math.Log2(float64(psi))))

	trees := make([]*iNode, f.Trees)
	for t := range trees {
		sample := rnd.Perm(nrows)[:psi]
		trees[t] = growTree(X, sample, 0, limit, rnd)
	}

	norm := avgPathLength(psi)
	scores := make([]float64, nrows)
	row := make([]float64, ncols)
	for i := range scores {
		mat.Row(row, i, X)
		depth := 0.0
		for _, tree := range trees {
			depth += tree.pathLength(row, 0)
		}
		depth /= float64(len(trees))
		scores[i] = math.Pow(2, -depth/norm)
	}

	return scores, nil
}

// iNode is an isolation tree node, leaves have nil children.
type iNode struct {
	feature int
	split   float64
	left    *iNode
	right   *iNode
	size    int
}

func growTree(X mat.Matrix, rows []int, depth, limit int, rnd *rand.Rand) *iNode {
	if depth >= limit || len(rows) <= 1 {
		return &iNode{size: len(rows)}
	}

	_, ncols := X.Dims()
	for _, j := range rnd.Perm(ncols) {
		lo, hi := colRange(X, rows, j)
		if lo == hi {
			continue
		}

		split := lo + rnd.Float64()*(hi-lo)
		var left, right []int
		for _, r := range rows {
			if X.At(r, j) < split {
				left = append(left, r)
			} else {
				right = append(right, r)
			}
		}

		return &iNode{
			feature: j,
			split:   split,
			left:    growTree(X, left, depth+1, limit, rnd),
			right:   growTree(X, right, depth+1, limit, rnd),
		}
	}

	// All features are constant on rows
	return &iNode{size: len(rows)}
}

func (n *iNode) pathLength(row []float64, depth int) float64 {
	if n.left == nil {
		return float64(depth) + avgPathLength(n.size)
	}
	if row[n.feature] < n.split {
		return n.left.pathLength(row, depth+1)
	}
	return n.right.pathLength(row, depth+1)
}

func colRange(X mat.Matrix, rows []int, j int) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, r := range rows {
		v := X.At(r, j)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// avgPathLength is the average path length of an unsuccessful binary search
// tree lookup among n items.
func avgPathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

package outliers

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Bound is an inclusive [Lower, Upper] interval, values outside it are
// outliers.
type Bound struct {
	Lower float64
	Upper float64
}

// Unbounded returns a bound that contains every value.
func Unbounded() Bound {
	return Bound{Lower: math.Inf(-1), Upper: math.Inf(1)}
}

// Outside reports whether v falls outside b. NaN is never outside.
func (b Bound) Outside(v float64) bool {
	return v < b.Lower || v > b.Upper
}

// StdDevBound returns mean ± numSD*sd, sd is the sample standard deviation.
func StdDevBound(values []float64, numSD float64) (Bound, error) {
	if len(values) < 2 {
		return Bound{}, &InsufficientDataError{Reason: "standard deviation needs at least 2 values"}
	}
	mean, sd := stat.MeanStdDev(values, nil)
	return Bound{Lower: mean - numSD*sd, Upper: mean + numSD*sd}, nil
}

// PercentileBound returns the lower and upper percentiles (0-100) of values.
func PercentileBound(values []float64, lower, upper float64) (Bound, error) {
	if len(values) == 0 {
		return Bound{}, &InsufficientDataError{Reason: "no values"}
	}
	sorted := sortedCopy(values)
	return Bound{Lower: Percentile(sorted, lower), Upper: Percentile(sorted, upper)}, nil
}

// IQRBound returns the Tukey fences [Q1 - k*IQR, Q3 + k*IQR].
func IQRBound(values []float64, k float64) (Bound, error) {
	if len(values) == 0 {
		return Bound{}, &InsufficientDataError{Reason: "no values"}
	}
	sorted := sortedCopy(values)
	q1, q3 := Percentile(sorted, 25), Percentile(sorted, 75)
	iqr := q3 - q1
	return Bound{Lower: q1 - k*iqr, Upper: q3 + k*iqr}, nil
}

// ZScoreBound returns the smallest and largest of the values whose absolute
// z-score is at most threshold. The bound is empirical, so it's usually not
// symmetric around the mean. ok is false when no value is within threshold
// or when all values are equal.
func ZScoreBound(values []float64, threshold float64) (b Bound, ok bool, err error) {
	if len(values) < 2 {
		return Bound{}, false, &InsufficientDataError{Reason: "z-score needs at least 2 values"}
	}
	mean, sd := stat.MeanStdDev(values, nil)
	if sd == 0 || math.IsNaN(sd) {
		return Bound{}, false, nil
	}

	within := make([]float64, 0, len(values))
	for _, v := range values {
		if math.Abs((v-mean)/sd) <= threshold {
			within = append(within, v)
		}
	}
	if len(within) == 0 {
		return Bound{}, false, nil
	}
	return Bound{Lower: floats.Min(within), Upper: floats.Max(within)}, true, nil
}

// Percentile returns the p-th percentile (0-100) of sorted using linear
// interpolation between the closest ranks. sorted must not be empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	rank := p / 100 * float64(n-1)
	i := int(math.Floor(rank))
	if i >= n-1 {
		return sorted[n-1]
	}
	if i < 0 {
		return sorted[0]
	}
	frac := rank - float64(i)
	return sorted[i] + frac*(sorted[i+1]-sorted[i])
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

// present returns the non missing values in values.
func present(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Package stats implements the correlation coefficients used by analyses.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Method names a correlation coefficient.
type Method string

const (
	Pearson  Method = "pearson"
	Spearman Method = "spearman"
)

// ParseMethod accepts "pearson" or "spearman" in any case. Empty means Pearson.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pearson":
		return Pearson, nil
	case "spearman":
		return Spearman, nil
	}
	return "", fmt.Errorf("unknown correlation method %q (use pearson or spearman)", s)
}

// MethodFromSuggestion maps free text to a method: anything mentioning
// "spearman" selects Spearman, everything else Pearson.
func MethodFromSuggestion(s string) Method {
	if strings.Contains(strings.ToLower(s), "spearman") {
		return Spearman
	}
	return Pearson
}

// Title is the display name, e.g. "Pearson".
func (m Method) Title() string {
	if m == Spearman {
		return "Spearman"
	}
	return "Pearson"
}

// LengthMismatchError reports sequences of different lengths.
type LengthMismatchError struct {
	Left, Right int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("sequences differ in length: %d vs %d", e.Left, e.Right)
}

// Result is a computed coefficient. Coefficient is NaN when undefined.
type Result struct {
	Coefficient float64 `json:"coefficient"`
	Method      Method  `json:"method"`
}

// Defined reports whether the coefficient is a real number.
func (r Result) Defined() bool { return !math.IsNaN(r.Coefficient) }

// Mean is the arithmetic mean; NaN for empty input.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev is the sample standard deviation (n-1); NaN below two values.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// PearsonCoefficient is the sample Pearson correlation, clamped to [-1, 1].
// It is NaN when fewer than two pairs exist or either side is constant.
func PearsonCoefficient(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return math.NaN(), &LengthMismatchError{Left: len(x), Right: len(y)}
	}
	n := len(x)
	if n < 2 {
		return math.NaN(), nil
	}
	mx, my := Mean(x), Mean(y)
	kx, ky := maxAbsDev(x, mx), maxAbsDev(y, my)
	if kx == 0 || ky == 0 {
		return math.NaN(), nil
	}
	// deviations are scaled into [-1, 1] so the sums stay finite at any magnitude
	var cov, sx, sy float64
	for i := 0; i < n; i++ {
		dx, dy := (x[i]-mx)/kx, (y[i]-my)/ky
		cov += dx * dy
		sx += dx * dx
		sy += dy * dy
	}
	// cov/(n-1) over the product of sample deviations; the n-1 terms cancel
	// and sx, sy are at most n here
	r := cov / math.Sqrt(sx*sy)
	return math.Max(-1, math.Min(1, r)), nil
}

func maxAbsDev(xs []float64, m float64) float64 {
	var k float64
	for _, v := range xs {
		if d := math.Abs(v - m); d > k {
			k = d
		}
	}
	return k
}

// Rank assigns 1-based ranks in the original order; ties share the mean of
// the positions they occupy.
func Rank(xs []float64) []float64 {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })
	ranks := make([]float64, len(xs))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && xs[idx[j+1]] == xs[idx[i]] {
			j++
		}
		r := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = r
		}
		i = j + 1
	}
	return ranks
}

// SpearmanCoefficient is Pearson applied to the ranks of each side.
func SpearmanCoefficient(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return math.NaN(), &LengthMismatchError{Left: len(x), Right: len(y)}
	}
	return PearsonCoefficient(Rank(x), Rank(y))
}

// Correlate computes the coefficient for method m.
func Correlate(m Method, x, y []float64) (Result, error) {
	var (
		r   float64
		err error
	)
	switch m {
	case Spearman:
		r, err = SpearmanCoefficient(x, y)
	case Pearson, "":
		m = Pearson
		r, err = PearsonCoefficient(x, y)
	default:
		return Result{Coefficient: math.NaN(), Method: m}, fmt.Errorf("unknown correlation method %q", m)
	}
	return Result{Coefficient: r, Method: m}, err
}

// Strength labels |r| the way reports describe it.
func Strength(r float64) string {
	a := math.Abs(r)
	switch {
	case a >= 0.7:
		return "Strong"
	case a >= 0.4:
		return "Moderate"
	case a >= 0.1:
		return "Weak"
	default:
		return "Very Weak or No"
	}
}

// Direction is "positive", "negative" or "no" for zero.
func Direction(r float64) string {
	switch {
	case r > 0:
		return "positive"
	case r < 0:
		return "negative"
	default:
		return "no"
	}
}

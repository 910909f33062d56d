package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Fit is an ordinary least squares fit of y on x.
type Fit struct {
	Slope         float64
	Intercept     float64
	RValue        float64
	StandardError float64
}

func nanFit() Fit {
	nan := math.NaN()
	return Fit{Slope: nan, Intercept: nan, RValue: nan, StandardError: nan}
}

// Regress fits y = Intercept + Slope*x. StandardError is the standard error
// of the estimate, sqrt(SSE/(n-2)), and is NaN when n <= 2.
func Regress(x, y []float64) Fit {
	if len(x) != len(y) || len(x) < 2 {
		return nanFit()
	}
	if constant(x) || constant(y) {
		return nanFit()
	}
	intercept, slope := stat.LinearRegression(x, y, nil, false)
	fit := Fit{
		Slope:         slope,
		Intercept:     intercept,
		RValue:        stat.Correlation(x, y, nil),
		StandardError: math.NaN(),
	}
	if n := len(x); n > 2 {
		var sse float64
		for i := range x {
			r := y[i] - (intercept + slope*x[i])
			sse += r * r
		}
		fit.StandardError = math.Sqrt(sse / float64(n-2))
	}
	return fit
}

// TTest runs a pooled-variance two-sample Student's t-test of a against b and
// returns the t statistic and its two-sided p-value with len(a)+len(b)-2
// degrees of freedom.
func TTest(a, b []float64) (t, p float64) {
	df := len(a) + len(b) - 2
	if len(a) == 0 || len(b) == 0 || df < 1 {
		return math.NaN(), math.NaN()
	}
	meanA, meanB := stat.Mean(a, nil), stat.Mean(b, nil)
	pooled := (sumSquares(a, meanA) + sumSquares(b, meanB)) / float64(df)
	t = (meanA - meanB) / math.Sqrt(pooled/float64(len(a))+pooled/float64(len(b)))
	if math.IsNaN(t) {
		return t, math.NaN()
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	p = 2 * dist.CDF(-math.Abs(t))
	return t, p
}

func sumSquares(xs []float64, mean float64) float64 {
	var ss float64
	for _, v := range xs {
		d := v - mean
		ss += d * d
	}
	return ss
}

func constant(xs []float64) bool {
	for _, v := range xs[1:] {
		if v != xs[0] {
			return false
		}
	}
	return true
}

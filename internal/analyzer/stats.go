package analyzer

import (
	"math"
	"sort"
)

// sortedCopy returns an ascending copy of values.
func sortedCopy(values []float64) []float64 {
	out := append([]float64(nil), values...)
	sort.Float64s(out)
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := sortedCopy(values)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

// coefficientOfVariation is the population standard deviation over the mean.
func coefficientOfVariation(values []float64) float64 {
	m := mean(values)
	if len(values) < 2 || m == 0 {
		return 0
	}
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss/float64(len(values))) / m
}

// coefficientOfDispersion is the mean absolute deviation of ratios from their
// median, divided by the median, times 100.
func coefficientOfDispersion(ratios []float64) float64 {
	med := median(ratios)
	if len(ratios) == 0 || med == 0 {
		return 0
	}
	var dev float64
	for _, r := range ratios {
		dev += math.Abs(r - med)
	}
	return dev / float64(len(ratios)) / med * 100
}

// percentileRank is the mid-rank percentile of x within values:
// 100 × (count below + half the count equal) / n.
func percentileRank(values []float64, x float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var below, equal int
	for _, v := range values {
		switch {
		case v < x:
			below++
		case v == x:
			equal++
		}
	}
	return 100 * (float64(below) + 0.5*float64(equal)) / float64(len(values))
}

// valueAtPercentile linearly interpolates the p-th percentile (0-100).
func valueAtPercentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := sortedCopy(values)
	if len(s) == 1 {
		return s[0]
	}
	pos := clamp(p, 0, 100) / 100 * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return s[lo] + frac*(s[hi]-s[lo])
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// roundTo rounds v to the given number of decimal places.
func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

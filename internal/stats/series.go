// Package stats collects per-category operation latencies and condenses
// them into summary statistics at reporting boundaries.
package stats

import (
	"math"
	"sort"
	"time"
)

// Series is a named, append-only sequence of durations in seconds.
// It is emptied by Reset at each reporting boundary; its length always
// equals the number of operations recorded in the current window.
type Series struct {
	Name   string
	values []float64
}

// NewSeries returns an empty series with the given category name.
func NewSeries(name string) *Series {
	return &Series{Name: name}
}

// Append records one observation.
func (s *Series) Append(seconds float64) {
	s.values = append(s.values, seconds)
}

// AppendDuration records one observation from a time.Duration.
func (s *Series) AppendDuration(d time.Duration) {
	s.Append(d.Seconds())
}

// Len returns the number of observations in the current window.
func (s *Series) Len() int {
	return len(s.values)
}

// Values returns a copy of the recorded observations.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Reset empties the series for the next measurement window.
func (s *Series) Reset() {
	s.values = s.values[:0]
}

// Summary holds the condensed statistics of one series.
type Summary struct {
	Count   int
	Min     float64
	Median  float64
	Average float64
	P95     float64
	Max     float64
}

// Summarize condenses values into a Summary, rounding every statistic to
// the given number of decimal digits. A nil or empty input yields a zero
// Summary.
//
// The median of an even-length series is the mean of the two middle
// sorted elements. The 95th percentile uses nearest-rank linear
// interpolation between the two closest sorted samples, clamped for
// single-element series.
func Summarize(values []float64, digits int) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}

	var median float64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	rank := float64(n-1) * 0.95
	lo := int(math.Floor(rank))
	hi := lo + 1
	frac := rank - float64(lo)
	var p95 float64
	if hi >= n {
		p95 = sorted[lo]
	} else {
		p95 = sorted[lo]*(1-frac) + sorted[hi]*frac
	}

	return Summary{
		Count:   n,
		Min:     round(sorted[0], digits),
		Median:  round(median, digits),
		Average: round(sum/float64(n), digits),
		P95:     round(p95, digits),
		Max:     round(sorted[n-1], digits),
	}
}

func round(v float64, digits int) float64 {
	scale := math.Pow10(digits)
	return math.Round(v*scale) / scale
}

package stats

import (
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns every latency series and cumulative counter of a
// monitor process. It replaces ambient globals with one object whose
// reset semantics are explicit: Snapshot returns the current window and
// Reset starts the next one.
//
// Observations are mirrored into prometheus metrics, which are
// cumulative and never reset.
type Collector struct {
	series map[string]*Series

	Runs      int
	Successes int
	APICalls  int
	APIErrors int
	Timeouts  int

	promLatency *prometheus.HistogramVec
	promCalls   *prometheus.CounterVec
}

// NewCollector returns an empty collector. If reg is non-nil the
// prometheus mirrors are registered on it.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		series: make(map[string]*Series),
		promLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "apimonitor",
				Name:      "operation_duration_seconds",
				Help:      "Latency of control plane operations by category",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.5min
			},
			[]string{"category"},
		),
		promCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "apimonitor",
				Name:      "api_calls_total",
				Help:      "Total control plane calls by result",
			},
			[]string{"result"},
		),
	}
	if reg != nil {
		reg.MustRegister(c.promLatency, c.promCalls)
	}
	return c
}

// Series returns the series with the given category name, creating it
// on first use.
func (c *Collector) Series(name string) *Series {
	s, ok := c.series[name]
	if !ok {
		s = NewSeries(name)
		c.series[name] = s
	}
	return s
}

// Observe appends one latency to the named series and mirrors it into
// prometheus.
func (c *Collector) Observe(name string, d time.Duration) {
	c.Series(name).AppendDuration(d)
	c.promLatency.WithLabelValues(name).Observe(d.Seconds())
}

// CountCall tallies one control plane call with the given result label
// ("success", "error" or "timeout").
func (c *Collector) CountCall(result string) {
	c.APICalls++
	switch result {
	case "error":
		c.APIErrors++
	case "timeout":
		c.Timeouts++
	}
	c.promCalls.WithLabelValues(result).Inc()
}

// Snapshot summarizes every non-empty series of the current window.
// Categories are returned in sorted order.
type Snapshot struct {
	Runs      int
	Successes int
	APICalls  int
	APIErrors int
	Timeouts  int
	Summaries []NamedSummary
}

// NamedSummary pairs a category name with its window summary.
type NamedSummary struct {
	Name    string
	Summary Summary
}

// Snapshot condenses the current window without mutating it.
func (c *Collector) Snapshot(digits int) Snapshot {
	names := make([]string, 0, len(c.series))
	for name, s := range c.series {
		if s.Len() > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	snap := Snapshot{
		Runs:      c.Runs,
		Successes: c.Successes,
		APICalls:  c.APICalls,
		APIErrors: c.APIErrors,
		Timeouts:  c.Timeouts,
	}
	for _, name := range names {
		snap.Summaries = append(snap.Summaries, NamedSummary{
			Name:    name,
			Summary: Summarize(c.series[name].Values(), digits),
		})
	}
	return snap
}

// Reset empties every series and zeroes the window counters. The
// prometheus mirrors are cumulative and unaffected.
func (c *Collector) Reset() {
	for _, s := range c.series {
		s.Reset()
	}
	c.Runs = 0
	c.Successes = 0
	c.APICalls = 0
	c.APIErrors = 0
	c.Timeouts = 0
}

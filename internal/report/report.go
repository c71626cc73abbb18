// Package report renders periodic statistics summaries and serves the
// prometheus metrics endpoint. A summary is written at every reporting
// boundary and the collector window is reset afterwards, so each report
// covers exactly one interval.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plusserver/openstack-apimonitor/internal/stats"
)

// Reporter writes one summary block per reporting window.
type Reporter struct {
	// Out receives the rendered summary blocks.
	Out io.Writer
	// Interval is the reporting window length.
	Interval time.Duration
	// Digits controls statistic rounding.
	Digits int
	Log    *logrus.Entry

	windowStart time.Time
}

// Start marks the beginning of the first window.
func (r *Reporter) Start(now time.Time) {
	r.windowStart = now
}

// Due reports whether the current window has elapsed.
func (r *Reporter) Due(now time.Time) bool {
	return now.Sub(r.windowStart) >= r.Interval
}

// Flush renders the collector's current window to Out, resets the
// collector, and starts the next window. It is called at every
// reporting boundary and once at shutdown.
func (r *Reporter) Flush(c *stats.Collector, now time.Time) {
	snap := c.Snapshot(r.Digits)
	fmt.Fprint(r.Out, Render(snap, r.windowStart, now))
	c.Reset()
	r.windowStart = now
	if r.Log != nil {
		r.Log.WithFields(logrus.Fields{
			"runs":      snap.Runs,
			"successes": snap.Successes,
			"apiCalls":  snap.APICalls,
			"apiErrors": snap.APIErrors,
			"timeouts":  snap.Timeouts,
		}).Info("reporting window closed")
	}
}

// Render produces the line-oriented summary block for one window. Every
// line is a space-separated key=value list, one per category, headed by
// the window boundaries and the counter totals.
func Render(snap stats.Snapshot, from, to time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== report from=%s to=%s ===\n",
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "totals runs=%d successes=%d apiCalls=%d apiErrors=%d timeouts=%d\n",
		snap.Runs, snap.Successes, snap.APICalls, snap.APIErrors, snap.Timeouts)
	for _, ns := range snap.Summaries {
		s := ns.Summary
		fmt.Fprintf(&b, "%s count=%d min=%v median=%v avg=%v p95=%v max=%v\n",
			ns.Name, s.Count, s.Min, s.Median, s.Average, s.P95, s.Max)
	}
	return b.String()
}

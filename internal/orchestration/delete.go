package orchestration

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plusserver/openstack-apimonitor/internal/exec"
	"github.com/plusserver/openstack-apimonitor/internal/pool"
	"github.com/plusserver/openstack-apimonitor/internal/stats"
)

// Deleter drains resource pools. Deletion is optimistic: a handle
// leaves the pool whether or not the control plane confirmed the
// delete, so a pool always ends empty and ids that could not be deleted
// land on the remainder for out-of-band cleanup.
type Deleter struct {
	Runner *exec.Runner
	// Backoff is the fixed wait before the single retry.
	Backoff time.Duration
	// RetryMargin extends the timeout on the retry attempt.
	RetryMargin time.Duration
	Remainder   *pool.Remainder
	Log         *logrus.Logger
}

// DeleteBatch deletes every member of p, most recently created first.
// Each item gets at most two attempts: the original call, then after
// Backoff a retry with timeout+RetryMargin. A second failure records
// the id on the remainder instead of raising another alarm loop.
//
// The delete start time of each item is written into startTimes at the
// item's pool position when startTimes is non-nil, so a subsequent
// wait-for-deleted poll can time the disappearance.
//
// The return value counts items whose retry also failed; individual
// failures never abort the drain.
func (d *Deleter) DeleteBatch(
	ctx context.Context,
	series *stats.Series,
	p *pool.Pool,
	startTimes *Times,
	timeout time.Duration,
	template IDTemplate,
) int {
	failed := 0
	for p.Len() > 0 {
		idx := p.Len() - 1
		h, _ := p.PopLast()

		start := time.Now()
		if startTimes != nil {
			startTimes.Set(idx, start)
		}

		out := d.Runner.Run(template(h.ID), timeout)
		series.AppendDuration(out.Duration)
		if out.Class == exec.Success {
			continue
		}

		time.Sleep(d.Backoff)
		out = d.Runner.RunQuiet(template(h.ID), timeout+d.RetryMargin)
		series.AppendDuration(out.Duration)
		if out.Class == exec.Success {
			continue
		}

		failed++
		d.Remainder.Add(p.Kind, h.ID)
		if d.Log != nil {
			d.Log.WithFields(logrus.Fields{
				"kind": p.Kind,
				"id":   h.ID,
				"code": out.Result.Code,
			}).Error("delete failed twice, id queued for out-of-band cleanup")
		}

		if ctx.Err() != nil {
			// Keep draining so the pool ends empty, but record the
			// rest straight onto the remainder.
			for p.Len() > 0 {
				rest, _ := p.PopLast()
				d.Remainder.Add(p.Kind, rest.ID)
				failed++
			}
		}
	}
	return failed
}

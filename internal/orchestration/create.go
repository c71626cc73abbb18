package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plusserver/openstack-apimonitor/internal/exec"
	"github.com/plusserver/openstack-apimonitor/internal/pool"
	"github.com/plusserver/openstack-apimonitor/internal/stats"
)

// Creator issues batches of create calls, one resource at a time to
// bound load on the control plane.
type Creator struct {
	Runner *exec.Runner
	// Zones is the number of availability zones items are spread over
	// round-robin. Zero or one disables spreading.
	Zones int
	Log   *logrus.Logger
}

// CreateBatch creates quantity resources into target, recording one
// call latency per item in series and the pre-call wall clock start in
// startTimes (for later convergence timing).
//
// The batch fails fast: the first non-success stops further items and
// returns an error, leaving everything created so far in target. A
// partial pool is an expected outcome; the caller's teardown stages
// delete it.
func (c *Creator) CreateBatch(
	ctx context.Context,
	quantity int,
	series *stats.Series,
	target *pool.Pool,
	deps []*pool.Pool,
	idField string,
	timeout time.Duration,
	template Template,
	startTimes *Times,
) error {
	zones := c.Zones
	if zones < 1 {
		zones = 1
	}

	for i := 0; i < quantity; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("creating %s %d/%d: %w", target.Kind, i+1, quantity, err)
		}

		item := Item{Index: i, Zone: i % zones}
		for _, dep := range deps {
			if dep.Len() <= i {
				return fmt.Errorf("creating %s %d/%d: dependent pool %s has only %d items",
					target.Kind, i+1, quantity, dep.Kind, dep.Len())
			}
			item.Deps = append(item.Deps, dep.At(i).ID)
		}

		start := time.Now()
		if startTimes != nil {
			startTimes.Set(i, start)
		}

		out := c.Runner.Run(template(item), timeout)
		if out.Class != exec.Success {
			return fmt.Errorf("creating %s %d/%d failed: %s (code %d)",
				target.Kind, i+1, quantity, out.Class, out.Result.Code)
		}

		id := out.Result.Fields[idField]
		if id == "" {
			return fmt.Errorf("creating %s %d/%d: field %q missing from result",
				target.Kind, i+1, quantity, idField)
		}

		target.Push(pool.Handle{ID: id, CreatedAt: start})
		series.AppendDuration(out.Duration)

		if c.Log != nil {
			c.Log.WithFields(logrus.Fields{
				"kind":     target.Kind,
				"id":       id,
				"index":    i,
				"duration": out.Duration.Round(time.Millisecond),
			}).Debug("resource created")
		}
	}
	return nil
}

package orchestration

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plusserver/openstack-apimonitor/internal/exec"
	"github.com/plusserver/openstack-apimonitor/internal/pool"
	"github.com/plusserver/openstack-apimonitor/internal/stats"
)

// Target state markers. StateDeleted asks a poller to wait for
// disappearance: absence from a bulk listing then counts as arrival.
// WaitThroughErrors as the alternate target keeps polling items whose
// status reports an error instead of resolving them as failed, for
// kinds that recover on their own.
const (
	StateDeleted      = "DELETED"
	WaitThroughErrors = "ERROR_OK"
)

type resolution int

const (
	stillPending resolution = iota
	resolvedOK
	resolvedError
)

// classifyStatus decides whether one observed status resolves the item.
func classifyStatus(status, target, alt string) resolution {
	if status == target || (alt != "" && status == alt) {
		return resolvedOK
	}
	if strings.HasPrefix(strings.ToLower(status), "error") && alt != WaitThroughErrors {
		return resolvedError
	}
	return stillPending
}

// Poller is the per-item convergence poller: each round issues one
// status query per still-pending item. Simple and precise, at the cost
// of O(n) control plane calls per round.
type Poller struct {
	Runner *exec.Runner
	// Rounds bounds the polling loop; the default is 320.
	Rounds int
	// Interval is the sleep between rounds; the default is 2s.
	Interval time.Duration
	Progress *Progress
	Log      *logrus.Logger
}

const (
	defaultItemRounds   = 320
	defaultItemInterval = 2 * time.Second
)

// WaitFor polls every member of p until it reaches target or alt (or an
// error status), recording each query latency in series and, on
// resolution of item i, the convergence latency now-startTimes[i] in
// completion.
//
// The return value counts items that resolved as errors plus items
// still pending when the round budget ran out; zero means full
// convergence.
func (w *Poller) WaitFor(
	ctx context.Context,
	series *stats.Series,
	p *pool.Pool,
	completion *stats.Series,
	startTimes *Times,
	target, alt, statusField string,
	timeout time.Duration,
	query IDTemplate,
) int {
	rounds := w.Rounds
	if rounds <= 0 {
		rounds = defaultItemRounds
	}
	interval := w.Interval
	if interval <= 0 {
		interval = defaultItemInterval
	}

	pending := make(map[int]bool, p.Len())
	for i := 0; i < p.Len(); i++ {
		pending[i] = true
	}
	glyphs := newGlyphRow(p.Len())
	errCount := 0

	for round := 0; round < rounds && len(pending) > 0; round++ {
		if ctx.Err() != nil {
			break
		}
		for i := 0; i < p.Len(); i++ {
			if !pending[i] {
				continue
			}
			out := w.Runner.Run(query(p.At(i).ID), timeout)
			series.AppendDuration(out.Duration)

			if out.Class != exec.Success {
				glyphs.set(i, glyphError)
				completion.AppendDuration(time.Since(startTimes.At(i)))
				delete(pending, i)
				errCount++
				continue
			}

			status := out.Result.Fields[statusField]
			switch classifyStatus(status, target, alt) {
			case resolvedOK:
				glyphs.set(i, glyphOK)
				completion.AppendDuration(time.Since(startTimes.At(i)))
				delete(pending, i)
			case resolvedError:
				glyphs.set(i, glyphError)
				completion.AppendDuration(time.Since(startTimes.At(i)))
				delete(pending, i)
				errCount++
			default:
				glyphs.set(i, glyphPending)
			}
		}
		w.Progress.Render(p.Kind, glyphs)
		if len(pending) > 0 {
			sleepCtx(ctx, interval)
		}
	}
	w.Progress.Done()

	if len(pending) > 0 {
		// Round budget exhausted: the stragglers count as timed out.
		errCount += len(pending)
		if w.Log != nil {
			w.Log.WithFields(logrus.Fields{
				"kind":    p.Kind,
				"target":  target,
				"pending": len(pending),
			}).Error("convergence wait exhausted round budget")
		}
	}
	return errCount
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

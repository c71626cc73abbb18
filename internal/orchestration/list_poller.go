package orchestration

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plusserver/openstack-apimonitor/internal/exec"
	"github.com/plusserver/openstack-apimonitor/internal/pool"
	"github.com/plusserver/openstack-apimonitor/internal/stats"
)

// ListPoller is the bulk-list convergence poller: one listing call per
// round covers any number of tracked items, which is what lets a wait
// scale without parallel I/O.
type ListPoller struct {
	Runner *exec.Runner
	// Rounds bounds the polling loop; the default is 240.
	Rounds int
	// Interval is the sleep between rounds; the default is 3s.
	Interval time.Duration
	// TransientLimit is how many failed listing calls are tolerated
	// before the whole wait is declared fatal. DeletedTransientLimit
	// applies instead when waiting for disappearance, where a listing
	// error and the resource being gone are hard to tell apart; the
	// control plane also tends to throw spurious throttling errors
	// while mass deletion is in flight.
	TransientLimit        int
	DeletedTransientLimit int
	Progress              *Progress
	Log                   *logrus.Logger
}

const (
	defaultListRounds       = 240
	defaultListInterval     = 3 * time.Second
	defaultTransientLimit   = 4
	defaultDeletedTransient = 20
)

// WaitForList polls via bulk listings until every member of p reaches
// target or alt. Each tracked item's status is found by matching its id
// in the listing rows (idField) and reading statusField. When target is
// StateDeleted, absence from the listing resolves the item as OK.
//
// Latency accounting and the return contract match Poller.WaitFor.
func (w *ListPoller) WaitForList(
	ctx context.Context,
	series *stats.Series,
	p *pool.Pool,
	completion *stats.Series,
	startTimes *Times,
	target, alt, statusField, idField string,
	timeout time.Duration,
	list ListTemplate,
) int {
	rounds := w.Rounds
	if rounds <= 0 {
		rounds = defaultListRounds
	}
	interval := w.Interval
	if interval <= 0 {
		interval = defaultListInterval
	}
	transientLimit := w.TransientLimit
	if transientLimit <= 0 {
		transientLimit = defaultTransientLimit
	}
	if target == StateDeleted {
		transientLimit = w.DeletedTransientLimit
		if transientLimit <= 0 {
			transientLimit = defaultDeletedTransient
		}
	}

	pending := make(map[int]bool, p.Len())
	for i := 0; i < p.Len(); i++ {
		pending[i] = true
	}
	glyphs := newGlyphRow(p.Len())
	errCount := 0
	transient := 0

	for round := 0; round < rounds && len(pending) > 0; round++ {
		if ctx.Err() != nil {
			break
		}

		out := w.Runner.RunQuiet(list(), timeout)
		series.AppendDuration(out.Duration)
		if out.Class != exec.Success {
			transient++
			if transient > transientLimit {
				if w.Log != nil {
					w.Log.WithFields(logrus.Fields{
						"kind":     p.Kind,
						"target":   target,
						"failures": transient,
					}).Error("bulk listing failed persistently, giving up on wait")
				}
				break
			}
			sleepCtx(ctx, interval)
			continue
		}

		statuses := indexStatuses(out.Result.Table, idField, statusField)
		for i := 0; i < p.Len(); i++ {
			if !pending[i] {
				continue
			}
			status, present := statuses[p.At(i).ID]
			if !present {
				if target == StateDeleted {
					// Gone from the listing is exactly what we were
					// waiting for.
					glyphs.set(i, glyphOK)
					completion.AppendDuration(time.Since(startTimes.At(i)))
					delete(pending, i)
				} else {
					glyphs.set(i, glyphPending)
				}
				continue
			}
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
		errCount += len(pending)
	}
	return errCount
}

// indexStatuses maps each row's id to its status value.
func indexStatuses(table []map[string]string, idField, statusField string) map[string]string {
	out := make(map[string]string, len(table))
	for _, row := range table {
		if id := row[idField]; id != "" {
			out[id] = row[statusField]
		}
	}
	return out
}

package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/plusserver/openstack-apimonitor/internal/config"
	"github.com/plusserver/openstack-apimonitor/internal/exec"
	"github.com/plusserver/openstack-apimonitor/internal/execlog"
	"github.com/plusserver/openstack-apimonitor/internal/orchestration"
	"github.com/plusserver/openstack-apimonitor/internal/pool"
	"github.com/plusserver/openstack-apimonitor/internal/probe"
	"github.com/plusserver/openstack-apimonitor/internal/report"
	"github.com/plusserver/openstack-apimonitor/internal/stats"
)

// Monitor drives the benchmark loop: per iteration it provisions the
// driver's full kind chain as a saga, optionally probes the booted
// servers over SSH, and tears everything down again. Latencies land in
// the collector, failures raise alarms through the runner, and the
// reporter closes a window at every boundary.
type Monitor struct {
	Cfg       *config.Config
	Driver    Driver
	Runner    *exec.Runner
	Stats     *stats.Collector
	Reporter  *report.Reporter
	Remainder *pool.Remainder
	Log       *logrus.Logger

	// Prober, when set, measures SSH reachability of booted servers.
	Prober *probe.Prober
	// ExecLog, when set, is rotated at every reporting boundary.
	ExecLog *execlog.Log
	// Archive, when set, receives each rotated log path.
	Archive func(ctx context.Context, path string) error
	// Interrupts delivers operator cancellation; the saga reads it
	// between stages.
	Interrupts <-chan struct{}
	// Progress renders the live polling line.
	Progress *orchestration.Progress

	creator    *orchestration.Creator
	deleter    *orchestration.Deleter
	poller     *orchestration.Poller
	listPoller *orchestration.ListPoller
}

// New wires a Monitor from its collaborators. Optional fields (Prober,
// ExecLog, Archive, Interrupts, Progress) are set directly on the
// returned value before Run.
func New(cfg *config.Config, driver Driver, runner *exec.Runner, collector *stats.Collector,
	reporter *report.Reporter, remainder *pool.Remainder, log *logrus.Logger) *Monitor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Monitor{
		Cfg:       cfg,
		Driver:    driver,
		Runner:    runner,
		Stats:     collector,
		Reporter:  reporter,
		Remainder: remainder,
		Log:       log,
	}
}

// cat builds the collector category name for one kind and phase.
func cat(kind, phase string) string {
	return kind + "_" + phase
}

// initCollaborators builds the lifecycle collaborators from the configuration. Done
// lazily so tests can override the configuration first.
func (m *Monitor) initCollaborators() {
	if m.creator != nil {
		return
	}
	cfg := m.Cfg
	m.creator = &orchestration.Creator{
		Runner: m.Runner,
		Zones:  len(cfg.AvailabilityZones),
		Log:    m.Log,
	}
	m.deleter = &orchestration.Deleter{
		Runner:      m.Runner,
		Backoff:     cfg.Timeouts.RetryBackoff.D(),
		RetryMargin: cfg.Timeouts.RetryMargin.D(),
		Remainder:   m.Remainder,
		Log:         m.Log,
	}
	m.poller = &orchestration.Poller{
		Runner:   m.Runner,
		Rounds:   cfg.Polling.ItemRounds,
		Interval: cfg.Polling.ItemInterval.D(),
		Progress: m.Progress,
		Log:      m.Log,
	}
	m.listPoller = &orchestration.ListPoller{
		Runner:                m.Runner,
		Rounds:                cfg.Polling.ListRounds,
		Interval:              cfg.Polling.ListInterval.D(),
		TransientLimit:        cfg.Polling.ListRetries,
		DeletedTransientLimit: cfg.Polling.ListRetriesOnDelete,
		Progress:              m.Progress,
		Log:                   m.Log,
	}
}

// stages assembles the saga for one iteration. Every kind becomes one
// stage whose action creates and converges the batch and whose teardown
// drains it again; the probe stage goes last so floating IPs are
// already attached when servers are dialled.
func (m *Monitor) stages(pools map[string]*pool.Pool) []orchestration.Stage {
	m.initCollaborators()
	cfg := m.Cfg
	kinds := m.Driver.Kinds()

	var stages []orchestration.Stage
	for i := range kinds {
		k := kinds[i]
		p := pool.New(k.Name)
		pools[k.Name] = p
		createTimes := &orchestration.Times{}

		deps := make([]*pool.Pool, len(k.DependsOn))
		for j, depName := range k.DependsOn {
			deps[j] = pools[depName]
		}

		stages = append(stages, orchestration.Stage{
			Name: k.Name,
			Action: func(ctx context.Context) error {
				err := m.creator.CreateBatch(ctx, k.Count, m.Stats.Series(cat(k.Name, "create")),
					p, deps, k.IDField, cfg.Timeouts.Create.D(), k.Create, createTimes)
				if err != nil {
					return err
				}
				if k.WaitState == "" {
					return nil
				}
				var failed int
				if k.Bulk {
					failed = m.listPoller.WaitForList(ctx, m.Stats.Series(cat(k.Name, "list")),
						p, m.Stats.Series(cat(k.Name, "active")), createTimes,
						k.WaitState, k.AltState, k.StatusField, k.IDField,
						cfg.Timeouts.List.D(), k.List)
				} else {
					failed = m.poller.WaitFor(ctx, m.Stats.Series(cat(k.Name, "query")),
						p, m.Stats.Series(cat(k.Name, "active")), createTimes,
						k.WaitState, k.AltState, k.StatusField,
						cfg.Timeouts.Query.D(), k.Query)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d %s did not reach %s", failed, p.Len(), k.Name, k.WaitState)
				}
				return nil
			},
			Teardown: func(ctx context.Context) {
				deleteTimes := &orchestration.Times{}
				var ghosts *pool.Pool
				if k.WaitDeleted {
					// The deleter drains the pool, so disappearance is
					// tracked on a snapshot of it.
					ghosts = pool.New(k.Name)
					for _, h := range p.Handles() {
						ghosts.Push(h)
					}
				}
				m.deleter.DeleteBatch(ctx, m.Stats.Series(cat(k.Name, "delete")),
					p, deleteTimes, cfg.Timeouts.Delete.D(), k.Delete)
				if ghosts == nil {
					return
				}
				gone := m.listPoller.WaitForList(ctx, m.Stats.Series(cat(k.Name, "list")),
					ghosts, m.Stats.Series(cat(k.Name, "gone")), deleteTimes,
					orchestration.StateDeleted, "", k.StatusField, k.IDField,
					cfg.Timeouts.List.D(), k.List)
				if gone > 0 {
					m.Log.WithFields(logrus.Fields{"kind": k.Name, "stuck": gone}).
						Warn("resources still listed after deletion")
				}
			},
		})
	}

	if m.Prober != nil && cfg.Probe.Enabled {
		stages = append(stages, m.probeStage(pools))
	}
	return stages
}

// probeStage dials every booted server and records the reachability
// latency under the server_ssh category.
func (m *Monitor) probeStage(pools map[string]*pool.Pool) orchestration.Stage {
	return orchestration.Stage{
		Name: "ssh_probe",
		Action: func(ctx context.Context) error {
			servers := pools["server"]
			if servers == nil {
				return nil
			}
			for i := 0; i < servers.Len(); i++ {
				id := servers.At(i).ID
				addr, err := m.Driver.ServerAddress(ctx, id)
				if err != nil {
					return fmt.Errorf("resolving address of server %s: %w", id, err)
				}
				elapsed, err := m.Prober.Wait(ctx, addr)
				if err != nil {
					return fmt.Errorf("probing server %s at %s: %w", id, addr, err)
				}
				m.Stats.Observe("server_ssh", elapsed)
			}
			return nil
		},
	}
}

// RunOnce executes one full provision-and-teardown iteration.
func (m *Monitor) RunOnce(ctx context.Context) error {
	pools := make(map[string]*pool.Pool)
	saga := &orchestration.Saga{
		Stages:     m.stages(pools),
		Interrupts: m.Interrupts,
		Log:        m.Log,
	}
	return saga.Run(ctx)
}

// Run drives the iteration loop until the configured iteration count,
// an interrupt, or ctx expiry. A final report window is always flushed
// before returning, and the remainder is surfaced for the sweeper.
func (m *Monitor) Run(ctx context.Context) error {
	m.Reporter.Start(time.Now())

	var result error
	for i := 0; m.Cfg.Iterations == 0 || i < m.Cfg.Iterations; i++ {
		if ctx.Err() != nil {
			break
		}
		if m.pendingInterrupt() {
			m.Log.Warn("interrupt received, stopping before next iteration")
			break
		}

		m.Stats.Runs++
		runID := uuid.NewString()
		m.Log.WithFields(logrus.Fields{"iteration": i + 1, "run": runID}).Info("iteration starting")
		err := m.RunOnce(ctx)
		switch {
		case err == nil:
			m.Stats.Successes++
		case errors.Is(err, orchestration.ErrInterrupted), errors.Is(err, orchestration.ErrAbandoned):
			result = err
		default:
			m.Log.WithField("run", runID).WithError(err).Error("iteration failed")
		}
		if result != nil {
			break
		}

		if m.Reporter.Due(time.Now()) {
			m.closeWindow(ctx)
		}
	}

	m.Reporter.Flush(m.Stats, time.Now())
	m.reportRemainder()
	return result
}

// pendingInterrupt consumes an interrupt delivered between iterations,
// where there is nothing to unwind.
func (m *Monitor) pendingInterrupt() bool {
	select {
	case <-m.Interrupts:
		return true
	default:
		return false
	}
}

// closeWindow flushes the reporter and rotates (and optionally
// archives) the execution log, so each archived log matches one report.
func (m *Monitor) closeWindow(ctx context.Context) {
	m.Reporter.Flush(m.Stats, time.Now())
	if m.ExecLog == nil {
		return
	}
	rotated, err := m.ExecLog.Rotate(time.Now().UTC().Format("20060102T150405Z"))
	if err != nil {
		m.Log.WithError(err).Error("execution log rotation failed")
		return
	}
	if m.Archive != nil {
		if err := m.Archive(ctx, rotated); err != nil {
			m.Log.WithError(err).WithField("path", rotated).Error("execution log archival failed")
		}
	}
}

// reportRemainder lists ids the deleter could not reclaim. They carry
// the configured name prefix, so the sweeper picks them up.
func (m *Monitor) reportRemainder() {
	if m.Remainder == nil || m.Remainder.Len() == 0 {
		return
	}
	for kind, ids := range m.Remainder.All() {
		m.Log.WithFields(logrus.Fields{"kind": kind, "ids": ids}).
			Warn("undeleted resources left behind, run the sweeper")
	}
}

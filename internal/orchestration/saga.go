package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Stage pairs a creation action with its teardown. A stage's teardown
// is only eligible to run once its Action has returned success.
type Stage struct {
	Name     string
	Action   func(ctx context.Context) error
	Teardown func(ctx context.Context)
}

// Saga errors.
var (
	// ErrInterrupted reports that forward progress stopped because of
	// an interrupt; the unwind still ran.
	ErrInterrupted = errors.New("saga interrupted")
	// ErrAbandoned reports that a second interrupt skipped the unwind;
	// resources must be swept out-of-band by name prefix.
	ErrAbandoned = errors.New("saga abandoned, run the sweeper to reclaim resources")
)

// Saga executes a hand-ordered stage chain with fail-fast-forward and
// guaranteed reverse-order unwind: stage k+1 only runs after stage k
// succeeded, and every stage that succeeded has its teardown invoked in
// exactly the reverse of execution order. Ordering encodes the
// dependency graph, so no separate graph structure is needed.
//
// Interrupts are observed between stages, never mid-stage: the first
// finishes the current stage and goes straight to the full unwind, the
// second abandons the unwind and leaves cleanup to the prefix sweeper.
type Saga struct {
	Stages []Stage
	// Interrupts delivers external cancellation requests. The channel
	// is drained between stages.
	Interrupts <-chan struct{}
	Log        *logrus.Logger

	seen int
}

// Run drives the chain. The returned error is nil only if every stage
// succeeded and no interrupt arrived; teardown side effects have
// completed by the time Run returns (except after a second interrupt).
func (s *Saga) Run(ctx context.Context) error {
	log := s.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	var done []Stage
	var runErr error

	for _, st := range s.Stages {
		if s.interrupted() {
			log.Warn("interrupt received, unwinding")
			runErr = ErrInterrupted
			break
		}
		log.WithField("stage", st.Name).Info("stage starting")
		if err := st.Action(ctx); err != nil {
			runErr = fmt.Errorf("stage %s failed: %w", st.Name, err)
			log.WithField("stage", st.Name).WithError(err).Error("stage failed, unwinding")
			break
		}
		done = append(done, st)
	}

	for i := len(done) - 1; i >= 0; i-- {
		if s.interrupted() && s.seen >= 2 {
			log.Warn("second interrupt, abandoning unwind; sweep by name prefix later")
			if runErr == nil || errors.Is(runErr, ErrInterrupted) {
				runErr = ErrAbandoned
			}
			return runErr
		}
		if done[i].Teardown == nil {
			continue
		}
		log.WithField("stage", done[i].Name).Info("stage teardown")
		done[i].Teardown(ctx)
	}
	return runErr
}

// interrupted drains pending interrupts and reports whether any have
// been seen so far this run.
func (s *Saga) interrupted() bool {
	for {
		select {
		case _, ok := <-s.Interrupts:
			if !ok {
				return s.seen > 0
			}
			s.seen++
		default:
			return s.seen > 0
		}
	}
}

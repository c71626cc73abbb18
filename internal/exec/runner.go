package exec

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Class is the coarse outcome classification of one action.
type Class int

const (
	// Success: exit code 0.
	Success Class = iota
	// ApplicationError: exit code 1-128, the control plane rejected or
	// failed the request.
	ApplicationError
	// Timeout: exit code above 128, the action was terminated by the
	// watchdog.
	Timeout
)

// Outcome is the return contract of Runner.Run.
type Outcome struct {
	Duration time.Duration
	Class    Class
	Result   Result
}

// Notifier receives one alarm per failed action. Delivery is a
// collaborator concern (see internal/alarm).
type Notifier interface {
	Notify(ctx context.Context, severity, title, body string, timeout time.Duration) error
}

// Recorder receives one audit record per action (see internal/execlog).
type Recorder interface {
	Record(started, ended time.Time, action string, code int, fields map[string]string, output string)
}

// Tally counts control plane calls by result (see stats.Collector).
type Tally interface {
	CountCall(result string)
}

// Runner executes actions under a hard timeout. The watchdog is the
// only concurrent helper: a timer racing the worker goroutine, stepping
// through interrupt, terminate and kill at one second intervals, and
// cancelled the instant the worker finishes. The worker is the sole
// writer of the result channel, so exactly one side reports the final
// status.
type Runner struct {
	Log      *logrus.Logger
	Notifier Notifier
	Recorder Recorder
	Tally    Tally

	// ErrDelay is slept after reporting a failed action, giving the
	// operator a chance to notice cascading failures. A negative value
	// blocks until Ack is signalled instead.
	ErrDelay time.Duration
	// Ack releases a negative-ErrDelay pause. Defaults to an
	// unbuffered channel fed by the run command's stdin reader.
	Ack <-chan struct{}
}

// NewRunner returns a Runner with the given collaborators. Any of them
// may be nil, disabling that side effect.
func NewRunner(log *logrus.Logger, n Notifier, rec Recorder, tally Tally) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Runner{Log: log, Notifier: n, Recorder: rec, Tally: tally}
}

// Run executes action under timeout seconds of grace. A zero timeout
// runs the action synchronously with no bound. Failures raise one
// alarm.
func (r *Runner) Run(action Action, timeout time.Duration) Outcome {
	return r.run(action, timeout, false)
}

// RunQuiet is Run with alarm dispatch suppressed, for expected-noisy
// paths like best-effort cleanup sweeps. The execution log still gets
// its record.
func (r *Runner) RunQuiet(action Action, timeout time.Duration) Outcome {
	return r.run(action, timeout, true)
}

func (r *Runner) run(action Action, timeout time.Duration, quiet bool) Outcome {
	started := time.Now()
	res := r.await(action, timeout)
	ended := time.Now()

	out := Outcome{
		Duration: ended.Sub(started),
		Class:    Classify(res.Code),
		Result:   res,
	}

	if r.Recorder != nil {
		r.Recorder.Record(started, ended, action.Describe(), res.Code, res.Fields, res.Output)
	}
	if r.Tally != nil {
		r.Tally.CountCall(out.Class.label())
	}

	if out.Class != Success {
		r.Log.WithFields(logrus.Fields{
			"action":   action.Describe(),
			"code":     res.Code,
			"class":    out.Class.label(),
			"duration": out.Duration.Round(time.Millisecond),
		}).Error("action failed")
		if !quiet {
			r.report(action, res, timeout)
			r.errorDelay()
		}
	}
	return out
}

// await runs the worker and arms the watchdog.
func (r *Runner) await(action Action, timeout time.Duration) Result {
	if timeout == 0 {
		return action.Run()
	}

	done := make(chan Result, 1)
	go func() { done <- action.Run() }()

	ladder := []Escalation{EscalationInterrupt, EscalationTerminate, EscalationKill}
	step := 0
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case res := <-done:
			return res
		case <-timer.C:
			if step >= len(ladder) {
				// Kill already sent, all that is left is reaping.
				continue
			}
			r.Log.WithFields(logrus.Fields{
				"action": action.Describe(),
				"signal": ladder[step].String(),
			}).Warn("watchdog escalation")
			action.Signal(ladder[step])
			step++
			timer.Reset(time.Second)
		}
	}
}

func (r *Runner) report(action Action, res Result, timeout time.Duration) {
	if r.Notifier == nil {
		return
	}
	severity := "error"
	if Classify(res.Code) == Timeout {
		severity = "timeout"
	}
	body := "command: " + action.Describe() + "\n" +
		"timeout: " + timeout.String() + "\n" +
		"output:\n" + res.Output
	if err := r.Notifier.Notify(context.Background(), severity, action.Describe(), body, timeout); err != nil {
		r.Log.WithError(err).Warn("alarm dispatch failed")
	}
}

func (r *Runner) errorDelay() {
	switch {
	case r.ErrDelay > 0:
		time.Sleep(r.ErrDelay)
	case r.ErrDelay < 0:
		r.Log.Warn("pausing after error, waiting for acknowledgement")
		if r.Ack != nil {
			<-r.Ack
		}
	}
}

// Classify maps an exit code to its outcome class: 0 success, 1-128
// application error, above 128 killed by the watchdog.
func Classify(code int) Class {
	switch {
	case code == 0:
		return Success
	case code <= 128:
		return ApplicationError
	default:
		return Timeout
	}
}

func (c Class) label() string {
	switch c {
	case Success:
		return "success"
	case ApplicationError:
		return "error"
	default:
		return "timeout"
	}
}

// String returns the class label.
func (c Class) String() string { return c.label() }

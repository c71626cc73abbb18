// Package alarm delivers failure and notice events raised by the
// monitor. The engine only depends on the Dispatcher interface; the
// transport (log line, SNS topic, fan-out) is chosen at startup.
package alarm

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Dispatcher receives one event per reported failure or notice.
type Dispatcher interface {
	Notify(ctx context.Context, severity, title, body string, timeout time.Duration) error
}

// LogDispatcher writes alarms to the process log. It is the default
// transport and the fallback when no other is configured.
type LogDispatcher struct {
	Log *logrus.Logger
}

// NewLogDispatcher returns a Dispatcher backed by log.
func NewLogDispatcher(log *logrus.Logger) *LogDispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogDispatcher{Log: log}
}

// Notify logs the event at warning level.
func (d *LogDispatcher) Notify(_ context.Context, severity, title, body string, timeout time.Duration) error {
	d.Log.WithFields(logrus.Fields{
		"severity": severity,
		"timeout":  timeout,
		"body":     body,
	}).Warn("ALARM " + title)
	return nil
}

// Multi fans an event out to several dispatchers. Delivery failures are
// joined, not short-circuited: every transport gets its chance.
type Multi []Dispatcher

// Notify dispatches to every member.
func (m Multi) Notify(ctx context.Context, severity, title, body string, timeout time.Duration) error {
	var errs []error
	for _, d := range m {
		if err := d.Notify(ctx, severity, title, body, timeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Package exec runs single control plane actions under a hard timeout
// with escalating termination, classifies their outcome, and feeds the
// alarm and audit side channels.
package exec

import (
	"context"
	"fmt"
	"sync"
)

// Escalation is one step of the watchdog's termination ladder.
type Escalation int

const (
	// EscalationInterrupt asks the action to stop gracefully.
	EscalationInterrupt Escalation = iota
	// EscalationTerminate demands the action stop.
	EscalationTerminate
	// EscalationKill stops the action unconditionally.
	EscalationKill
)

// Result is the structured outcome of one action. Callers extract
// identifiers and status values by field name instead of scraping text
// output.
type Result struct {
	// Code follows the process exit convention: 0 success, 1-128
	// application error, above 128 killed.
	Code int
	// Fields maps field names to values for single-resource actions.
	Fields map[string]string
	// Table holds one field map per row for bulk listing actions.
	Table []map[string]string
	// Output is the raw captured output, kept for alarms and the
	// execution log.
	Output string
}

// Action is one opaque external operation. Run blocks until the action
// finishes; Signal may be called concurrently by the watchdog to
// terminate it. Implementations must tolerate Signal after Run has
// returned.
type Action interface {
	// Describe returns a human-readable rendering of the action for
	// alarms and the execution log.
	Describe() string
	Run() Result
	Signal(level Escalation)
}

// FuncAction adapts a Go function to the Action interface. The function
// receives a context that is cancelled at the first watchdog
// escalation; an action still running at the kill step reports
// KilledCode. It backs the native API drivers and tests.
type FuncAction struct {
	Desc string
	Fn   func(ctx context.Context) Result

	once   sync.Once
	cancel context.CancelFunc
	ctx    context.Context
}

// KilledCode is the exit code reported for actions terminated by the
// watchdog, following the shell convention of 128+SIGKILL.
const KilledCode = 137

// NewFuncAction wraps fn as an Action.
func NewFuncAction(desc string, fn func(ctx context.Context) Result) *FuncAction {
	return &FuncAction{Desc: desc, Fn: fn}
}

func (a *FuncAction) Describe() string { return a.Desc }

func (a *FuncAction) init() {
	a.once.Do(func() {
		a.ctx, a.cancel = context.WithCancel(context.Background())
	})
}

func (a *FuncAction) Run() Result {
	a.init()
	res := a.Fn(a.ctx)
	if a.ctx.Err() != nil && res.Code == 0 {
		res.Code = KilledCode
	}
	return res
}

// Signal cancels the function's context. All escalation levels map to
// cancellation; the >128 classification is preserved by Run.
func (a *FuncAction) Signal(Escalation) {
	a.init()
	a.cancel()
}

func (e Escalation) String() string {
	switch e {
	case EscalationInterrupt:
		return "interrupt"
	case EscalationTerminate:
		return "terminate"
	case EscalationKill:
		return "kill"
	default:
		return fmt.Sprintf("escalation(%d)", int(e))
	}
}

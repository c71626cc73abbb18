package exec

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeNotifier) Notify(_ context.Context, severity, title, _ string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, severity+":"+title)
	return nil
}

// stubbornAction ignores interrupt and terminate and only stops on kill,
// like a process shielding itself from SIGINT/SIGTERM.
type stubbornAction struct {
	signals chan Escalation
	killed  chan struct{}
}

func newStubbornAction() *stubbornAction {
	return &stubbornAction{
		signals: make(chan Escalation, 8),
		killed:  make(chan struct{}),
	}
}

func (a *stubbornAction) Describe() string { return "stubborn op" }

func (a *stubbornAction) Run() Result {
	<-a.killed
	return Result{Code: KilledCode, Output: "killed"}
}

func (a *stubbornAction) Signal(level Escalation) {
	a.signals <- level
	if level == EscalationKill {
		close(a.killed)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Success, Classify(0))
	assert.Equal(t, ApplicationError, Classify(1))
	assert.Equal(t, ApplicationError, Classify(128))
	assert.Equal(t, Timeout, Classify(129))
	assert.Equal(t, Timeout, Classify(KilledCode))
}

func TestRunSynchronousSuccess(t *testing.T) {
	t.Parallel()
	notifier := &fakeNotifier{}
	r := NewRunner(nil, notifier, nil, nil)

	action := NewFuncAction("create volume", func(context.Context) Result {
		return Result{Code: 0, Fields: map[string]string{"id": "v1"}}
	})
	out := r.Run(action, 0)

	assert.Equal(t, Success, out.Class)
	assert.Equal(t, "v1", out.Result.Fields["id"])
	assert.Empty(t, notifier.calls)
}

func TestRunApplicationErrorRaisesOneAlarm(t *testing.T) {
	t.Parallel()
	notifier := &fakeNotifier{}
	r := NewRunner(nil, notifier, nil, nil)

	action := NewFuncAction("create server", func(context.Context) Result {
		return Result{Code: 1, Output: "quota exceeded"}
	})
	out := r.Run(action, 0)

	assert.Equal(t, ApplicationError, out.Class)
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "error:create server", notifier.calls[0])
}

func TestRunQuietSuppressesAlarm(t *testing.T) {
	t.Parallel()
	notifier := &fakeNotifier{}
	r := NewRunner(nil, notifier, nil, nil)

	out := r.RunQuiet(NewFuncAction("sweep", func(context.Context) Result {
		return Result{Code: 1}
	}), 0)

	assert.Equal(t, ApplicationError, out.Class)
	assert.Empty(t, notifier.calls)
}

func TestWatchdogEscalatesToKill(t *testing.T) {
	t.Parallel()
	notifier := &fakeNotifier{}
	r := NewRunner(nil, notifier, nil, nil)

	action := newStubbornAction()
	start := time.Now()
	out := r.Run(action, 100*time.Millisecond)
	elapsed := time.Since(start)

	assert.Equal(t, Timeout, out.Class)
	assert.Equal(t, KilledCode, out.Result.Code)
	// interrupt at T, terminate at T+1s, kill at T+2s.
	assert.Equal(t, EscalationInterrupt, <-action.signals)
	assert.Equal(t, EscalationTerminate, <-action.signals)
	assert.Equal(t, EscalationKill, <-action.signals)
	assert.Less(t, elapsed, 4*time.Second)
	// Exactly one alarm, classified as a timeout.
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "timeout:stubborn op", notifier.calls[0])
}

func TestWatchdogCancelledWhenWorkerFinishes(t *testing.T) {
	t.Parallel()
	r := NewRunner(nil, nil, nil, nil)

	out := r.Run(NewFuncAction("fast op", func(context.Context) Result {
		return Result{Code: 0}
	}), time.Minute)

	assert.Equal(t, Success, out.Class)
	assert.Less(t, out.Duration, time.Second)
}

func TestFuncActionCancelReportsKilled(t *testing.T) {
	t.Parallel()
	r := NewRunner(nil, nil, nil, nil)

	action := NewFuncAction("slow api call", func(ctx context.Context) Result {
		<-ctx.Done()
		return Result{Output: "cancelled"}
	})
	out := r.RunQuiet(action, 50*time.Millisecond)

	assert.Equal(t, Timeout, out.Class)
	assert.Equal(t, KilledCode, out.Result.Code)
}

func TestTallyCountsByClass(t *testing.T) {
	t.Parallel()
	tally := &fakeTally{}
	r := NewRunner(nil, nil, nil, tally)

	r.RunQuiet(NewFuncAction("a", func(context.Context) Result { return Result{Code: 0} }), 0)
	r.RunQuiet(NewFuncAction("b", func(context.Context) Result { return Result{Code: 2} }), 0)

	assert.Equal(t, []string{"success", "error"}, tally.results)
}

type fakeTally struct{ results []string }

func (f *fakeTally) CountCall(result string) { f.results = append(f.results, result) }

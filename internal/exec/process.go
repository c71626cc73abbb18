package exec

import (
	"bytes"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// ProcessAction runs an external command as an Action. The watchdog's
// escalation ladder maps to SIGINT, SIGTERM and SIGKILL; a process that
// dies from a signal reports 128+signal, which the runner classifies as
// a timeout.
type ProcessAction struct {
	Argv []string
	// Parse, when set, turns the captured output into structured
	// fields and rows. Left nil for actions whose output is only
	// logged.
	Parse func(output string) (fields map[string]string, table []map[string]string)

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewProcessAction builds a ProcessAction for argv.
func NewProcessAction(argv ...string) *ProcessAction {
	return &ProcessAction{Argv: argv}
}

func (a *ProcessAction) Describe() string {
	return strings.Join(a.Argv, " ")
}

func (a *ProcessAction) Run() Result {
	var buf bytes.Buffer
	cmd := exec.Command(a.Argv[0], a.Argv[1:]...)
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	// The command runs in its own process group so the escalation
	// ladder reaches subprocesses too; a killed shell must not leave
	// children holding the output pipe and blocking Wait.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = time.Second

	a.mu.Lock()
	a.cmd = cmd
	err := cmd.Start()
	a.mu.Unlock()

	if err != nil {
		return Result{Code: 127, Output: err.Error()}
	}

	waitErr := cmd.Wait()
	res := Result{Output: buf.String()}
	res.Code = exitCode(cmd, waitErr)
	if a.Parse != nil && res.Code == 0 {
		res.Fields, res.Table = a.Parse(res.Output)
	}
	return res
}

// Signal forwards the escalation to the running process. Calls before
// Start or after Wait are ignored.
func (a *ProcessAction) Signal(level Escalation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cmd == nil || a.cmd.Process == nil {
		return
	}
	sig := syscall.SIGINT
	switch level {
	case EscalationTerminate:
		sig = syscall.SIGTERM
	case EscalationKill:
		sig = syscall.SIGKILL
	}
	// Negative pid addresses the whole process group.
	if err := syscall.Kill(-a.cmd.Process.Pid, sig); err != nil {
		_ = a.cmd.Process.Signal(sig)
	}
}

// exitCode maps the process tree's end state to the shell exit
// convention: normal exits report their code, signal deaths report
// 128+signal.
func exitCode(cmd *exec.Cmd, waitErr error) int {
	if waitErr == nil {
		return 0
	}
	if cmd.ProcessState != nil {
		if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		if code := cmd.ProcessState.ExitCode(); code >= 0 {
			return code
		}
	}
	return 1
}

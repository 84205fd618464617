package encodersupervisor

import (
	"os"
	"syscall"

	gopsprocess "github.com/shirou/gopsutil/v4/process"
)

// pauser suspends and resumes a running transcoder child.
type pauser interface {
	Pause() error
	Resume() error
}

// signaler is the subset of *ffmpeg.Command this package depends on.
type signaler interface {
	Signal(sig os.Signal) error
}

// signalPauser pauses a child by sending it SIGSTOP/SIGCONT, the mechanism
// available on every POSIX target.
type signalPauser struct {
	cmd signaler
}

func (p *signalPauser) Pause() error  { return p.cmd.Signal(syscall.SIGSTOP) }
func (p *signalPauser) Resume() error { return p.cmd.Signal(syscall.SIGCONT) }

// affinityPauser is the fallback for platforms without job-control signals.
// It suspends the child through gopsutil, which dispatches to the
// platform-appropriate primitive (NtSuspendProcess on Windows, task_suspend
// on Darwin) rather than SIGSTOP.
type affinityPauser struct {
	proc *gopsprocess.Process
}

func newAffinityPauser(pid int32) (*affinityPauser, error) {
	proc, err := gopsprocess.NewProcess(pid)
	if err != nil {
		return nil, err
	}
	return &affinityPauser{proc: proc}, nil
}

func (p *affinityPauser) Pause() error  { return p.proc.Suspend() }
func (p *affinityPauser) Resume() error { return p.proc.Resume() }

// newPauser picks the pause mechanism for the running platform. mechanism
// overrides the runtime.GOOS-based default when non-empty ("signal" or
// "affinity"), mainly so tests can force either path.
func newPauser(cmd signaler, pid int32, mechanism string, goos string) pauser {
	useSignal := goos != "windows"
	switch mechanism {
	case "signal":
		useSignal = true
	case "affinity":
		useSignal = false
	}

	if useSignal {
		return &signalPauser{cmd: cmd}
	}
	if p, err := newAffinityPauser(pid); err == nil {
		return p
	}
	return &signalPauser{cmd: cmd}
}

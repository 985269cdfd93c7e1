/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package runner is the ptrace supervisor that ties pkg/syscalls'
// handlers to a real traced process: it launches the guest command,
// steps it syscall by syscall, decodes the syscalls pkg/syscalls cares
// about into their Args types, and applies the returned Outcome to the
// tracee's registers. Grounded on original_source/cli's Command::Run
// arm (tokio runtime spawning a traced child) and, for the process
// lifecycle shape (start, wait, tear down), the teacher's
// pkg/supervisor.Supervisor.
//
// Only a single-threaded guest is supported: the tracee's clone/fork
// children are not attached to. A multi-threaded or multi-process guest
// needs PTRACE_SEIZE with PTRACE_O_TRACECLONE and a goroutine per
// tracee; Run already drives its one guest thread through
// pkg/tracer.Scheduler, so widening to multiple tracees is a matter of
// calling Dispatch once per attached tracee rather than changing the
// scheduling model.
package runner

import (
	"context"
	"os"
	"os/exec"
	"syscall"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/agentfs/sandboxfs/internal/metrics"
	"github.com/agentfs/sandboxfs/pkg/guestmem"
	"github.com/agentfs/sandboxfs/pkg/syscalls"
	"github.com/agentfs/sandboxfs/pkg/tracer"
)

// ptraceGuest implements tracer.Guest over one stopped tracee. injected
// records whether Inject already ran the substitute syscall for real
// during this syscall-entry stop, so the dispatch loop downstream knows
// whether the tracee is already sitting at the rewritten syscall's exit
// (injected) or still has its original, unexecuted syscall pending
// (not injected) once the handler returns. scratchBudget bounds every
// Stack() call's PtraceScratch (sandboxconfig's scratch_size).
type ptraceGuest struct {
	pid           int
	injected      bool
	scratchBudget int64
}

func (g *ptraceGuest) Memory() guestmem.Memory {
	return &guestmem.PtraceMemory{Pid: g.pid}
}

func (g *ptraceGuest) Stack(context.Context) (guestmem.Scratch, error) {
	return guestmem.NewPtraceScratch(g.pid, g.scratchBudget)
}

// Inject overwrites the tracee's pending syscall with sc, lets it run
// to completion for real, and returns the kernel's result. It must only
// be called once per syscall-entry stop.
func (g *ptraceGuest) Inject(ctx context.Context, sc tracer.Syscall) (int64, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(g.pid, &regs); err != nil {
		return 0, errors.Wrap(err, "ptrace getregs before inject")
	}
	setRegsForSyscall(&regs, sc)
	if err := unix.PtraceSetRegs(g.pid, &regs); err != nil {
		return 0, errors.Wrap(err, "ptrace setregs for inject")
	}
	if err := stepToNextStop(g.pid); err != nil {
		return 0, errors.Wrap(err, "step injected syscall to exit")
	}
	if err := unix.PtraceGetRegs(g.pid, &regs); err != nil {
		return 0, errors.Wrap(err, "ptrace getregs after inject")
	}
	g.injected = true
	return syscallReturnValue(&regs), nil
}

// stepToNextStop resumes the tracee with PTRACE_SYSCALL and blocks
// until its next stop (syscall-stop, signal-delivery-stop, or exit).
func stepToNextStop(pid int) error {
	if err := unix.PtraceSyscall(pid, 0); err != nil {
		return errors.Wrap(err, "ptrace syscall")
	}
	var status unix.WaitStatus
	if _, err := unix.Wait4(pid, &status, 0, nil); err != nil {
		return errors.Wrap(err, "wait4")
	}
	if status.Exited() || status.Signaled() {
		return errors.Errorf("tracee %d exited mid-syscall", pid)
	}
	return nil
}

// Run launches argv under ptrace and drives its syscalls through
// handlers until it exits, returning its exit code. concurrency sizes
// the pkg/tracer.Scheduler guest threads are dispatched through
// (sandboxconfig's concurrency); scratchBudget bounds the scratch stack
// each syscall handler may reserve (sandboxconfig's scratch_size).
func Run(ctx context.Context, handlers *syscalls.Handlers, argv []string, concurrency, scratchBudget int64) (int, error) {
	if len(argv) == 0 {
		return 0, errors.New("no command given to run")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}

	if err := cmd.Start(); err != nil {
		return 0, errors.Wrap(err, "start traced command")
	}
	pid := cmd.Process.Pid

	var status unix.WaitStatus
	if _, err := unix.Wait4(pid, &status, 0, nil); err != nil {
		return 0, errors.Wrap(err, "wait4 initial stop")
	}
	if err := unix.PtraceSetOptions(pid, unix.PTRACE_O_TRACESYSGOOD|unix.PTRACE_O_EXITKILL); err != nil {
		return 0, errors.Wrap(err, "ptrace setoptions")
	}

	guest := &ptraceGuest{pid: pid, scratchBudget: scratchBudget}

	// The tracee is a single guest thread, but it is still dispatched
	// through the Scheduler rather than driven by a bare loop: that
	// keeps the concurrency budget and error propagation pkg/tracer
	// provides live on the one code path every guest thread (today's
	// one, and any future PTRACE_O_TRACECLONE-attached ones) runs
	// through. All of this tracee's ptrace calls stay on the goroutine
	// Dispatch starts for it, since ptrace requires the calling thread
	// to be the one that is tracing.
	sched := tracer.NewScheduler(ctx, concurrency)
	var exitCode int
	dispatchErr := sched.Dispatch(func(ctx context.Context) error {
		code, err := traceLoop(ctx, handlers, guest, pid)
		exitCode = code
		return err
	})
	if dispatchErr != nil {
		return 0, errors.Wrap(dispatchErr, "dispatch guest thread")
	}
	if err := sched.Wait(); err != nil {
		return 0, errors.Wrap(err, "run traced guest thread")
	}
	return exitCode, nil
}

// traceLoop steps guest's tracee through PTRACE_SYSCALL stops, handing
// each syscall-entry stop to handlers via dispatch, until the tracee
// exits.
func traceLoop(ctx context.Context, handlers *syscalls.Handlers, guest *ptraceGuest, pid int) (int, error) {
	var status unix.WaitStatus
	pendingSignal := 0
	for {
		guest.injected = false

		if err := unix.PtraceSyscall(pid, pendingSignal); err != nil {
			return 0, errors.Wrap(err, "ptrace syscall (to entry)")
		}
		pendingSignal = 0
		if _, err := unix.Wait4(pid, &status, 0, nil); err != nil {
			return 0, errors.Wrap(err, "wait4 syscall-entry")
		}
		if status.Exited() {
			return status.ExitStatus(), nil
		}
		if status.Signaled() {
			return 0, errors.Errorf("tracee killed by signal %s", status.Signal())
		}
		if !isSyscallStop(status) {
			// A non-syscall stop (e.g. an ordinary signal): forward
			// the signal and keep going. A plain SIGTRAP (as raised
			// after an execve) is ptrace's own and is not forwarded.
			if sig := status.StopSignal(); sig != unix.SIGTRAP {
				pendingSignal = int(sig)
			}
			continue
		}

		outcome, err := dispatch(ctx, handlers, guest)
		if err != nil {
			log.G(ctx).WithError(err).Warn("syscall handler failed; passing through")
			outcome = tracer.PassThrough()
		}

		if err := applyOutcome(guest, outcome); err != nil {
			return 0, errors.Wrap(err, "apply outcome")
		}
	}
}

// isSyscallStop reports whether status is a syscall-stop rather than
// some other signal-delivery-stop, relying on PTRACE_O_TRACESYSGOOD
// having set bit 0x80 on the stop signal.
func isSyscallStop(status unix.WaitStatus) bool {
	return status.Stopped() && status.StopSignal()&0x80 != 0
}

// applyOutcome advances the tracee past the syscall it is stopped at
// according to outcome, recording GuestThreadsActive so
// internal/metricsserver has something to show for a live run.
func applyOutcome(guest *ptraceGuest, outcome tracer.Outcome) error {
	metrics.GuestThreadsActive.Inc()
	defer metrics.GuestThreadsActive.Dec()

	switch {
	case outcome.IsPassThrough():
		return stepToNextStop(guest.pid)

	case guest.injected:
		// The handler already ran a substitute syscall via Inject and
		// is sitting at its exit; nothing left to do but it.
		return nil

	default:
		if v, ok := outcome.ResultValue(); ok {
			return forceResult(guest.pid, v)
		}
		if sc, ok := outcome.RewriteSyscall(); ok {
			_, err := guest.Inject(context.Background(), sc)
			return err
		}
		return errors.New("outcome carries neither a result nor a rewrite")
	}
}

// forceResult suppresses the tracee's pending (unexecuted) syscall and
// substitutes v as its return value: setting orig_rax to -1 makes the
// kernel skip the call entirely and report -ENOSYS, which this then
// overwrites once stopped at the (synthetic) syscall-exit.
func forceResult(pid int, v int64) error {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return errors.Wrap(err, "ptrace getregs before suppress")
	}
	suppressSyscall(&regs)
	if err := unix.PtraceSetRegs(pid, &regs); err != nil {
		return errors.Wrap(err, "ptrace setregs to suppress")
	}
	if err := stepToNextStop(pid); err != nil {
		return err
	}
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return errors.Wrap(err, "ptrace getregs after suppress")
	}
	setSyscallReturnValue(&regs, v)
	return unix.PtraceSetRegs(pid, &regs)
}

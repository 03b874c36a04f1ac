// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scenario

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"gvisor.dev/sigkern/pkg/abi/linux"
	"gvisor.dev/sigkern/pkg/errors/linuxerr"
	"gvisor.dev/sigkern/pkg/hostarch"
	"gvisor.dev/sigkern/pkg/log"
	"gvisor.dev/sigkern/pkg/sentry/arch"
	"gvisor.dev/sigkern/pkg/sentry/kernel"
	"gvisor.dev/sigkern/pkg/sentry/mm"
	sys "gvisor.dev/sigkern/pkg/sentry/syscalls/linux"
	"gvisor.dev/sigkern/pkg/usermem"
)

// Offsets of the default argument buffers in each thread's scratch page.
const (
	scratchAction    = 0
	scratchOldAction = scratchAction + linux.SigActionSize
	scratchSet       = scratchOldAction + linux.SigActionSize
	scratchOldSet    = scratchSet + linux.SignalSetSize
)

// Result is the result of one step.
type Result struct {
	Step   int
	Thread int
	Op     Op

	// Ran is false if the step never started because the scenario failed
	// first.
	Ran bool

	// Errno is the errno name the syscall failed with, if any.
	Errno string

	// Outcome is the delivery outcome of trap-return.
	Outcome kernel.SignalOutcome

	// Err is set if the step did not match its expectations.
	Err error
}

// Report summarizes a run.
type Report struct {
	Results []Result

	// Exited is true if the process exited, with ExitStatus.
	Exited     bool
	ExitStatus int
}

// Failed returns the number of steps that did not match their
// expectations.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Run executes sc in a new kernel configured by opts. Each thread runs on
// its own goroutine. The first failing step cancels the rest of the run; it
// is returned along with the report.
func Run(ctx context.Context, sc *Scenario, opts kernel.Options) (*Report, error) {
	g, gctx := errgroup.WithContext(ctx)
	k, err := kernel.New(gctx, opts)
	if err != nil {
		return nil, err
	}
	p := k.NewProcess()
	tasks := []*kernel.Task{p.Leader()}
	for len(tasks) < sc.Threads {
		tasks = append(tasks, p.NewThread())
	}

	for i, m := range sc.Mappings {
		perms := hostarch.Read
		if m.Writable {
			perms = hostarch.ReadWrite
		}
		if _, err := p.MemoryManager().MMap(tasks[0], mm.MMapOpts{
			Addr:   hostarch.Addr(m.Addr),
			Length: m.Length,
			Fixed:  true,
			Perms:  perms,
		}); err != nil {
			return nil, fmt.Errorf("mapping %d: %w", i, err)
		}
	}

	threads := make([]*thread, len(tasks))
	for i, t := range tasks {
		scratch, err := p.MemoryManager().MMap(t, mm.MMapOpts{Length: hostarch.PageSize, Perms: hostarch.ReadWrite})
		if err != nil {
			return nil, fmt.Errorf("mapping scratch page: %w", err)
		}
		t.Frame().SetSP(scratch + hostarch.PageSize)
		threads[i] = &thread{index: i, t: t, scratch: scratch, tasks: tasks}
	}

	rep := &Report{Results: make([]Result, len(sc.Steps))}
	done := make([]chan struct{}, len(sc.Steps))
	byThread := make([][]int, len(tasks))
	for i, s := range sc.Steps {
		done[i] = make(chan struct{})
		byThread[s.Thread] = append(byThread[s.Thread], i)
		rep.Results[i] = Result{Step: i, Thread: s.Thread, Op: s.Op}
	}

	for _, th := range threads {
		g.Go(func() error {
			for _, i := range byThread[th.index] {
				s := &sc.Steps[i]
				if s.After != nil {
					select {
					case <-done[*s.After]:
					case <-gctx.Done():
						return nil
					}
				}
				res := &rep.Results[i]
				res.Ran = true
				th.t.Debugf("Step %d: %s", i, s.Op)
				res.Err = th.run(s, res)
				close(done[i])
				if res.Err != nil {
					return fmt.Errorf("step %d (%v): %w", i, s, res.Err)
				}
			}
			return nil
		})
	}
	err = g.Wait()
	rep.ExitStatus, rep.Exited = p.ExitStatus()
	if err != nil {
		log.Warningf("Scenario failed: %v", err)
	}
	return rep, err
}

// thread runs the steps of one scenario thread.
type thread struct {
	index   int
	t       *kernel.Task
	scratch hostarch.Addr
	tasks   []*kernel.Task
}

func (th *thread) addr(override *Addr, off hostarch.Addr) hostarch.Addr {
	if override != nil {
		return hostarch.Addr(*override)
	}
	return th.scratch + off
}

func (th *thread) write(addr hostarch.Addr, v usermem.Marshallable) error {
	_, err := usermem.CopyObjectOut(th.t, th.t.MemoryManager(), addr, v, usermem.IOOpts{IgnorePermissions: true})
	return err
}

func (th *thread) read(addr hostarch.Addr, v usermem.Marshallable) error {
	_, err := usermem.CopyObjectIn(th.t, th.t.MemoryManager(), addr, v, usermem.IOOpts{IgnorePermissions: true})
	return err
}

func (th *thread) invoke(sysno uintptr, args ...uintptr) error {
	_, err := th.t.InvokeSyscall(sysno, arch.Args(args...))
	return err
}

func (th *thread) run(s *Step, res *Result) error {
	switch s.Op {
	case OpTrapReturn:
		return th.trapReturn(s, res)
	case OpExpectPending:
		if got, want := th.t.PendingSignals(), s.Set.Set(); got != want {
			return fmt.Errorf("pending = %v, want %v", got, want)
		}
		return nil
	case OpExpectMask:
		if got, want := th.t.SignalMask(), s.Set.Set(); got != want {
			return fmt.Errorf("mask = %v, want %v", got, want)
		}
		return nil
	}

	check, err := th.syscall(s)
	if err != nil {
		return err
	}
	errno, ok := linuxerr.ErrnoOf(check.err)
	if check.err != nil && !ok {
		return check.err
	}
	res.Errno = errnoName(uint32(errno))
	want := strings.ToUpper(s.Expect)
	if want == "" && s.Op == OpSigsuspend {
		want = "EINTR"
	}
	if res.Errno != want {
		return fmt.Errorf("got errno %q, want %q", res.Errno, want)
	}
	if check.err == nil && check.post != nil {
		return check.post()
	}
	return nil
}

// syscallCheck is the result of a syscall step: its error, and a check of
// its outputs to run if it succeeded as expected.
type syscallCheck struct {
	err  error
	post func() error
}

// syscall performs the syscall named by s. A non-nil error means the step
// could not be set up.
func (th *thread) syscall(s *Step) (syscallCheck, error) {
	switch s.Op {
	case OpSigaction:
		var newact hostarch.Addr
		if s.Handler != nil {
			newact = th.scratch + scratchAction
			act := linux.SigAction{
				Handler:  uint64(*s.Handler),
				Flags:    uint64(s.Flags),
				Restorer: uint64(s.Restorer),
				Mask:     s.Mask.Set(),
			}
			if err := th.write(newact, &act); err != nil {
				return syscallCheck{}, err
			}
		}
		if s.Ptr != nil {
			newact = hostarch.Addr(*s.Ptr)
		}
		oldact := th.addr(s.OldPtr, scratchOldAction)
		check := syscallCheck{err: th.invoke(sys.SysRtSigaction, uintptr(s.Signal), uintptr(newact), uintptr(oldact), linux.SignalSetSize)}
		if s.OldHandler != nil {
			check.post = func() error {
				var old linux.SigAction
				if err := th.read(oldact, &old); err != nil {
					return err
				}
				if got := Handler(old.Handler); got != *s.OldHandler {
					return fmt.Errorf("old handler = %v, want %v", got, *s.OldHandler)
				}
				return nil
			}
		}
		return check, nil

	case OpSigprocmask:
		how, _ := s.how()
		var set hostarch.Addr
		if s.Set != nil {
			set = th.scratch + scratchSet
			mask := s.Set.Set()
			if err := th.write(set, &mask); err != nil {
				return syscallCheck{}, err
			}
		}
		if s.Ptr != nil {
			set = hostarch.Addr(*s.Ptr)
		}
		oldset := th.addr(s.OldPtr, scratchOldSet)
		check := syscallCheck{err: th.invoke(sys.SysRtSigprocmask, uintptr(how), uintptr(set), uintptr(oldset), linux.SignalSetSize)}
		if s.Old != nil {
			check.post = th.expectSet(oldset, s.Old.Set(), "old mask")
		}
		return check, nil

	case OpSigpending:
		ptr := th.addr(s.Ptr, scratchOldSet)
		check := syscallCheck{err: th.invoke(sys.SysRtSigpending, uintptr(ptr), linux.SignalSetSize)}
		if s.Set != nil {
			check.post = th.expectSet(ptr, s.Set.Set(), "pending")
		}
		return check, nil

	case OpSigsuspend:
		ptr := th.scratch + scratchSet
		mask := s.Mask.Set()
		if err := th.write(ptr, &mask); err != nil {
			return syscallCheck{}, err
		}
		if s.Ptr != nil {
			ptr = hostarch.Addr(*s.Ptr)
		}
		return syscallCheck{err: th.invoke(sys.SysRtSigsuspend, uintptr(ptr), linux.SignalSetSize)}, nil

	case OpSigreturn:
		return syscallCheck{err: th.invoke(sys.SysRtSigreturn)}, nil

	case OpKill:
		pid := int32(th.t.Process().ID())
		if s.PID != nil {
			pid = *s.PID
		}
		return syscallCheck{err: th.invoke(sys.SysKill, uintptr(pid), uintptr(s.Signal))}, nil

	case OpTkill:
		var tid int32
		if s.TID != nil {
			tid = *s.TID
		} else {
			tid = int32(th.tasks[*s.Target].ThreadID())
		}
		return syscallCheck{err: th.invoke(sys.SysTkill, uintptr(tid), uintptr(s.Signal))}, nil
	}
	panic(fmt.Sprintf("unknown op %q", s.Op))
}

func (th *thread) expectSet(addr hostarch.Addr, want linux.SignalSet, what string) func() error {
	return func() error {
		var got linux.SignalSet
		if err := th.read(addr, &got); err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("%s = %v, want %v", what, got, want)
		}
		return nil
	}
}

func (th *thread) trapReturn(s *Step, res *Result) error {
	out := th.t.TrapReturn()
	res.Outcome = out
	if s.Outcome != "" && out.Kind.String() != s.Outcome {
		return fmt.Errorf("outcome = %v, want %s", out.Kind, s.Outcome)
	}
	if s.Signal != 0 && out.Signal != linux.Signal(s.Signal) {
		return fmt.Errorf("delivered %v, want %v", out.Signal, linux.Signal(s.Signal))
	}
	if s.Status != nil {
		status, ok := th.t.Process().ExitStatus()
		if !ok || status != *s.Status {
			return fmt.Errorf("exit status = %d (exited %t), want %d", status, ok, *s.Status)
		}
	}
	return nil
}

// how returns the rt_sigprocmask how argument named by s.
func (s *Step) how() (int, error) {
	switch strings.ToLower(s.How) {
	case "block":
		return linux.SIG_BLOCK, nil
	case "unblock":
		return linux.SIG_UNBLOCK, nil
	case "setmask", "":
		return linux.SIG_SETMASK, nil
	}
	n, err := strconv.Atoi(s.How)
	if err != nil {
		return 0, fmt.Errorf("invalid how %q, must be block, unblock, setmask or a number", s.How)
	}
	return n, nil
}

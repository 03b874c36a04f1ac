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

package linux

import (
	"gvisor.dev/sigkern/pkg/abi/linux"
	"gvisor.dev/sigkern/pkg/errors/linuxerr"
	"gvisor.dev/sigkern/pkg/hostarch"
	"gvisor.dev/sigkern/pkg/sentry/arch"
	"gvisor.dev/sigkern/pkg/sentry/kernel"
)

// Kill implements linux syscall kill(2).
//
// Delivery is best effort: a pid that names no live process is not an error.
func Kill(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	pid := kernel.ThreadID(args[0].Int())
	sig := linux.Signal(args[1].Int())

	switch {
	case pid > 0 && sig > 0:
		// "If pid is positive, then signal sig is sent to the process with the
		// ID specified by pid." - kill(2)
		if !sig.IsValid() {
			return 0, nil, linuxerr.EINVAL
		}
		target := t.Kernel().ProcessWithID(pid)
		if target == nil {
			t.Debugf("kill(%d, %v): no such process", pid, sig)
			return 0, nil, nil
		}
		if err := target.SendSignal(sig); err != nil {
			t.Debugf("kill(%d, %v): %v", pid, sig, err)
		}
		return 0, nil, nil
	case pid == 0:
		// Process groups are not supported.
		return 0, nil, linuxerr.ESRCH
	default:
		return 0, nil, linuxerr.EINVAL
	}
}

// Tkill implements linux syscall tkill(2).
//
// As with Kill, a tid that names no live thread is not an error.
func Tkill(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	tid := kernel.ThreadID(args[0].Int())
	sig := linux.Signal(args[1].Int())

	// N.B. Inconsistent with man page, linux actually rejects calls with
	// tid <=0 by EINVAL. This isn't the same for all signal calls.
	if tid <= 0 || sig <= 0 {
		return 0, nil, linuxerr.EINVAL
	}
	if !sig.IsValid() {
		return 0, nil, linuxerr.EINVAL
	}

	target := t.Kernel().TaskWithID(tid)
	if target == nil {
		t.Debugf("tkill(%d, %v): no such thread", tid, sig)
		return 0, nil, nil
	}
	if err := target.SendSignal(sig); err != nil {
		t.Debugf("tkill(%d, %v): %v", tid, sig, err)
	}
	return 0, nil, nil
}

// RtSigaction implements linux syscall rt_sigaction(2).
//
// The new action is read before the old one is written, and both copies
// happen under the same lock as the table update, so a concurrent
// rt_sigaction on the same signal is never interleaved observably.
func RtSigaction(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	sig := linux.Signal(args[0].Int())
	newactarg := args[1].Pointer()
	oldactarg := args[2].Pointer()

	if sig == linux.SIGKILL || sig == linux.SIGSTOP {
		return 0, nil, linuxerr.EPERM
	}
	if !sig.IsValid() {
		return 0, nil, linuxerr.EINVAL
	}

	newactptr := sigActionPointer(t, newactarg)
	oldactptr := sigActionPointer(t, oldactarg)
	err := t.Process().WithSignalModule(t.ThreadID(), func(m *kernel.SignalModule) error {
		return m.Handlers().Update(sig, func(oldact linux.SigAction) (linux.SigAction, error) {
			newact := oldact
			if !newactptr.IsNull() {
				if err := newactptr.CopyIn(t, &newact); err != nil {
					return oldact, err
				}
			}
			if !oldactptr.IsNull() {
				if err := oldactptr.CopyOut(t, &oldact); err != nil {
					return oldact, err
				}
			}
			return newact, nil
		})
	})
	return 0, nil, err
}

// RtSigreturn implements linux syscall rt_sigreturn(2).
func RtSigreturn(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	ctrl, err := t.SignalReturn()
	return 0, ctrl, err
}

// RtSigprocmask implements linux syscall rt_sigprocmask(2).
//
// Both pointers are checked eagerly before the mask is touched. An unusable
// oldset fails with EFAULT and an unusable set with EPERM.
func RtSigprocmask(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	how := args[0].Int()
	setaddr := args[1].Pointer()
	oldaddr := args[2].Pointer()
	sigsetsize := args[3].SizeT()

	if sigsetsize != linux.SignalSetSize {
		return 0, nil, linuxerr.EINVAL
	}
	setptr := sigSetPointer(t, setaddr)
	oldptr := sigSetPointer(t, oldaddr)
	if !oldptr.IsNull() {
		if err := oldptr.Materialize(t, hostarch.Write); err != nil {
			return 0, nil, linuxerr.EFAULT
		}
	}
	if !setptr.IsNull() {
		if err := setptr.Materialize(t, hostarch.Read); err != nil {
			return 0, nil, linuxerr.EPERM
		}
	}

	err := t.Process().WithSignalModule(t.ThreadID(), func(m *kernel.SignalModule) error {
		oldmask := m.Mask()
		newmask := oldmask
		if !setptr.IsNull() {
			var mask linux.SignalSet
			if err := setptr.CopyIn(t, &mask); err != nil {
				return err
			}
			switch how {
			case linux.SIG_BLOCK:
				if mask&kernel.UnblockableSignals != 0 {
					return linuxerr.EINVAL
				}
				newmask = oldmask | mask
			case linux.SIG_UNBLOCK:
				newmask = oldmask &^ mask
			case linux.SIG_SETMASK:
				if mask&kernel.UnblockableSignals != 0 {
					return linuxerr.EINVAL
				}
				newmask = mask
			default:
				return linuxerr.EINVAL
			}
		}

		// A rejected call must not touch oldset.
		if !oldptr.IsNull() {
			if err := oldptr.CopyOut(t, &oldmask); err != nil {
				return err
			}
		}
		m.SetMask(newmask)
		return nil
	})
	return 0, nil, err
}

// RtSigpending implements linux syscall rt_sigpending(2).
func RtSigpending(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	addr := args[0].Pointer()
	sigsetsize := args[1].SizeT()

	if sigsetsize != linux.SignalSetSize {
		return 0, nil, linuxerr.EINVAL
	}
	return 0, nil, copyOutSigSet(t, addr, t.PendingSignals())
}

// RtSigsuspend implements linux syscall rt_sigsuspend(2).
//
// It never returns successfully. A call made from inside a signal handler, or
// one whose mask names SIGKILL or SIGSTOP, fails with EINTR at once, leaving
// the mask alone.
func RtSigsuspend(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	sigset := args[0].Pointer()

	if t.InSignalHandler() {
		return 0, nil, linuxerr.EINTR
	}

	// Copy in the signal mask.
	mask, err := copyInSigSet(t, sigset)
	if err != nil {
		return 0, nil, err
	}

	// Perform the wait.
	return 0, nil, t.Sigsuspend(mask)
}

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

package kernel

import (
	"errors"
	"fmt"

	"gvisor.dev/sigkern/pkg/abi/linux/errno"
	"gvisor.dev/sigkern/pkg/errors/linuxerr"
	"gvisor.dev/sigkern/pkg/sentry/arch"
)

// ecallSize is the size of the instruction that traps into the kernel. The
// saved PC points at the ecall; the kernel advances it before dispatch so
// that the task resumes after the ecall.
const ecallSize = 4

// ErrProcessExited is returned by Task.Syscall once the task's process has
// exited.
var ErrProcessExited = errors.New("process has exited")

// Syscall executes the syscall described by t's trap frame: the number in
// a7 and arguments in a0..a5. The result, or the negated errno on failure, is
// written to a0 unless the syscall restored a saved frame.
//
// Syscall returns the value the syscall produced and its error, for callers
// that drive tasks directly.
func (t *Task) Syscall() (uintptr, error) {
	if t.p.HasExited() {
		return 0, ErrProcessExited
	}

	sysno := t.frame.SyscallNo()
	args := t.frame.SyscallArgs()
	t.frame.PC += ecallSize

	rval, ctrl, err := t.executeSyscall(sysno, args)
	if ctrl != nil && ctrl.ignoreReturn {
		return rval, err
	}
	if err != nil {
		t.frame.SetReturn(uintptr(-int64(extractErrno(err))))
	} else {
		t.frame.SetReturn(rval)
	}
	return rval, err
}

// InvokeSyscall loads sysno and args into t's trap frame and executes it, as
// if t had executed ecall.
func (t *Task) InvokeSyscall(sysno uintptr, args arch.SyscallArguments) (uintptr, error) {
	t.frame.SetSyscall(sysno, args)
	return t.Syscall()
}

func (t *Task) executeSyscall(sysno uintptr, args arch.SyscallArguments) (rval uintptr, ctrl *SyscallControl, err error) {
	s := t.k.opts.SyscallTable
	var straceContext any
	if t.k.opts.Strace && s.Stracer != nil {
		straceContext = s.Stracer.SyscallEnter(t, sysno, args)
	}

	if fn := s.Lookup(sysno); fn != nil {
		rval, ctrl, err = fn(t, args)
	} else {
		rval, err = s.Missing(t, sysno, args)
	}

	if t.k.opts.Strace {
		if s.Stracer != nil {
			s.Stracer.SyscallExit(straceContext, t, sysno, rval, err)
		} else {
			t.strace(s, sysno, args, rval, err)
		}
	}
	return rval, ctrl, err
}

// strace logs a completed syscall with raw arguments.
func (t *Task) strace(s *SyscallTable, sysno uintptr, args arch.SyscallArguments, rval uintptr, err error) {
	name := s.LookupName(sysno)
	if err != nil {
		t.Debugf("%s(%#x, %#x, %#x, %#x) = %d (%v)", name, args[0].Value, args[1].Value, args[2].Value, args[3].Value, int64(rval), err)
		return
	}
	t.Debugf("%s(%#x, %#x, %#x, %#x) = %d", name, args[0].Value, args[1].Value, args[2].Value, args[3].Value, int64(rval))
}

// extractErrno extracts an errno from an error, best effort.
func extractErrno(err error) errno.Errno {
	if e, ok := linuxerr.ErrnoOf(err); ok {
		return e
	}
	// Do not leak the error to the application.
	panic(fmt.Sprintf("Unknown syscall error: %v", err))
}

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
	"context"
	"testing"

	"gvisor.dev/sigkern/pkg/abi"
	"gvisor.dev/sigkern/pkg/errors/linuxerr"
	"gvisor.dev/sigkern/pkg/sentry/arch"
)

const (
	testSysGettid    = 1
	testSysFail      = 2
	testSysSigreturn = 3
	testSysUnknown   = 99
)

func testSyscallTable() *SyscallTable {
	s := &SyscallTable{
		OS:   abi.Linux,
		Arch: arch.RISCV64,
		Table: map[uintptr]Syscall{
			testSysGettid: {
				Name: "gettid",
				Fn: func(t *Task, _ arch.SyscallArguments) (uintptr, *SyscallControl, error) {
					return uintptr(t.ThreadID()), nil, nil
				},
			},
			testSysFail: {
				Name: "fail",
				Fn: func(*Task, arch.SyscallArguments) (uintptr, *SyscallControl, error) {
					return 0, nil, linuxerr.EPERM
				},
			},
			testSysSigreturn: {
				Name: "rt_sigreturn",
				Fn: func(t *Task, _ arch.SyscallArguments) (uintptr, *SyscallControl, error) {
					ctrl, err := t.SignalReturn()
					return 0, ctrl, err
				},
			},
		},
	}
	s.Init()
	return s
}

func newTestKernel(t *testing.T, opts Options) *Kernel {
	t.Helper()
	if opts.SyscallTable == nil {
		opts.SyscallTable = testSyscallTable()
	}
	k, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return k
}

func TestNewWithoutTable(t *testing.T) {
	allSyscallTables = nil
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Errorf("New() without a registered table succeeded, want error")
	}
}

func TestSyscallReturnConvention(t *testing.T) {
	k := newTestKernel(t, Options{})
	task := k.NewProcess().Leader()
	task.Frame().PC = 0x1000

	rval, err := task.InvokeSyscall(testSysGettid, arch.SyscallArguments{})
	if err != nil || rval != uintptr(task.ThreadID()) {
		t.Errorf("gettid got (%d, %v), want (%d, nil)", rval, err, task.ThreadID())
	}
	if got := task.Frame().Regs[arch.RegA0]; got != uint64(task.ThreadID()) {
		t.Errorf("a0 after gettid = %d, want %d", got, task.ThreadID())
	}
	if got, want := task.Frame().PC, uint64(0x1000+ecallSize); got != want {
		t.Errorf("pc after syscall = %#x, want %#x", got, want)
	}

	for _, tc := range []struct {
		sysno uintptr
		want  int64
	}{
		{testSysFail, -1},
		{testSysUnknown, -38},
	} {
		if _, err := task.InvokeSyscall(tc.sysno, arch.SyscallArguments{}); err == nil {
			t.Errorf("syscall %d succeeded, want error", tc.sysno)
		}
		if got := int64(task.Frame().Regs[arch.RegA0]); got != tc.want {
			t.Errorf("a0 after syscall %d = %d, want %d", tc.sysno, got, tc.want)
		}
	}
}

func TestProcessThreads(t *testing.T) {
	k := newTestKernel(t, Options{})
	p := k.NewProcess()
	leader := p.Leader()
	if leader.ThreadID() != p.ID() || !leader.IsLeader() {
		t.Fatalf("leader tid %d, pid %d", leader.ThreadID(), p.ID())
	}

	t2 := p.NewThread()
	t3 := p.NewThread()
	if t2.ThreadID() <= leader.ThreadID() || t3.ThreadID() <= t2.ThreadID() {
		t.Errorf("thread IDs not increasing: %d, %d, %d", leader.ThreadID(), t2.ThreadID(), t3.ThreadID())
	}
	if k.TaskWithID(t2.ThreadID()) != t2 {
		t.Errorf("TaskWithID(%d) did not return the new thread", t2.ThreadID())
	}
	if k.ProcessWithID(p.ID()) != p {
		t.Errorf("ProcessWithID(%d) did not return the process", p.ID())
	}
	if k.ProcessWithID(t2.ThreadID()) != nil {
		t.Errorf("ProcessWithID(%d) found a non-leader thread", t2.ThreadID())
	}

	if err := p.ReapThread(t2.ThreadID()); err != nil {
		t.Fatalf("ReapThread(%d) = %v", t2.ThreadID(), err)
	}
	if k.TaskWithID(t2.ThreadID()) != nil {
		t.Errorf("TaskWithID(%d) found a reaped thread", t2.ThreadID())
	}
	if err := p.ReapThread(t2.ThreadID()); !linuxerr.Equals(linuxerr.ESRCH, err) {
		t.Errorf("second ReapThread got %v, want ESRCH", err)
	}
	if err := t2.SendSignal(10); !linuxerr.Equals(linuxerr.ESRCH, err) {
		t.Errorf("SendSignal to reaped thread got %v, want ESRCH", err)
	}

	// Signals to the process go to the main thread; once it is gone they
	// cannot be delivered.
	if err := p.ReapThread(leader.ThreadID()); err != nil {
		t.Fatalf("ReapThread(leader) = %v", err)
	}
	if err := p.SendSignal(10); !linuxerr.Equals(linuxerr.ESRCH, err) {
		t.Errorf("SendSignal after leader reaped got %v, want ESRCH", err)
	}
	if p.HasExited() {
		t.Errorf("process exited with a live thread")
	}

	if err := p.ReapThread(t3.ThreadID()); err != nil {
		t.Fatalf("ReapThread(%d) = %v", t3.ThreadID(), err)
	}
	if status, ok := p.ExitStatus(); !ok || status != 0 {
		t.Errorf("ExitStatus() = (%d, %t), want (0, true)", status, ok)
	}
	if k.ProcessWithID(p.ID()) != nil {
		t.Errorf("ProcessWithID(%d) found an exited process", p.ID())
	}
	if got := p.ThreadIDs(); len(got) != 0 {
		t.Errorf("ThreadIDs() = %v, want none", got)
	}
}

func TestWithSignalModuleMissingThreadPanics(t *testing.T) {
	k := newTestKernel(t, Options{})
	p := k.NewProcess()
	defer func() {
		if recover() == nil {
			t.Errorf("WithSignalModule on an unknown thread did not panic")
		}
	}()
	p.WithSignalModule(12345, func(*SignalModule) error { return nil })
}

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

// Package kernel provides an emulation of the Linux kernel's process and
// signal model.
//
// Lock order (outermost locks must be taken first):
//
//	Kernel.mu
//
//	Process.signalMu
//	  SignalHandlers.mu
//	    mm.MemoryManager.mu
//
// Kernel.mu is never held while Process.signalMu is acquired.
package kernel

import (
	"context"
	"fmt"
	"sort"

	"gvisor.dev/sigkern/pkg/abi"
	"gvisor.dev/sigkern/pkg/hostarch"
	"gvisor.dev/sigkern/pkg/log"
	"gvisor.dev/sigkern/pkg/sentry/arch"
	"gvisor.dev/sigkern/pkg/sentry/mm"
	"gvisor.dev/sigkern/pkg/sync"
)

// ThreadID is a generic thread identifier. Process IDs share the namespace:
// a process's ID is the ThreadID of its main thread.
type ThreadID int32

// Options configures a Kernel.
type Options struct {
	// SyscallTable is the table used to dispatch syscalls. If nil, the table
	// registered for linux/riscv64 is used.
	SyscallTable *SyscallTable

	// Scheduler is used by blocking syscalls to yield. If nil, a GoScheduler
	// is used.
	Scheduler Scheduler

	// SigreturnTrampoline is the user address that signal handlers return to
	// when their action has no SA_RESTORER. The code there is expected to
	// invoke rt_sigreturn.
	SigreturnTrampoline hostarch.Addr

	// Layout is the address space layout of new processes. If zero,
	// mm.DefaultLayout is used.
	Layout mm.Layout

	// Strace logs every syscall at debug level.
	Strace bool
}

// Kernel represents an emulated Linux kernel. It must be initialized by
// calling New.
type Kernel struct {
	opts Options

	// ctx is the parent context of every task.
	ctx context.Context

	mu sync.Mutex

	// nextID is the next ThreadID to allocate. IDs are never reused.
	//
	// +checklocks:mu
	nextID ThreadID

	// tasks maps live ThreadIDs to tasks.
	//
	// +checklocks:mu
	tasks map[ThreadID]*Task

	// processes maps live process IDs to processes.
	//
	// +checklocks:mu
	processes map[ThreadID]*Process
}

// New returns a Kernel configured by opts.
func New(ctx context.Context, opts Options) (*Kernel, error) {
	if opts.SyscallTable == nil {
		st, ok := LookupSyscallTable(abi.Linux, arch.RISCV64)
		if !ok {
			return nil, fmt.Errorf("no syscall table registered for %v/%v", abi.Linux, arch.RISCV64)
		}
		opts.SyscallTable = st
	}
	if opts.Scheduler == nil {
		opts.Scheduler = GoScheduler{}
	}
	if opts.Layout == (mm.Layout{}) {
		opts.Layout = mm.DefaultLayout
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Kernel{
		opts:      opts,
		ctx:       ctx,
		nextID:    1,
		tasks:     make(map[ThreadID]*Task),
		processes: make(map[ThreadID]*Process),
	}, nil
}

// SyscallTable returns the kernel's syscall table.
func (k *Kernel) SyscallTable() *SyscallTable {
	return k.opts.SyscallTable
}

// SigreturnTrampoline returns the configured sigreturn trampoline address.
func (k *Kernel) SigreturnTrampoline() hostarch.Addr {
	return k.opts.SigreturnTrampoline
}

// allocateID returns a new ThreadID.
func (k *Kernel) allocateID() ThreadID {
	k.mu.Lock()
	defer k.mu.Unlock()
	id := k.nextID
	k.nextID++
	return id
}

// NewProcess creates a process with a single thread and an empty address
// space. The new thread's ID is the process ID.
func (k *Kernel) NewProcess() *Process {
	pid := k.allocateID()
	p := &Process{
		k:             k,
		pid:           pid,
		mm:            mm.NewMemoryManager(k.opts.Layout),
		handlers:      NewSignalHandlers(),
		signalModules: make(map[ThreadID]*SignalModule),
		threads:       make(map[ThreadID]*Task),
		exited:        make(chan struct{}),
	}
	k.mu.Lock()
	k.processes[pid] = p
	k.mu.Unlock()

	p.leader = p.addThread(pid)
	log.Debugf("Created process %d", pid)
	return p
}

// TaskWithID returns the task with the given ID, or nil if none exists.
func (k *Kernel) TaskWithID(tid ThreadID) *Task {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tasks[tid]
}

// ProcessWithID returns the process with the given ID, or nil if none exists.
func (k *Kernel) ProcessWithID(pid ThreadID) *Process {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.processes[pid]
}

// Processes returns all live processes in ascending ID order.
func (k *Kernel) Processes() []*Process {
	k.mu.Lock()
	ps := make([]*Process, 0, len(k.processes))
	for _, p := range k.processes {
		ps = append(ps, p)
	}
	k.mu.Unlock()
	sort.Slice(ps, func(i, j int) bool { return ps[i].pid < ps[j].pid })
	return ps
}

func (k *Kernel) registerTask(t *Task) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.tasks[t.tid] = t
}

func (k *Kernel) unregisterTask(tid ThreadID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.tasks, tid)
}

func (k *Kernel) unregisterProcess(pid ThreadID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.processes, pid)
}

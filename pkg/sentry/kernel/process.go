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
	"fmt"
	"sort"

	"gvisor.dev/sigkern/pkg/abi/linux"
	"gvisor.dev/sigkern/pkg/errors/linuxerr"
	"gvisor.dev/sigkern/pkg/log"
	"gvisor.dev/sigkern/pkg/sentry/mm"
	"gvisor.dev/sigkern/pkg/sync"
)

// Process is a group of threads sharing an address space and a signal
// handler table.
type Process struct {
	k   *Kernel
	pid ThreadID
	mm  *mm.MemoryManager

	// handlers is shared by every SignalModule in signalModules.
	handlers *SignalHandlers

	// leader is the process's main thread. It is set once at creation and
	// remains set after the leader is reaped.
	leader *Task

	// signalMu is the registry lock. It protects the per-thread signal state
	// and the thread list, and serializes signal syscalls within the
	// process.
	signalMu sync.Mutex

	// signalModules maps each live thread to its signal state.
	//
	// +checklocks:signalMu
	signalModules map[ThreadID]*SignalModule

	// +checklocks:signalMu
	threads map[ThreadID]*Task

	exitMu sync.Mutex

	// +checklocks:exitMu
	exitStatus int

	// +checklocks:exitMu
	hasExited bool

	// exited is closed when the process exits.
	exited chan struct{}
}

// ID returns the process ID.
func (p *Process) ID() ThreadID {
	return p.pid
}

// Kernel returns the kernel the process runs on.
func (p *Process) Kernel() *Kernel {
	return p.k
}

// MemoryManager returns the process's address space.
func (p *Process) MemoryManager() *mm.MemoryManager {
	return p.mm
}

// Handlers returns the process's signal handler table.
func (p *Process) Handlers() *SignalHandlers {
	return p.handlers
}

// Leader returns the process's main thread.
func (p *Process) Leader() *Task {
	return p.leader
}

// addThread creates a thread with ID tid and registers its signal state.
func (p *Process) addThread(tid ThreadID) *Task {
	t := &Task{
		Context: p.k.ctx,
		k:       p.k,
		p:       p,
		tid:     tid,
	}
	t.logPrefix = fmt.Sprintf("[% 4d:% 4d] ", p.pid, tid)

	p.signalMu.Lock()
	p.threads[tid] = t
	p.signalModules[tid] = newSignalModule(p.handlers)
	p.signalMu.Unlock()

	p.k.registerTask(t)
	return t
}

// NewThread creates a new thread in the process. The new thread starts with
// no pending signals and an empty mask.
func (p *Process) NewThread() *Task {
	t := p.addThread(p.k.allocateID())
	log.Debugf("Created thread %d in process %d", t.tid, p.pid)
	return t
}

// ReapThread removes a thread and its signal state. Signals pending on it
// are discarded. Reaping the last thread ends the process with status 0 if
// it has not already exited.
func (p *Process) ReapThread(tid ThreadID) error {
	p.signalMu.Lock()
	if _, ok := p.signalModules[tid]; !ok {
		p.signalMu.Unlock()
		return linuxerr.ESRCH
	}
	delete(p.signalModules, tid)
	delete(p.threads, tid)
	remaining := len(p.threads)
	p.signalMu.Unlock()

	p.k.unregisterTask(tid)
	if remaining == 0 {
		p.Exit(0)
		p.k.unregisterProcess(p.pid)
	}
	return nil
}

// ThreadIDs returns the IDs of live threads in ascending order.
func (p *Process) ThreadIDs() []ThreadID {
	p.signalMu.Lock()
	tids := make([]ThreadID, 0, len(p.threads))
	for tid := range p.threads {
		tids = append(tids, tid)
	}
	p.signalMu.Unlock()
	sort.Slice(tids, func(i, j int) bool { return tids[i] < tids[j] })
	return tids
}

// WithSignalModule calls f with the signal state of thread tid while holding
// the registry lock. f must not block or yield.
//
// A missing thread is a kernel bug: callers only pass the ID of a running
// task or one they have just looked up under the same lock.
func (p *Process) WithSignalModule(tid ThreadID, f func(m *SignalModule) error) error {
	p.signalMu.Lock()
	defer p.signalMu.Unlock()
	m, ok := p.signalModules[tid]
	if !ok {
		panic(fmt.Sprintf("thread %d of process %d has no signal state", tid, p.pid))
	}
	return f(m)
}

// sendSignalToThread marks sig pending on thread tid. It returns ESRCH if
// the thread no longer exists.
//
// Preconditions: sig.IsValid().
func (p *Process) sendSignalToThread(tid ThreadID, sig linux.Signal) error {
	p.signalMu.Lock()
	defer p.signalMu.Unlock()
	m, ok := p.signalModules[tid]
	if !ok {
		return linuxerr.ESRCH
	}
	m.Raise(sig)
	return nil
}

// SendSignal routes sig to the process's main thread.
//
// Preconditions: sig.IsValid().
func (p *Process) SendSignal(sig linux.Signal) error {
	return p.sendSignalToThread(p.pid, sig)
}

// HasPendingSignals returns true if any thread of the process has a signal
// pending, blocked or not.
func (p *Process) HasPendingSignals() bool {
	p.signalMu.Lock()
	defer p.signalMu.Unlock()
	for _, m := range p.signalModules {
		if m.set.Pending != 0 {
			return true
		}
	}
	return false
}

// Exit ends the process with the given status. Only the first call has an
// effect.
func (p *Process) Exit(status int) {
	p.exitMu.Lock()
	defer p.exitMu.Unlock()
	if p.hasExited {
		return
	}
	p.exitStatus = status
	p.hasExited = true
	close(p.exited)
	log.Infof("Process %d exited with status %d", p.pid, status)
}

// ExitStatus returns the process's exit status. ok is false if the process
// has not exited.
func (p *Process) ExitStatus() (status int, ok bool) {
	p.exitMu.Lock()
	defer p.exitMu.Unlock()
	return p.exitStatus, p.hasExited
}

// Exited returns a channel that is closed when the process exits.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// HasExited returns true if the process has exited.
func (p *Process) HasExited() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

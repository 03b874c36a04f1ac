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

	"gvisor.dev/sigkern/pkg/abi/linux"
	"gvisor.dev/sigkern/pkg/log"
	"gvisor.dev/sigkern/pkg/sentry/arch"
	"gvisor.dev/sigkern/pkg/sentry/mm"
)

// Task represents a thread of execution in the untrusted app.
//
// Each Task is driven by a single goroutine at a time, which owns its trap
// frame. Signal state lives in the Process registry and is accessed under
// Process.signalMu.
//
// Task implements context.Context so it can be passed to user memory
// accessors directly.
type Task struct {
	context.Context

	k   *Kernel
	p   *Process
	tid ThreadID

	// frame is the user register state, valid while the task is in the
	// kernel.
	frame arch.TrapFrame

	// logPrefix is prepended to every log line emitted by the task.
	logPrefix string
}

// Kernel returns the Kernel containing t.
func (t *Task) Kernel() *Kernel {
	return t.k
}

// Process returns the process containing t.
func (t *Task) Process() *Process {
	return t.p
}

// ThreadID returns t's thread ID.
func (t *Task) ThreadID() ThreadID {
	return t.tid
}

// IsLeader returns true if t is the main thread of its process.
func (t *Task) IsLeader() bool {
	return t.tid == t.p.pid
}

// MemoryManager returns t's address space.
func (t *Task) MemoryManager() *mm.MemoryManager {
	return t.p.mm
}

// Frame returns t's trap frame. It may only be used by the goroutine
// running t.
func (t *Task) Frame() *arch.TrapFrame {
	return &t.frame
}

// Yield gives up the CPU using the kernel's scheduler.
func (t *Task) Yield() {
	t.k.opts.Scheduler.Yield(t)
}

// SendSignal marks sig pending on t. It returns ESRCH if t has been reaped.
//
// Preconditions: sig.IsValid().
func (t *Task) SendSignal(sig linux.Signal) error {
	return t.p.sendSignalToThread(t.tid, sig)
}

// withSignalModule calls f with t's signal state under the registry lock.
func (t *Task) withSignalModule(f func(m *SignalModule) error) error {
	return t.p.WithSignalModule(t.tid, f)
}

// SignalMask returns t's blocked set.
func (t *Task) SignalMask() linux.SignalSet {
	var mask linux.SignalSet
	t.withSignalModule(func(m *SignalModule) error {
		mask = m.Mask()
		return nil
	})
	return mask
}

// PendingSignals returns t's pending set.
func (t *Task) PendingSignals() linux.SignalSet {
	var pending linux.SignalSet
	t.withSignalModule(func(m *SignalModule) error {
		pending = m.Pending()
		return nil
	})
	return pending
}

// InSignalHandler returns true if a handler is running on t.
func (t *Task) InSignalHandler() bool {
	var in bool
	t.withSignalModule(func(m *SignalModule) error {
		in = m.InHandler()
		return nil
	})
	return in
}

// Debugf logs a debug message prefixed with t's IDs.
func (t *Task) Debugf(fmt string, v ...any) {
	if log.IsLogging(log.Debug) {
		log.Log().DebugfAtDepth(1, t.logPrefix+fmt, v...)
	}
}

// Infof logs an informational message prefixed with t's IDs.
func (t *Task) Infof(fmt string, v ...any) {
	if log.IsLogging(log.Info) {
		log.Log().InfofAtDepth(1, t.logPrefix+fmt, v...)
	}
}

// Warningf logs a warning prefixed with t's IDs.
func (t *Task) Warningf(fmt string, v ...any) {
	if log.IsLogging(log.Warning) {
		log.Log().WarningfAtDepth(1, t.logPrefix+fmt, v...)
	}
}

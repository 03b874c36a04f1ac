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

	"gvisor.dev/sigkern/pkg/abi/linux"
	"gvisor.dev/sigkern/pkg/sentry/arch"
)

// SignalModule is the signal state of a single thread.
//
// A SignalModule is owned by its Process's registry: every method requires
// Process.signalMu to be held, which WithSignalModule guarantees.
type SignalModule struct {
	// handlers is shared with every other thread of the process.
	handlers *SignalHandlers

	set SignalSet

	// savedFrame is the trap frame interrupted by the handler currently
	// running on this thread, or nil if no handler is running.
	savedFrame *arch.TrapFrame

	// savedMask is the mask restored by sigreturn. It is only meaningful
	// while savedFrame is non-nil.
	savedMask linux.SignalSet

	// suspendMask is the mask that was in effect before sigsuspend replaced
	// it, or nil outside of sigsuspend. Handler delivery saves it in place
	// of the temporary mask so that sigreturn undoes the sigsuspend.
	suspendMask *linux.SignalSet
}

func newSignalModule(handlers *SignalHandlers) *SignalModule {
	return &SignalModule{handlers: handlers}
}

// Handlers returns the process's shared handler table.
func (m *SignalModule) Handlers() *SignalHandlers {
	return m.handlers
}

// Signals returns a copy of the pending and blocked sets.
func (m *SignalModule) Signals() SignalSet {
	return m.set
}

// Mask returns the blocked set.
func (m *SignalModule) Mask() linux.SignalSet {
	return m.set.Mask
}

// Pending returns the pending set.
func (m *SignalModule) Pending() linux.SignalSet {
	return m.set.Pending
}

// SetMask replaces the blocked set.
//
// Preconditions: mask does not intersect UnblockableSignals.
func (m *SignalModule) SetMask(mask linux.SignalSet) {
	if mask&UnblockableSignals != 0 {
		panic(fmt.Sprintf("SetMask(%v) blocks unblockable signals", mask))
	}
	m.set.SetMask(mask)
}

// Raise marks sig pending.
func (m *SignalModule) Raise(sig linux.Signal) {
	m.set.Raise(sig)
}

// FindSignal returns the lowest-numbered deliverable signal.
func (m *SignalModule) FindSignal() (linux.Signal, bool) {
	return m.set.FindSignal()
}

// InHandler returns true if a signal handler is running on this thread.
func (m *SignalModule) InHandler() bool {
	return m.savedFrame != nil
}

// SavedFrame returns a copy of the frame that sigreturn will restore.
func (m *SignalModule) SavedFrame() (arch.TrapFrame, bool) {
	if m.savedFrame == nil {
		return arch.TrapFrame{}, false
	}
	return *m.savedFrame, true
}

// beginSuspend installs the temporary sigsuspend mask and remembers the mask
// it replaces.
//
// Preconditions: mask does not contain UnblockableSignals.
func (m *SignalModule) beginSuspend(mask linux.SignalSet) {
	old := m.set.Mask
	m.suspendMask = &old
	m.set.SetMask(mask)
}

// enterHandler saves frame and the mask to be restored by sigreturn.
func (m *SignalModule) enterHandler(frame arch.TrapFrame) {
	m.savedFrame = &frame
	if m.suspendMask != nil {
		m.savedMask = *m.suspendMask
		m.suspendMask = nil
	} else {
		m.savedMask = m.set.Mask
	}
}

// leaveHandler clears the saved context and returns it.
func (m *SignalModule) leaveHandler() (arch.TrapFrame, linux.SignalSet, bool) {
	if m.savedFrame == nil {
		return arch.TrapFrame{}, 0, false
	}
	frame, mask := *m.savedFrame, m.savedMask
	m.savedFrame = nil
	m.savedMask = 0
	m.set.SetMask(mask)
	return frame, mask, true
}

// String implements fmt.Stringer.String.
func (m *SignalModule) String() string {
	return fmt.Sprintf("%v inHandler=%t", m.set, m.InHandler())
}

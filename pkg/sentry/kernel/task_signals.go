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
	"time"

	"gvisor.dev/sigkern/pkg/abi/linux"
	"gvisor.dev/sigkern/pkg/errors/linuxerr"
	"gvisor.dev/sigkern/pkg/hostarch"
	"gvisor.dev/sigkern/pkg/log"
	"gvisor.dev/sigkern/pkg/sentry/arch"
)

// SignalOutcomeKind describes what happened at a delivery point.
type SignalOutcomeKind int

const (
	// SignalNone means no signal was delivered.
	SignalNone SignalOutcomeKind = iota

	// SignalHandled means a user handler was entered.
	SignalHandled

	// SignalTerminate means the process was terminated.
	SignalTerminate
)

// String implements fmt.Stringer.String.
func (k SignalOutcomeKind) String() string {
	switch k {
	case SignalNone:
		return "none"
	case SignalHandled:
		return "handled"
	case SignalTerminate:
		return "terminate"
	default:
		return fmt.Sprintf("SignalOutcomeKind(%d)", int(k))
	}
}

// SignalOutcome is the result of DeliverSignal.
type SignalOutcome struct {
	Kind SignalOutcomeKind

	// Signal is the delivered signal. It is zero if Kind is SignalNone.
	Signal linux.Signal
}

// sigreturnWarning throttles reports of rt_sigreturn misuse.
var sigreturnWarning = log.BasicRateLimitedLogger(time.Second)

// DeliverSignal runs the delivery trampoline. It is called each time t
// returns to user mode.
//
// If a handler is already running on t, delivery is deferred until it
// returns; handlers are never nested. SIGKILL is the exception and is always
// fatal. Otherwise the lowest deliverable signal is dequeued: ignored signals
// are dropped and the next one considered, fatal default actions terminate
// the process, and a user handler is entered by redirecting t's trap frame.
func (t *Task) DeliverSignal() SignalOutcome {
	var out SignalOutcome
	t.withSignalModule(func(m *SignalModule) error {
		out = t.deliverSignalLocked(m)
		return nil
	})
	if out.Kind == SignalTerminate {
		t.Infof("Terminated by %v", out.Signal)
		t.p.Exit(128 + int(out.Signal))
	}
	return out
}

// +checklocks:t.p.signalMu
func (t *Task) deliverSignalLocked(m *SignalModule) SignalOutcome {
	if m.set.Pending.Contains(linux.SIGKILL) {
		m.set.Dequeue(linux.SIGKILL)
		return SignalOutcome{Kind: SignalTerminate, Signal: linux.SIGKILL}
	}
	if m.InHandler() {
		return SignalOutcome{}
	}
	for {
		sig, ok := m.FindSignal()
		if !ok {
			// sigsuspend returned without running a handler; undo its
			// temporary mask now.
			if m.suspendMask != nil {
				m.set.SetMask(*m.suspendMask)
				m.suspendMask = nil
			}
			return SignalOutcome{}
		}
		m.set.Dequeue(sig)

		act := m.handlers.GetAction(sig)
		switch {
		case act.IsIgnore():
			t.Debugf("Discarding ignored signal %v", sig)
			continue
		case act.IsDefault():
			d := linux.DefaultAction(sig)
			if !d.IsFatal() {
				t.Debugf("Discarding signal %v with default action %v", sig, d)
				continue
			}
			return SignalOutcome{Kind: SignalTerminate, Signal: sig}
		}

		t.deliverToHandlerLocked(m, sig, act)
		return SignalOutcome{Kind: SignalHandled, Signal: sig}
	}
}

// deliverToHandlerLocked saves t's context and redirects it to act's
// handler.
//
// +checklocks:t.p.signalMu
func (t *Task) deliverToHandlerLocked(m *SignalModule, sig linux.Signal, act linux.SigAction) {
	m.enterHandler(t.frame)

	mask := m.set.Mask | act.Mask
	if !act.IsNoDefer() {
		mask |= linux.SignalSetOf(sig)
	}
	m.set.SetMask(mask &^ UnblockableSignals)
	if act.IsResetHandler() {
		m.handlers.Reset(sig)
	}

	ret := t.k.opts.SigreturnTrampoline
	if act.HasRestorer() {
		ret = hostarch.Addr(act.Restorer)
	}
	sp := t.frame.SP() &^ (arch.StackAlignment - 1)
	t.frame.SetIP(hostarch.Addr(act.Handler))
	t.frame.SetReturnAddress(ret)
	t.frame.SetSP(sp)
	t.frame.Regs[arch.RegA0] = uint64(sig)
	t.Debugf("Delivering %v to handler %#x, restorer %v", sig, act.Handler, ret)
}

// SignalReturn implements rt_sigreturn(2): it restores the trap frame and
// signal mask saved when the running handler was entered.
func (t *Task) SignalReturn() (*SyscallControl, error) {
	var (
		frame arch.TrapFrame
		mask  linux.SignalSet
		ok    bool
	)
	t.withSignalModule(func(m *SignalModule) error {
		frame, mask, ok = m.leaveHandler()
		return nil
	})
	if !ok {
		sigreturnWarning.Warningf("[% 4d:% 4d] rt_sigreturn called with no signal handler running", t.p.pid, t.tid)
		return nil, linuxerr.EINVAL
	}
	t.frame = frame
	t.Debugf("Returned from signal handler to %v with mask %v", t.frame.IP(), mask)
	return ctrlResume, nil
}

// Sigsuspend implements the blocking part of rt_sigsuspend(2). It replaces
// t's mask with mask and waits until t has a deliverable signal, any thread
// of the process has a signal pending, the process exits or the kernel's
// context is done. It always returns EINTR.
//
// A mask naming SIGKILL or SIGSTOP is refused: the call returns EINTR at once
// and t's mask is left alone, as it is when called from inside a handler.
//
// The mask in effect before the call is restored when the handler for the
// waking signal returns, or at the next delivery point if no handler runs.
func (t *Task) Sigsuspend(mask linux.SignalSet) error {
	if mask&UnblockableSignals != 0 {
		t.Debugf("Sigsuspend refused mask %v with unblockable signals", mask)
		return linuxerr.EINTR
	}
	var nested bool
	t.withSignalModule(func(m *SignalModule) error {
		if m.InHandler() {
			nested = true
			return nil
		}
		m.beginSuspend(mask)
		return nil
	})
	if nested {
		return linuxerr.EINTR
	}

	sched := t.k.opts.Scheduler
	defer sched.Reset(t)
	for {
		var found bool
		t.withSignalModule(func(m *SignalModule) error {
			_, found = m.FindSignal()
			return nil
		})
		if found {
			return linuxerr.EINTR
		}
		sched.Yield(t)
		if t.p.HasPendingSignals() || t.p.HasExited() {
			return linuxerr.EINTR
		}
		if t.Err() != nil {
			t.Debugf("Sigsuspend interrupted: %v", t.Err())
			return linuxerr.EINTR
		}
	}
}

// TrapReturn runs the delivery trampoline, as on every return to user mode.
func (t *Task) TrapReturn() SignalOutcome {
	return t.DeliverSignal()
}

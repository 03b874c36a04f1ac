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
)

// UnblockableSignals contains the set of signals which cannot be blocked.
var UnblockableSignals = linux.MakeSignalSet(linux.SIGKILL, linux.SIGSTOP)

// SignalSet is a thread's pending and blocked signals. There is one pending
// bit per signal; raising a signal that is already pending has no further
// effect.
type SignalSet struct {
	// Pending holds signals that have been sent but not yet delivered.
	Pending linux.SignalSet

	// Mask holds signals whose delivery is currently blocked.
	Mask linux.SignalSet
}

// FindSignal returns the lowest-numbered signal that is pending and not
// blocked.
func (s *SignalSet) FindSignal() (linux.Signal, bool) {
	return s.Deliverable().Lowest()
}

// Deliverable returns the pending signals that are not blocked.
func (s *SignalSet) Deliverable() linux.SignalSet {
	return s.Pending &^ s.Mask
}

// Block adds mask to the blocked set.
func (s *SignalSet) Block(mask linux.SignalSet) {
	s.Mask |= mask
}

// Unblock removes mask from the blocked set.
func (s *SignalSet) Unblock(mask linux.SignalSet) {
	s.Mask &^= mask
}

// SetMask replaces the blocked set.
func (s *SignalSet) SetMask(mask linux.SignalSet) {
	s.Mask = mask
}

// Raise marks sig pending.
func (s *SignalSet) Raise(sig linux.Signal) {
	s.Pending |= linux.SignalSetOf(sig)
}

// Dequeue clears sig's pending bit.
func (s *SignalSet) Dequeue(sig linux.Signal) {
	s.Pending &^= linux.SignalSetOf(sig)
}

// String implements fmt.Stringer.String.
func (s SignalSet) String() string {
	return fmt.Sprintf("pending=%v mask=%v", s.Pending, s.Mask)
}

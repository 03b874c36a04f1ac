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
	"gvisor.dev/sigkern/pkg/abi/linux"
	"gvisor.dev/sigkern/pkg/sync"
)

// SignalHandlers holds information about signal actions. It is shared by
// all threads of a process.
//
// The zero value is a table in which every signal has action SIG_DFL.
type SignalHandlers struct {
	// mu protects actions. It is acquired after Process.signalMu.
	mu sync.Mutex

	// actions is the action to be taken upon receiving each signal,
	// indexed by linux.Signal.Index.
	//
	// +checklocks:mu
	actions [linux.SignalMaximum]linux.SigAction
}

// NewSignalHandlers returns a new SignalHandlers specifying all default
// actions.
func NewSignalHandlers() *SignalHandlers {
	return &SignalHandlers{}
}

// GetAction returns the action for sig.
//
// Preconditions: sig.IsValid().
func (sh *SignalHandlers) GetAction(sig linux.Signal) linux.SigAction {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.actions[sig.Index()]
}

// SetAction installs act as the action for sig. It performs no validation;
// callers reject SIGKILL and SIGSTOP themselves.
//
// Preconditions: sig.IsValid().
func (sh *SignalHandlers) SetAction(sig linux.Signal, act linux.SigAction) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.actions[sig.Index()] = act
}

// Update atomically replaces the action for sig with the result of f. f is
// called with the current action while the table is locked; if f returns an
// error the table is left unchanged.
//
// Preconditions: sig.IsValid().
func (sh *SignalHandlers) Update(sig linux.Signal, f func(old linux.SigAction) (linux.SigAction, error)) error {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	act, err := f(sh.actions[sig.Index()])
	if err != nil {
		return err
	}
	sh.actions[sig.Index()] = act
	return nil
}

// Reset sets the action for sig back to SIG_DFL.
//
// Preconditions: sig.IsValid().
func (sh *SignalHandlers) Reset(sig linux.Signal) {
	sh.SetAction(sig, linux.SigAction{Handler: linux.SIG_DFL})
}

// Snapshot returns a copy of every action.
func (sh *SignalHandlers) Snapshot() [linux.SignalMaximum]linux.SigAction {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.actions
}

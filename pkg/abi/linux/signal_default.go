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

// SignalDefault is the disposition of a signal whose action is SIG_DFL, as
// listed in signal(7).
type SignalDefault int

// Default dispositions.
const (
	// SignalDefaultTerminate terminates the process.
	SignalDefaultTerminate SignalDefault = iota

	// SignalDefaultCoreDump terminates the process and dumps core.
	SignalDefaultCoreDump

	// SignalDefaultIgnore ignores the signal.
	SignalDefaultIgnore

	// SignalDefaultStop stops the process.
	SignalDefaultStop

	// SignalDefaultContinue continues a stopped process.
	SignalDefaultContinue
)

var defaultActions = map[Signal]SignalDefault{
	SIGQUIT:  SignalDefaultCoreDump,
	SIGILL:   SignalDefaultCoreDump,
	SIGTRAP:  SignalDefaultCoreDump,
	SIGABRT:  SignalDefaultCoreDump,
	SIGBUS:   SignalDefaultCoreDump,
	SIGFPE:   SignalDefaultCoreDump,
	SIGSEGV:  SignalDefaultCoreDump,
	SIGXCPU:  SignalDefaultCoreDump,
	SIGXFSZ:  SignalDefaultCoreDump,
	SIGSYS:   SignalDefaultCoreDump,
	SIGCHLD:  SignalDefaultIgnore,
	SIGURG:   SignalDefaultIgnore,
	SIGWINCH: SignalDefaultIgnore,
	SIGSTOP:  SignalDefaultStop,
	SIGTSTP:  SignalDefaultStop,
	SIGTTIN:  SignalDefaultStop,
	SIGTTOU:  SignalDefaultStop,
	SIGCONT:  SignalDefaultContinue,
}

// DefaultAction returns the default disposition of sig. Signals not listed in
// signal(7), including all realtime signals, terminate.
func DefaultAction(sig Signal) SignalDefault {
	if act, ok := defaultActions[sig]; ok {
		return act
	}
	return SignalDefaultTerminate
}

// IsFatal returns true if the disposition ends the process.
func (d SignalDefault) IsFatal() bool {
	return d == SignalDefaultTerminate || d == SignalDefaultCoreDump
}

// String implements fmt.Stringer.String.
func (d SignalDefault) String() string {
	switch d {
	case SignalDefaultTerminate:
		return "terminate"
	case SignalDefaultCoreDump:
		return "core"
	case SignalDefaultIgnore:
		return "ignore"
	case SignalDefaultStop:
		return "stop"
	case SignalDefaultContinue:
		return "continue"
	default:
		return "unknown"
	}
}

// Copyright 2026 The gVisor Authors.
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

import (
	"fmt"

	"gvisor.dev/sigkern/pkg/bits"
	"gvisor.dev/sigkern/pkg/hostarch"
)

const (
	// SignalMaximum is the highest valid signal number.
	SignalMaximum = 64

	// FirstStdSignal is the lowest standard signal number.
	FirstStdSignal = 1

	// LastStdSignal is the highest standard signal number.
	LastStdSignal = 31

	// FirstRTSignal is the lowest real-time signal number.
	FirstRTSignal = 32

	// LastRTSignal is the highest real-time signal number.
	LastRTSignal = 64
)

// Signal is a signal number.
type Signal int

// IsValid returns true if s is a valid standard or realtime signal. (0 is not
// considered valid; interfaces special-casing signal number 0 should check for
// 0 first before asserting validity.)
func (s Signal) IsValid() bool {
	return s > 0 && s <= SignalMaximum
}

// IsStandard returns true if s is a standard signal.
//
// Preconditions: s.IsValid().
func (s Signal) IsStandard() bool {
	return s <= LastStdSignal
}

// IsRealtime returns true if s is a realtime signal.
//
// Preconditions: s.IsValid().
func (s Signal) IsRealtime() bool {
	return s >= FirstRTSignal
}

// Index returns the index for signal s into arrays of both standard and
// realtime signals (e.g. signal masks).
//
// Preconditions: s.IsValid().
func (s Signal) Index() int {
	return int(s - 1)
}

// String implements fmt.Stringer.String.
func (s Signal) String() string {
	if !s.IsValid() {
		return fmt.Sprintf("signal %d", int(s))
	}
	if s.IsRealtime() {
		return fmt.Sprintf("SIGRT%d", int(s-FirstRTSignal))
	}
	if name := signalNames[s]; name != "" {
		return name
	}
	return fmt.Sprintf("signal %d", int(s))
}

// SignalByName returns the standard signal with the given name, e.g.
// "SIGUSR1". Aliases such as SIGIOT are accepted.
func SignalByName(name string) (Signal, bool) {
	sig, ok := signalsByName[name]
	return sig, ok
}

// Signals.
const (
	SIGABRT   = Signal(6)
	SIGALRM   = Signal(14)
	SIGBUS    = Signal(7)
	SIGCHLD   = Signal(17)
	SIGCLD    = Signal(17)
	SIGCONT   = Signal(18)
	SIGFPE    = Signal(8)
	SIGHUP    = Signal(1)
	SIGILL    = Signal(4)
	SIGINT    = Signal(2)
	SIGIO     = Signal(29)
	SIGIOT    = Signal(6)
	SIGKILL   = Signal(9)
	SIGPIPE   = Signal(13)
	SIGPOLL   = Signal(29)
	SIGPROF   = Signal(27)
	SIGPWR    = Signal(30)
	SIGQUIT   = Signal(3)
	SIGSEGV   = Signal(11)
	SIGSTKFLT = Signal(16)
	SIGSTOP   = Signal(19)
	SIGSYS    = Signal(31)
	SIGTERM   = Signal(15)
	SIGTRAP   = Signal(5)
	SIGTSTP   = Signal(20)
	SIGTTIN   = Signal(21)
	SIGTTOU   = Signal(22)
	SIGURG    = Signal(23)
	SIGUSR1   = Signal(10)
	SIGUSR2   = Signal(12)
	SIGVTALRM = Signal(26)
	SIGWINCH  = Signal(28)
	SIGXCPU   = Signal(24)
	SIGXFSZ   = Signal(25)
)

// signalNames holds the canonical name of each standard signal.
var signalNames = [LastStdSignal + 1]string{
	SIGHUP:    "SIGHUP",
	SIGINT:    "SIGINT",
	SIGQUIT:   "SIGQUIT",
	SIGILL:    "SIGILL",
	SIGTRAP:   "SIGTRAP",
	SIGABRT:   "SIGABRT",
	SIGBUS:    "SIGBUS",
	SIGFPE:    "SIGFPE",
	SIGKILL:   "SIGKILL",
	SIGUSR1:   "SIGUSR1",
	SIGSEGV:   "SIGSEGV",
	SIGUSR2:   "SIGUSR2",
	SIGPIPE:   "SIGPIPE",
	SIGALRM:   "SIGALRM",
	SIGTERM:   "SIGTERM",
	SIGSTKFLT: "SIGSTKFLT",
	SIGCHLD:   "SIGCHLD",
	SIGCONT:   "SIGCONT",
	SIGSTOP:   "SIGSTOP",
	SIGTSTP:   "SIGTSTP",
	SIGTTIN:   "SIGTTIN",
	SIGTTOU:   "SIGTTOU",
	SIGURG:    "SIGURG",
	SIGXCPU:   "SIGXCPU",
	SIGXFSZ:   "SIGXFSZ",
	SIGVTALRM: "SIGVTALRM",
	SIGPROF:   "SIGPROF",
	SIGWINCH:  "SIGWINCH",
	SIGIO:     "SIGIO",
	SIGPWR:    "SIGPWR",
	SIGSYS:    "SIGSYS",
}

var signalsByName = func() map[string]Signal {
	m := map[string]Signal{
		"SIGIOT":  SIGIOT,
		"SIGCLD":  SIGCLD,
		"SIGPOLL": SIGPOLL,
	}
	for sig, name := range signalNames {
		if name != "" {
			m[name] = Signal(sig)
		}
	}
	return m
}()

// SignalSet is a signal mask with a bit corresponding to each signal.
type SignalSet uint64

// SignalSetSize is the size in bytes of a SignalSet. It must match the C
// library's kernel sigset_t exactly.
const SignalSetSize = 8

// MakeSignalSet returns SignalSet with the bit corresponding to each of the
// given signals set.
func MakeSignalSet(sigs ...Signal) SignalSet {
	indices := make([]int, len(sigs))
	for i, sig := range sigs {
		indices[i] = sig.Index()
	}
	return SignalSet(bits.Mask64(indices...))
}

// SignalSetOf returns a SignalSet with a single signal set.
func SignalSetOf(sig Signal) SignalSet {
	return SignalSet(bits.MaskOf64(sig.Index()))
}

// ForEachSignal invokes f for each signal set in the given mask.
func ForEachSignal(mask SignalSet, f func(sig Signal)) {
	bits.ForEachSetBit64(uint64(mask), func(i int) {
		f(Signal(i + 1))
	})
}

// Contains returns true if sig is a member of s.
func (s SignalSet) Contains(sig Signal) bool {
	return bits.IsAnyOn64(uint64(s), uint64(SignalSetOf(sig)))
}

// Lowest returns the lowest-numbered signal in s. ok is false if s is empty.
func (s SignalSet) Lowest() (sig Signal, ok bool) {
	if s == 0 {
		return 0, false
	}
	return Signal(bits.TrailingZeros64(uint64(s)) + 1), true
}

// String implements fmt.Stringer.String.
func (s SignalSet) String() string {
	var names []string
	ForEachSignal(s, func(sig Signal) {
		names = append(names, sig.String())
	})
	return fmt.Sprintf("%#x %v", uint64(s), names)
}

// SizeBytes implements marshal.Marshallable.SizeBytes.
func (s *SignalSet) SizeBytes() int {
	return SignalSetSize
}

// MarshalBytes implements marshal.Marshallable.MarshalBytes.
func (s *SignalSet) MarshalBytes(dst []byte) []byte {
	hostarch.ByteOrder.PutUint64(dst[:8], uint64(*s))
	return dst[8:]
}

// UnmarshalBytes implements marshal.Marshallable.UnmarshalBytes.
func (s *SignalSet) UnmarshalBytes(src []byte) []byte {
	*s = SignalSet(hostarch.ByteOrder.Uint64(src[:8]))
	return src[8:]
}

// 'how' values for rt_sigprocmask(2).
const (
	// SIG_BLOCK blocks the signals in the set.
	SIG_BLOCK = 0

	// SIG_UNBLOCK unblocks the signals in the set.
	SIG_UNBLOCK = 1

	// SIG_SETMASK sets the signal mask to set.
	SIG_SETMASK = 2
)

// Signal actions for rt_sigaction(2), from uapi/asm-generic/signal-defs.h.
const (
	// SIG_DFL performs the default action.
	SIG_DFL = 0

	// SIG_IGN ignores the signal.
	SIG_IGN = 1
)

// Signal action flags for rt_sigaction(2), from uapi/asm-generic/signal.h
const (
	SA_NOCLDSTOP = 0x00000001
	SA_NOCLDWAIT = 0x00000002
	SA_SIGINFO   = 0x00000004
	SA_RESTORER  = 0x04000000
	SA_ONSTACK   = 0x08000000
	SA_RESTART   = 0x10000000
	SA_NODEFER   = 0x40000000
	SA_RESETHAND = 0x80000000
	SA_NOMASK    = SA_NODEFER
	SA_ONESHOT   = SA_RESETHAND
)

// SigAction represents struct sigaction as the kernel sees it.
//
// The layout is that of the generic Linux ABI (handler, flags, restorer,
// mask), which is what musl passes to rt_sigaction.
type SigAction struct {
	Handler  uint64
	Flags    uint64
	Restorer uint64
	Mask     SignalSet
}

// SigActionSize is the size of SigAction in bytes.
const SigActionSize = 32

// IsDefault returns true if the action is SIG_DFL.
func (a *SigAction) IsDefault() bool {
	return a.Handler == SIG_DFL
}

// IsIgnore returns true if the action is SIG_IGN.
func (a *SigAction) IsIgnore() bool {
	return a.Handler == SIG_IGN
}

// IsNoDefer returns true iff this SigAction has the NoDefer flag set.
func (a *SigAction) IsNoDefer() bool {
	return a.Flags&SA_NODEFER != 0
}

// IsResetHandler returns true iff this SigAction has the ResetHandler flag set.
func (a *SigAction) IsResetHandler() bool {
	return a.Flags&SA_RESETHAND != 0
}

// HasRestorer returns true iff this SigAction has the Restorer flag set.
func (a *SigAction) HasRestorer() bool {
	return a.Flags&SA_RESTORER != 0
}

// String implements fmt.Stringer.String.
func (a SigAction) String() string {
	return fmt.Sprintf("{Handler: %#x, Flags: %#x, Restorer: %#x, Mask: %#x}", a.Handler, a.Flags, a.Restorer, uint64(a.Mask))
}

// SizeBytes implements marshal.Marshallable.SizeBytes.
func (a *SigAction) SizeBytes() int {
	return SigActionSize
}

// MarshalBytes implements marshal.Marshallable.MarshalBytes.
func (a *SigAction) MarshalBytes(dst []byte) []byte {
	hostarch.ByteOrder.PutUint64(dst[:8], a.Handler)
	dst = dst[8:]
	hostarch.ByteOrder.PutUint64(dst[:8], a.Flags)
	dst = dst[8:]
	hostarch.ByteOrder.PutUint64(dst[:8], a.Restorer)
	dst = dst[8:]
	return a.Mask.MarshalBytes(dst)
}

// UnmarshalBytes implements marshal.Marshallable.UnmarshalBytes.
func (a *SigAction) UnmarshalBytes(src []byte) []byte {
	a.Handler = hostarch.ByteOrder.Uint64(src[:8])
	src = src[8:]
	a.Flags = hostarch.ByteOrder.Uint64(src[:8])
	src = src[8:]
	a.Restorer = hostarch.ByteOrder.Uint64(src[:8])
	src = src[8:]
	return a.Mask.UnmarshalBytes(src)
}

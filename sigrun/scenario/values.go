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

package scenario

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"
	"gvisor.dev/sigkern/pkg/abi/linux"
	"gvisor.dev/sigkern/pkg/hostarch"
)

// Addr is a user address. In YAML it may be written in any base accepted by
// strconv.ParseUint, e.g. 0x10000.
type Addr hostarch.Addr

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Addr) UnmarshalYAML(node *yaml.Node) error {
	n, err := strconv.ParseUint(node.Value, 0, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid address %q", node.Line, node.Value)
	}
	*a = Addr(n)
	return nil
}

// Signal is a signal number. In YAML it is a name such as SIGUSR1, a
// realtime signal such as SIGRT3, or a number.
type Signal linux.Signal

// ParseSignal parses a signal name or number. The result is not validated,
// so that out of range signals can be passed to syscalls.
func ParseSignal(s string) (linux.Signal, error) {
	if n, err := strconv.ParseInt(s, 0, 32); err == nil {
		return linux.Signal(n), nil
	}
	name := strings.ToUpper(s)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	if rt, ok := strings.CutPrefix(name, "SIGRT"); ok {
		n, err := strconv.Atoi(rt)
		if err != nil || n < 0 || linux.FirstRTSignal+linux.Signal(n) > linux.SignalMaximum {
			return 0, fmt.Errorf("invalid realtime signal %q", s)
		}
		return linux.FirstRTSignal + linux.Signal(n), nil
	}
	if sig, ok := linux.SignalByName(name); ok {
		return sig, nil
	}
	return 0, fmt.Errorf("unknown signal %q", s)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Signal) UnmarshalYAML(node *yaml.Node) error {
	sig, err := ParseSignal(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = Signal(sig)
	return nil
}

// SignalList is a list of signals, decoded as a YAML sequence.
type SignalList []Signal

// Set returns the signal set containing l.
func (l SignalList) Set() linux.SignalSet {
	var set linux.SignalSet
	for _, sig := range l {
		if s := linux.Signal(sig); s.IsValid() {
			set |= linux.SignalSetOf(s)
		}
	}
	return set
}

// Handler is a sigaction handler: SIG_DFL, SIG_IGN or an address.
type Handler uint64

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *Handler) UnmarshalYAML(node *yaml.Node) error {
	switch strings.ToUpper(node.Value) {
	case "SIG_DFL":
		*h = linux.SIG_DFL
		return nil
	case "SIG_IGN":
		*h = linux.SIG_IGN
		return nil
	}
	n, err := strconv.ParseUint(node.Value, 0, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid handler %q, must be SIG_DFL, SIG_IGN or an address", node.Line, node.Value)
	}
	*h = Handler(n)
	return nil
}

// String implements fmt.Stringer.
func (h Handler) String() string {
	switch h {
	case linux.SIG_DFL:
		return "SIG_DFL"
	case linux.SIG_IGN:
		return "SIG_IGN"
	}
	return fmt.Sprintf("%#x", uint64(h))
}

var actionFlags = map[string]uint64{
	"SA_NOCLDSTOP": linux.SA_NOCLDSTOP,
	"SA_NOCLDWAIT": linux.SA_NOCLDWAIT,
	"SA_SIGINFO":   linux.SA_SIGINFO,
	"SA_RESTORER":  linux.SA_RESTORER,
	"SA_ONSTACK":   linux.SA_ONSTACK,
	"SA_RESTART":   linux.SA_RESTART,
	"SA_NODEFER":   linux.SA_NODEFER,
	"SA_RESETHAND": linux.SA_RESETHAND,
	"SA_NOMASK":    linux.SA_NOMASK,
	"SA_ONESHOT":   linux.SA_ONESHOT,
}

// ActionFlags is a set of SA_* flags, decoded from a YAML sequence of names.
type ActionFlags uint64

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *ActionFlags) UnmarshalYAML(node *yaml.Node) error {
	var names []string
	if err := node.Decode(&names); err != nil {
		return err
	}
	var flags uint64
	for _, name := range names {
		v, ok := actionFlags[strings.ToUpper(name)]
		if !ok {
			return fmt.Errorf("line %d: unknown sigaction flag %q", node.Line, name)
		}
		flags |= v
	}
	*f = ActionFlags(flags)
	return nil
}

// errnoName returns the symbolic name of errno e, or the empty string for 0.
func errnoName(e uint32) string {
	if e == 0 {
		return ""
	}
	if name := unix.ErrnoName(unix.Errno(e)); name != "" {
		return name
	}
	return fmt.Sprintf("errno %d", e)
}

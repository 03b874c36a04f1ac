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

// Package scenario runs scripted signal interactions against an emulated
// process. A scenario is a YAML document naming a number of threads, the
// user memory to map, and a list of steps. Each step runs on one thread;
// threads run concurrently, and a step may wait for an earlier step of
// another thread with "after".
//
//	threads: 2
//	steps:
//	  - {thread: 0, op: sigaction, signal: SIGUSR1, handler: 0x2000}
//	  - {thread: 1, op: sigsuspend, mask: []}
//	  - {thread: 0, op: tkill, target: 1, signal: SIGUSR1, after: 1}
//	  - {thread: 1, op: trap-return, outcome: handled, signal: SIGUSR1}
package scenario

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
	"gvisor.dev/sigkern/pkg/hostarch"
)

// Op names a step operation.
type Op string

// Operations.
const (
	OpSigaction     Op = "sigaction"
	OpSigprocmask   Op = "sigprocmask"
	OpSigpending    Op = "sigpending"
	OpSigsuspend    Op = "sigsuspend"
	OpSigreturn     Op = "sigreturn"
	OpKill          Op = "kill"
	OpTkill         Op = "tkill"
	OpTrapReturn    Op = "trap-return"
	OpExpectPending Op = "expect-pending"
	OpExpectMask    Op = "expect-mask"
)

var ops = map[Op]struct{}{
	OpSigaction:     {},
	OpSigprocmask:   {},
	OpSigpending:    {},
	OpSigsuspend:    {},
	OpSigreturn:     {},
	OpKill:          {},
	OpTkill:         {},
	OpTrapReturn:    {},
	OpExpectPending: {},
	OpExpectMask:    {},
}

// Scenario is a parsed scenario document.
type Scenario struct {
	// Threads is the number of threads in the process. Thread 0 is the main
	// thread. Defaults to 1.
	Threads int `yaml:"threads"`

	// Mappings are mapped in order before any step runs.
	Mappings []Mapping `yaml:"mappings"`

	Steps []Step `yaml:"steps"`
}

// Mapping is a fixed anonymous mapping.
type Mapping struct {
	Addr     Addr   `yaml:"addr"`
	Length   uint64 `yaml:"length"`
	Writable bool   `yaml:"writable"`
}

// Step is one operation on one thread. Which fields apply depends on Op.
type Step struct {
	// Thread is the index of the thread running the step.
	Thread int `yaml:"thread"`
	Op     Op  `yaml:"op"`

	// After is the index of a step that must complete before this one
	// starts. It must refer to an earlier step.
	After *int `yaml:"after"`

	// Signal is the signal for sigaction, kill, tkill and trap-return.
	Signal Signal `yaml:"signal"`

	// Handler, Flags, Restorer and Mask form the new action for sigaction.
	// Without Handler the action is only queried. Mask is also the
	// temporary mask for sigsuspend.
	Handler  *Handler    `yaml:"handler"`
	Flags    ActionFlags `yaml:"flags"`
	Restorer Addr        `yaml:"restorer"`
	Mask     SignalList  `yaml:"mask"`

	// How is block, unblock, setmask or a raw number for sigprocmask.
	How string `yaml:"how"`

	// Set is the new mask for sigprocmask; nil only queries. For sigpending,
	// expect-pending and expect-mask it is the expected set.
	Set *SignalList `yaml:"set"`

	// Ptr and OldPtr override the scratch addresses used for the input and
	// output structures of sigaction, sigprocmask, sigpending and
	// sigsuspend. An OldPtr of 0 passes NULL.
	Ptr    *Addr `yaml:"ptr"`
	OldPtr *Addr `yaml:"old-ptr"`

	// Old is the expected previous mask of sigprocmask.
	Old *SignalList `yaml:"old"`

	// OldHandler is the expected previous handler of sigaction.
	OldHandler *Handler `yaml:"old-handler"`

	// PID is the kill target. Defaults to the scenario process.
	PID *int32 `yaml:"pid"`

	// Target is the thread index for tkill; TID overrides it with a raw
	// thread ID.
	Target *int   `yaml:"target"`
	TID    *int32 `yaml:"tid"`

	// Outcome is the expected result of trap-return: none, handled or
	// terminate. Status is the expected exit status after terminate.
	Outcome string `yaml:"outcome"`
	Status  *int   `yaml:"status"`

	// Expect is the expected errno name, e.g. EINVAL. Empty means success,
	// except for sigsuspend which always fails with EINTR.
	Expect string `yaml:"expect"`
}

// syscall reports whether the step is a syscall whose errno can be checked.
func (s *Step) syscall() bool {
	switch s.Op {
	case OpTrapReturn, OpExpectPending, OpExpectMask:
		return false
	}
	return true
}

// String implements fmt.Stringer.
func (s *Step) String() string {
	return fmt.Sprintf("thread %d %s", s.Thread, s.Op)
}

// Parse reads and validates a scenario.
func Parse(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) (*Scenario, error) {
	return Parse(strings.NewReader(s))
}

func (sc *Scenario) validate() error {
	if sc.Threads == 0 {
		sc.Threads = 1
	}
	if sc.Threads < 0 {
		return fmt.Errorf("threads must be positive, got %d", sc.Threads)
	}
	for i, m := range sc.Mappings {
		if m.Length == 0 || hostarch.Addr(m.Addr).PageOffset() != 0 {
			return fmt.Errorf("mapping %d: need a non-zero length at a page aligned address, got %#x+%d", i, uint64(m.Addr), m.Length)
		}
	}
	for i := range sc.Steps {
		s := &sc.Steps[i]
		if s.Thread < 0 || s.Thread >= sc.Threads {
			return fmt.Errorf("step %d: thread %d out of range [0, %d)", i, s.Thread, sc.Threads)
		}
		if _, ok := ops[s.Op]; !ok {
			return fmt.Errorf("step %d: unknown op %q", i, s.Op)
		}
		if s.After != nil && (*s.After < 0 || *s.After >= i) {
			return fmt.Errorf("step %d: after must name an earlier step, got %d", i, *s.After)
		}
		if s.Expect != "" && !s.syscall() {
			return fmt.Errorf("step %d: %s has no errno to expect", i, s.Op)
		}
		switch s.Op {
		case OpSigprocmask:
			if _, err := s.how(); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		case OpTkill:
			if s.TID == nil && s.Target == nil {
				return fmt.Errorf("step %d: tkill needs a target or tid", i)
			}
			if s.Target != nil && (*s.Target < 0 || *s.Target >= sc.Threads) {
				return fmt.Errorf("step %d: target %d out of range [0, %d)", i, *s.Target, sc.Threads)
			}
		case OpTrapReturn:
			switch s.Outcome {
			case "", "none", "handled", "terminate":
			default:
				return fmt.Errorf("step %d: unknown outcome %q", i, s.Outcome)
			}
		case OpExpectPending, OpExpectMask:
			if s.Set == nil {
				return fmt.Errorf("step %d: %s needs a set", i, s.Op)
			}
		}
	}
	return nil
}

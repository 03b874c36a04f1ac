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

	"gvisor.dev/sigkern/pkg/abi"
	"gvisor.dev/sigkern/pkg/errors/linuxerr"
	"gvisor.dev/sigkern/pkg/sentry/arch"
	"gvisor.dev/sigkern/pkg/sync"
)

// maxSyscallNum is the highest supported syscall number.
//
// The types below create fast lookup slices for all syscalls. This maximum
// serves as a sanity check that we don't allocate huge slices for a very
// large syscall.
const maxSyscallNum = 2000

// SyscallSupportLevel is a syscall support levels.
type SyscallSupportLevel int

// String returns a human readable representation of the support level.
func (l SyscallSupportLevel) String() string {
	switch l {
	case SupportUnimplemented:
		return "Unimplemented"
	case SupportPartial:
		return "Partial Support"
	case SupportFull:
		return "Full Support"
	default:
		return "Undocumented"
	}
}

const (
	// SupportUndocumented indicates the syscall is not documented.
	SupportUndocumented SyscallSupportLevel = iota

	// SupportUnimplemented indicates the syscall is unimplemented.
	SupportUnimplemented

	// SupportPartial indicates the syscall is partially supported.
	SupportPartial

	// SupportFull indicates the syscall is fully supported.
	SupportFull
)

// SyscallFn is a syscall implementation.
type SyscallFn func(t *Task, args arch.SyscallArguments) (uintptr, *SyscallControl, error)

// MissingFn is a syscall to be called when an implementation is missing.
type MissingFn func(t *Task, sysno uintptr, args arch.SyscallArguments) (uintptr, error)

// Syscall includes the syscall implementation and compatibility information.
type Syscall struct {
	// Name is the syscall name.
	Name string
	// Fn is the implementation of the syscall.
	Fn SyscallFn
	// SupportLevel is the level of support implemented by the kernel.
	SupportLevel SyscallSupportLevel
	// Note describes the compatibility of the syscall.
	Note string
	// URLs is set of URLs to any relevant bugs or issues.
	URLs []string
}

// SyscallControl is returned by syscalls to control the behavior of
// Task.Syscall.
type SyscallControl struct {
	// ignoreReturn is true if the syscall must not write its return value
	// to the trap frame, because it replaced the frame wholesale.
	ignoreReturn bool
}

var (
	// ctrlResume is returned by syscalls that restore a previously saved
	// register state, such as rt_sigreturn.
	ctrlResume = &SyscallControl{ignoreReturn: true}
)

// SyscallTable is a lookup table of system calls.
type SyscallTable struct {
	// OS is the operating system that this syscall table implements.
	OS abi.OS

	// Arch is the architecture that this syscall table targets.
	Arch arch.Arch

	// Table is the collection of functions.
	Table map[uintptr]Syscall

	// lookup is a fixed-size array that holds the syscalls (indexed by
	// their numbers). It is used for fast look ups.
	lookup []SyscallFn

	// names is the inverse of Table, by name.
	names map[string]uintptr

	// Missing is the syscall to be called when an implementation is missing.
	Missing MissingFn

	// Stracer traces this syscall table. If nil, traced syscalls are logged
	// with raw arguments.
	Stracer Stracer
}

// Stracer traces syscall execution.
type Stracer interface {
	// SyscallEnter is called on syscall entry.
	//
	// The returned private data is passed to SyscallExit.
	SyscallEnter(t *Task, sysno uintptr, args arch.SyscallArguments) any

	// SyscallExit is called on syscall exit.
	SyscallExit(context any, t *Task, sysno, rval uintptr, err error)
}

// allSyscallTables contains all known tables.
var allSyscallTables []*SyscallTable

var syscallTablesMu sync.Mutex

// SyscallTables returns a read-only slice of registered SyscallTables.
func SyscallTables() []*SyscallTable {
	syscallTablesMu.Lock()
	defer syscallTablesMu.Unlock()
	return append([]*SyscallTable(nil), allSyscallTables...)
}

// LookupSyscallTable returns the SyscallCall table for the OS/Arch combination.
func LookupSyscallTable(os abi.OS, a arch.Arch) (*SyscallTable, bool) {
	syscallTablesMu.Lock()
	defer syscallTablesMu.Unlock()
	for _, s := range allSyscallTables {
		if s.OS == os && s.Arch == a {
			return s, true
		}
	}
	return nil, false
}

// RegisterSyscallTable registers a new syscall table for use by a Kernel.
func RegisterSyscallTable(s *SyscallTable) {
	if max := s.MaxSysno(); max > maxSyscallNum {
		panic(fmt.Sprintf("SyscallTable %+v contains too large syscall number %d", s, max))
	}
	if _, ok := LookupSyscallTable(s.OS, s.Arch); ok {
		panic(fmt.Sprintf("Duplicate SyscallTable registered for OS %v Arch %v", s.OS, s.Arch))
	}
	s.Init()
	syscallTablesMu.Lock()
	defer syscallTablesMu.Unlock()
	allSyscallTables = append(allSyscallTables, s)
}

// Init initializes the system call table.
//
// This should normally be called only during registration.
func (s *SyscallTable) Init() {
	if s.Table == nil {
		// Ensure non-nil lookup table.
		s.Table = make(map[uintptr]Syscall)
	}

	max := s.MaxSysno() // Checked during RegisterSyscallTable.

	// Initialize the fast-lookup tables.
	s.lookup = make([]SyscallFn, max+1)
	s.names = make(map[string]uintptr, len(s.Table))
	for num, sc := range s.Table {
		s.lookup[num] = sc.Fn
		if sc.Name != "" {
			s.names[sc.Name] = num
		}
	}

	// Ensure there is a Missing handler.
	if s.Missing == nil {
		s.Missing = func(t *Task, sysno uintptr, args arch.SyscallArguments) (uintptr, error) {
			t.Debugf("Unsupported syscall %d", sysno)
			return 0, linuxerr.ENOSYS
		}
	}
}

// Lookup returns the syscall implementation, if one exists.
func (s *SyscallTable) Lookup(sysno uintptr) SyscallFn {
	if sysno < uintptr(len(s.lookup)) {
		return s.lookup[sysno]
	}

	return nil
}

// LookupName looks up a syscall name.
func (s *SyscallTable) LookupName(sysno uintptr) string {
	if sc, ok := s.Table[sysno]; ok {
		return sc.Name
	}
	return fmt.Sprintf("sys_%d", sysno) // Unlikely.
}

// LookupNo looks up a syscall number by name.
func (s *SyscallTable) LookupNo(name string) (uintptr, error) {
	if num, ok := s.names[name]; ok {
		return num, nil
	}
	return 0, fmt.Errorf("syscall %q not found", name)
}

// MaxSysno returns the largest system call number.
func (s *SyscallTable) MaxSysno() (max uintptr) {
	for num := range s.Table {
		if num > max {
			max = num
		}
	}
	return max
}

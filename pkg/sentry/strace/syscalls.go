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

package strace

import (
	"gvisor.dev/sigkern/pkg/abi"
	"gvisor.dev/sigkern/pkg/sentry/arch"
)

// FormatSpecifier values describe how an individual syscall argument should be
// formatted.
type FormatSpecifier int

// Valid FormatSpecifiers.
//
// Unless otherwise specified, values are formatted before syscall execution
// and not updated after syscall execution (the same value is output).
const (
	// Hex is just a hexadecimal number.
	Hex FormatSpecifier = iota

	// Int is a signed decimal number.
	Int

	// Signal is a signal number.
	Signal

	// SigSet is a pointer to a sigset_t.
	SigSet

	// PostSigSet is a pointer to a sigset_t, formatted after syscall
	// execution.
	PostSigSet

	// SigAction is a struct sigaction.
	SigAction

	// PostSigAction is a struct sigaction, formatted after syscall execution.
	PostSigAction

	// SignalMaskAction is a signal mask action passed to rt_sigprocmask(2).
	SignalMaskAction
)

// defaultFormat is the syscall argument format to use if the actual format is
// not known. It formats all six arguments as hex.
var defaultFormat = []FormatSpecifier{Hex, Hex, Hex, Hex, Hex, Hex}

// SyscallInfo captures the name and printing format of a syscall.
type SyscallInfo struct {
	// name is the name of the syscall.
	name string

	// format contains the format specifiers for each argument.
	//
	// Syscall calls can have up to six arguments. Arguments without a
	// corresponding entry in format will not be printed.
	format []FormatSpecifier
}

// makeSyscallInfo returns a SyscallInfo for a syscall.
func makeSyscallInfo(name string, f ...FormatSpecifier) SyscallInfo {
	return SyscallInfo{name: name, format: f}
}

// SyscallMap maps syscalls into names and printing formats.
type SyscallMap map[uintptr]SyscallInfo

// syscallTables contains the syscall maps for every known OS/arch.
var syscallTables = []struct {
	os   abi.OS
	arch arch.Arch
	m    SyscallMap
}{
	{abi.Linux, arch.RISCV64, linuxRISCV64},
}

// linuxRISCV64 describes the syscalls of the generic Linux syscall ABI used
// by riscv64.
var linuxRISCV64 = SyscallMap{
	124: makeSyscallInfo("sched_yield"),
	129: makeSyscallInfo("kill", Int, Signal),
	130: makeSyscallInfo("tkill", Int, Signal),
	131: makeSyscallInfo("tgkill", Int, Int, Signal),
	132: makeSyscallInfo("sigaltstack", Hex, Hex),
	133: makeSyscallInfo("rt_sigsuspend", SigSet, Hex),
	134: makeSyscallInfo("rt_sigaction", Signal, SigAction, PostSigAction, Hex),
	135: makeSyscallInfo("rt_sigprocmask", SignalMaskAction, SigSet, PostSigSet, Hex),
	136: makeSyscallInfo("rt_sigpending", PostSigSet, Hex),
	137: makeSyscallInfo("rt_sigtimedwait", SigSet, Hex, Hex, Hex),
	138: makeSyscallInfo("rt_sigqueueinfo", Int, Signal, Hex),
	139: makeSyscallInfo("rt_sigreturn"),
	172: makeSyscallInfo("getpid"),
	178: makeSyscallInfo("gettid"),
}

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

// Package linux provides syscall tables for riscv64 Linux.
package linux

import (
	"gvisor.dev/sigkern/pkg/abi"
	"gvisor.dev/sigkern/pkg/errors/linuxerr"
	"gvisor.dev/sigkern/pkg/sentry/arch"
	"gvisor.dev/sigkern/pkg/sentry/kernel"
	"gvisor.dev/sigkern/pkg/sentry/syscalls"
)

// Syscall numbers from the generic Linux table (include/uapi/asm-generic/unistd.h),
// which riscv64 uses.
const (
	SysSchedYield     = 124
	SysKill           = 129
	SysTkill          = 130
	SysTgkill         = 131
	SysSigaltstack    = 132
	SysRtSigsuspend   = 133
	SysRtSigaction    = 134
	SysRtSigprocmask  = 135
	SysRtSigpending   = 136
	SysRtSigtimedwait = 137
	SysRtSigqueueinfo = 138
	SysRtSigreturn    = 139
	SysGetpid         = 172
	SysGettid         = 178
)

// RISCV64 is a table of Linux riscv64 syscall API with the corresponding
// syscall numbers. Only the process and signal calls are implemented; the
// remaining signal calls are listed so that they fail with a documented
// error.
var RISCV64 = &kernel.SyscallTable{
	OS:   abi.Linux,
	Arch: arch.RISCV64,
	Table: map[uintptr]kernel.Syscall{
		SysSchedYield:     syscalls.Supported("sched_yield", SchedYield),
		SysKill:           syscalls.PartiallySupported("kill", Kill, "Process groups (pid <= 0) are not supported; delivery to a missing process is silently dropped.", nil),
		SysTkill:          syscalls.PartiallySupported("tkill", Tkill, "Delivery to a missing thread is silently dropped.", nil),
		SysTgkill:         syscalls.Error("tgkill", linuxerr.ENOSYS, "Not implemented", nil),
		SysSigaltstack:    syscalls.Error("sigaltstack", linuxerr.ENOSYS, "Alternate signal stacks are not supported", nil),
		SysRtSigsuspend:   syscalls.PartiallySupported("rt_sigsuspend", RtSigsuspend, "Returns EINTR immediately when called from a signal handler.", nil),
		SysRtSigaction:    syscalls.PartiallySupported("rt_sigaction", RtSigaction, "SA_ONSTACK and SA_SIGINFO are stored but have no effect.", nil),
		SysRtSigprocmask:  syscalls.Supported("rt_sigprocmask", RtSigprocmask),
		SysRtSigpending:   syscalls.Supported("rt_sigpending", RtSigpending),
		SysRtSigtimedwait: syscalls.Error("rt_sigtimedwait", linuxerr.ENOSYS, "Not implemented", nil),
		SysRtSigqueueinfo: syscalls.Error("rt_sigqueueinfo", linuxerr.ENOSYS, "Realtime signal queuing is not supported", nil),
		SysRtSigreturn:    syscalls.Supported("rt_sigreturn", RtSigreturn),
		SysGetpid:         syscalls.Supported("getpid", Getpid),
		SysGettid:         syscalls.Supported("gettid", Gettid),
	},
}

func init() {
	kernel.RegisterSyscallTable(RISCV64)
}

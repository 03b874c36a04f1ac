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

// Package strace implements the logic to print out the input and the return
// value of each traced syscall.
package strace

import (
	"fmt"
	"strings"
	"time"

	"gvisor.dev/sigkern/pkg/abi"
	"gvisor.dev/sigkern/pkg/abi/linux"
	"gvisor.dev/sigkern/pkg/errors/linuxerr"
	"gvisor.dev/sigkern/pkg/sentry/arch"
	"gvisor.dev/sigkern/pkg/sentry/kernel"
)

// pre fills in the pre-execution arguments for a system call. If an argument
// cannot be interpreted before the system call is executed, then a hex value
// will be used.
func (i *SyscallInfo) pre(t *kernel.Task, args arch.SyscallArguments) []string {
	var output []string

	for arg := range args {
		if arg >= len(i.format) {
			break
		}
		switch i.format[arg] {
		case Int:
			output = append(output, fmt.Sprintf("%d", args[arg].Int()))
		case Signal:
			output = append(output, signal(linux.Signal(args[arg].Int())))
		case SigSet:
			output = append(output, sigSet(t, args[arg].Pointer()))
		case SigAction:
			output = append(output, sigAction(t, args[arg].Pointer()))
		case SignalMaskAction:
			output = append(output, signalMaskActions.Parse(uint64(args[arg].Int())))
		case Hex, PostSigSet, PostSigAction:
			fallthrough
		default:
			output = append(output, fmt.Sprintf("%#x", args[arg].Value))
		}
	}

	return output
}

// post fills in the post-execution arguments for a system call. This modifies
// the given output slice in place with arguments that may only be interpreted
// after the system call has been executed.
func (i *SyscallInfo) post(t *kernel.Task, args arch.SyscallArguments, output []string) {
	for arg := range output {
		if arg >= len(i.format) {
			break
		}
		switch i.format[arg] {
		case PostSigSet:
			output[arg] = sigSet(t, args[arg].Pointer())
		case PostSigAction:
			output[arg] = sigAction(t, args[arg].Pointer())
		}
	}
}

// syscallContext is the private data passed from SyscallEnter to
// SyscallExit.
type syscallContext struct {
	info   SyscallInfo
	args   arch.SyscallArguments
	output []string
	start  time.Time
}

// printEntry prints the given system call entry.
func (i *SyscallInfo) printEntry(t *kernel.Task, args arch.SyscallArguments) []string {
	output := i.pre(t, args)
	t.Infof("E %s(%s)", i.name, strings.Join(output, ", "))
	return output
}

// printExit prints the given system call exit.
func (i *SyscallInfo) printExit(t *kernel.Task, elapsed time.Duration, output []string, args arch.SyscallArguments, retval uintptr, err error) {
	if err == nil {
		// Fill in the output after successful execution.
		i.post(t, args, output)
	}
	var rval string
	if err == nil {
		rval = fmt.Sprintf("%#x (%v)", retval, elapsed)
	} else {
		e, _ := linuxerr.ErrnoOf(err)
		rval = fmt.Sprintf("%#x errno=%d (%v) (%v)", retval, e, err, elapsed)
	}
	t.Infof("X %s(%s) = %s", i.name, strings.Join(output, ", "), rval)
}

// SyscallEnter implements kernel.Stracer.SyscallEnter. It logs the syscall
// entry trace.
func (s SyscallMap) SyscallEnter(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) any {
	info, ok := s[sysno]
	if !ok {
		info = SyscallInfo{
			name:   fmt.Sprintf("sys_%d", sysno),
			format: defaultFormat,
		}
	}

	return &syscallContext{
		info:   info,
		args:   args,
		output: info.printEntry(t, args),
		start:  time.Now(),
	}
}

// SyscallExit implements kernel.Stracer.SyscallExit. It logs the syscall
// exit trace.
func (s SyscallMap) SyscallExit(context any, t *kernel.Task, sysno, rval uintptr, err error) {
	c := context.(*syscallContext)
	c.info.printExit(t, time.Since(c.start), c.output, c.args, rval, err)
}

// Lookup returns the SyscallMap for the OS/Arch combination.
func Lookup(os abi.OS, a arch.Arch) (SyscallMap, bool) {
	for _, st := range syscallTables {
		if st.os == os && st.arch == a {
			return st.m, true
		}
	}
	return nil, false
}

// Initialize prepares all syscall tables for use by this package.
//
// N.B. This is not in an init function because we can't be sure all syscall
// tables are registered with the kernel when init runs.
func Initialize() {
	for _, table := range kernel.SyscallTables() {
		// Is this known?
		sys, ok := Lookup(table.OS, table.Arch)
		if !ok {
			continue
		}
		table.Stracer = sys
	}
}

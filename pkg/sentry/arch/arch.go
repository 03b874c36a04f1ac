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

// Package arch describes the architecture-specific register state that the
// kernel saves on trap entry and restores on trap return.
package arch

import (
	"fmt"

	"gvisor.dev/sigkern/pkg/hostarch"
)

// NumGPRegs is the number of general purpose registers, x0 through x31.
const NumGPRegs = 32

// Register indices in TrapFrame.Regs, following the RISC-V calling
// convention.
const (
	RegZero = 0
	RegRA   = 1
	RegSP   = 2
	RegA0   = 10
	RegA1   = 11
	RegA2   = 12
	RegA3   = 13
	RegA4   = 14
	RegA5   = 15
	RegA7   = 17
)

// StackAlignment is the required alignment of the stack pointer at function
// entry.
const StackAlignment = 16

// TrapFrame is the user register state saved on entry to the kernel.
//
// TrapFrame is a plain value: copying it copies the whole register file, which
// is what signal delivery relies on to save and later restore the
// interrupted context.
type TrapFrame struct {
	// Regs holds x0..x31. Regs[RegZero] is always zero.
	Regs [NumGPRegs]uint64

	// PC is the user program counter to resume at (sepc).
	PC uint64
}

// SP returns the stack pointer.
func (tf *TrapFrame) SP() hostarch.Addr {
	return hostarch.Addr(tf.Regs[RegSP])
}

// SetSP sets the stack pointer.
func (tf *TrapFrame) SetSP(sp hostarch.Addr) {
	tf.Regs[RegSP] = uint64(sp)
}

// IP returns the program counter.
func (tf *TrapFrame) IP() hostarch.Addr {
	return hostarch.Addr(tf.PC)
}

// SetIP sets the program counter.
func (tf *TrapFrame) SetIP(pc hostarch.Addr) {
	tf.PC = uint64(pc)
}

// SetReturnAddress sets the address the callee returns to.
func (tf *TrapFrame) SetReturnAddress(ra hostarch.Addr) {
	tf.Regs[RegRA] = uint64(ra)
}

// Return returns the current syscall return value.
func (tf *TrapFrame) Return() uintptr {
	return uintptr(tf.Regs[RegA0])
}

// SetReturn sets the syscall return value.
func (tf *TrapFrame) SetReturn(value uintptr) {
	tf.Regs[RegA0] = uint64(value)
}

// SyscallNo returns the syscall number in a7.
func (tf *TrapFrame) SyscallNo() uintptr {
	return uintptr(tf.Regs[RegA7])
}

// SyscallArgs returns the syscall arguments in a0..a5.
func (tf *TrapFrame) SyscallArgs() SyscallArguments {
	return SyscallArguments{
		SyscallArgument{Value: uintptr(tf.Regs[RegA0])},
		SyscallArgument{Value: uintptr(tf.Regs[RegA1])},
		SyscallArgument{Value: uintptr(tf.Regs[RegA2])},
		SyscallArgument{Value: uintptr(tf.Regs[RegA3])},
		SyscallArgument{Value: uintptr(tf.Regs[RegA4])},
		SyscallArgument{Value: uintptr(tf.Regs[RegA5])},
	}
}

// SetSyscall loads a syscall number and arguments into the frame, as user
// code does before executing ecall.
func (tf *TrapFrame) SetSyscall(sysno uintptr, args SyscallArguments) {
	tf.Regs[RegA7] = uint64(sysno)
	for i, a := range args {
		tf.Regs[RegA0+i] = uint64(a.Value)
	}
}

// String implements fmt.Stringer.String.
func (tf *TrapFrame) String() string {
	return fmt.Sprintf("pc=%#x sp=%#x ra=%#x a0=%#x", tf.PC, tf.Regs[RegSP], tf.Regs[RegRA], tf.Regs[RegA0])
}

// Arch describes an architecture.
type Arch int

const (
	// RISCV64 is the 64-bit RISC-V architecture.
	RISCV64 Arch = iota
)

// String implements fmt.Stringer.
func (a Arch) String() string {
	switch a {
	case RISCV64:
		return "riscv64"
	}
	return fmt.Sprintf("Arch(%d)", a)
}

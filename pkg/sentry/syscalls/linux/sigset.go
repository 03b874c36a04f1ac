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

import (
	"gvisor.dev/sigkern/pkg/abi/linux"
	"gvisor.dev/sigkern/pkg/hostarch"
	"gvisor.dev/sigkern/pkg/sentry/kernel"
	"gvisor.dev/sigkern/pkg/usermem"
)

// sigSetPointer returns a user pointer to a sigset_t at addr.
func sigSetPointer(t *kernel.Task, addr hostarch.Addr) usermem.Pointer {
	return usermem.PointerTo(t.MemoryManager(), addr, linux.SignalSetSize)
}

// sigActionPointer returns a user pointer to a struct sigaction at addr.
func sigActionPointer(t *kernel.Task, addr hostarch.Addr) usermem.Pointer {
	return usermem.PointerTo(t.MemoryManager(), addr, linux.SigActionSize)
}

// copyInSigSet copies in a sigset_t.
func copyInSigSet(t *kernel.Task, sigSetAddr hostarch.Addr) (linux.SignalSet, error) {
	var mask linux.SignalSet
	if err := sigSetPointer(t, sigSetAddr).CopyIn(t, &mask); err != nil {
		return 0, err
	}
	return mask, nil
}

// copyOutSigSet copies out a sigset_t.
func copyOutSigSet(t *kernel.Task, sigSetAddr hostarch.Addr, mask linux.SignalSet) error {
	return sigSetPointer(t, sigSetAddr).CopyOut(t, &mask)
}

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

package syscalls

import (
	"testing"

	"gvisor.dev/sigkern/pkg/errors/linuxerr"
	"gvisor.dev/sigkern/pkg/sentry/arch"
	"gvisor.dev/sigkern/pkg/sentry/kernel"
)

func TestError(t *testing.T) {
	sc := Error("sigaltstack", linuxerr.ENOSYS, "Not implemented", nil)
	if sc.SupportLevel != kernel.SupportUnimplemented {
		t.Errorf("SupportLevel = %v, want %v", sc.SupportLevel, kernel.SupportUnimplemented)
	}
	if want := "Not implemented; Returns invalid system call number."; sc.Note != want {
		t.Errorf("Note = %q, want %q", sc.Note, want)
	}
	if _, _, err := sc.Fn(nil, arch.SyscallArguments{}); !linuxerr.Equals(linuxerr.ENOSYS, err) {
		t.Errorf("Fn() error = %v, want ENOSYS", err)
	}
}

func TestSupportLevels(t *testing.T) {
	if got := Supported("kill", nil).SupportLevel; got != kernel.SupportFull {
		t.Errorf("Supported level = %v", got)
	}
	if got := PartiallySupported("rt_sigaction", nil, "note", nil); got.SupportLevel != kernel.SupportPartial || got.Note != "note" {
		t.Errorf("PartiallySupported = %+v", got)
	}
}

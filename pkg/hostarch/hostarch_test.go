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

package hostarch

import "testing"

func TestRounding(t *testing.T) {
	for _, tc := range []struct {
		addr Addr
		down Addr
		up   Addr
	}{
		{0, 0, 0},
		{1, 0, PageSize},
		{PageSize, PageSize, PageSize},
		{PageSize + 8, PageSize, 2 * PageSize},
	} {
		if got := tc.addr.RoundDown(); got != tc.down {
			t.Errorf("%v.RoundDown() = %v, want %v", tc.addr, got, tc.down)
		}
		if got, ok := tc.addr.RoundUp(); !ok || got != tc.up {
			t.Errorf("%v.RoundUp() = %v, %v, want %v, true", tc.addr, got, ok, tc.up)
		}
	}
	if _, ok := (^Addr(0)).RoundUp(); ok {
		t.Errorf("RoundUp of the last address should wrap")
	}
}

func TestToRangeOverflow(t *testing.T) {
	if _, ok := (^Addr(0) - 4).ToRange(8); ok {
		t.Errorf("ToRange past the end of the address space should fail")
	}
	ar, ok := Addr(0x1000).ToRange(0x10)
	if !ok || ar.Length() != 0x10 || !ar.Contains(0x100f) || ar.Contains(0x1010) {
		t.Errorf("ToRange(0x1000, 0x10) = %v, %v", ar, ok)
	}
}

func TestAccessTypeSuperset(t *testing.T) {
	if !ReadWrite.SupersetOf(Write) || Read.SupersetOf(Write) || !Read.SupersetOf(NoAccess) {
		t.Errorf("unexpected SupersetOf results")
	}
	if got := ReadWrite.String(); got != "rw" {
		t.Errorf("ReadWrite.String() = %q", got)
	}
}

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

package mm

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/sigkern/pkg/errors/linuxerr"
	"gvisor.dev/sigkern/pkg/hostarch"
	"gvisor.dev/sigkern/pkg/usermem"
)

func testMemoryManager(t *testing.T) (context.Context, *MemoryManager) {
	t.Helper()
	return context.Background(), NewMemoryManager(DefaultLayout)
}

func mustMMap(t *testing.T, ctx context.Context, mm *MemoryManager, opts MMapOpts) hostarch.Addr {
	t.Helper()
	addr, err := mm.MMap(ctx, opts)
	if err != nil {
		t.Fatalf("MMap(%+v) got err %v want nil", opts, err)
	}
	return addr
}

func TestMMapPlacement(t *testing.T) {
	ctx, mm := testMemoryManager(t)

	first := mustMMap(t, ctx, mm, MMapOpts{Length: 1, Perms: hostarch.ReadWrite})
	if first != DefaultLayout.MinAddr {
		t.Errorf("first mapping at %v, want %v", first, DefaultLayout.MinAddr)
	}
	second := mustMMap(t, ctx, mm, MMapOpts{Length: 2 * hostarch.PageSize, Perms: hostarch.Read})
	if want := first + hostarch.PageSize; second != want {
		t.Errorf("second mapping at %v, want %v", second, want)
	}

	fixed := hostarch.Addr(0x100000)
	if got := mustMMap(t, ctx, mm, MMapOpts{Addr: fixed, Fixed: true, Length: hostarch.PageSize}); got != fixed {
		t.Errorf("fixed mapping at %v, want %v", got, fixed)
	}
	if _, err := mm.MMap(ctx, MMapOpts{Addr: fixed, Fixed: true, Length: hostarch.PageSize}); !linuxerr.Equals(linuxerr.EEXIST, err) {
		t.Errorf("overlapping fixed MMap got err %v, want EEXIST", err)
	}
	if _, err := mm.MMap(ctx, MMapOpts{Addr: fixed + 1, Fixed: true, Length: hostarch.PageSize}); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("unaligned fixed MMap got err %v, want EINVAL", err)
	}
	if _, err := mm.MMap(ctx, MMapOpts{}); !linuxerr.Equals(linuxerr.EINVAL, err) {
		t.Errorf("zero-length MMap got err %v, want EINVAL", err)
	}

	if got, want := mm.Stats().VMAs, 3; got != want {
		t.Errorf("VMAs = %d, want %d", got, want)
	}
}

func TestLazyPopulation(t *testing.T) {
	ctx, mm := testMemoryManager(t)
	addr := mustMMap(t, ctx, mm, MMapOpts{Length: 4 * hostarch.PageSize, Perms: hostarch.ReadWrite})

	if got := mm.Stats().ResidentPages; got != 0 {
		t.Fatalf("ResidentPages after MMap = %d, want 0", got)
	}

	// A copy straddling a page boundary faults in both pages.
	src := []byte("straddle")
	at := addr + hostarch.PageSize - 4
	if n, err := mm.CopyOut(ctx, at, src, usermem.IOOpts{}); n != len(src) || err != nil {
		t.Fatalf("CopyOut got (%d, %v), want (%d, nil)", n, err, len(src))
	}
	dst := make([]byte, len(src))
	if n, err := mm.CopyIn(ctx, at, dst, usermem.IOOpts{}); n != len(dst) || err != nil {
		t.Fatalf("CopyIn got (%d, %v), want (%d, nil)", n, err, len(dst))
	}
	if !bytes.Equal(dst, src) {
		t.Errorf("CopyIn got %q, want %q", dst, src)
	}

	want := Stats{VMAs: 1, ResidentPages: 2, Faults: 2}
	if diff := cmp.Diff(want, mm.Stats()); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestCopyFaults(t *testing.T) {
	ctx, mm := testMemoryManager(t)
	ro := mustMMap(t, ctx, mm, MMapOpts{Length: hostarch.PageSize, Perms: hostarch.Read})

	if _, err := mm.CopyOut(ctx, ro, []byte{1}, usermem.IOOpts{}); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("CopyOut to read-only mapping got err %v, want EFAULT", err)
	}
	if _, err := mm.CopyOut(ctx, ro, []byte{1}, usermem.IOOpts{IgnorePermissions: true}); err != nil {
		t.Errorf("CopyOut ignoring permissions got err %v, want nil", err)
	}

	// Copies that run off the end of a mapping are partial.
	buf := make([]byte, 16)
	n, err := mm.CopyIn(ctx, ro+hostarch.PageSize-8, buf, usermem.IOOpts{})
	if n != 8 || !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("CopyIn past end got (%d, %v), want (8, EFAULT)", n, err)
	}

	if _, err := mm.CopyIn(ctx, 0x10, buf, usermem.IOOpts{}); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("CopyIn from unmapped address got err %v, want EFAULT", err)
	}
	if _, err := mm.CopyIn(ctx, DefaultLayout.MaxAddr-4, buf, usermem.IOOpts{}); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("CopyIn beyond MaxAddr got err %v, want EFAULT", err)
	}
}

func TestEnsureResident(t *testing.T) {
	ctx, mm := testMemoryManager(t)
	a := mustMMap(t, ctx, mm, MMapOpts{Length: 2 * hostarch.PageSize, Perms: hostarch.ReadWrite})
	b := mustMMap(t, ctx, mm, MMapOpts{Length: hostarch.PageSize, Perms: hostarch.Read})
	if b != a+2*hostarch.PageSize {
		t.Fatalf("mappings are not adjacent: %v, %v", a, b)
	}

	// Reads may span both mappings.
	if err := mm.EnsureResident(ctx, a+hostarch.PageSize, 2*hostarch.PageSize, hostarch.Read); err != nil {
		t.Fatalf("EnsureResident(read) got err %v", err)
	}
	if got := mm.Stats().ResidentPages; got != 2 {
		t.Errorf("ResidentPages = %d, want 2", got)
	}

	// A write check fails on the read-only mapping and populates nothing.
	if err := mm.EnsureResident(ctx, a, 3*hostarch.PageSize, hostarch.Write); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("EnsureResident(write) got err %v, want EFAULT", err)
	}
	if got := mm.Stats().ResidentPages; got != 2 {
		t.Errorf("ResidentPages after failed check = %d, want 2", got)
	}

	// Ranges that run into unmapped space fail.
	if err := mm.EnsureResident(ctx, b, 2*hostarch.PageSize, hostarch.Read); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("EnsureResident past mapping got err %v, want EFAULT", err)
	}
	if got := mm.Stats().EagerChecks; got != 3 {
		t.Errorf("EagerChecks = %d, want 3", got)
	}
}

func TestMUnmapSplits(t *testing.T) {
	ctx, mm := testMemoryManager(t)
	addr := mustMMap(t, ctx, mm, MMapOpts{Length: 3 * hostarch.PageSize, Perms: hostarch.ReadWrite, Precommit: true})
	if got := mm.Stats().ResidentPages; got != 3 {
		t.Fatalf("ResidentPages after precommit = %d, want 3", got)
	}

	if err := mm.MUnmap(ctx, addr+hostarch.PageSize, hostarch.PageSize); err != nil {
		t.Fatalf("MUnmap got err %v", err)
	}
	want := Stats{VMAs: 2, ResidentPages: 2, Faults: 3}
	if diff := cmp.Diff(want, mm.Stats()); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
	if err := mm.HandleUserFault(ctx, addr+hostarch.PageSize, hostarch.Read); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("fault in unmapped hole got err %v, want EFAULT", err)
	}
	if err := mm.HandleUserFault(ctx, addr+2*hostarch.PageSize+8, hostarch.Write); err != nil {
		t.Errorf("fault in remaining mapping got err %v, want nil", err)
	}

	// The hole can be reused.
	if got := mustMMap(t, ctx, mm, MMapOpts{Length: hostarch.PageSize}); got != addr+hostarch.PageSize {
		t.Errorf("MMap into hole at %v, want %v", got, addr+hostarch.PageSize)
	}
}

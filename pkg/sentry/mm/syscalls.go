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
	"context"

	"gvisor.dev/sigkern/pkg/errors/linuxerr"
	"gvisor.dev/sigkern/pkg/hostarch"
	"gvisor.dev/sigkern/pkg/log"
)

// MMapOpts specifies a request to create a mapping.
type MMapOpts struct {
	// Length is the length of the mapping in bytes. It is rounded up to a
	// page boundary.
	Length uint64

	// Addr is the requested start address. If Fixed is false, Addr is a
	// hint and may be ignored.
	Addr hostarch.Addr

	// Fixed requires the mapping to be placed at exactly Addr. Unlike Linux's
	// MAP_FIXED, an existing mapping in the range is an error (EEXIST) rather
	// than being replaced.
	Fixed bool

	// Perms is the access the mapping permits.
	Perms hostarch.AccessType

	// Precommit populates every page of the mapping immediately.
	Precommit bool
}

// MMap establishes a memory mapping and returns its start address.
func (mm *MemoryManager) MMap(ctx context.Context, opts MMapOpts) (hostarch.Addr, error) {
	if opts.Length == 0 {
		return 0, linuxerr.EINVAL
	}
	length, ok := hostarch.Addr(opts.Length).RoundUp()
	if !ok {
		return 0, linuxerr.ENOMEM
	}
	if opts.Addr.PageOffset() != 0 {
		if opts.Fixed {
			return 0, linuxerr.EINVAL
		}
		opts.Addr = opts.Addr.RoundDown()
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()

	ar, ok := opts.Addr.ToRange(uint64(length))
	if opts.Fixed {
		if !ok || ar.Start < mm.layout.MinAddr || ar.End > mm.layout.MaxAddr {
			return 0, linuxerr.ENOMEM
		}
		if mm.overlapsLocked(ar) {
			return 0, linuxerr.EEXIST
		}
	} else if !ok || ar.Start < mm.layout.MinAddr || ar.End > mm.layout.MaxAddr || mm.overlapsLocked(ar) {
		start, ok := mm.findAvailableLocked(uint64(length))
		if !ok {
			return 0, linuxerr.ENOMEM
		}
		ar = hostarch.AddrRange{Start: start, End: start + length}
	}

	v := &vma{
		start: ar.Start,
		end:   ar.End,
		perms: opts.Perms,
		pages: make(map[hostarch.Addr][]byte),
	}
	mm.vmas.ReplaceOrInsert(v)
	if opts.Precommit {
		for pa := ar.Start; pa < ar.End; pa += hostarch.PageSize {
			mm.populateLocked(v, pa)
		}
	}
	log.Debugf("MMap %v %v", ar, opts.Perms)
	return ar.Start, nil
}

// findAvailableLocked returns the lowest page-aligned address at which length
// bytes can be mapped.
//
// +checklocks:mm.mu
func (mm *MemoryManager) findAvailableLocked(length uint64) (hostarch.Addr, bool) {
	start := mm.layout.MinAddr
	found := false
	mm.vmas.Ascend(func(v *vma) bool {
		if end, ok := start.AddLength(length); ok && end <= v.start {
			found = true
			return false
		}
		if v.end > start {
			start = v.end
		}
		return true
	})
	if found {
		return start, true
	}
	end, ok := start.AddLength(length)
	return start, ok && end <= mm.layout.MaxAddr
}

// MUnmap implements the semantics of Linux's munmap(2).
func (mm *MemoryManager) MUnmap(ctx context.Context, addr hostarch.Addr, length uint64) error {
	if addr.PageOffset() != 0 {
		return linuxerr.EINVAL
	}
	la, ok := hostarch.Addr(length).RoundUp()
	if !ok || la == 0 {
		return linuxerr.EINVAL
	}
	ar, ok := addr.ToRange(uint64(la))
	if !ok {
		return linuxerr.EINVAL
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.splitAtLocked(ar.Start)
	mm.splitAtLocked(ar.End)
	var doomed []*vma
	mm.vmas.AscendRange(&vma{start: ar.Start}, &vma{start: ar.End}, func(v *vma) bool {
		doomed = append(doomed, v)
		return true
	})
	for _, v := range doomed {
		mm.stats.ResidentPages -= uint64(len(v.pages))
		mm.vmas.Delete(v)
	}
	return nil
}

// HandleUserFault handles an application page fault at addr. It populates
// the page if the mapping permits access of type at.
func (mm *MemoryManager) HandleUserFault(ctx context.Context, addr hostarch.Addr, at hostarch.AccessType) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	v := mm.findVMALocked(addr)
	if v == nil || !v.perms.SupersetOf(at) {
		mm.stats.FailedAccesses++
		return linuxerr.EFAULT
	}
	mm.populateLocked(v, addr.RoundDown())
	return nil
}

// populateLocked returns the contents of the page at pa, allocating it if it
// is not yet resident.
//
// Preconditions: pa is page-aligned and within v.
//
// +checklocks:mm.mu
func (mm *MemoryManager) populateLocked(v *vma, pa hostarch.Addr) []byte {
	if p, ok := v.pages[pa]; ok {
		return p
	}
	p := make([]byte, hostarch.PageSize)
	v.pages[pa] = p
	mm.stats.Faults++
	mm.stats.ResidentPages++
	return p
}

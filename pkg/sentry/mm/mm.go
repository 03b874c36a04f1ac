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

// Package mm provides a memory management subsystem: a sparse address space
// of vmas whose pages are populated on first access.
package mm

import (
	"fmt"

	"github.com/google/btree"
	"gvisor.dev/sigkern/pkg/hostarch"
	"gvisor.dev/sigkern/pkg/sync"
)

// btreeDegree is the degree of the VMA tree. Address spaces in this kernel
// hold a handful of mappings, so a small degree keeps nodes compact.
const btreeDegree = 8

// Layout describes the bounds of the user address space.
type Layout struct {
	// MinAddr is the lowest mappable address.
	MinAddr hostarch.Addr

	// MaxAddr is one past the highest mappable address.
	MaxAddr hostarch.Addr
}

// DefaultLayout is an Sv39 user address space with the first 64 KiB left
// unmapped so that small integers never look like valid pointers.
var DefaultLayout = Layout{
	MinAddr: 16 * hostarch.PageSize,
	MaxAddr: 1 << 38,
}

// MemoryManager implements a virtual address space.
//
// Pages are populated lazily: mapping a range only records a vma, and the
// backing page is allocated the first time the page is accessed, either by a
// copy or by EnsureResident.
type MemoryManager struct {
	layout Layout

	mu sync.Mutex

	// vmas is ordered by vma.start. vmas never overlap.
	//
	// +checklocks:mu
	vmas *btree.BTreeG[*vma]

	// stats counts faults and eager checks.
	//
	// +checklocks:mu
	stats Stats
}

// Stats is a snapshot of MemoryManager counters.
type Stats struct {
	// VMAs is the number of mappings.
	VMAs int

	// ResidentPages is the number of populated pages.
	ResidentPages uint64

	// Faults is the number of pages populated on access.
	Faults uint64

	// EagerChecks is the number of EnsureResident calls.
	EagerChecks uint64

	// FailedAccesses is the number of accesses rejected with EFAULT.
	FailedAccesses uint64
}

// vma is a mapped range of the address space.
type vma struct {
	start hostarch.Addr
	end   hostarch.Addr
	perms hostarch.AccessType

	// pages maps page-aligned addresses in [start, end) to page contents.
	pages map[hostarch.Addr][]byte
}

func vmaLess(a, b *vma) bool {
	return a.start < b.start
}

func (v *vma) addrRange() hostarch.AddrRange {
	return hostarch.AddrRange{Start: v.start, End: v.end}
}

func (v *vma) String() string {
	return fmt.Sprintf("%v %v (%d resident)", v.addrRange(), v.perms, len(v.pages))
}

// NewMemoryManager returns an empty MemoryManager with the given layout.
func NewMemoryManager(layout Layout) *MemoryManager {
	if layout.MinAddr.PageOffset() != 0 || layout.MaxAddr.PageOffset() != 0 || layout.MinAddr >= layout.MaxAddr {
		panic(fmt.Sprintf("invalid layout %+v", layout))
	}
	return &MemoryManager{
		layout: layout,
		vmas:   btree.NewG[*vma](btreeDegree, vmaLess),
	}
}

// Layout returns the address space bounds.
func (mm *MemoryManager) Layout() Layout {
	return mm.layout
}

// Stats returns a snapshot of the memory manager's counters.
func (mm *MemoryManager) Stats() Stats {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	s := mm.stats
	s.VMAs = mm.vmas.Len()
	return s
}

// String returns the mappings in ascending order, one per line, in the style
// of /proc/[pid]/maps.
func (mm *MemoryManager) String() string {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	var s string
	mm.vmas.Ascend(func(v *vma) bool {
		s += v.String() + "\n"
		return true
	})
	return s
}

// findVMALocked returns the vma containing addr, or nil.
//
// +checklocks:mm.mu
func (mm *MemoryManager) findVMALocked(addr hostarch.Addr) *vma {
	var found *vma
	mm.vmas.DescendLessOrEqual(&vma{start: addr}, func(v *vma) bool {
		if addr < v.end {
			found = v
		}
		return false
	})
	return found
}

// overlapsLocked returns true if any vma overlaps ar.
//
// +checklocks:mm.mu
func (mm *MemoryManager) overlapsLocked(ar hostarch.AddrRange) bool {
	if mm.findVMALocked(ar.Start) != nil {
		return true
	}
	overlaps := false
	mm.vmas.AscendRange(&vma{start: ar.Start}, &vma{start: ar.End}, func(*vma) bool {
		overlaps = true
		return false
	})
	return overlaps
}

// splitAtLocked ensures that no vma straddles addr.
//
// +checklocks:mm.mu
func (mm *MemoryManager) splitAtLocked(addr hostarch.Addr) {
	v := mm.findVMALocked(addr)
	if v == nil || v.start == addr {
		return
	}
	right := &vma{
		start: addr,
		end:   v.end,
		perms: v.perms,
		pages: make(map[hostarch.Addr][]byte),
	}
	for pa, p := range v.pages {
		if pa >= addr {
			right.pages[pa] = p
			delete(v.pages, pa)
		}
	}
	// v's key is its start, which does not change.
	v.end = addr
	mm.vmas.ReplaceOrInsert(right)
}
